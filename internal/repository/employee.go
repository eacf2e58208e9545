package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/staffhub/platform/internal/domain"
)

// PgEmployeeRepository implements EmployeeRepository using pgx.
type PgEmployeeRepository struct{}

// NewPgEmployeeRepository creates a new PgEmployeeRepository.
func NewPgEmployeeRepository() *PgEmployeeRepository {
	return &PgEmployeeRepository{}
}

// FindByEmail returns an employee by email, or nil if not found.
func (r *PgEmployeeRepository) FindByEmail(ctx context.Context, db DBTX, email string) (*domain.Employee, error) {
	row := db.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, role, is_active, created_at, updated_at
		 FROM employees WHERE email = $1`, email)
	return scanEmployee(row)
}

// FindByID returns an employee by ID, or nil if not found.
func (r *PgEmployeeRepository) FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Employee, error) {
	row := db.QueryRow(ctx,
		`SELECT id, email, full_name, password_hash, role, is_active, created_at, updated_at
		 FROM employees WHERE id = $1`, id)
	return scanEmployee(row)
}

// Create inserts a new employee.
func (r *PgEmployeeRepository) Create(ctx context.Context, db DBTX, e *domain.Employee) error {
	_, err := db.Exec(ctx,
		`INSERT INTO employees (id, email, full_name, password_hash, role, is_active)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.Email, e.FullName, e.PasswordHash, e.Role, e.IsActive)
	return err
}

// UpdatePasswordHash updates the password hash for the given email.
func (r *PgEmployeeRepository) UpdatePasswordHash(ctx context.Context, db DBTX, email, hash string) error {
	tag, err := db.Exec(ctx,
		`UPDATE employees SET password_hash = $1, updated_at = now() WHERE email = $2`,
		hash, email)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound("employee", email)
	}
	return nil
}

func scanEmployee(row pgx.Row) (*domain.Employee, error) {
	e := &domain.Employee{}
	err := row.Scan(&e.ID, &e.Email, &e.FullName, &e.PasswordHash, &e.Role, &e.IsActive, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}
