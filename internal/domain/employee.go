package domain

import (
	"time"

	"github.com/google/uuid"
)

// Employee holds the credential record the login path authenticates against.
// Payroll, leave, and the rest of the HR profile live in other services.
type Employee struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"full_name"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
