package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/staffhub/platform/internal/guard"
)

const defaultGeoBaseURL = "http://ip-api.com/json"

// GeoInfo is the subset of IP geolocation data the fingerprint cares about.
type GeoInfo struct {
	Country string `json:"country"`
	Region  string `json:"regionName"`
	City    string `json:"city"`
	ISP     string `json:"isp"`
}

// GeoIPClient resolves an IP address to coarse location data. Lookups sit
// behind a circuit breaker: when the upstream is down the breaker opens and
// callers get an immediate error instead of a slow timeout. Every caller
// treats lookup failure as "no geo data", never as a login failure.
type GeoIPClient struct {
	baseURL string
	client  *http.Client
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewGeoIPClient creates a geolocation client. baseURL may be empty to use
// the default upstream.
func NewGeoIPClient(baseURL string, breaker *guard.CircuitBreaker, logger *slog.Logger) *GeoIPClient {
	if baseURL == "" {
		baseURL = defaultGeoBaseURL
	}
	return &GeoIPClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 3 * time.Second},
		breaker: breaker,
		logger:  logger,
	}
}

// Lookup resolves ip to location data. Private and loopback addresses are
// skipped locally, the upstream has nothing useful to say about them.
func (c *GeoIPClient) Lookup(ctx context.Context, ip string) (GeoInfo, error) {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return GeoInfo{}, fmt.Errorf("invalid ip %q", ip)
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return GeoInfo{}, fmt.Errorf("non-routable ip %s", ip)
	}

	if res := c.breaker.Check(ctx, "geoip"); !res.Allowed {
		return GeoInfo{}, fmt.Errorf("geoip circuit open: %s", res.Reason)
	}

	info, err := c.fetch(ctx, ip)
	if err != nil {
		c.breaker.RecordFailure("geoip")
		return GeoInfo{}, err
	}
	c.breaker.RecordSuccess("geoip")
	return info, nil
}

func (c *GeoIPClient) fetch(ctx context.Context, ip string) (GeoInfo, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/"+url.PathEscape(ip), nil)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return GeoInfo{}, fmt.Errorf("geoip call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return GeoInfo{}, fmt.Errorf("geoip returned %d", resp.StatusCode)
	}

	var response struct {
		Status  string `json:"status"`
		Message string `json:"message"`
		GeoInfo
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return GeoInfo{}, fmt.Errorf("decode response: %w", err)
	}
	if response.Status != "success" {
		return GeoInfo{}, fmt.Errorf("geoip error: %s", response.Message)
	}
	return response.GeoInfo, nil
}
