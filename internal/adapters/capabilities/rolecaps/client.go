package rolecaps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dental-inspections/internal/platform/httpclient"
)

var (
	ErrCapsNotConfigured = errors.New("capabilities client not configured")
	ErrCapsUnauthorized  = errors.New("capabilities unauthorized")
	ErrCapsUpstream      = errors.New("capabilities upstream error")
)

type Config struct {
	BaseURL      string
	APIKey       string
	APIKeyHeader string
	Timeout      time.Duration
}

// Client habla con el servicio central de permisos del ministerio.
type Client struct {
	http       *httpclient.Client
	configured bool
}

func NewClient(cfg Config) (*Client, error) {
	h := strings.TrimSpace(cfg.APIKeyHeader)
	if h == "" {
		h = "X-Api-Key"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	hc, err := httpclient.NewWithBaseURL(cfg.BaseURL, timeout)
	if err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	hc.SetHeader(h, apiKey)

	return &Client{http: hc, configured: hc.BaseURL != "" && apiKey != ""}, nil
}

func (c *Client) WithTransport(tr http.RoundTripper) *Client {
	c.http.WithTransport(tr)
	return c
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.configured
}

// CapabilitiesResponse: {"capabilities": {"inspections:submit": true, ...}}
type CapabilitiesResponse struct {
	Capabilities map[string]bool `json:"capabilities"`
}

// GetCapabilities trae el mapa completo de capabilities de un usuario.
func (c *Client) GetCapabilities(ctx context.Context, userID string) (CapabilitiesResponse, error) {
	if !c.IsConfigured() {
		return CapabilitiesResponse{}, ErrCapsNotConfigured
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CapabilitiesResponse{}, errors.New("userID required")
	}

	var out CapabilitiesResponse
	path := "/v1/capabilities?user_id=" + url.QueryEscape(userID)
	if err := c.http.DoJSON(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		switch httpclient.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return CapabilitiesResponse{}, ErrCapsUnauthorized
		default:
			return CapabilitiesResponse{}, fmt.Errorf("%w: %v", ErrCapsUpstream, err)
		}
	}
	if out.Capabilities == nil {
		out.Capabilities = map[string]bool{}
	}
	return out, nil
}
