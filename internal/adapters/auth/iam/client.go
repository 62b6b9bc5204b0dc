package iam

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"dental-inspections/internal/platform/httpclient"
	"dental-inspections/internal/ports/auth"
)

var (
	ErrIAMNotConfigured = errors.New("iam client not configured")
	ErrIAMUnauthorized  = errors.New("iam unauthorized")
	ErrIAMUpstream      = errors.New("iam upstream error")
)

// Config del cliente IAM del ministerio. Normalmente viene de config.AuthConfig.
type Config struct {
	BaseURL string
	APIKey  string

	// Header donde se manda la API key. Vacío = "X-Api-Key".
	APIKeyHeader string

	Timeout time.Duration
}

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

	return &Client{
		http:       hc,
		configured: hc.BaseURL != "" && apiKey != "",
	}, nil
}

// WithTransport para tests.
func (c *Client) WithTransport(tr http.RoundTripper) *Client {
	c.http.WithTransport(tr)
	return c
}

func (c *Client) IsConfigured() bool {
	return c != nil && c.configured
}

type verifyResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	TenantID string `json:"tenant_id"`
}

// VerifyToken valida el token contra IAM y trae los claims del inspector.
func (c *Client) VerifyToken(ctx context.Context, token string) (auth.Claims, error) {
	if !c.IsConfigured() {
		return auth.Claims{}, ErrIAMNotConfigured
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return auth.Claims{}, ErrIAMUnauthorized
	}

	var out verifyResponse
	err := c.http.DoJSON(ctx, http.MethodPost, "/v1/tokens/verify",
		map[string]string{"Authorization": "Bearer " + token},
		map[string]string{"token": token},
		&out,
	)
	if err != nil {
		switch httpclient.StatusOf(err) {
		case http.StatusUnauthorized, http.StatusForbidden:
			return auth.Claims{}, ErrIAMUnauthorized
		default:
			return auth.Claims{}, fmt.Errorf("%w: %v", ErrIAMUpstream, err)
		}
	}

	out.UserID = strings.TrimSpace(out.UserID)
	if out.UserID == "" {
		return auth.Claims{}, errors.New("iam response missing user_id")
	}

	role := auth.Role(strings.ToLower(strings.TrimSpace(out.Role)))
	if role == "" {
		role = auth.RoleInspector
	}

	return auth.Claims{
		UserID:   out.UserID,
		Email:    strings.TrimSpace(out.Email),
		Name:     strings.TrimSpace(out.Name),
		Role:     role,
		TenantID: strings.TrimSpace(out.TenantID),
	}, nil
}
