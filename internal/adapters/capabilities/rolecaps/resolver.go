package rolecaps

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"dental-inspections/internal/ports/auth"
	"dental-inspections/internal/ports/capabilities"
)

// defaultTable es la matriz rol → capabilities que aplica cuando no hay servicio central.
var defaultTable = map[auth.Role][]capabilities.Capability{
	auth.RoleInspector: {
		capabilities.InspectionsSubmit,
		capabilities.InspectionsPrint,
		capabilities.ViolationsIssue,
	},
	auth.RoleSupervisor: {
		capabilities.ClinicsWrite,
		capabilities.VisitsWrite,
		capabilities.InspectionsSubmit,
		capabilities.InspectionsPrint,
		capabilities.ViolationsIssue,
		capabilities.ViolationsVoid,
	},
	auth.RoleAdmin: {
		capabilities.ClinicsWrite,
		capabilities.VisitsWrite,
		capabilities.InspectionsSubmit,
		capabilities.InspectionsPrint,
		capabilities.ViolationsIssue,
		capabilities.ViolationsVoid,
	},
}

type cacheEntry struct {
	caps    map[string]bool
	expires time.Time
}

// Resolver implementa capabilities.CapabilitiesResolver.
// Con client configurado consulta upstream (cacheado por usuario); si no, usa la tabla por rol.
type Resolver struct {
	client   *Client
	allowAll bool
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type Options struct {
	Client   *Client
	AllowAll bool
	CacheTTL time.Duration
}

func NewResolver(opts Options) *Resolver {
	ttl := opts.CacheTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &Resolver{
		client:   opts.Client,
		allowAll: opts.AllowAll,
		ttl:      ttl,
		now:      time.Now,
		cache:    map[string]cacheEntry{},
	}
}

func (r *Resolver) HasFeature(ctx context.Context, in capabilities.CapabilityCheck) (bool, error) {
	c := strings.TrimSpace(string(in.Capability))
	if c == "" {
		return false, errors.New("capability required")
	}
	if r.allowAll {
		return true, nil
	}

	if r.client.IsConfigured() {
		caps, err := r.remote(ctx, in.UserID)
		if err != nil {
			return false, err
		}
		return caps[c], nil
	}

	for _, have := range defaultTable[in.Role] {
		if string(have) == c {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) remote(ctx context.Context, userID string) (map[string]bool, error) {
	now := r.now()

	r.mu.Lock()
	if e, ok := r.cache[userID]; ok && now.Before(e.expires) {
		r.mu.Unlock()
		return e.caps, nil
	}
	r.mu.Unlock()

	resp, err := r.client.GetCapabilities(ctx, userID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[userID] = cacheEntry{caps: resp.Capabilities, expires: now.Add(r.ttl)}
	r.mu.Unlock()

	return resp.Capabilities, nil
}
