package tenant

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kailas-cloud/realtorbot/internal/db"
	"github.com/kailas-cloud/realtorbot/internal/domain"
	domtenant "github.com/kailas-cloud/realtorbot/internal/domain/tenant"
)

// store is the consumer interface for tenant persistence (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}

// Repo loads tenant configuration from Valkey behind a small expiring LRU.
// Tenants are read-only for the duration of a request, so a stale entry
// lives at most one TTL.
type Repo struct {
	store store
	cache *expirable.LRU[string, domtenant.Tenant]
}

// New creates a tenant repository. size <= 0 disables caching.
func New(s store, size int, ttl time.Duration) *Repo {
	r := &Repo{store: s}
	if size > 0 {
		r.cache = expirable.NewLRU[string, domtenant.Tenant](size, nil, ttl)
	}
	return r
}

// Get returns the tenant or domain.ErrTenantNotFound.
func (r *Repo) Get(ctx context.Context, id string) (domtenant.Tenant, error) {
	if r.cache != nil {
		if t, ok := r.cache.Get(id); ok {
			return t, nil
		}
	}

	data, err := r.store.Get(ctx, key(id))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return domtenant.Tenant{}, fmt.Errorf("tenant %q: %w", id, domain.ErrTenantNotFound)
		}
		return domtenant.Tenant{}, fmt.Errorf("get tenant %q: %w", id, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return domtenant.Tenant{}, fmt.Errorf("decode tenant %q: %w", id, err)
	}
	t, err := rec.ToDomain()
	if err != nil {
		return domtenant.Tenant{}, fmt.Errorf("stored tenant %q: %w", id, err)
	}

	if r.cache != nil {
		r.cache.Add(id, t)
	}
	return t, nil
}

// Put stores a tenant and drops any cached copy.
func (r *Repo) Put(ctx context.Context, t domtenant.Tenant) error {
	data, err := json.Marshal(FromDomain(t))
	if err != nil {
		return fmt.Errorf("encode tenant %q: %w", t.ID(), err)
	}
	if err := r.store.Set(ctx, key(t.ID()), data); err != nil {
		return fmt.Errorf("put tenant %q: %w", t.ID(), err)
	}
	if r.cache != nil {
		r.cache.Remove(t.ID())
	}
	return nil
}

func key(id string) string {
	return domain.KeyPrefix + "tenant:" + id
}
