// Package identity maps an authenticated principal to its user record in
// the store, creating the record on first use.
package identity

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/devqa/devqa.go/pkg/auth"
	"github.com/devqa/devqa.go/pkg/connection"
	"github.com/devqa/devqa.go/pkg/constants"
	"github.com/devqa/devqa.go/pkg/formula"
	"github.com/devqa/devqa.go/pkg/logger"
	"github.com/devqa/devqa.go/pkg/models"
	"github.com/devqa/devqa.go/pkg/store"
)

// Resolver caches resolved ids for the lifetime of the session. Concurrent
// resolutions of the same email share one store round trip, so a single
// client never creates two user records for one email.
type Resolver struct {
	con    connection.Connection
	table  string
	logger logger.Logger

	group singleflight.Group
	mu    sync.RWMutex
	ids   map[string]string
}

func New(con connection.Connection, table string, log logger.Logger) *Resolver {
	if table == "" {
		table = constants.TableUsers
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Resolver{con: con, table: table, logger: log, ids: make(map[string]string)}
}

// Resolve returns the user id for c. It fails with
// [constants.ErrIdentityUnavailable] when c carries no email.
func (r *Resolver) Resolve(ctx context.Context, c auth.Claims) (string, error) {
	if !c.HasEmail() {
		return "", constants.ErrIdentityUnavailable
	}
	key := strings.ToLower(strings.TrimSpace(c.Email))

	r.mu.RLock()
	id, ok := r.ids[key]
	r.mu.RUnlock()
	if ok {
		return id, nil
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		r.mu.RLock()
		id, ok := r.ids[key]
		r.mu.RUnlock()
		if ok {
			return id, nil
		}
		id, err := r.findOrCreate(ctx, key, c)
		if err != nil {
			return "", err
		}
		r.mu.Lock()
		r.ids[key] = id
		r.mu.Unlock()
		return id, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (r *Resolver) findOrCreate(ctx context.Context, email string, c auth.Claims) (string, error) {
	found, err := store.First[models.UserFields](ctx, r.con, r.table, connection.ListQuery{
		Filter: formula.Compile(formula.EqualFold("Email", email)),
	})
	if err != nil {
		return "", fmt.Errorf("look up user %s: %w", email, err)
	}
	if found != nil {
		return found.ID, nil
	}

	created, err := store.Create[models.UserFields](ctx, r.con, r.table, models.UserFields{
		Name:    c.DisplayName(),
		Email:   email,
		Picture: c.Picture,
		Points:  0,
	})
	if err != nil {
		return "", fmt.Errorf("create user %s: %w", email, err)
	}
	r.logger.Info("created user record", "user", created.ID, "email", email)
	return created.ID, nil
}

// Forget drops every cached id. It is called when the principal signs out.
func (r *Resolver) Forget() {
	r.mu.Lock()
	defer r.mu.Unlock()
	clear(r.ids)
}

// Watch keeps the cache in step with the auth signal.
func (r *Resolver) Watch(p *auth.StaticProvider) {
	p.Watch(func(s auth.Status) {
		if s.State != auth.StateSignedIn {
			r.Forget()
		}
	})
}
