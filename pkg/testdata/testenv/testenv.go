// Package testenv wires an in-memory store and a context-trusting identity
// service for the entity service tests.
package testenv

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/identity"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/metrics"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata"
)

// Env is a ready-to-use set of service collaborators
type Env struct {
	Store    *store.Store
	Identity *identity.Service
	Metrics  *metrics.Metrics
	Deps     access.Deps
}

// New builds an Env on a fresh SQLite database private to t
func New(t testing.TB, opts ...store.Option) *Env {
	t.Helper()

	m := metrics.New(prometheus.NewRegistry())
	st := testdata.NewStore(t, append([]store.Option{store.WithMetrics(m)}, opts...)...)
	ids := identity.NewService(st, identity.ContextResolver{}, identity.WithLogger(logger.Nop()), identity.WithMetrics(m))

	return &Env{
		Store:    st,
		Identity: ids,
		Metrics:  m,
		Deps: access.Deps{
			Store:   st,
			Auth:    ids,
			Log:     logger.Nop(),
			Metrics: m,
		},
	}
}

// Caller returns a context authenticated as externalID
func Caller(externalID string) context.Context {
	return identity.WithIdentity(context.Background(), identity.Identity{
		ExternalID: externalID,
		Email:      externalID + "@example.com",
		Name:       "User " + externalID,
	})
}

// Anonymous returns a context without a caller
func Anonymous() context.Context {
	return context.Background()
}

// UserID authenticates externalID and returns the internal user id
func (e *Env) UserID(t testing.TB, externalID string) string {
	t.Helper()
	u, err := e.Identity.Authenticate(Caller(externalID))
	if err != nil {
		t.Fatalf("failed authenticating caller: %v", err)
	}
	return u.ID
}
