package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/cache"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/metrics"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/validation"
)

const defaultCacheTTL = 5 * time.Minute

// Service resolves callers to users and applies identity sync events
type Service struct {
	store    *store.Store
	resolver Resolver
	cache    *cache.Client
	cacheTTL time.Duration
	log      logger.Logger
	metrics  *metrics.Metrics
}

// Option configures a Service
type Option func(*Service)

// WithCache caches the external id to user mapping in Redis. Entity
// ownership is never cached.
func WithCache(c *cache.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = c
		if ttl > 0 {
			s.cacheTTL = ttl
		}
	}
}

// WithLogger sets the service logger
func WithLogger(log logger.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithMetrics records cache and operation metrics on m
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a new identity service
func NewService(st *store.Store, resolver Resolver, opts ...Option) *Service {
	s := &Service{
		store:    st,
		resolver: resolver,
		cacheTTL: defaultCacheTTL,
		log:      logger.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate resolves the caller and returns their user record. A user
// seen for the first time is created.
func (s *Service) Authenticate(ctx context.Context) (*models.User, error) {
	id, err := s.resolver.ResolveCaller(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve caller: %w", err)
	}
	if id == nil || validation.Clean(id.ExternalID) == "" {
		return nil, domain.NewUnauthenticatedError()
	}
	externalID := validation.Clean(id.ExternalID)

	if u := s.cached(ctx, externalID); u != nil {
		return u, nil
	}

	u, err := s.store.GetUserByExternalID(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		u, err = s.upsert(ctx, Identity{ExternalID: externalID, Email: id.Email, Name: id.Name})
		if err != nil {
			return nil, err
		}
		s.log.Info("user created on first sight", "user_id", u.ID)
	}

	s.remember(ctx, u)
	return u, nil
}

// UpsertUserFromIdentity creates or refreshes the user linked to
// externalID and returns its id. It is idempotent.
func (s *Service) UpsertUserFromIdentity(ctx context.Context, externalID, email, name string) (string, error) {
	start := time.Now()
	u, err := s.upsert(ctx, Identity{ExternalID: externalID, Email: email, Name: name})
	s.metrics.RecordOperation("user", "upsert", start, err)
	if err != nil {
		return "", err
	}
	s.remember(ctx, u)
	return u.ID, nil
}

// DeleteUserByIdentity removes the user linked to externalID. Deleting an
// unknown identity is a no-op. Rows owned by the user are left in place
// and become unreachable.
func (s *Service) DeleteUserByIdentity(ctx context.Context, externalID string) error {
	start := time.Now()
	externalID = validation.Clean(externalID)
	if externalID == "" {
		return domain.NewValidationError("Campo external_id é obrigatório")
	}

	deleted, err := s.store.DeleteUserByExternalID(ctx, externalID)
	s.metrics.RecordOperation("user", "delete", start, err)
	if err != nil {
		return err
	}
	s.forget(ctx, externalID)

	if deleted {
		s.log.Info("user deleted by identity sync", "external_id", externalID)
	}
	return nil
}

// CurrentUser returns the caller's own user record
func (s *Service) CurrentUser(ctx context.Context) (*models.User, error) {
	return s.Authenticate(ctx)
}

// UpdateProfile changes the caller's name and/or email
func (s *Service) UpdateProfile(ctx context.Context, req models.UpdateProfileRequest) (*models.User, error) {
	u, err := s.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		if err := validation.Required("name", *req.Name); err != nil {
			return nil, err
		}
		u.Name = validation.Clean(*req.Name)
	}
	if req.Email != nil {
		email := validation.Clean(*req.Email)
		if err := validation.Var("email", email, "required,email"); err != nil {
			return nil, err
		}
		u.Email = email
	}

	if err := s.store.UpdateUser(ctx, u); err != nil {
		return nil, err
	}
	s.remember(ctx, u)
	return u, nil
}

func (s *Service) upsert(ctx context.Context, id Identity) (*models.User, error) {
	id.ExternalID = validation.Clean(id.ExternalID)
	id.Email = validation.Clean(id.Email)
	id.Name = validation.Clean(id.Name)

	if id.ExternalID == "" {
		return nil, domain.NewValidationError("Campo external_id é obrigatório")
	}
	if id.Email != "" {
		if err := validation.Var("email", id.Email, "email"); err != nil {
			return nil, err
		}
	}

	var user *models.User
	write := func(tx *store.Store) error {
		existing, err := tx.GetUserByExternalID(ctx, id.ExternalID)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.Email != id.Email || existing.Name != id.Name {
				existing.Email = id.Email
				existing.Name = id.Name
				if err := tx.UpdateUser(ctx, existing); err != nil {
					return err
				}
			}
			user = existing
			return nil
		}

		u := &models.User{ExternalID: id.ExternalID, Email: id.Email, Name: id.Name}
		if err := tx.InsertUser(ctx, u); err != nil {
			return err
		}
		user = u
		return nil
	}

	err := s.store.WithTx(ctx, write)
	if store.IsUniqueViolation(err) {
		// a concurrent first sighting inserted the row; take the update path
		err = s.store.WithTx(ctx, write)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

func cacheKey(externalID string) string {
	return "identity:" + externalID
}

func (s *Service) cached(ctx context.Context, externalID string) *models.User {
	if s.cache == nil {
		return nil
	}
	var u models.User
	found, err := s.cache.GetJSON(ctx, cacheKey(externalID), &u)
	if err != nil {
		s.metrics.RecordCacheLookup("error")
		s.log.Warn("identity cache lookup failed", "error", err)
		return nil
	}
	if !found {
		s.metrics.RecordCacheLookup("miss")
		return nil
	}
	s.metrics.RecordCacheLookup("hit")
	return &u
}

func (s *Service) remember(ctx context.Context, u *models.User) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, cacheKey(u.ExternalID), u, s.cacheTTL); err != nil {
		s.log.Warn("identity cache write failed", "error", err)
	}
}

func (s *Service) forget(ctx context.Context, externalID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cacheKey(externalID)); err != nil {
		s.log.Warn("identity cache invalidation failed", "error", err)
	}
}
