package secrets

import (
	"context"
	"errors"

	"github.com/Web-Star-Studio/noturno-kimi/config"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

// Apply overrides the credential fields of cfg with the values m holds.
// Keys without a value keep the configured one.
func Apply(ctx context.Context, m Manager, cfg *config.Config, log logger.Logger) error {
	if log == nil {
		log = logger.Default()
	}
	fields := []struct {
		key string
		dst *string
	}{
		{"DATABASE_URL", &cfg.DatabaseURL},
		{"REDIS_URL", &cfg.RedisURL},
		{"JWT_SECRET", &cfg.JWTSecret},
		{"OPENAI_API_KEY", &cfg.OpenAIAPIKey},
		{"SENDGRID_API_KEY", &cfg.SendGridAPIKey},
		{"SENTRY_DSN", &cfg.SentryDSN},
	}

	loaded := 0
	for _, f := range fields {
		v, err := m.GetSecret(ctx, f.key)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return err
		}
		*f.dst = v
		loaded++
	}
	log.Info("secrets applied", "loaded", loaded)
	return nil
}
