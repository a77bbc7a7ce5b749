// Package secrets loads credentials from the environment or AWS Secrets
// Manager and applies them over the loaded configuration.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/secretsmanager"
	"github.com/aws/aws-sdk-go/service/secretsmanager/secretsmanageriface"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
)

// ErrNotFound is returned when a secret has no value in the backend
var ErrNotFound = errors.New("secret not found")

// Manager retrieves secrets by key
type Manager interface {
	GetSecret(ctx context.Context, key string) (string, error)
}

// Config holds secrets manager configuration
type Config struct {
	Backend       string // "env" or "aws"
	AWSRegion     string
	Prefix        string // prepended to every key looked up in AWS
	CacheDuration time.Duration
}

// NewManager creates the manager for cfg.Backend
func NewManager(cfg Config, log logger.Logger) (Manager, error) {
	if log == nil {
		log = logger.Default()
	}
	switch cfg.Backend {
	case "aws", "aws-secrets-manager":
		sess, err := session.NewSession(&aws.Config{Region: aws.String(cfg.AWSRegion)})
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		log.Info("secrets from aws secrets manager", "region", cfg.AWSRegion)
		return NewAWSManager(secretsmanager.New(sess), cfg), nil
	case "", "env", "environment":
		return EnvManager{}, nil
	default:
		return nil, fmt.Errorf("unsupported secrets backend: %s", cfg.Backend)
	}
}

// EnvManager reads secrets from environment variables
type EnvManager struct{}

// GetSecret implements Manager
func (EnvManager) GetSecret(_ context.Context, key string) (string, error) {
	if v := os.Getenv(key); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

// AWSManager reads secrets from AWS Secrets Manager and caches them
type AWSManager struct {
	client secretsmanageriface.SecretsManagerAPI
	prefix string
	ttl    time.Duration
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

// NewAWSManager creates a manager over client
func NewAWSManager(client secretsmanageriface.SecretsManagerAPI, cfg Config) *AWSManager {
	if cfg.CacheDuration <= 0 {
		cfg.CacheDuration = 5 * time.Minute
	}
	return &AWSManager{
		client: client,
		prefix: cfg.Prefix,
		ttl:    cfg.CacheDuration,
		now:    time.Now,
		cache:  make(map[string]cachedSecret),
	}
}

// GetSecret implements Manager
func (m *AWSManager) GetSecret(ctx context.Context, key string) (string, error) {
	id := m.prefix + key

	m.mu.RLock()
	c, ok := m.cache[id]
	m.mu.RUnlock()
	if ok && m.now().Before(c.expiresAt) {
		return c.value, nil
	}

	out, err := m.client.GetSecretValueWithContext(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		var nf *secretsmanager.ResourceNotFoundException
		if errors.As(err, &nf) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return "", fmt.Errorf("failed to get secret %s: %w", id, err)
	}
	if out.SecretString == nil || *out.SecretString == "" {
		return "", fmt.Errorf("%w: %s has no string value", ErrNotFound, id)
	}

	m.mu.Lock()
	m.cache[id] = cachedSecret{value: *out.SecretString, expiresAt: m.now().Add(m.ttl)}
	m.mu.Unlock()
	return *out.SecretString, nil
}

// Invalidate drops every cached secret
func (m *AWSManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache = make(map[string]cachedSecret)
}
