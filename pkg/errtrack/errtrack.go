// Package errtrack reports broken data invariants to Sentry.
package errtrack

import (
	"context"
	"time"

	"github.com/getsentry/sentry-go"
)

// Reporter receives invariant violations that should never happen
type Reporter interface {
	ReportInvariant(ctx context.Context, err error, tags map[string]string)
}

// Init configures the global Sentry client. An empty dsn leaves Sentry
// disabled and events are dropped.
func Init(dsn, environment string) error {
	return sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		Environment:      environment,
		AttachStacktrace: true,
	})
}

// Flush waits up to timeout for buffered events to be delivered
func Flush(timeout time.Duration) bool {
	return sentry.Flush(timeout)
}

// SentryReporter sends invariant violations to a Sentry hub
type SentryReporter struct {
	hub *sentry.Hub
}

// NewSentryReporter reports through hub, or the global hub when nil
func NewSentryReporter(hub *sentry.Hub) *SentryReporter {
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	return &SentryReporter{hub: hub}
}

// ReportInvariant implements Reporter
func (r *SentryReporter) ReportInvariant(ctx context.Context, err error, tags map[string]string) {
	hub := r.hub
	if h := sentry.GetHubFromContext(ctx); h != nil {
		hub = h
	}
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("kind", "invariant_violation")
		scope.SetTags(tags)
		hub.CaptureException(err)
	})
}

type nopReporter struct{}

func (nopReporter) ReportInvariant(context.Context, error, map[string]string) {}

// Nop returns a Reporter that drops everything
func Nop() Reporter {
	return nopReporter{}
}
