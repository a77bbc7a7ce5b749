// Package app composes the data-access services over one database. The
// worker hosts it for scheduled jobs and a transport embeds it to serve
// callers.
package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/Web-Star-Studio/noturno-kimi/config"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ai"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/cache"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/database"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/emails"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/errtrack"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/icps"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/identity"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/leadimport"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/leads"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/mailer"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/metrics"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/phone"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/ratelimit"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/reports"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/searchjobs"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
)

var errUploadsDisabled = domain.NewValidationError("Importação via S3 não configurada")

// App is the composed data-access layer
type App struct {
	Registry *prometheus.Registry
	Identity *identity.Service
	Limiter  *ratelimit.Limiter

	ICPs       *icps.Service
	Leads      *leads.Service
	Importer   *leadimport.Importer
	Reports    *reports.Service
	Emails     *emails.Service
	SearchJobs *searchjobs.Service

	// Uploads is nil unless IMPORT_S3_BUCKET is set
	Uploads leadimport.ObjectGetter
	bucket  string
}

// New wires every service over db. A nil redis disables the identity cache.
func New(cfg *config.Config, db *database.Client, redis *cache.Client, log logger.Logger) *App {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)
	reg.MustRegister(collectors.NewDBStatsCollector(db.DB, "pipeline"))

	st := store.New(db.DB, db.Dialect, store.WithTxAttempts(cfg.DBTxRetries), store.WithMetrics(m))

	idOpts := []identity.Option{identity.WithLogger(log), identity.WithMetrics(m)}
	if redis != nil {
		idOpts = append(idOpts, identity.WithCache(redis, cfg.IdentityCacheTTL))
	}
	ids := identity.NewService(st, identity.NewJWTResolver(cfg.JWTSecret, cfg.JWTIssuer, log), idOpts...)

	var reporter errtrack.Reporter = errtrack.Nop()
	if cfg.SentryDSN != "" {
		reporter = errtrack.NewSentryReporter(nil)
	}
	deps := access.Deps{Store: st, Auth: ids, Log: log, Metrics: m, Reporter: reporter}

	var generator ai.Generator = ai.TemplateGenerator{}
	if cfg.OpenAIAPIKey != "" {
		generator = ai.NewOpenAIGenerator(ai.Config{
			APIKey:    cfg.OpenAIAPIKey,
			BaseURL:   cfg.OpenAIBaseURL,
			Model:     cfg.OpenAIModel,
			MaxTokens: cfg.OpenAIMaxTokens,
		}, log)
	} else {
		log.Warn("ai generation uses placeholder templates, set OPENAI_API_KEY for model drafts")
	}

	deliverer := mailer.New(mailer.Config{
		APIKey:   cfg.SendGridAPIKey,
		FromName: cfg.EmailFromName,
		FromAddr: cfg.EmailFrom,
	}, log)
	limiter := ratelimit.NewLimiter(cfg.GenerationPerMinute, cfg.GenerationBurst)

	leadSvc := leads.NewService(deps, phone.NewNormalizer(cfg.DefaultPhoneRegion))
	a := &App{
		Registry:   reg,
		Identity:   ids,
		Limiter:    limiter,
		ICPs:       icps.NewService(deps),
		Leads:      leadSvc,
		Importer:   leadimport.New(leadSvc, leadimport.WithLogger(log)),
		Reports:    reports.NewService(deps, generator, limiter),
		Emails:     emails.NewService(deps, deliverer, generator, limiter),
		SearchJobs: searchjobs.NewService(deps),
		bucket:     cfg.ImportS3Bucket,
	}

	if cfg.ImportS3Bucket != "" {
		client, err := leadimport.NewS3Client(context.Background(), cfg.AWSRegion)
		if err != nil {
			log.Warn("s3 lead import disabled", "error", err)
		} else {
			a.Uploads = client
			log.Info("s3 lead import enabled", "bucket", cfg.ImportS3Bucket)
		}
	}

	log.Info("services ready",
		"dialect", db.Dialect,
		"tx_attempts", cfg.DBTxRetries,
		"generation_per_minute", cfg.GenerationPerMinute,
	)
	return a
}

// ImportUpload imports the lead sheet stored under key in the configured
// upload bucket
func (a *App) ImportUpload(ctx context.Context, key string, icpID *string) (*leadimport.Result, error) {
	if a.Uploads == nil {
		return nil, errUploadsDisabled
	}
	return a.Importer.ImportObject(ctx, a.Uploads, a.bucket, key, icpID)
}
