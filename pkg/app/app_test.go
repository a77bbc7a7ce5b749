package app

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web-Star-Studio/noturno-kimi/config"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/database"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/identity"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/leadimport"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata"
)

func setup(t *testing.T) (*App, *config.Config) {
	t.Helper()
	t.Setenv("JWT_SECRET", "app-test-secret")
	t.Setenv("JWT_ISSUER", "noturno-test")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("SENDGRID_API_KEY", "")
	t.Setenv("IMPORT_S3_BUCKET", "")
	cfg := config.Load()

	ctx := context.Background()
	db, err := database.OpenSQLite(ctx, "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(ctx))

	return New(cfg, db, nil, logger.Nop()), cfg
}

func caller(t *testing.T, cfg *config.Config, externalID string) context.Context {
	t.Helper()
	token, err := identity.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, identity.Identity{
		ExternalID: externalID,
		Email:      externalID + "@example.com",
		Name:       externalID,
	}, time.Hour)
	require.NoError(t, err)
	return identity.WithToken(context.Background(), token)
}

func TestNew(t *testing.T) {
	a, cfg := setup(t)
	alice := caller(t, cfg, "alice")

	t.Run("Success - services share one store and caller", func(t *testing.T) {
		icp, err := a.ICPs.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		assert.True(t, icp.IsDefault)

		csv := "company_name,email\nAcme,contato@acme.com.br\nGlobex,\n"
		res, err := a.Importer.Import(alice, strings.NewReader(csv), leadimport.FormatCSV, &icp.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)

		page, err := a.Leads.ListByICP(alice, icp.ID, pagination.Request{Limit: 10})
		require.NoError(t, err)
		require.Len(t, page.Items, 2)

		gen, err := a.Reports.Generate(alice, page.Items[0].ID)
		require.NoError(t, err)
		assert.True(t, gen.Success, gen.Error)

		job, err := a.SearchJobs.Create(alice, icp.ID)
		require.NoError(t, err)
		_, err = a.SearchJobs.Complete(alice, job.ID, res.Created)
		require.NoError(t, err)
	})

	t.Run("Success - registry exposes operation metrics", func(t *testing.T) {
		families, err := a.Registry.Gather()
		require.NoError(t, err)
		var names []string
		for _, f := range families {
			names = append(names, f.GetName())
		}
		assert.Contains(t, names, "pipeline_operations_total")
		assert.Contains(t, names, "go_goroutines")
	})

	t.Run("Error - invalid token", func(t *testing.T) {
		_, err := a.ICPs.List(identity.WithToken(context.Background(), "garbage"))
		assert.True(t, domain.IsUnauthenticated(err), "got %v", err)
	})
}

func TestImportUpload(t *testing.T) {
	a, cfg := setup(t)

	t.Run("Error - uploads not configured", func(t *testing.T) {
		assert.Nil(t, a.Uploads)
		_, err := a.ImportUpload(caller(t, cfg, "alice"), "alice/leads.csv", nil)
		assert.True(t, domain.IsValidation(err))
	})
}
