package access_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/access"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/icps"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata/testenv"
)

type capture struct {
	mu   sync.Mutex
	tags []map[string]string
}

func (c *capture) ReportInvariant(_ context.Context, _ error, tags map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tags = append(c.tags, tags)
}

func TestWithDefaults(t *testing.T) {
	deps := access.Deps{}.WithDefaults()
	assert.NotNil(t, deps.Log)
	assert.NotNil(t, deps.Reporter)
}

func TestCheckOwner(t *testing.T) {
	assert.NoError(t, access.CheckOwner("lead", "u1", "u1"))

	err := access.CheckOwner("lead", "u1", "u2")
	require.True(t, domain.IsForbidden(err))
	var de *domain.DomainError
	require.ErrorAs(t, err, &de)
	assert.Equal(t, "Você não tem permissão para acessar este lead", de.Message)
}

func TestOwnedRows(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	alice, bob := env.UserID(t, "alice"), env.UserID(t, "bob")

	icp, err := icps.NewService(env.Deps).Create(testenv.Caller("alice"), testdata.ICPRequest())
	require.NoError(t, err)
	lead := testdata.Lead(alice, &icp.ID)
	require.NoError(t, env.Store.InsertLead(ctx, lead))

	t.Run("Success - owner loads both", func(t *testing.T) {
		got, err := access.OwnedICP(ctx, env.Store, alice, icp.ID)
		require.NoError(t, err)
		assert.Equal(t, icp.ID, got.ID)

		l, err := access.OwnedLead(ctx, env.Store, alice, lead.ID)
		require.NoError(t, err)
		assert.Equal(t, lead.ID, l.ID)
	})

	t.Run("Error - other caller is forbidden", func(t *testing.T) {
		_, err := access.OwnedICP(ctx, env.Store, bob, icp.ID)
		assert.True(t, domain.IsForbidden(err))
		_, err = access.OwnedLead(ctx, env.Store, bob, lead.ID)
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("Error - missing rows", func(t *testing.T) {
		_, err := access.OwnedICP(ctx, env.Store, alice, "missing")
		assert.True(t, domain.IsNotFound(err))
		_, err = access.OwnedLead(ctx, env.Store, alice, "missing")
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestParentLead(t *testing.T) {
	env := testenv.New(t)
	ctx := context.Background()
	alice, bob := env.UserID(t, "alice"), env.UserID(t, "bob")

	lead := testdata.Lead(alice, nil)
	require.NoError(t, env.Store.InsertLead(ctx, lead))

	reporter := &capture{}
	deps := env.Deps
	deps.Reporter = reporter
	deps = deps.WithDefaults()

	t.Run("Success - parent owned by caller", func(t *testing.T) {
		got, err := deps.ParentLead(ctx, env.Store, alice, "email", "e1", lead.ID)
		require.NoError(t, err)
		assert.Equal(t, lead.ID, got.ID)
	})

	t.Run("Error - parent owned by someone else", func(t *testing.T) {
		_, err := deps.ParentLead(ctx, env.Store, bob, "email", "e1", lead.ID)
		assert.True(t, domain.IsForbidden(err))
		assert.Empty(t, reporter.tags)
	})

	t.Run("Error - orphaned row is reported", func(t *testing.T) {
		_, err := deps.ParentLead(ctx, env.Store, alice, "relatório", "r1", "gone")
		assert.True(t, domain.IsInvariantViolation(err))
		require.Len(t, reporter.tags, 1)
		assert.Equal(t, map[string]string{"entity": "relatório", "row_id": "r1", "lead_id": "gone"}, reporter.tags[0])
	})
}
