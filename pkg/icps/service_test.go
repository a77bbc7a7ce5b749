package icps_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/icps"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata/testenv"
)

func setup(t *testing.T) (*testenv.Env, *icps.Service) {
	t.Helper()
	env := testenv.New(t)
	return env, icps.NewService(env.Deps)
}

func defaults(t *testing.T, svc *icps.Service, ctx context.Context) []string {
	t.Helper()
	list, err := svc.List(ctx)
	require.NoError(t, err)
	var ids []string
	for _, icp := range list {
		if icp.IsDefault {
			ids = append(ids, icp.ID)
		}
	}
	return ids
}

func TestCreate(t *testing.T) {
	_, svc := setup(t)
	alice := testenv.Caller("alice")

	t.Run("Success - first ICP becomes default", func(t *testing.T) {
		req := testdata.ICPRequest()
		req.Name = "  Clínicas  "
		req.Keywords = []string{" implante ", "", "   ", "ortodontia"}

		icp, err := svc.Create(alice, req)
		require.NoError(t, err)
		assert.True(t, icp.IsDefault)
		assert.Equal(t, "Clínicas", icp.Name)
		assert.Equal(t, []string{"implante", "ortodontia"}, icp.Keywords)
	})

	t.Run("Success - later ICP is not default unless asked", func(t *testing.T) {
		icp, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		assert.False(t, icp.IsDefault)
		assert.Len(t, defaults(t, svc, alice), 1)
	})

	t.Run("Success - requested default replaces the old one", func(t *testing.T) {
		req := testdata.ICPRequest()
		req.IsDefault = true
		icp, err := svc.Create(alice, req)
		require.NoError(t, err)
		assert.Equal(t, []string{icp.ID}, defaults(t, svc, alice))
	})

	t.Run("Error - blank keywords", func(t *testing.T) {
		req := testdata.ICPRequest()
		req.Keywords = []string{" ", ""}
		_, err := svc.Create(alice, req)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Error - missing name", func(t *testing.T) {
		req := testdata.ICPRequest()
		req.Name = "   "
		_, err := svc.Create(alice, req)
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Error - unauthenticated", func(t *testing.T) {
		_, err := svc.Create(testenv.Anonymous(), testdata.ICPRequest())
		assert.True(t, domain.IsUnauthenticated(err))
	})
}

func TestGetAndOwnership(t *testing.T) {
	_, svc := setup(t)
	alice, bob := testenv.Caller("alice"), testenv.Caller("bob")

	icp, err := svc.Create(alice, testdata.ICPRequest())
	require.NoError(t, err)

	t.Run("Success - owner reads", func(t *testing.T) {
		got, err := svc.Get(alice, icp.ID)
		require.NoError(t, err)
		assert.Equal(t, icp.ID, got.ID)
	})

	t.Run("Success - absent ICP is nil", func(t *testing.T) {
		got, err := svc.Get(alice, "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("Error - other user is forbidden everywhere", func(t *testing.T) {
		_, err := svc.Get(bob, icp.ID)
		assert.True(t, domain.IsForbidden(err))

		name := "hijack"
		_, err = svc.Update(bob, icp.ID, models.UpdateICPRequest{Name: &name})
		assert.True(t, domain.IsForbidden(err))

		_, err = svc.SetDefault(bob, icp.ID)
		assert.True(t, domain.IsForbidden(err))

		assert.True(t, domain.IsForbidden(svc.Delete(bob, icp.ID)))

		list, err := svc.List(bob)
		require.NoError(t, err)
		assert.Empty(t, list)

		def, err := svc.GetDefault(bob)
		require.NoError(t, err)
		assert.Nil(t, def)
	})

	t.Run("Error - update and delete of a missing ICP", func(t *testing.T) {
		name := "x"
		_, err := svc.Update(alice, "missing", models.UpdateICPRequest{Name: &name})
		assert.True(t, domain.IsNotFound(err))
		assert.True(t, domain.IsNotFound(svc.Delete(alice, "missing")))
	})
}

func TestUpdate(t *testing.T) {
	_, svc := setup(t)
	alice := testenv.Caller("alice")

	icp, err := svc.Create(alice, testdata.ICPRequest())
	require.NoError(t, err)

	t.Run("Success - partial update keeps other fields", func(t *testing.T) {
		region := " Campinas "
		got, err := svc.Update(alice, icp.ID, models.UpdateICPRequest{Region: &region, Keywords: []string{"a", " b "}})
		require.NoError(t, err)
		assert.Equal(t, "Campinas", got.Region)
		assert.Equal(t, icp.Name, got.Name)
		assert.Equal(t, []string{"a", "b"}, got.Keywords)
		assert.True(t, got.IsDefault)
	})

	t.Run("Error - keywords cleaned to nothing", func(t *testing.T) {
		_, err := svc.Update(alice, icp.ID, models.UpdateICPRequest{Keywords: []string{" "}})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Error - empty name", func(t *testing.T) {
		empty := ""
		_, err := svc.Update(alice, icp.ID, models.UpdateICPRequest{Name: &empty})
		assert.True(t, domain.IsValidation(err))
	})
}

func TestSetDefaultScenario(t *testing.T) {
	_, svc := setup(t)
	alice := testenv.Caller("alice")

	first, err := svc.Create(alice, testdata.ICPRequest())
	require.NoError(t, err)
	require.True(t, first.IsDefault)

	req := testdata.ICPRequest()
	req.IsDefault = false
	second, err := svc.Create(alice, req)
	require.NoError(t, err)
	require.False(t, second.IsDefault)

	got, err := svc.SetDefault(alice, second.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)

	reloaded, err := svc.Get(alice, first.ID)
	require.NoError(t, err)
	assert.False(t, reloaded.IsDefault)

	reloaded, err = svc.Get(alice, second.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.IsDefault)

	t.Run("Success - setting the current default is a no-op", func(t *testing.T) {
		_, err := svc.SetDefault(alice, second.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{second.ID}, defaults(t, svc, alice))
	})
}

func TestConcurrentSetDefault(t *testing.T) {
	_, svc := setup(t)
	alice := testenv.Caller("alice")

	var ids []string
	for i := 0; i < 5; i++ {
		icp, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		ids = append(ids, icp.ID)
	}

	var wg sync.WaitGroup
	for round := 0; round < 4; round++ {
		for _, id := range ids {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_, err := svc.SetDefault(alice, id)
				assert.NoError(t, err)
			}(id)
		}
	}
	wg.Wait()

	assert.Len(t, defaults(t, svc, alice), 1)
}

func TestDelete(t *testing.T) {
	env, svc := setup(t)
	alice := testenv.Caller("alice")
	aliceID := env.UserID(t, "alice")

	t.Run("Success - deleting the default promotes the oldest remaining", func(t *testing.T) {
		first, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		second, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		third, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)

		require.NoError(t, svc.Delete(alice, first.ID))
		assert.Equal(t, []string{second.ID}, defaults(t, svc, alice))

		require.NoError(t, svc.Delete(alice, third.ID), "non-default delete leaves the default alone")
		assert.Equal(t, []string{second.ID}, defaults(t, svc, alice))

		require.NoError(t, svc.Delete(alice, second.ID))
		def, err := svc.GetDefault(alice)
		require.NoError(t, err)
		assert.Nil(t, def, "no ICPs left means no default")
	})

	t.Run("Error - referenced by a lead", func(t *testing.T) {
		icp, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		require.NoError(t, env.Store.InsertLead(context.Background(), testdata.Lead(aliceID, &icp.ID)))

		err = svc.Delete(alice, icp.ID)
		assert.True(t, domain.IsConflict(err))

		still, err := svc.Get(alice, icp.ID)
		require.NoError(t, err)
		assert.NotNil(t, still)
	})

	t.Run("Error - referenced by a search job", func(t *testing.T) {
		icp, err := svc.Create(alice, testdata.ICPRequest())
		require.NoError(t, err)
		job := &models.SearchJob{OwnerID: aliceID, ICPID: icp.ID, Status: models.SearchJobPending}
		require.NoError(t, env.Store.InsertSearchJob(context.Background(), job))

		assert.True(t, domain.IsConflict(svc.Delete(alice, icp.ID)))
	})
}

func TestDefaultInvariantSequence(t *testing.T) {
	_, svc := setup(t)
	alice := testenv.Caller("alice")

	var live []string
	for step := 0; step < 12; step++ {
		switch {
		case step%4 == 3 && len(live) > 0:
			require.NoError(t, svc.Delete(alice, live[0]))
			live = live[1:]
		case step%3 == 2 && len(live) > 0:
			_, err := svc.SetDefault(alice, live[len(live)-1])
			require.NoError(t, err)
		default:
			req := testdata.ICPRequest()
			req.IsDefault = step%2 == 0
			icp, err := svc.Create(alice, req)
			require.NoError(t, err)
			live = append(live, icp.ID)
		}

		want := 1
		if len(live) == 0 {
			want = 0
		}
		assert.Len(t, defaults(t, svc, alice), want, "step %d", step)
	}
}
