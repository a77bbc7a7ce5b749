package leads_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/icps"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/leads"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/pagination"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/phone"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/testdata/testenv"
)

type fixture struct {
	env   *testenv.Env
	leads *leads.Service
	icps  *icps.Service
}

func setup(t *testing.T) *fixture {
	t.Helper()
	env := testenv.New(t)
	return &fixture{
		env:   env,
		leads: leads.NewService(env.Deps, phone.NewNormalizer("BR")),
		icps:  icps.NewService(env.Deps),
	}
}

func (f *fixture) icp(t *testing.T, ctx context.Context) *models.ICP {
	t.Helper()
	icp, err := f.icps.Create(ctx, testdata.ICPRequest())
	require.NoError(t, err)
	return icp
}

func strPtr(s string) *string { return &s }

func TestCreate(t *testing.T) {
	f := setup(t)
	alice, bob := testenv.Caller("alice"), testenv.Caller("bob")
	icp := f.icp(t, alice)

	t.Run("Success - defaults and normalization", func(t *testing.T) {
		req := testdata.LeadRequest(&icp.ID)
		req.CompanyName = "  Odonto Sorriso  "
		req.Phone = "(11) 96123-4567"
		req.Notes = "   "

		lead, err := f.leads.Create(alice, req)
		require.NoError(t, err)
		assert.Equal(t, "Odonto Sorriso", lead.CompanyName)
		assert.Equal(t, models.LeadStatusNew, lead.Status)
		require.NotNil(t, lead.Phone)
		assert.Equal(t, "+5511961234567", *lead.Phone)
		assert.Nil(t, lead.Notes, "blank optional fields are unset")
		assert.Equal(t, icp.ID, *lead.ICPID)
	})

	t.Run("Success - without ICP", func(t *testing.T) {
		lead, err := f.leads.Create(alice, testdata.LeadRequest(nil))
		require.NoError(t, err)
		assert.Nil(t, lead.ICPID)
	})

	t.Run("Error - invalid fields", func(t *testing.T) {
		cases := map[string]func(*models.CreateLeadRequest){
			"company": func(r *models.CreateLeadRequest) { r.CompanyName = " " },
			"email":   func(r *models.CreateLeadRequest) { r.Email = "not-an-email" },
			"website": func(r *models.CreateLeadRequest) { r.Website = "nope" },
			"source":  func(r *models.CreateLeadRequest) { r.Source = "cold-call" },
			"status":  func(r *models.CreateLeadRequest) { r.Status = "archived" },
			"phone":   func(r *models.CreateLeadRequest) { r.Phone = "123" },
		}
		for name, mutate := range cases {
			req := testdata.LeadRequest(nil)
			mutate(&req)
			_, err := f.leads.Create(alice, req)
			assert.True(t, domain.IsValidation(err), name)
		}
	})

	t.Run("Error - ICP of another user", func(t *testing.T) {
		_, err := f.leads.Create(bob, testdata.LeadRequest(&icp.ID))
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("Error - missing ICP", func(t *testing.T) {
		_, err := f.leads.Create(alice, testdata.LeadRequest(strPtr("missing")))
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Error - unauthenticated", func(t *testing.T) {
		_, err := f.leads.Create(testenv.Anonymous(), testdata.LeadRequest(nil))
		assert.True(t, domain.IsUnauthenticated(err))
	})
}

func TestCreateMany(t *testing.T) {
	f := setup(t)
	alice, bob := testenv.Caller("alice"), testenv.Caller("bob")
	icp := f.icp(t, alice)

	t.Run("Success - rows fail independently", func(t *testing.T) {
		bad := testdata.LeadRequest(&icp.ID)
		bad.Email = "broken"
		reqs := []models.CreateLeadRequest{testdata.LeadRequest(&icp.ID), bad, testdata.LeadRequest(nil)}

		res, err := f.leads.CreateMany(alice, reqs)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Created)
		assert.Equal(t, 1, res.Failed)
		require.Len(t, res.Errors, 1)
		assert.Equal(t, 1, res.Errors[0].Index)
		assert.NotEmpty(t, res.Errors[0].Message)
		assert.Len(t, res.CreatedIDs, 2)
	})

	t.Run("Success - empty batch", func(t *testing.T) {
		res, err := f.leads.CreateMany(alice, nil)
		require.NoError(t, err)
		assert.Zero(t, res.Created)
		assert.Empty(t, res.Errors)
	})

	t.Run("Error - foreign ICP aborts the whole batch", func(t *testing.T) {
		before, err := f.leads.List(bob, pagination.Request{Limit: 1000})
		require.NoError(t, err)

		_, err = f.leads.CreateMany(bob, []models.CreateLeadRequest{testdata.LeadRequest(nil), testdata.LeadRequest(&icp.ID)})
		assert.True(t, domain.IsForbidden(err))

		after, err := f.leads.List(bob, pagination.Request{Limit: 1000})
		require.NoError(t, err)
		assert.Len(t, after.Items, len(before.Items), "nothing is inserted")
	})
}

func TestGetAndOwnership(t *testing.T) {
	f := setup(t)
	alice, bob := testenv.Caller("alice"), testenv.Caller("bob")

	lead, err := f.leads.Create(alice, testdata.LeadRequest(nil))
	require.NoError(t, err)

	got, err := f.leads.Get(alice, lead.ID)
	require.NoError(t, err)
	assert.Equal(t, lead.CompanyName, got.CompanyName)

	missing, err := f.leads.Get(alice, "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = f.leads.Get(bob, lead.ID)
	assert.True(t, domain.IsForbidden(err))

	_, err = f.leads.Update(bob, lead.ID, models.UpdateLeadRequest{CompanyName: strPtr("x")})
	assert.True(t, domain.IsForbidden(err))

	_, err = f.leads.UpdateStatus(bob, lead.ID, models.LeadStatusQualified)
	assert.True(t, domain.IsForbidden(err))

	assert.True(t, domain.IsForbidden(f.leads.Delete(bob, lead.ID)))
	assert.True(t, domain.IsNotFound(f.leads.Delete(alice, "missing")))
}

func TestUpdate(t *testing.T) {
	f := setup(t)
	alice := testenv.Caller("alice")

	req := testdata.LeadRequest(nil)
	req.Phone = "11961234567"
	lead, err := f.leads.Create(alice, req)
	require.NoError(t, err)

	t.Run("Success - clear and set optional fields", func(t *testing.T) {
		source := models.LeadSourceAPI
		got, err := f.leads.Update(alice, lead.ID, models.UpdateLeadRequest{
			Email:    strPtr(""),
			Phone:    strPtr(""),
			Notes:    strPtr(" ligar amanhã "),
			Source:   &source,
			Location: nil,
		})
		require.NoError(t, err)
		assert.Nil(t, got.Email)
		assert.Nil(t, got.Phone)
		assert.Equal(t, "ligar amanhã", *got.Notes)
		assert.Equal(t, models.LeadSourceAPI, got.Source)
		assert.Equal(t, lead.Location, got.Location)

		reloaded, err := f.leads.Get(alice, lead.ID)
		require.NoError(t, err)
		assert.Nil(t, reloaded.Email)
		assert.Nil(t, reloaded.Phone)
	})

	t.Run("Error - invalid values", func(t *testing.T) {
		_, err := f.leads.Update(alice, lead.ID, models.UpdateLeadRequest{CompanyName: strPtr("")})
		assert.True(t, domain.IsValidation(err))

		_, err = f.leads.Update(alice, lead.ID, models.UpdateLeadRequest{Email: strPtr("x@")})
		assert.True(t, domain.IsValidation(err))

		bogus := models.LeadSource("fax")
		_, err = f.leads.Update(alice, lead.ID, models.UpdateLeadRequest{Source: &bogus})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Success - status update", func(t *testing.T) {
		got, err := f.leads.UpdateStatus(alice, lead.ID, models.LeadStatusInContact)
		require.NoError(t, err)
		assert.Equal(t, models.LeadStatusInContact, got.Status)

		_, err = f.leads.UpdateStatus(alice, lead.ID, "perdido")
		assert.True(t, domain.IsValidation(err))
	})
}

func TestDeleteCascades(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	alice := testenv.Caller("alice")

	lead, err := f.leads.Create(alice, testdata.LeadRequest(nil))
	require.NoError(t, err)
	keep, err := f.leads.Create(alice, testdata.LeadRequest(nil))
	require.NoError(t, err)

	for _, id := range []string{lead.ID, keep.ID} {
		require.NoError(t, f.env.Store.InsertReport(ctx, &models.PreCallReport{LeadID: id, Content: "c", Summary: "s"}))
		for i := 0; i < 3; i++ {
			require.NoError(t, f.env.Store.InsertEmail(ctx, &models.Email{LeadID: id, Subject: "s", Body: "b", Status: models.EmailStatusDraft}))
		}
	}

	require.NoError(t, f.leads.Delete(alice, lead.ID))

	gone, err := f.env.Store.GetLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)

	reports, err := f.env.Store.CountReportsByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Zero(t, reports)
	emails, err := f.env.Store.CountEmailsByLead(ctx, lead.ID)
	require.NoError(t, err)
	assert.Zero(t, emails)

	reports, err = f.env.Store.CountReportsByLead(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reports, "other leads keep their dependents")
	emails, err = f.env.Store.CountEmailsByLead(ctx, keep.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, emails)
}

func collect[T any](t *testing.T, limit int, list func(pagination.Request) (*pagination.Page[T], error)) []T {
	t.Helper()
	var all []T
	req := pagination.Request{Limit: limit}
	for i := 0; ; i++ {
		require.Less(t, i, 1000, "pagination does not terminate")
		page, err := list(req)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Items), limit)
		all = append(all, page.Items...)
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			return all
		}
		req.Cursor = page.NextCursor
	}
}

func TestListings(t *testing.T) {
	f := setup(t)
	alice, bob := testenv.Caller("alice"), testenv.Caller("bob")
	aliceICP := f.icp(t, alice)

	var qualified, byICP, all []string
	for i := 0; i < 25; i++ {
		mine := i%3 != 0
		owner := alice
		if !mine {
			owner = bob
		}
		req := testdata.LeadRequest(nil)
		if mine && i%2 == 0 {
			req.ICPID = &aliceICP.ID
		}
		if i%4 == 0 {
			req.Status = models.LeadStatusQualified
		}
		lead, err := f.leads.Create(owner, req)
		require.NoError(t, err)
		if !mine {
			continue
		}
		all = append(all, lead.ID)
		if lead.Status == models.LeadStatusQualified {
			qualified = append(qualified, lead.ID)
		}
		if lead.ICPID != nil {
			byICP = append(byICP, lead.ID)
		}
	}
	require.NotEmpty(t, qualified)

	ids := func(items []*models.Lead) []string {
		out := make([]string, 0, len(items))
		for _, l := range items {
			out = append(out, l.ID)
		}
		return out
	}

	for _, limit := range []int{1, 2, 7, 1000} {
		got := collect(t, limit, func(r pagination.Request) (*pagination.Page[*models.Lead], error) {
			return f.leads.List(alice, r)
		})
		assert.Equal(t, all, ids(got), "list limit %d", limit)

		got = collect(t, limit, func(r pagination.Request) (*pagination.Page[*models.Lead], error) {
			return f.leads.ListByStatus(alice, models.LeadStatusQualified, r)
		})
		assert.Equal(t, qualified, ids(got), "status limit %d", limit)

		got = collect(t, limit, func(r pagination.Request) (*pagination.Page[*models.Lead], error) {
			return f.leads.ListByICP(alice, aliceICP.ID, r)
		})
		assert.Equal(t, byICP, ids(got), "icp limit %d", limit)
	}

	t.Run("Error - listing another user's ICP", func(t *testing.T) {
		_, err := f.leads.ListByICP(bob, aliceICP.ID, pagination.Request{})
		assert.True(t, domain.IsForbidden(err))
	})

	t.Run("Error - unknown status", func(t *testing.T) {
		_, err := f.leads.ListByStatus(alice, "arquivado", pagination.Request{})
		assert.True(t, domain.IsValidation(err))
	})

	t.Run("Error - cursor from another listing", func(t *testing.T) {
		page, err := f.leads.List(alice, pagination.Request{Limit: 1})
		require.NoError(t, err)
		_, err = f.leads.ListByStatus(alice, models.LeadStatusQualified, pagination.Request{Cursor: page.NextCursor})
		assert.True(t, domain.IsValidation(err))
	})
}
