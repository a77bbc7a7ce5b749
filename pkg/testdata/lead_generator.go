package testdata

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/database"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/store"
)

// nicheKeywords maps ICP niches to plausible search keywords
var nicheKeywords = map[string][]string{
	"odontologia":   {"clínica odontológica", "ortodontia", "implante dentário"},
	"academia":      {"academia", "crossfit", "personal trainer"},
	"restaurante":   {"restaurante", "delivery", "bistrô"},
	"contabilidade": {"escritório contábil", "contador", "abertura de empresa"},
	"estética":      {"clínica de estética", "depilação a laser", "harmonização"},
}

var regions = []string{"São Paulo", "Rio de Janeiro", "Belo Horizonte", "Curitiba", "Porto Alegre", "Recife"}

// NewStore opens a migrated in-memory SQLite database private to t
func NewStore(t testing.TB, opts ...store.Option) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()))
	client, err := database.OpenSQLite(context.Background(), dsn)
	if err != nil {
		t.Fatalf("failed opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Migrate(context.Background()); err != nil {
		t.Fatalf("failed migrating sqlite: %v", err)
	}
	return store.New(client.DB, client.Dialect, opts...)
}

// ICPRequest returns a valid ICP creation request
func ICPRequest() models.CreateICPRequest {
	niches := make([]string, 0, len(nicheKeywords))
	for niche := range nicheKeywords {
		niches = append(niches, niche)
	}
	niche := niches[gofakeit.Number(0, len(niches)-1)]

	return models.CreateICPRequest{
		Name:     fmt.Sprintf("%s %s", strings.ToUpper(niche[:1])+niche[1:], gofakeit.Word()),
		Niche:    niche,
		Region:   regions[gofakeit.Number(0, len(regions)-1)],
		Keywords: append([]string(nil), nicheKeywords[niche]...),
	}
}

// LeadRequest returns a valid lead creation request for the ICP, which
// may be nil
func LeadRequest(icpID *string) models.CreateLeadRequest {
	return models.CreateLeadRequest{
		ICPID:       icpID,
		CompanyName: gofakeit.Company(),
		ContactName: gofakeit.Name(),
		Email:       strings.ToLower(gofakeit.Username()) + "@example.com",
		Website:     "https://" + strings.ToLower(gofakeit.DomainName()),
		Title:       gofakeit.JobTitle(),
		Location:    regions[gofakeit.Number(0, len(regions)-1)],
		Source:      models.LeadSourceManual,
	}
}

// Lead returns a lead row ready for store insertion
func Lead(ownerID string, icpID *string) *models.Lead {
	req := LeadRequest(icpID)
	email := req.Email
	return &models.Lead{
		OwnerID:     ownerID,
		ICPID:       icpID,
		CompanyName: req.CompanyName,
		Email:       &email,
		Source:      req.Source,
		Status:      models.LeadStatusNew,
	}
}
