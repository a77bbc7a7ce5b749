// Package leadimport turns CSV and XLSX spreadsheets into lead batches.
package leadimport

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Web-Star-Studio/noturno-kimi/pkg/domain"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/logger"
	"github.com/Web-Star-Studio/noturno-kimi/pkg/models"
)

// Format is the spreadsheet encoding of an import
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DefaultMaxRows caps the number of data rows read from one file
const DefaultMaxRows = 10000

// columns maps accepted header names to lead fields
var columns = map[string]string{
	"company_name": "company_name",
	"company":      "company_name",
	"empresa":      "company_name",
	"contact_name": "contact_name",
	"contact":      "contact_name",
	"contato":      "contact_name",
	"email":        "email",
	"e-mail":       "email",
	"phone":        "phone",
	"telefone":     "phone",
	"website":      "website",
	"site":         "website",
	"title":        "title",
	"cargo":        "title",
	"location":     "location",
	"localizacao":  "location",
	"localização":  "location",
	"cidade":       "location",
	"notes":        "notes",
	"notas":        "notes",
	"observacoes":  "notes",
	"observações":  "notes",
}

// Creator stores a batch of leads for the caller
type Creator interface {
	CreateMany(ctx context.Context, reqs []models.CreateLeadRequest) (*models.CreateManyResult, error)
}

// RowError reports a spreadsheet row that was not imported. Row is the
// 1-based line in the file, counting the header.
type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// Result summarizes one import
type Result struct {
	TotalRows  int        `json:"total_rows"`
	Created    int        `json:"created"`
	Failed     int        `json:"failed"`
	CreatedIDs []string   `json:"created_ids"`
	Errors     []RowError `json:"errors"`
}

// Importer reads spreadsheets and creates their leads
type Importer struct {
	leads   Creator
	maxRows int
	log     logger.Logger
}

// Option configures an Importer
type Option func(*Importer)

// WithMaxRows overrides DefaultMaxRows
func WithMaxRows(n int) Option {
	return func(i *Importer) { i.maxRows = n }
}

// WithLogger sets the importer logger
func WithLogger(l logger.Logger) Option {
	return func(i *Importer) { i.log = l }
}

// New creates an Importer writing through leads
func New(leads Creator, opts ...Option) *Importer {
	i := &Importer{leads: leads, maxRows: DefaultMaxRows, log: logger.Default()}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

type parsedRow struct {
	line int
	req  models.CreateLeadRequest
}

// Import reads r and creates one lead per data row. Every lead is tagged
// with the import source and, when icpID is set, linked to that ICP.
func (i *Importer) Import(ctx context.Context, r io.Reader, format Format, icpID *string) (*Result, error) {
	records, err := readRecords(r, format)
	if err != nil {
		return nil, err
	}
	rows, errs, err := i.parse(records, icpID)
	if err != nil {
		return nil, err
	}

	reqs := make([]models.CreateLeadRequest, len(rows))
	for n, row := range rows {
		reqs[n] = row.req
	}
	batch, err := i.leads.CreateMany(ctx, reqs)
	if err != nil {
		return nil, err
	}

	res := &Result{TotalRows: len(rows) + len(errs), CreatedIDs: batch.CreatedIDs, Errors: append([]RowError{}, errs...)}
	for _, be := range batch.Errors {
		res.Errors = append(res.Errors, RowError{Row: rows[be.Index].line, Message: be.Message})
	}
	res.Created = len(res.CreatedIDs)
	res.Failed = len(res.Errors)

	i.log.Info("lead import finished", "format", format, "rows", res.TotalRows, "created", res.Created, "failed", res.Failed)
	return res, nil
}

func (i *Importer) parse(records [][]string, icpID *string) ([]parsedRow, []RowError, error) {
	if len(records) == 0 {
		return nil, nil, domain.NewValidationError("Arquivo vazio")
	}

	index := make(map[string]int)
	for n, h := range records[0] {
		if field, ok := columns[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := index[field]; !dup {
				index[field] = n
			}
		}
	}
	if _, ok := index["company_name"]; !ok {
		return nil, nil, domain.NewValidationError("Coluna obrigatória ausente: company_name")
	}

	var rows []parsedRow
	var errs []RowError
	for n, rec := range records[1:] {
		line := n + 2
		if blank(rec) {
			continue
		}
		if len(rows)+len(errs) >= i.maxRows {
			i.log.Warn("lead import truncated", "max_rows", i.maxRows)
			break
		}
		cell := func(field string) string {
			col, ok := index[field]
			if !ok || col >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[col])
		}

		req := models.CreateLeadRequest{
			ICPID:       icpID,
			CompanyName: cell("company_name"),
			ContactName: cell("contact_name"),
			Email:       cell("email"),
			Phone:       cell("phone"),
			Website:     cell("website"),
			Title:       cell("title"),
			Location:    cell("location"),
			Notes:       cell("notes"),
			Source:      models.LeadSourceImport,
		}
		if req.CompanyName == "" {
			errs = append(errs, RowError{Row: line, Message: "Nome da empresa é obrigatório"})
			continue
		}
		rows = append(rows, parsedRow{line: line, req: req})
	}
	return rows, errs, nil
}

func blank(rec []string) bool {
	for _, v := range rec {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func readRecords(r io.Reader, format Format) ([][]string, error) {
	switch format {
	case FormatCSV:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		records, err := cr.ReadAll()
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("CSV inválido: %v", err))
		}
		return records, nil
	case FormatXLSX:
		f, err := excelize.OpenReader(r)
		if err != nil {
			return nil, domain.NewValidationError(fmt.Sprintf("Planilha inválida: %v", err))
		}
		defer f.Close()

		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, domain.NewValidationError("Planilha sem abas")
		}
		records, err := f.GetRows(sheets[0])
		if err != nil {
			return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
		}
		return records, nil
	default:
		return nil, domain.NewValidationError(fmt.Sprintf("Formato não suportado: %s", format))
	}
}

// FormatFromName picks the format from a file name extension
func FormatFromName(name string) (Format, error) {
	lower := strings.ToLower(name)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(lower, ".xlsx"):
		return FormatXLSX, nil
	}
	return "", domain.NewValidationError("Formato não suportado: " + name)
}
