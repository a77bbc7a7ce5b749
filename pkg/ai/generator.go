// Package ai drafts outreach emails and pre-call reports for leads.
package ai

import (
	"context"
	"fmt"
	"strings"
)

// ICPContext describes the profile a lead is approached under
type ICPContext struct {
	Name     string   `json:"name"`
	Niche    string   `json:"niche"`
	Region   string   `json:"region"`
	Keywords []string `json:"keywords"`
}

// LeadContext is everything a generator may use about a lead
type LeadContext struct {
	CompanyName string      `json:"company_name"`
	ContactName string      `json:"contact_name,omitempty"`
	Email       string      `json:"email,omitempty"`
	Phone       string      `json:"phone,omitempty"`
	Website     string      `json:"website,omitempty"`
	Title       string      `json:"title,omitempty"`
	Location    string      `json:"location,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	ICP         *ICPContext `json:"icp,omitempty"`
	SenderName  string      `json:"sender_name,omitempty"`
	Prompt      string      `json:"prompt,omitempty"`
}

// EmailContent is a generated email
type EmailContent struct {
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// ReportContent is a generated pre-call report
type ReportContent struct {
	Summary string `json:"summary"`
	Content string `json:"content"`
}

// Generator produces text for leads
type Generator interface {
	GenerateEmail(ctx context.Context, lead LeadContext) (*EmailContent, error)
	GenerateReport(ctx context.Context, lead LeadContext) (*ReportContent, error)
}

var (
	_ Generator = (*OpenAIGenerator)(nil)
	_ Generator = TemplateGenerator{}
)

// TemplateGenerator fills fixed Portuguese templates. It is used when no
// model is configured.
type TemplateGenerator struct{}

// GenerateEmail implements Generator
func (TemplateGenerator) GenerateEmail(_ context.Context, lead LeadContext) (*EmailContent, error) {
	greeting := lead.ContactName
	if greeting == "" {
		greeting = "Time"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Olá %s,\n\n", greeting)
	fmt.Fprintf(&b, "Espero que esteja tudo bem com você e com a %s.\n\n", lead.CompanyName)
	b.WriteString("Estou entrando em contato porque acredito que podemos ajudar...\n\n")
	fmt.Fprintf(&b, "Atenciosamente,\n%s", lead.SenderName)

	return &EmailContent{
		Subject: "Oportunidade para " + lead.CompanyName,
		Body:    b.String(),
	}, nil
}

// GenerateReport implements Generator
func (TemplateGenerator) GenerateReport(_ context.Context, lead LeadContext) (*ReportContent, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "Relatório de Pré-ligação para %s\n\n", lead.CompanyName)
	fmt.Fprintf(&b, "Contato: %s\n", orUnknown(lead.ContactName))
	fmt.Fprintf(&b, "Email: %s\n", orUnknown(lead.Email))
	fmt.Fprintf(&b, "Telefone: %s\n", orUnknown(lead.Phone))
	fmt.Fprintf(&b, "Website: %s\n", orUnknown(lead.Website))

	return &ReportContent{
		Summary: fmt.Sprintf("Resumo da empresa %s. Contato principal: %s.", lead.CompanyName, orUnknown(lead.ContactName)),
		Content: b.String(),
	}, nil
}

func orUnknown(s string) string {
	if s == "" {
		return "Não informado"
	}
	return s
}
