package ai

import (
	"fmt"
	"strings"
)

const (
	// EmailSystemPrompt steers the model towards a short first-touch email
	EmailSystemPrompt = `Você é um especialista em prospecção B2B que escreve emails de primeiro contato em português do Brasil.

Regras:
- Tom cordial e direto, no máximo 150 palavras
- Mencione a empresa do lead e um motivo concreto para o contato
- Não invente fatos que não estejam no contexto
- Termine com uma pergunta que convide a uma conversa curta

Responda apenas com um objeto JSON no formato {"subject": "...", "body": "..."}.`

	// ReportSystemPrompt steers the model towards a pre-call briefing
	ReportSystemPrompt = `Você é um analista de vendas que prepara relatórios de pré-ligação em português do Brasil.

O relatório deve conter:
1. Visão geral da empresa
2. Possíveis dores relacionadas ao perfil de cliente ideal
3. Perguntas sugeridas para a ligação
4. Pontos de atenção

Use apenas as informações fornecidas. Quando algo não for informado, diga isso.

Responda apenas com um objeto JSON no formato {"summary": "...", "content": "..."}.
O campo summary tem no máximo três frases.`
)

// BuildLeadPrompt renders the lead context as the user message
func BuildLeadPrompt(lead LeadContext) string {
	var b strings.Builder
	b.WriteString("Dados do lead:\n")
	field := func(label, value string) {
		if value != "" {
			fmt.Fprintf(&b, "- %s: %s\n", label, value)
		}
	}
	field("Empresa", lead.CompanyName)
	field("Contato", lead.ContactName)
	field("Cargo", lead.Title)
	field("Email", lead.Email)
	field("Telefone", lead.Phone)
	field("Website", lead.Website)
	field("Localização", lead.Location)
	field("Observações", lead.Notes)

	if icp := lead.ICP; icp != nil {
		b.WriteString("\nPerfil de cliente ideal:\n")
		field("Nome", icp.Name)
		field("Nicho", icp.Niche)
		field("Região", icp.Region)
		field("Palavras-chave", strings.Join(icp.Keywords, ", "))
	}
	if lead.SenderName != "" {
		fmt.Fprintf(&b, "\nRemetente: %s\n", lead.SenderName)
	}
	if lead.Prompt != "" {
		fmt.Fprintf(&b, "\nInstruções adicionais: %s\n", lead.Prompt)
	}
	return b.String()
}
