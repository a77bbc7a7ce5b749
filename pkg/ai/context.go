package ai

import "github.com/Web-Star-Studio/noturno-kimi/pkg/models"

// FromLead builds the generation context for lead. icp may be nil.
func FromLead(lead *models.Lead, icp *models.ICP, sender string) LeadContext {
	deref := func(p *string) string {
		if p == nil {
			return ""
		}
		return *p
	}
	lc := LeadContext{
		CompanyName: lead.CompanyName,
		ContactName: deref(lead.ContactName),
		Email:       deref(lead.Email),
		Phone:       deref(lead.Phone),
		Website:     deref(lead.Website),
		Title:       deref(lead.Title),
		Location:    deref(lead.Location),
		Notes:       deref(lead.Notes),
		SenderName:  sender,
	}
	if icp != nil {
		lc.ICP = &ICPContext{Name: icp.Name, Niche: icp.Niche, Region: icp.Region, Keywords: icp.Keywords}
	}
	return lc
}
