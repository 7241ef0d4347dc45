package mercury

import "strings"

// Transaction categories assigned when the source does not provide one.
const (
	CategoryPayroll        = "Payroll"
	CategoryInfrastructure = "Infrastructure"
	CategoryRevenue        = "Revenue"
	CategoryRent           = "Rent"
	CategoryContractors    = "Contractors"
	CategoryMarketing      = "Marketing"
	CategorySoftware       = "Software"
	CategoryOther          = "Other"
)

type categoryRule struct {
	category string
	keywords []string
}

// categoryRules is checked top to bottom; the first rule with a matching
// keyword wins. Order matters: "payroll via aws wire" is Payroll, not
// Infrastructure.
var categoryRules = []categoryRule{
	{CategoryPayroll, []string{"payroll", "salary", "salaries", "wages", "gusto", "benefits"}},
	{CategoryInfrastructure, []string{"aws", "amazon web services", "google cloud", "gcp", "azure", "digitalocean", "cloudflare", "hosting", "datadog"}},
	{CategoryRevenue, []string{"stripe", "invoice", "client payment", "customer payment", "wire transfer", "deposit"}},
	{CategoryRent, []string{"rent", "lease", "wework", "office space"}},
	{CategoryContractors, []string{"contractor", "freelance", "consulting", "upwork"}},
	{CategoryMarketing, []string{"marketing", "advertising", "google ads", "facebook ads", "linkedin", "campaign"}},
	{CategorySoftware, []string{"subscription", "saas", "software", "license", "github", "slack", "notion", "figma"}},
}

// Categorize picks a category for a transaction. An explicit source category
// is used verbatim; otherwise the note and counterparty are scanned,
// case-insensitively, against the rule table.
func Categorize(explicit, note, counterparty string) string {
	if explicit != "" {
		return explicit
	}

	haystack := strings.ToLower(note + " " + counterparty)
	for _, rule := range categoryRules {
		for _, kw := range rule.keywords {
			if strings.Contains(haystack, kw) {
				return rule.category
			}
		}
	}
	return CategoryOther
}
