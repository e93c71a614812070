package variant

import (
	"regexp"

	"comic-price-lab/internal/domain"
)

// Rule is one entry of the ordered classification table. Rules are matched
// against the lowercased variant label; the first match wins.
type Rule struct {
	Name  string
	Class domain.VariantClass
	re    *regexp.Regexp
}

// Matches reports whether the rule matches the lowercased label.
func (r *Rule) Matches(label string) bool {
	return r.re.MatchString(label)
}

var (
	ratioRe      = regexp.MustCompile(`\b\d+\s*[:/]\s*\d+\b|\bincentive\b|\bratio\b`)
	virginRe     = regexp.MustCompile(`\bvirgin\b|\bsketch\b`)
	facsimileRe  = regexp.MustCompile(`\bfacsimile\b|\breprint\b`)
	conventionRe = regexp.MustCompile(`\bconvention\b|\bsdcc\b|\bnycc\b|\bc2e2\b|\beccc\b|\bmegacon\b`)
	errorRe      = regexp.MustCompile(`\berror\b|\bmisprint\b|\brecall(ed)?\b`)
	retailerRe   = regexp.MustCompile(`\bexclusive\b|\bstore variant\b|\bshop variant\b`)
	standardRe   = regexp.MustCompile(`\bcover [a-z]\b|\bregular\b|\bfirst print(ing)?\b|\bdirect\b|\bnewsstand\b|\bstandard\b`)
)

// classificationRules is the ordered rule table. Ratio markers outrank the
// generic exclusive rule so "1:25 Retailer Incentive" lands on INCENTIVE_RATIO,
// and convention markers outrank it so "SDCC Exclusive" lands on
// CONVENTION_EXCLUSIVE.
var classificationRules = []Rule{
	{Name: "ratio-incentive", Class: domain.VariantIncentive, re: ratioRe},
	{Name: "virgin-or-sketch", Class: domain.VariantVirgin, re: virginRe},
	{Name: "facsimile-reprint", Class: domain.VariantFacsimile, re: facsimileRe},
	{Name: "convention", Class: domain.VariantConvention, re: conventionRe},
	{Name: "error-edition", Class: domain.VariantErrorEdition, re: errorRe},
	{Name: "retailer-exclusive", Class: domain.VariantRetailer, re: retailerRe},
	{Name: "standard-marker", Class: domain.VariantStandard, re: standardRe},
}

// Rules returns the ordered rule table for inspection and per-rule tests.
func Rules() []Rule {
	out := make([]Rule, len(classificationRules))
	copy(out, classificationRules)
	return out
}
