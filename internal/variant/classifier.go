package variant

import (
	"errors"
	"strings"

	"comic-price-lab/internal/domain"
)

// ErrUnparsableIdentity is returned when the series title or issue number
// cannot be canonicalized into a variant key.
var ErrUnparsableIdentity = errors.New("unparsable series/issue identity")

// Classification is the outcome of classifying one listing's identity text.
type Classification struct {
	Key     domain.VariantKey
	Rule    string // name of the matched rule, "" when no rule applied
	Matched bool   // false only for a non-empty label that matched no rule
}

// Classify canonicalizes the series and issue text and classifies the
// variant label through the ordered rule table.
//
// An empty variant label is a standard printing at full confidence. A
// non-empty label that matches no rule classifies UNKNOWN; the caller lowers
// confidence for those instead of guessing a class.
func Classify(seriesTitle, issueNumber, variantLabel string) (Classification, error) {
	series := NormalizeSeriesTitle(seriesTitle)
	if series == "" {
		return Classification{}, ErrUnparsableIdentity
	}

	issue, ok := NormalizeIssueNumber(issueNumber)
	if !ok {
		return Classification{}, ErrUnparsableIdentity
	}

	label := strings.ToLower(strings.TrimSpace(variantLabel))
	if label == "" {
		return Classification{
			Key:     domain.VariantKey{Series: series, Issue: issue, Class: domain.VariantStandard},
			Rule:    "",
			Matched: true,
		}, nil
	}

	for i := range classificationRules {
		r := &classificationRules[i]
		if r.Matches(label) {
			return Classification{
				Key:     domain.VariantKey{Series: series, Issue: issue, Class: r.Class},
				Rule:    r.Name,
				Matched: true,
			}, nil
		}
	}

	return Classification{
		Key:     domain.VariantKey{Series: series, Issue: issue, Class: domain.VariantUnknown},
		Rule:    "",
		Matched: false,
	}, nil
}
