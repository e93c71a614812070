package grading

import (
	"strconv"
	"strings"
	"unicode"

	"comic-price-lab/internal/domain"
)

// Kind classifies how a grade label was resolved.
type Kind string

const (
	// KindExact: numeric grade, with or without a grading-service prefix.
	KindExact Kind = "EXACT"
	// KindQualitative: descriptive label resolved to its range midpoint.
	KindQualitative Kind = "QUALITATIVE"
	// KindUngraded: the label explicitly marks the book as not graded,
	// or is empty.
	KindUngraded Kind = "UNGRADED"
	// KindUnrecognized: the label could not be resolved. No grade is ever
	// fabricated for these; the caller decides fallback or rejection.
	KindUnrecognized Kind = "UNRECOGNIZED"
)

// Result represents the outcome of normalizing a grade label.
type Result struct {
	Kind  Kind
	Grade domain.CanonicalGrade // valid only for KindExact and KindQualitative
}

// Normalize resolves a free-text grade label to a canonical grade.
// Steps:
//  1. Tokenize the label, splitting fused service codes ("CGC9.8")
//  2. Extract qualifier tokens (restored, qualified, apparent, conserved)
//  3. Drop service codes, then match explicit ungraded markers
//  4. Drop no-information markers (signature labels, filler words)
//  5. Try exact numeric resolution against the canonical scale
//  6. Try qualitative table lookup on the remaining label
//
// The qualifier survives whichever path resolves the numeric value, so
// "CGC 9.8 Restored" yields 9.8 with the RESTORED qualifier.
func Normalize(label string) Result {
	tokens := tokenize(label)
	if len(tokens) == 0 {
		return Result{Kind: KindUngraded}
	}

	qualifier := domain.QualifierNone
	var mid []string
	for _, tok := range tokens {
		if q, ok := qualifierTokens[tok]; ok {
			if qualifier == domain.QualifierNone {
				qualifier = q
			}
			continue
		}
		if serviceCodes[tok] {
			continue
		}
		mid = append(mid, tok)
	}

	// Ungraded markers are matched before dropping filler words, so that
	// "Not Graded" is not eaten by the GRADED filler.
	if ungradedLabels[strings.Join(mid, " ")] {
		return Result{Kind: KindUngraded}
	}

	var rest []string
	for _, tok := range mid {
		if ignoredTokens[tok] {
			continue
		}
		rest = append(rest, tok)
	}

	// A bare qualifier ("Restored") has no base grade to attach to.
	if len(rest) == 0 {
		return Result{Kind: KindUnrecognized}
	}

	if len(rest) == 1 {
		if v, err := strconv.ParseFloat(rest[0], 64); err == nil {
			if !domain.IsCanonicalGradeValue(v) {
				return Result{Kind: KindUnrecognized}
			}
			return Result{
				Kind:  KindExact,
				Grade: domain.CanonicalGrade{Value: v, Qualifier: qualifier},
			}
		}
	}

	joined := strings.Join(rest, " ")
	if v, ok := qualitativeGrades[joined]; ok {
		return Result{
			Kind:  KindQualitative,
			Grade: domain.CanonicalGrade{Value: v, Qualifier: qualifier},
		}
	}

	return Result{Kind: KindUnrecognized}
}

// tokenize uppercases the label and splits it into tokens. Slashes inside
// split grades ("VF/NM") are preserved; other punctuation separates tokens.
// Fused service codes ("CGC9.8") are split into code and number.
func tokenize(label string) []string {
	upper := strings.ToUpper(strings.TrimSpace(label))
	if upper == "" {
		return nil
	}

	fields := strings.FieldsFunc(upper, func(r rune) bool {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			return false
		case r == '/' || r == '.' || r == '+' || r == '-':
			return false
		default:
			return true
		}
	})

	var tokens []string
	for _, f := range fields {
		// Trailing periods are list punctuation; +/- are grade steps and stay.
		f = strings.Trim(f, ".")
		if f == "" {
			continue
		}
		if code, num, ok := splitFused(f); ok {
			tokens = append(tokens, code, num)
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// splitFused splits tokens like "CGC9.8" into ("CGC", "9.8").
func splitFused(tok string) (string, string, bool) {
	i := 0
	for i < len(tok) && tok[i] >= 'A' && tok[i] <= 'Z' {
		i++
	}
	if i == 0 || i == len(tok) {
		return "", "", false
	}
	code, num := tok[:i], tok[i:]
	if !serviceCodes[code] {
		return "", "", false
	}
	for _, r := range num {
		if !unicode.IsDigit(r) && r != '.' {
			return "", "", false
		}
	}
	return code, num, true
}
