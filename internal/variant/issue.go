package variant

import (
	"strings"
	"unicode"
)

// NormalizeSeriesTitle canonicalizes a series title: lowercase, punctuation
// replaced by spaces, whitespace collapsed. "Amazing Spider-Man" and
// "amazing  spider man" canonicalize identically.
func NormalizeSeriesTitle(title string) string {
	lower := strings.ToLower(title)

	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// NormalizeIssueNumber canonicalizes an issue number: "#" and punctuation
// stripped, leading zeros removed from whole-number parts, decimal suffixes
// preserved, lowercased. "#001" -> "1", "1.5" stays "1.5", "Annual #2" ->
// "annual 2". Returns ok=false when nothing parsable remains.
func NormalizeIssueNumber(issue string) (string, bool) {
	lower := strings.ToLower(issue)

	var b strings.Builder
	for _, r := range lower {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	if len(fields) == 0 {
		return "", false
	}

	for i, f := range fields {
		fields[i] = stripLeadingZeros(strings.Trim(f, "."))
	}

	out := strings.Join(fields, " ")
	if strings.TrimSpace(out) == "" {
		return "", false
	}
	return out, true
}

// stripLeadingZeros removes leading zeros from every digit run that starts a
// whole-number part. Digit runs after a decimal point are fraction digits and
// stay verbatim, so "1.05" is preserved while "007" becomes "7".
func stripLeadingZeros(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c < '0' || c > '9' {
			b.WriteByte(c)
			i++
			continue
		}

		// Start of a digit run. Fraction runs follow a '.'.
		fraction := i > 0 && s[i-1] == '.'
		j := i
		for j < len(s) && s[j] >= '0' && s[j] <= '9' {
			j++
		}
		run := s[i:j]
		if !fraction {
			run = strings.TrimLeft(run, "0")
			if run == "" {
				run = "0"
			}
		}
		b.WriteString(run)
		i = j
	}
	return b.String()
}
