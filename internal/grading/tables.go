package grading

import (
	"comic-price-lab/internal/domain"
)

// serviceCodes are third-party grading service prefixes. The prefix never
// changes the numeric grade: "CGC 9.8" and "9.8" resolve identically.
var serviceCodes = map[string]bool{
	"CGC":  true,
	"CBCS": true,
	"PGX":  true,
	"EGS":  true,
}

// qualifierTokens map restoration/qualification markers to the qualifier
// they set. The base grade is still resolved alongside the qualifier.
var qualifierTokens = map[string]domain.GradeQualifier{
	"RESTORED":    domain.QualifierRestored,
	"RESTORATION": domain.QualifierRestored,
	"QUALIFIED":   domain.QualifierQualified,
	"APPARENT":    domain.QualifierApparent,
	"CONSERVED":   domain.QualifierConserved,
}

// ignoredTokens are label markers that carry no grade information.
// Verified-signature labels do not reduce comparability.
var ignoredTokens = map[string]bool{
	"SS":        true,
	"SIGNATURE": true,
	"SERIES":    true,
	"GRADED":    true,
	"GRADE":     true,
	"SLAB":      true,
	"SLABBED":   true,
	"BLUE":      true,
	"LABEL":     true,
	"UNIVERSAL": true,
}

// ungradedLabels are labels that explicitly mark a book as not graded.
// Distinct from unrecognized vocabulary: the seller told us there is no grade.
var ungradedLabels = map[string]bool{
	"RAW":        true,
	"UNGRADED":   true,
	"NOT GRADED": true,
	"NO GRADE":   true,
}

// qualitativeGrades maps descriptive condition labels to the deterministic
// midpoint of their accepted numeric range. Split grades ("VF/NM") sit at
// the boundary value between the two ranges.
var qualitativeGrades = map[string]float64{
	"GEM MINT":            10.0,
	"GM":                  10.0,
	"MINT":                9.9,
	"MT":                  9.9,
	"NEAR MINT/MINT":      9.8,
	"NM/MT":               9.8,
	"NM/M":                9.8,
	"NEAR MINT+":          9.6,
	"NM+":                 9.6,
	"NEAR MINT":           9.4,
	"NM":                  9.4,
	"NEAR MINT-":          9.2,
	"NM-":                 9.2,
	"VERY FINE/NEAR MINT": 9.0,
	"VF/NM":               9.0,
	"VERY FINE+":          8.5,
	"VF+":                 8.5,
	"VERY FINE":           8.0,
	"VF":                  8.0,
	"VERY FINE-":          7.5,
	"VF-":                 7.5,
	"FINE/VERY FINE":      7.0,
	"FN/VF":               7.0,
	"F/VF":                7.0,
	"FINE+":               6.5,
	"FN+":                 6.5,
	"FINE":                6.0,
	"FN":                  6.0,
	"FINE-":               5.5,
	"FN-":                 5.5,
	"VERY GOOD/FINE":      5.0,
	"VG/FN":               5.0,
	"VG/F":                5.0,
	"VERY GOOD+":          4.5,
	"VG+":                 4.5,
	"VERY GOOD":           4.0,
	"VG":                  4.0,
	"VERY GOOD-":          3.5,
	"VG-":                 3.5,
	"GOOD/VERY GOOD":      3.0,
	"GD/VG":               3.0,
	"G/VG":                3.0,
	"GOOD+":               2.5,
	"GD+":                 2.5,
	"GOOD":                2.0,
	"GD":                  2.0,
	"GOOD-":               1.8,
	"GD-":                 1.8,
	"FAIR/GOOD":           1.5,
	"FR/GD":               1.5,
	"FAIR":                1.0,
	"FR":                  1.0,
	"POOR":                0.5,
	"PR":                  0.5,
}
