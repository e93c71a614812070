package domain

// CanonicalGrade represents a condition grade on the canonical 0.5-10.0 scale.
// The qualifier lowers comparability but never changes the numeric value.
type CanonicalGrade struct {
	Value     float64        // canonical scale point (0.5 .. 10.0)
	Qualifier GradeQualifier // empty when unqualified
}

// GradeQualifier marks a grade whose comparability is reduced (restoration,
// qualified labels). The numeric value is preserved alongside it.
type GradeQualifier string

const (
	QualifierNone      GradeQualifier = ""
	QualifierRestored  GradeQualifier = "RESTORED"
	QualifierQualified GradeQualifier = "QUALIFIED"
	QualifierApparent  GradeQualifier = "APPARENT"
	QualifierConserved GradeQualifier = "CONSERVED"
)

// String returns the string representation of GradeQualifier.
func (q GradeQualifier) String() string {
	return string(q)
}

// IsValid checks if the qualifier is a valid value.
func (q GradeQualifier) IsValid() bool {
	switch q {
	case QualifierNone, QualifierRestored, QualifierQualified, QualifierApparent, QualifierConserved:
		return true
	}
	return false
}

// gradeScale is the set of canonical slab grades. Steps are half-points with
// the extra 1.8 and 9.2-9.9 points used by grading services.
var gradeScale = map[float64]bool{
	0.5: true, 1.0: true, 1.5: true, 1.8: true, 2.0: true, 2.5: true,
	3.0: true, 3.5: true, 4.0: true, 4.5: true, 5.0: true, 5.5: true,
	6.0: true, 6.5: true, 7.0: true, 7.5: true, 8.0: true, 8.5: true,
	9.0: true, 9.2: true, 9.4: true, 9.6: true, 9.8: true, 9.9: true,
	10.0: true,
}

// IsCanonicalGradeValue checks if v is a point on the canonical grade scale.
func IsCanonicalGradeValue(v float64) bool {
	return gradeScale[v]
}
