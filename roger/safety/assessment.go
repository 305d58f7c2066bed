package safety

// Category classifies a safety-critical utterance. Categories are ordered
// by severity: suicide > self-harm > abuse > medical > none.
type Category int

const (
	CategoryNone Category = iota
	CategoryMedical
	CategoryAbuse
	CategorySelfHarm
	CategorySuicide
)

// String returns the wire name of the category.
func (c Category) String() string {
	switch c {
	case CategorySuicide:
		return "suicide"
	case CategorySelfHarm:
		return "self-harm"
	case CategoryAbuse:
		return "abuse"
	case CategoryMedical:
		return "medical"
	default:
		return "none"
	}
}

// MoreSevere reports whether c outranks other.
func (c Category) MoreSevere(other Category) bool {
	return c > other
}

// Severity grades how confident the detector is that intervention is needed.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityModerate
	SeverityHigh
)

// String returns the wire name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityHigh:
		return "high"
	case SeverityModerate:
		return "moderate"
	default:
		return "low"
	}
}

// Assessment is the per-turn result of crisis classification. It is never
// persisted beyond the turn except as the turn's concern tag.
type Assessment struct {
	IsCrisis      bool
	Category      Category
	Severity      Severity
	MatchedPhrase string
}
