package locate

// ConfidencePolicy maps a correlation error (1 - best score) to a
// confidence percentage in [0, 100].
type ConfidencePolicy func(err float64) int

// DefaultConfidence is the stepwise mapping used for minimap fixes.
func DefaultConfidence(err float64) int {
	switch {
	case err < 0.1:
		return 95
	case err < 0.2:
		return 85
	case err < 0.3:
		return 70
	default:
		return max(50, 100-int(err*100))
	}
}

// LinearConfidence maps the score linearly: a perfect match is 100.
func LinearConfidence(err float64) int {
	return 100 - int(err*100)
}

func (p ConfidencePolicy) apply(err float64) int {
	if p == nil {
		p = DefaultConfidence
	}
	return min(100, max(0, p(err)))
}
