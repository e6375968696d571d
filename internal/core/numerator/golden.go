package numerator

// GoldenStep is the distance between two golden numbers.
const GoldenStep = 100

// IsGolden reports whether numeric is a round multiple of 100.
// Golden numbers are reserved for administrator allocation.
func IsGolden(numeric int64) bool {
	return numeric%GoldenStep == 0
}

// NormalFrontier is the first candidate for minting a normal number.
// A next value below base is clamped up to base.
func NormalFrontier(baseStart, nextNormalStart int64) int64 {
	return max(baseStart, nextNormalStart)
}

// GoldenFrontier is the first multiple of 100 at or above the normal frontier.
func GoldenFrontier(baseStart, nextNormalStart int64) int64 {
	return GoldenAtOrAbove(NormalFrontier(baseStart, nextNormalStart))
}

// GoldenAtOrAbove rounds n up to the next multiple of 100.
// Non-positive inputs round to the first golden number, 100.
func GoldenAtOrAbove(n int64) int64 {
	if n <= GoldenStep {
		return GoldenStep
	}
	return ((n + GoldenStep - 1) / GoldenStep) * GoldenStep
}
