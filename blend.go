package irradiance

import "math"

// SourcePair returns the two sources blended while index is selected: the
// last source pairs with the first.
func SourcePair(index, numSources int) (a, b int) {
	if numSources <= 0 {
		return 0, 0
	}
	a = index % numSources
	if a < 0 {
		a += numSources
	}
	return a, (a + 1) % numSources
}

// Blend returns the source pair and blend factor at time t.
//
// With raw = t/period, the first source of the pair is floor(raw) mod n and
// the factor is the fractional part of raw. The second source is the one
// SourcePair pairs with index. With a single source the factor is 0.
// Negative times wrap the same way as positive ones. raw is computed in
// float64 and only the factor is narrowed. A non-finite t selects source 0
// with factor 0.
func Blend(t float64, period float32, numSources int) (index int, weight float32) {
	if numSources <= 0 || math.IsNaN(t) || math.IsInf(t, 0) {
		return 0, 0
	}
	if period <= 0 {
		period = DefaultPeriod
	}

	whole, frac := math.Modf(t / float64(period))
	if frac < 0 {
		frac++
		whole--
	}

	idx := math.Mod(whole, float64(numSources))
	if idx < 0 {
		idx += float64(numSources)
	}
	index = int(idx)
	if numSources == 1 {
		return index, 0
	}
	return index, float32(frac)
}
