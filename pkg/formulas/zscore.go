package formulas

// ZScores standardizes values cross-sectionally: z = (x - mean) / std.
// A zero or undefined standard deviation yields 0 for every entry.
func ZScores(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) < 2 {
		return out
	}

	mean := Mean(values)
	std := StdDev(values)
	if std == 0 || !IsFinite(std) {
		return out
	}

	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
