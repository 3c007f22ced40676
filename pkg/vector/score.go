package vector

// Score converts a raw engine distance into a similarity score in [0,1],
// higher meaning more similar.
//
//   - cosine: distance in [0,2], 0 = identical direction
//   - l2: non-negative euclidean distance, no upper bound
//   - ip: raw inner product, may be negative
//
// Every branch clamps the result so metric-specific range violations can
// never leak out of [0,1]. The function is pure.
func Score(metric Metric, distance float64) float64 {
	var score float64

	switch metric {
	case MetricCosine:
		score = 1.0 - distance/2.0
	case MetricL2:
		score = 1.0 / (1.0 + distance)
	case MetricIP:
		score = (distance + 1.0) / 2.0
	default:
		score = 1.0 - distance
	}

	return clamp01(score)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
