package aggregator

// WindowStats summarises the values currently in the history window.
type WindowStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Mean  float64 `json:"mean"`
}

// Summarize computes min, max and mean over points.
func Summarize(points []HistoryPoint) WindowStats {
	if len(points) == 0 {
		return WindowStats{}
	}

	stats := WindowStats{Count: len(points), Min: points[0].Value, Max: points[0].Value}
	sum := 0.0
	for _, p := range points {
		if p.Value < stats.Min {
			stats.Min = p.Value
		}
		if p.Value > stats.Max {
			stats.Max = p.Value
		}
		sum += p.Value
	}
	stats.Mean = sum / float64(len(points))
	return stats
}
