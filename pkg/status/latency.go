package status

import "time"

const LatencyWindowSize = 100

type LatencyStats struct {
	Avg     time.Duration `json:"avg"`
	Max     time.Duration `json:"max"`
	Min     time.Duration `json:"min"`
	Last    time.Duration `json:"last"`
	Samples int           `json:"samples"`

	history []time.Duration
}

// withSample returns new stats including d. The receiver is left untouched
// so older snapshots stay valid for concurrent readers.
func (ls LatencyStats) withSample(d time.Duration) LatencyStats {
	start := 0
	if len(ls.history) >= LatencyWindowSize {
		start = len(ls.history) - LatencyWindowSize + 1
	}

	history := make([]time.Duration, 0, LatencyWindowSize)
	history = append(history, ls.history[start:]...)
	history = append(history, d)

	var total time.Duration
	min, max := history[0], history[0]
	for _, l := range history {
		total += l
		if l < min {
			min = l
		}
		if l > max {
			max = l
		}
	}

	return LatencyStats{
		Avg:     total / time.Duration(len(history)),
		Max:     max,
		Min:     min,
		Last:    d,
		Samples: len(history),
		history: history,
	}
}
