package progress

import "math"

const (
	StateUnknown = "unknown"
	StateSyncing = "syncing"
	StateSynced  = "synced"
	StateBehind  = "behind"

	// Nodes report verificationprogress slightly below 1 even at tip.
	verifiedThreshold = 0.999
)

type Input struct {
	BlockHeight          int64
	TargetHeight         int64
	VerificationProgress float64
}

type Result struct {
	// Progress is nil when no target height is configured.
	Progress        *float64
	Percentage      float64
	BlocksRemaining int64
	State           string
}

// Analyze derives sync progress from the polled height and the configured
// target. Progress is clamped to 1.0 once the node reaches the target.
func Analyze(in Input) Result {
	if in.TargetHeight <= 0 {
		return Result{State: StateUnknown}
	}

	p := math.Min(1.0, float64(in.BlockHeight)/float64(in.TargetHeight))
	if p < 0 {
		p = 0
	}

	remaining := in.TargetHeight - in.BlockHeight
	if remaining < 0 {
		remaining = 0
	}

	res := Result{
		Progress:        &p,
		Percentage:      math.Round(p*10000) / 100,
		BlocksRemaining: remaining,
		State:           StateSyncing,
	}

	if in.BlockHeight >= in.TargetHeight {
		res.State = StateSynced
		if in.VerificationProgress > 0 && in.VerificationProgress < verifiedThreshold {
			res.State = StateBehind
		}
	}

	return res
}
