package webhook

import (
	"errors"
	"time"
)

// checkFreshness decides whether a caller-supplied unix timestamp is within
// the provider's tolerance of the local clock. The boundary is inclusive:
// a request exactly tolerance old is still fresh. Future-dated timestamps
// are held to the same absolute-skew rule.
func checkFreshness(now time.Time, ts int64, tolerance time.Duration) error {
	skew := now.Sub(time.Unix(ts, 0))
	if skew < 0 {
		skew = -skew
	}

	if skew > tolerance {
		return errors.New(MsgStaleTimestamp)
	}

	return nil
}
