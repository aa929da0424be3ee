package output

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Countdown blocks for d while showing the remaining seconds, then returns
// nil. It returns ctx.Err() if ctx ends first. Animated terminals get a live
// spinner; everything else gets a single line.
func (w *Writer) Countdown(ctx context.Context, d time.Duration, label string) error {
	if d <= 0 {
		return nil
	}

	deadline := time.Now().Add(d)
	message := func() string {
		remaining := math.Ceil(time.Until(deadline).Seconds())

		return fmt.Sprintf("%s (%ds)", label, int(math.Max(remaining, 0)))
	}

	spin := w.Spinner(message())
	spin.Start()

	timer := time.NewTimer(d)
	defer timer.Stop()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			spin.Stop()
			return ctx.Err()
		case <-timer.C:
			spin.Stop()
			return nil
		case <-ticker.C:
			spin.UpdateMessage(message())
		}
	}
}
