package harvester

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/extract"
	"github.com/use-agent/judfetch/poll"
	"github.com/use-agent/judfetch/simhash"
)

// Outcome of a page transition.
type Outcome int

const (
	// Unconfirmed means the title list never changed after the click.
	Unconfirmed Outcome = iota
	// Confirmed means the title list changed after the click.
	Confirmed
	// NearDuplicate means the title list changed but fingerprints almost
	// the same as before, as when the site re-serves a page reordered.
	NearDuplicate
)

func (o Outcome) String() string {
	switch o {
	case Confirmed:
		return "confirmed"
	case NearDuplicate:
		return "near-duplicate"
	}
	return "unconfirmed"
}

// TransitionDetector clicks the next-page control and checks that the
// result titles actually changed.
type TransitionDetector struct {
	Clock poll.Clock

	// Settle is the pause right after the click.
	Settle time.Duration

	// RetrySettle grows the pause between re-checks: the n-th re-check
	// waits n*RetrySettle.
	RetrySettle time.Duration

	// TitleTimeout bounds waiting for titles to render again.
	TitleTimeout time.Duration
	Interval     time.Duration

	// Attempts is the number of snapshot comparisons.
	Attempts int

	// NearDuplicateBits is the largest title fingerprint distance that
	// still counts as the same page. 0 turns the check off.
	NearDuplicateBits int
}

// Advance moves frame to the next result page. The click happens once; the
// snapshot is compared up to Attempts times. An error means a transient
// fault (detached frame, timeout) and the frame should be located again.
func (d *TransitionDetector) Advance(ctx context.Context, frame browser.Surface) (Outcome, error) {
	before, err := snapshot(ctx, frame)
	if err != nil {
		return Unconfirmed, fmt.Errorf("snapshot before transition: %w", err)
	}

	if err := frame.Click(ctx, extract.SelNext); err != nil {
		return Unconfirmed, fmt.Errorf("click next page: %w", err)
	}
	if err := poll.Sleep(ctx, d.Clock, d.Settle); err != nil {
		return Unconfirmed, err
	}
	if err := waitForTitles(ctx, frame, d.Clock, d.TitleTimeout, d.Interval); err != nil {
		return Unconfirmed, fmt.Errorf("wait for titles: %w", err)
	}

	attempts := max(d.Attempts, 1)
	for attempt := 1; attempt <= attempts; attempt++ {
		after, err := snapshot(ctx, frame)
		if err != nil {
			return Unconfirmed, fmt.Errorf("snapshot after transition: %w", err)
		}
		if !extract.SameSnapshot(before, after) {
			dist := snapshotDistance(before, after)
			if d.NearDuplicateBits > 0 && dist <= d.NearDuplicateBits {
				slog.Warn("new result page nearly matches the previous one",
					"attempt", attempt,
					"distance", dist,
					"titles", describeSnapshot(after),
				)
				return NearDuplicate, nil
			}
			slog.Debug("page transition confirmed", "attempt", attempt, "distance", dist)
			return Confirmed, nil
		}
		if attempt < attempts {
			slog.Debug("result titles unchanged, waiting", "attempt", attempt, "of", attempts)
			if err := poll.Sleep(ctx, d.Clock, time.Duration(attempt)*d.RetrySettle); err != nil {
				return Unconfirmed, err
			}
		}
	}
	return Unconfirmed, nil
}

func snapshot(ctx context.Context, s browser.Surface) ([]string, error) {
	html, err := s.HTML(ctx)
	if err != nil {
		return nil, err
	}
	return extract.Snapshot(html), nil
}

func snapshotDistance(a, b []string) int {
	return simhash.Distance(
		simhash.FingerprintTitles(a),
		simhash.FingerprintTitles(b),
	)
}

func waitForTitles(ctx context.Context, s browser.Surface, clock poll.Clock, timeout, interval time.Duration) error {
	return poll.Until(ctx, clock, timeout, interval, func(ctx context.Context) (bool, error) {
		return s.Has(ctx, extract.SelTitle)
	})
}

func describeSnapshot(titles []string) string {
	if len(titles) == 0 {
		return "(empty)"
	}
	return strings.Join(titles[:min(len(titles), 3)], " | ")
}
