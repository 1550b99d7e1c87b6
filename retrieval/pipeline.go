package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/use-agent/judfetch/browser"
	"github.com/use-agent/judfetch/config"
	"github.com/use-agent/judfetch/models"
	"golang.org/x/sync/errgroup"
)

// Result aggregates a pipeline run. Paths and Errors follow record order.
type Result struct {
	Outcomes []models.RetrievalOutcome
	Paths    []string
	Errors   []string
}

// ErrNoSession is the per-record error of a run that was given no session
// and cannot open its own.
var ErrNoSession = errors.New("no browsing session")

// Pipeline fetches the artifacts of many records. Given a session, every
// record goes through it in order. Without one, each of Workers workers
// opens its own session with its own user agent.
type Pipeline struct {
	Fetcher    *Fetcher
	Opener     browser.Opener
	UserAgents config.UserAgentPool
	Workers    int
}

// OwnsSessions reports whether Run opens its own sessions. Callers pass a
// session to Run only when it does not.
func (p *Pipeline) OwnsSessions() bool {
	return p.Workers > 1 && p.Opener != nil
}

// Run fetches every record's artifact into dir. A failing record never
// stops the run; its error is reported as "label: reason". A non-nil sess
// keeps the run sequential on that session.
func (p *Pipeline) Run(ctx context.Context, sess browser.Session, records []models.ResultRecord, dir string, progress models.ProgressFunc) *Result {
	outcomes := make([]models.RetrievalOutcome, len(records))
	for i, rec := range records {
		outcomes[i].Record = rec
	}

	var done atomic.Int64
	report := func(i int) {
		n := done.Add(1)
		progress.Report(float64(n)/float64(len(records)),
			fmt.Sprintf("downloading %d/%d: %s", n, len(records), records[i].Label()))
	}

	switch {
	case sess != nil:
		for i := range records {
			p.fetchOne(ctx, sess, dir, &outcomes[i])
			report(i)
		}
	case p.OwnsSessions():
		p.runWorkers(ctx, dir, outcomes, report)
	default:
		for i := range records {
			outcomes[i].Err = ErrNoSession
			report(i)
		}
	}

	return aggregate(outcomes)
}

func (p *Pipeline) fetchOne(ctx context.Context, sess browser.Session, dir string, out *models.RetrievalOutcome) {
	if err := ctx.Err(); err != nil {
		out.Err = err
		return
	}
	path, err := p.Fetcher.Fetch(ctx, sess, out.Record.URL, dir)
	out.Path, out.Err = path, err
}

func (p *Pipeline) runWorkers(ctx context.Context, dir string, outcomes []models.RetrievalOutcome, report func(int)) {
	jobs := make(chan int)
	workers := min(p.Workers, len(outcomes))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range outcomes {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	for w := 0; w < workers; w++ {
		g.Go(func() error {
			sess, openErr := p.Opener.Open(ctx, p.UserAgents.Pick())
			if openErr == nil {
				defer func() {
					if err := sess.Close(); err != nil {
						slog.Debug("close worker session", "worker", w, "error", err)
					}
				}()
			} else {
				slog.Warn("worker session failed to open", "worker", w, "error", openErr)
			}
			for i := range jobs {
				if openErr != nil {
					outcomes[i].Err = fmt.Errorf("open session: %w", openErr)
				} else {
					p.fetchOne(ctx, sess, dir, &outcomes[i])
				}
				report(i)
			}
			return nil
		})
	}
	g.Wait()

	// Records never dispatched because the context ended.
	for i := range outcomes {
		if outcomes[i].Path == "" && outcomes[i].Err == nil {
			outcomes[i].Err = context.Cause(ctx)
		}
	}
}

func aggregate(outcomes []models.RetrievalOutcome) *Result {
	res := &Result{Outcomes: outcomes}
	for _, o := range outcomes {
		if o.Succeeded() {
			res.Paths = append(res.Paths, o.Path)
			continue
		}
		err := o.Err
		if err == nil {
			err = fmt.Errorf("no artifact written")
		}
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %v", o.Record.Label(), err))
	}
	return res
}
