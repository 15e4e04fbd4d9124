package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
)

// BudgetProbe uploads a batch over one persistent connection to observe the
// server closing it once its request budget is spent.
type BudgetProbe struct {
	Addr    string
	Budget  int           // requests the server is expected to answer per connection
	Pause   time.Duration // wait after the budget before retrying on the same connection
	Timeout time.Duration
	Logger  *zap.Logger

	// OnResult, when set, sees every result as it happens.
	OnResult func(stage string, r Result)
}

// BudgetReport collects what the probe saw.
type BudgetReport struct {
	Uploads []Result // the first Budget uploads on the shared connection
	Retry   Result   // item Budget+1 on the same connection, expected to fail
	Fresh   Result   // the same item on a new connection, expected to succeed
}

// Exhausted reports whether the server answered every upload within the
// budget, dropped the extra one at the transport level and then accepted it
// on a new connection.
func (r BudgetReport) Exhausted() bool {
	for _, u := range r.Uploads {
		if !u.OK() {
			return false
		}
	}
	return r.Retry.Err != nil && r.Fresh.OK()
}

// Run needs at least Budget+1 items.
func (p *BudgetProbe) Run(ctx context.Context, items []Item) (BudgetReport, error) {
	var report BudgetReport
	if len(items) <= p.Budget {
		return report, fmt.Errorf("budget probe needs at least %d files, got %d", p.Budget+1, len(items))
	}
	if err := CheckItems(items[:p.Budget+1]); err != nil {
		return report, err
	}

	conn, err := Dial(ctx, p.Addr, p.Timeout)
	if err != nil {
		return report, err
	}

	for _, item := range items[:p.Budget] {
		res := conn.Upload(item)
		report.Uploads = append(report.Uploads, res)
		p.emit("shared", res)
	}

	p.Logger.Info("budget spent, pausing before reusing the connection",
		zap.Int("sent", p.Budget),
		zap.Duration("pause", p.Pause))
	if err := sleepCtx(ctx, p.Pause); err != nil {
		_ = conn.Close()
		return report, err
	}

	extra := items[p.Budget]
	report.Retry = conn.Upload(extra)
	p.emit("same-connection", report.Retry)
	_ = conn.Close()

	p.Logger.Info("opening a new connection and retrying the same file",
		zap.String("remote", extra.Remote))
	fresh, err := Dial(ctx, p.Addr, p.Timeout)
	if err != nil {
		report.Fresh = Result{Item: extra, Err: err}
		p.emit("new-connection", report.Fresh)
		return report, nil
	}
	defer fresh.Close()

	report.Fresh = fresh.Upload(extra)
	p.emit("new-connection", report.Fresh)
	return report, nil
}

func (p *BudgetProbe) emit(stage string, r Result) {
	if p.OnResult != nil {
		p.OnResult(stage, r)
	}
}

// Timing is one timed GET.
type Timing struct {
	Path    string
	Status  int
	Elapsed time.Duration
	Err     error
}

func (t Timing) String() string {
	if t.Err != nil {
		return fmt.Sprintf("GET /%s -> Exception: %v", t.Path, t.Err)
	}
	return fmt.Sprintf("GET /%s -> %d %s (elapsed: %.3fs)", t.Path, t.Status, http.StatusText(t.Status), t.Elapsed.Seconds())
}

// LongPollProbe exercises the three long-poll cases: a path that exists, one
// that never appears, and one written while a GET is already waiting.
type LongPollProbe struct {
	Uploader *Uploader
	Delay    time.Duration
	Logger   *zap.Logger
}

// PollReport collects the probe's timings.
type PollReport struct {
	Put      Result
	Existing Timing
	Missing  Timing
	Delayed  Timing
	Late     Result
}

// Run uploads existing, reads it back, reads missing, then reads delayed
// while uploading it Delay later.
func (p *LongPollProbe) Run(ctx context.Context, existing, delayed Item, missing string) (PollReport, error) {
	var report PollReport
	if err := CheckItems([]Item{existing, delayed}); err != nil {
		return report, err
	}

	report.Put = p.Uploader.Upload(ctx, existing)
	report.Existing = p.timedGet(ctx, existing.Remote)
	report.Missing = p.timedGet(ctx, missing)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		report.Delayed = p.timedGet(ctx, delayed.Remote)
	}()

	if err := sleepCtx(ctx, p.Delay); err != nil {
		wg.Wait()
		return report, err
	}
	p.Logger.Info("uploading after delay",
		zap.String("remote", delayed.Remote),
		zap.Duration("delay", p.Delay))
	report.Late = p.Uploader.Upload(ctx, delayed)

	wg.Wait()
	return report, nil
}

func (p *LongPollProbe) timedGet(ctx context.Context, remote string) Timing {
	start := time.Now()
	status, _, err := p.Uploader.Get(ctx, remote)
	return Timing{
		Path:    remote,
		Status:  status,
		Elapsed: time.Since(start),
		Err:     err,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
