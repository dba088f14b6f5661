/*
scheduler.go - Background transformation sweep

PURPOSE:
  Periodically sweeps the pending-transform queue and applies every entry
  whose grace period has elapsed, moving the credited refundable amount
  into the non-refundable bucket.

DESIGN:
  - Runs on a cron schedule (default: every 10 minutes)
  - Each due entry is applied independently; one failure never blocks
    the rest of the sweep
  - Applied entries are marked done so a sweep is safe to re-run
  - A missed or failed entry is simply picked up by the next sweep

USAGE:
  runner := NewTransformRunner(store, engine)
  runner.Start()
  // ... later
  runner.Stop()

SEE ALSO:
  - wallet/transform.go: The per-entry application logic
  - store/sqlite/sqlite.go: The transforms table
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/warp/wallet-engine/wallet"
)

// TransformRunner sweeps due pending transforms on a cron schedule.
type TransformRunner struct {
	Store  wallet.TransformStore
	Engine *wallet.Engine

	// Spec is a cron expression. Empty means every 10 minutes.
	Spec string

	cron *cron.Cron
	mu   sync.Mutex
}

// NewTransformRunner creates a runner over the given queue and engine.
func NewTransformRunner(store wallet.TransformStore, engine *wallet.Engine) *TransformRunner {
	return &TransformRunner{
		Store:  store,
		Engine: engine,
		Spec:   "*/10 * * * *",
	}
}

// Start schedules the sweep and runs one immediately.
func (tr *TransformRunner) Start() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DefaultLogger),
	))
	if _, err := c.AddFunc(tr.Spec, tr.Sweep); err != nil {
		return err
	}
	tr.cron = c
	c.Start()

	go tr.Sweep()

	log.Printf("[Transform] Sweep scheduled: %s", tr.Spec)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (tr *TransformRunner) Stop() {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.cron != nil {
		ctx := tr.cron.Stop()
		<-ctx.Done()
		log.Println("[Transform] Sweep stopped")
	}
}

// Sweep applies every due transform once. Exported so admin endpoints and
// tests can trigger it directly.
func (tr *TransformRunner) Sweep() {
	ctx := context.Background()
	now := time.Now()

	due, err := tr.Store.Due(ctx, now)
	if err != nil {
		log.Printf("[Transform] Failed to load due transforms: %v", err)
		return
	}
	if len(due) == 0 {
		return
	}

	applied := 0
	for _, pt := range due {
		if err := tr.Engine.ApplyTransform(ctx, pt); err != nil {
			log.Printf("[Transform] Failed to apply %s for user %s: %v", pt.ID, pt.UserID, err)
			continue
		}
		if err := tr.Store.MarkDone(ctx, pt.ID); err != nil {
			log.Printf("[Transform] Failed to mark %s done: %v", pt.ID, err)
			continue
		}
		applied++
	}

	log.Printf("[Transform] Sweep completed: %d applied, %d due", applied, len(due))
}
