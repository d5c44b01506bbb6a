package pager

import (
	"log"

	"github.com/robfig/cron/v3"
)

// ───────────────────────────────────────────────────────────────────────────
// Background checkpointer
// ───────────────────────────────────────────────────────────────────────────
//
// Hosts that batch many statements between commits accumulate dirty pages
// in memory. The checkpointer periodically flushes them with a
// mid-statement commit: dirty pages reach the file, the journal epoch
// stays open, and a later failure still rolls back to the last real
// commit. The pager's mutex makes the flush safe against a statement in
// flight.

// Checkpointer runs Checkpoint on a cron schedule.
type Checkpointer struct {
	cron *cron.Cron
	db   *DB
}

// NewCheckpointer builds a checkpointer from a cron expression with a
// seconds field, e.g. "*/30 * * * * *" for every thirty seconds.
func NewCheckpointer(db *DB, spec string) (*Checkpointer, error) {
	cp := &Checkpointer{cron: cron.New(cron.WithSeconds()), db: db}
	if _, err := cp.cron.AddFunc(spec, cp.run); err != nil {
		return nil, err
	}
	return cp, nil
}

func (cp *Checkpointer) run() {
	if err := cp.db.Checkpoint(); err != nil {
		log.Printf("checkpoint failed: %v", err)
	}
}

// Start begins the schedule.
func (cp *Checkpointer) Start() { cp.cron.Start() }

// Stop halts the schedule and waits for a running flush to finish.
func (cp *Checkpointer) Stop() {
	ctx := cp.cron.Stop()
	<-ctx.Done()
}
