package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"budgetblocks/internal/core"
	"budgetblocks/internal/ledger"
	"budgetblocks/internal/log"

	"github.com/robfig/cron/v3"
)

var errNoNewBands = errors.New("no new bands")

// BandRollover regenerates the band window of every stored pay schedule on a
// cron schedule, so upcoming pay periods exist before they start.
type BandRollover struct {
	store    *ledger.Store
	schedule cron.Schedule
	spec     string
	logger   *log.Logger
}

// NewBandRollover parses spec as a standard five-field cron expression.
func NewBandRollover(store *ledger.Store, spec string, logger *log.Logger) (*BandRollover, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse rollover schedule %q: %w", spec, err)
	}
	if logger == nil {
		logger = log.Discard()
	}
	return &BandRollover{
		store:    store,
		schedule: schedule,
		spec:     spec,
		logger:   logger.WithComponent(log.ComponentBands),
	}, nil
}

// Next reports when the job fires after t.
func (r *BandRollover) Next(t time.Time) time.Time {
	return r.schedule.Next(t)
}

// RunOnce merges newly generated bands into the store and returns how many
// were added. A pass that adds nothing leaves the state version unchanged.
func (r *BandRollover) RunOnce(ctx context.Context) (int, error) {
	var added []core.Band
	_, err := r.store.Update(ctx, log.OpGenerate, func(st *ledger.State) error {
		bands, err := st.Rollover()
		if err != nil {
			return err
		}
		if len(bands) == 0 {
			return errNoNewBands
		}
		added = bands
		return nil
	})
	if errors.Is(err, errNoNewBands) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("band rollover: %w", err)
	}
	for _, b := range added {
		r.logger.InfoContext(ctx, "Band generated",
			log.FieldBandID, b.ID,
			"title", b.Title,
			"schedule_id", b.ScheduleID)
	}
	return len(added), nil
}

// Run executes one pass immediately and then on every tick of the schedule
// until ctx is done.
func (r *BandRollover) Run(ctx context.Context) error {
	r.pass(ctx)

	c := cron.New()
	c.Schedule(r.schedule, cron.FuncJob(func() { r.pass(ctx) }))
	c.Start()
	r.logger.InfoContext(ctx, "Band rollover scheduled", "cron", r.spec, "next", r.Next(time.Now()).Format(time.RFC3339))

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

func (r *BandRollover) pass(ctx context.Context) {
	start := time.Now()
	n, err := r.RunOnce(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Band rollover failed", log.FieldError, err.Error())
		return
	}
	r.logger.InfoContext(ctx, "Band rollover complete",
		log.FieldCount, n,
		log.FieldDuration, time.Since(start).Milliseconds())
}
