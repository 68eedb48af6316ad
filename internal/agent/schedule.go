package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/adhocore/gronx"
	"github.com/google/uuid"
)

// ValidateSchedule checks a five-field cron expression
func ValidateSchedule(expr string) error {
	if expr == "" {
		return fmt.Errorf("cron schedule requires an expression")
	}
	if !gronx.New().IsValid(expr) {
		return fmt.Errorf("invalid cron expression: %s", expr)
	}
	return nil
}

// NextRun returns the first tick of expr strictly after now
func NextRun(expr string, now time.Time) (time.Time, error) {
	return gronx.NextTickAfter(expr, now, false)
}

// RunScheduled runs the workflow at every tick of expr until ctx is done.
// A failed run is logged and the loop waits for the next tick.
func (a *Agent) RunScheduled(ctx context.Context, expr string) error {
	if err := ValidateSchedule(expr); err != nil {
		return err
	}

	for {
		next, err := NextRun(expr, time.Now())
		if err != nil {
			return fmt.Errorf("compute next run: %w", err)
		}
		a.logger.Info("next scheduled run", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		runID := uuid.NewString()
		logger := a.logger.With("run_id", runID)
		result, err := a.Run(ctx)
		switch {
		case ctx.Err() != nil:
			return ctx.Err()
		case err != nil:
			logger.Error("scheduled run failed", "error", err)
		default:
			logger.Info("scheduled run finished", "status", result.Status, "post_id", result.PostID)
		}
	}
}
