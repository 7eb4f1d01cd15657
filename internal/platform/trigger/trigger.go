// Package trigger wraps cron-based background job scheduling for the
// delivery daemon: the periodic notification pipeline run and the daily
// occurrence generation run.
package trigger

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// Runner wraps cron-based jobs.
type Runner struct {
	cron *cron.Cron
}

// NewRunner creates a Runner whose jobs fire in the given location.
func NewRunner(loc *time.Location) *Runner {
	return &Runner{
		cron: cron.New(cron.WithLocation(loc)),
	}
}

// ScheduleDaily registers a daily job at the given HH:MM time string.
func (r *Runner) ScheduleDaily(timeStr string, job func()) (cron.EntryID, error) {
	spec, err := buildDailySpec(timeStr)
	if err != nil {
		return 0, err
	}
	return r.cron.AddFunc(spec, job)
}

// ScheduleInterval registers a periodic job every given duration.
func (r *Runner) ScheduleInterval(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	minutes := int(interval.Minutes())
	if minutes <= 0 {
		minutes = 1
	}
	spec := fmt.Sprintf("@every %dm", minutes)
	return r.cron.AddFunc(spec, job)
}

// Start begins firing the registered jobs in their own goroutines.
func (r *Runner) Start() {
	r.cron.Start()
}

// Stop halts scheduling and waits for any running job to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

func buildDailySpec(timeStr string) (string, error) {
	parts := strings.Split(timeStr, ":")
	if len(parts) != 2 {
		return "", fmt.Errorf("invalid time %q, expected HH:MM", timeStr)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return "", fmt.Errorf("invalid hour in %q", timeStr)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid minute in %q", timeStr)
	}
	// cron format: minute hour dom month dow
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
