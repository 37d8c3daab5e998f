// Package jobs holds the scheduled job implementations.
package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/rebalance"
	"github.com/wonny/rotor/pkg/logger"
)

// RebalanceJob runs the weekly rotation cycle
// ⭐ SSOT: 리밸런스 스케줄은 이 Job에서만
type RebalanceJob struct {
	engine   *rebalance.Engine
	settings *contracts.Settings
	logger   *logger.Logger
}

// NewRebalanceJob creates the scheduled rebalance job
func NewRebalanceJob(engine *rebalance.Engine, settings *contracts.Settings, log *logger.Logger) *RebalanceJob {
	return &RebalanceJob{
		engine:   engine,
		settings: settings,
		logger:   log,
	}
}

// Name returns the job name
func (j *RebalanceJob) Name() string {
	return "rebalance_cycle"
}

// Schedule converts the settings schedule into a cron expression.
// 예: mon 19:00 → "0 0 19 * * MON" (타임존은 스케줄러가 쥠)
func (j *RebalanceJob) Schedule() string {
	return CronSpec(j.settings.ScheduleDay, j.settings.ScheduleTime)
}

// Run executes one rebalance cycle
func (j *RebalanceJob) Run(ctx context.Context) error {
	snapshot, err := j.engine.RunCycle(ctx)
	if err != nil {
		return fmt.Errorf("rebalance cycle: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"snapshot_id": snapshot.ID,
		"holdings":    len(snapshot.Positions),
		"equity":      snapshot.EquityValue,
	}).Info("Scheduled rebalance finished")
	return nil
}

// CronSpec builds a with-seconds cron expression from a validated
// day ("mon".."sun") and HH:MM time.
func CronSpec(day, hhmm string) string {
	parts := strings.SplitN(hhmm, ":", 2)
	hour, minute := "0", "0"
	if len(parts) == 2 {
		hour = strings.TrimLeft(parts[0], "0")
		minute = strings.TrimLeft(parts[1], "0")
		if hour == "" {
			hour = "0"
		}
		if minute == "" {
			minute = "0"
		}
	}
	return fmt.Sprintf("0 %s %s * * %s", minute, hour, strings.ToUpper(day))
}
