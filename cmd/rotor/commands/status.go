package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "시스템 상태 조회",
	Long: `데이터베이스 상태와 최신 스냅샷을 조회합니다.

표시 정보:
- DB 연결 상태 및 응답 시간
- 최신 스냅샷 (자산, 현금, 봉인 여부)
- 현재 스케줄 설정
- 전략 설정 해시

Example:
  go run ./cmd/rotor status`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rotor Status ===")

	deps, err := initLiveDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	ctx := cmd.Context()

	// Database health
	fmt.Println("\n🗄️  Database")
	health, err := deps.DB.HealthCheck(ctx)
	if err != nil {
		fmt.Printf("❌ Unhealthy: %s\n", health.Error)
	} else {
		fmt.Printf("✅ Healthy (%.0fms, %d/%d conns)\n",
			float64(health.ResponseTime.Milliseconds()),
			health.TotalConns,
			health.MaxConns)
	}

	// Latest snapshot
	fmt.Println("\n📊 Latest Snapshot")
	latest, err := deps.Snapshots.Latest(ctx)
	if err != nil {
		return fmt.Errorf("load latest snapshot: %w", err)
	}
	if latest == nil {
		fmt.Println("ℹ️  No rebalance cycle has run yet")
	} else {
		state := "draft"
		if latest.Locked {
			state = "sealed"
		}
		fmt.Printf("#%d at %s (%s)\n", latest.ID, latest.Timestamp.Format("2006-01-02 15:04"), state)
		fmt.Printf("Equity: %s   Cash: %s\n", formatMoney(latest.EquityValue), formatMoney(latest.Cash))
		fmt.Printf("Events: %d   Warnings: %d\n", len(latest.Events), len(latest.Warnings))
	}

	// Schedule
	fmt.Println("\n⏰ Schedule")
	fmt.Printf("%s %s %s (%d/%d/%d tiers, %.0f%% stop)\n",
		deps.Settings.ScheduleDay,
		deps.Settings.ScheduleTime,
		deps.Settings.ScheduleTimezone,
		deps.Settings.TakeProfitCount,
		deps.Settings.HoldCount,
		deps.Settings.BufferCount,
		deps.Settings.TrailingStopPct*100)

	// Strategy
	fmt.Println("\n📋 Strategy")
	fmt.Printf("%s v%s (hash %.12s)\n",
		deps.Strategy.Meta.StrategyID,
		deps.Strategy.Meta.Version,
		deps.ConfigHash)

	return nil
}
