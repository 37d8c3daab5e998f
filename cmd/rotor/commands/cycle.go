package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rotor/internal/contracts"
)

// cycleCmd represents the cycle command
var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "리밸런스 사이클 1회 실행",
	Long: `리밸런스 사이클을 즉시 1회 실행합니다.

이 명령어는:
- 스크리너 랭킹 수집
- 트레일링 스탑 적용 후 바스켓 디핑
- 결과 스냅샷 저장 (이전 드래프트는 봉인)

사이클은 런 가드로 배타 실행됩니다. 다른 사이클이나
백테스트가 돌고 있으면 즉시 실패합니다.

Example:
  go run ./cmd/rotor cycle`,
	RunE: runCycle,
}

func init() {
	rootCmd.AddCommand(cycleCmd)
}

func runCycle(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rotor Rebalance Cycle ===")

	deps, err := initLiveDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	fmt.Printf("\n📋 Strategy: %d/%d/%d tiers, %.0f%% trailing stop\n",
		deps.Settings.TakeProfitCount,
		deps.Settings.HoldCount,
		deps.Settings.BufferCount,
		deps.Settings.TrailingStopPct*100)
	fmt.Println("🚀 Running cycle...")
	fmt.Println()

	start := time.Now()
	snapshot, err := deps.Engine.RunCycle(cmd.Context())
	if err != nil {
		var rankErr *contracts.RankingUnavailableError
		switch {
		case errors.Is(err, contracts.ErrRunInProgress):
			fmt.Println("⚠️  Another run is in progress, try again later")
		case errors.As(err, &rankErr):
			fmt.Println("❌ Ranking feed unavailable, previous snapshot kept")
		}
		return fmt.Errorf("cycle failed: %w", err)
	}

	printSnapshotSummary(snapshot)
	fmt.Printf("\n✅ Cycle completed in %.2fs (snapshot #%d)\n",
		time.Since(start).Seconds(), snapshot.ID)
	return nil
}

func printSnapshotSummary(snapshot *contracts.Snapshot) {
	fmt.Println("📊 Snapshot")
	fmt.Printf("Timestamp: %s\n", snapshot.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Printf("Equity:    %s\n", formatMoney(snapshot.EquityValue))
	fmt.Printf("Cash:      %s\n", formatMoney(snapshot.Cash))
	fmt.Println()

	for _, tier := range contracts.Tiers() {
		fmt.Printf("%-12s %v\n", string(tier), snapshot.Basket[tier])
	}

	if len(snapshot.Events) > 0 {
		fmt.Println("\n💹 Events")
		for _, event := range snapshot.Events {
			if event.Kind == contracts.ChangeHold {
				continue
			}
			fmt.Printf("  %-12s %-6s", string(event.Kind), event.Ticker)
			if event.Reason != "" {
				fmt.Printf(" (%s)", string(event.Reason))
			}
			if event.Price > 0 {
				fmt.Printf(" @ %.2f", event.Price)
			}
			fmt.Println()
		}
	}

	if len(snapshot.Warnings) > 0 {
		fmt.Println()
		for _, warning := range snapshot.Warnings {
			fmt.Printf("⚠️  %s\n", warning.Message)
		}
	}
}
