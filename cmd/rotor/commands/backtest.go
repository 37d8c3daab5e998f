package commands

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rotor/internal/backtest"
	"github.com/wonny/rotor/internal/contracts"
	"github.com/wonny/rotor/internal/store"
)

// backtestCmd represents the backtest command
var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "과거 데이터 백테스트",
	Long: `과거 랭킹/시세 테이블로 로테이션 전략을 시뮬레이션합니다.

백테스팅은 다음을 검증합니다:
- 전략 수익률 (TotalReturn, CAGR)
- 리스크 지표 (Sharpe, Volatility, MDD)
- 트레일링 스탑 발동 횟수
- 체크포인트별 봉인 스냅샷

모든 조회는 as-of 기준: 시뮬레이션 날짜 이후 타임스탬프가
섞여 들어오면 look-ahead 위반으로 전체 실행이 중단됩니다.

Example:
  go run ./cmd/rotor backtest run --from 2024-01-01 --to 2024-12-31
  go run ./cmd/rotor backtest run --from 2024-01-01 --capital 150000 --checkpoint 5`,
}

var (
	backtestRunCmd = &cobra.Command{
		Use:   "run",
		Short: "백테스트 실행",
		Long: `지정된 기간 동안 백테스트를 실행합니다.

Flags:
  --from        시작 날짜 (YYYY-MM-DD, 필수)
  --to          종료 날짜 (YYYY-MM-DD, 기본: 오늘)
  --capital     초기 자본 (기본: 전략 설정값)
  --checkpoint  리밸런스 주기 (거래일, 기본: 5 = 주간)

Example:
  go run ./cmd/rotor backtest run --from 2024-01-01 --to 2024-12-31
  go run ./cmd/rotor backtest run --from 2024-01-01 --checkpoint 10`,
		RunE: runBacktest,
	}

	// Flags
	backtestFrom       string
	backtestTo         string
	backtestCapital    float64
	backtestCheckpoint int
)

func init() {
	rootCmd.AddCommand(backtestCmd)
	backtestCmd.AddCommand(backtestRunCmd)

	// Flags
	backtestRunCmd.Flags().StringVar(&backtestFrom, "from", "", "시작 날짜 (YYYY-MM-DD, 필수)")
	backtestRunCmd.Flags().StringVar(&backtestTo, "to", "", "종료 날짜 (YYYY-MM-DD, 기본: 오늘)")
	backtestRunCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "초기 자본 (기본: 전략 설정값)")
	backtestRunCmd.Flags().IntVar(&backtestCheckpoint, "checkpoint", 5, "리밸런스 주기 (거래일)")

	backtestRunCmd.MarkFlagRequired("from")
}

func runBacktest(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rotor Backtest ===")

	// Parse dates
	startDate, err := time.Parse("2006-01-02", backtestFrom)
	if err != nil {
		return fmt.Errorf("invalid start date: %w", err)
	}

	var endDate time.Time
	if backtestTo != "" {
		endDate, err = time.Parse("2006-01-02", backtestTo)
		if err != nil {
			return fmt.Errorf("invalid end date: %w", err)
		}
	} else {
		endDate = time.Now()
	}

	deps, err := initLiveDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	capital := backtestCapital
	if capital == 0 {
		capital = deps.Settings.InitialCapital
	}

	fmt.Printf("\n📅 Period: %s ~ %s\n", startDate.Format("2006-01-02"), endDate.Format("2006-01-02"))
	fmt.Printf("💰 Initial Capital: %s\n", formatMoney(capital))
	fmt.Printf("🔄 Checkpoint: every %d trading days\n\n", backtestCheckpoint)

	// Historical point-in-time sources; snapshots stay in memory so the
	// live history is untouched.
	simulator := backtest.New(
		deps.Settings,
		deps.Strategy.Tiers,
		deps.ConfigHash,
		deps.Rankings,
		deps.Prices,
		store.NewMemorySnapshots(),
		deps.Log,
	)

	fmt.Println("🚀 Starting backtest...")
	fmt.Println()

	result, err := simulator.Run(cmd.Context(), backtest.Config{
		StartDate:      startDate,
		EndDate:        endDate,
		CheckpointDays: backtestCheckpoint,
		InitialCapital: capital,
	})
	if err != nil {
		var violation *contracts.LookAheadViolationError
		if errors.As(err, &violation) {
			fmt.Printf("❌ Look-ahead violation: %s data for %s timestamped %s past checkpoint %s\n",
				violation.Source,
				violation.Ticker,
				violation.DataAsOf.Format("2006-01-02"),
				violation.Checkpoint.Format("2006-01-02"))
		}
		return fmt.Errorf("backtest failed: %w", err)
	}

	printBacktestResult(result)
	return nil
}

func printBacktestResult(result *backtest.Result) {
	fmt.Println("\n✅ Backtest Completed")
	fmt.Println("=" + strings.Repeat("=", 60))
	fmt.Println()

	// Summary
	fmt.Println("📊 Summary")
	fmt.Printf("Period: %s ~ %s (%d trading days)\n",
		result.StartDate.Format("2006-01-02"),
		result.EndDate.Format("2006-01-02"),
		result.TradingDays)
	fmt.Printf("Checkpoints: %d sealed snapshots\n", result.Checkpoints)
	fmt.Printf("Duration: %.2f seconds\n", result.Duration.Seconds())
	fmt.Println()

	// Performance
	fmt.Println("💰 Performance")
	fmt.Printf("Initial Capital: %s\n", formatMoney(result.InitialCapital))
	fmt.Printf("Final Equity:    %s\n", formatMoney(result.FinalEquity))
	fmt.Printf("P&L:             %s (%+.2f%%)\n",
		formatMoney(result.FinalEquity-result.InitialCapital),
		result.TotalReturn*100)
	fmt.Println()

	fmt.Printf("Annual Return:   %+.2f%%\n", result.AnnualizedReturn*100)
	fmt.Printf("CAGR:            %+.2f%%\n", result.CAGR*100)
	fmt.Printf("Volatility:      %.2f%%\n", result.Volatility*100)
	fmt.Println()

	// Risk
	fmt.Println("📉 Risk Metrics")
	fmt.Printf("Sharpe Ratio:    %.2f", result.SharpeRatio)
	if result.SharpeRatio > 2.0 {
		fmt.Print(" 🌟 (Excellent)")
	} else if result.SharpeRatio > 1.0 {
		fmt.Print(" ✅ (Good)")
	} else {
		fmt.Print(" ⚠️  (Fair)")
	}
	fmt.Println()

	fmt.Printf("Max Drawdown:    %.2f%%", result.MaxDrawdown*100)
	if result.MaxDrawdown < 0.10 {
		fmt.Print(" 🌟 (Excellent)")
	} else if result.MaxDrawdown < 0.20 {
		fmt.Print(" ✅ (Good)")
	} else {
		fmt.Print(" ⚠️  (High)")
	}
	fmt.Println()

	fmt.Printf("Stop-Loss Exits: %d\n", result.StopLossExits)
	fmt.Println()
}
