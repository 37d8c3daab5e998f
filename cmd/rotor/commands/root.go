package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rotor",
	Short: "Rotor - 규칙 기반 포트폴리오 로테이션 시스템",
	Long: `Rotor Unified CLI

스크리너 랭킹 기반 주간 로테이션 시스템.
랭킹 수집 → 바스켓 디핑 → 트레일링 스탑 → 스냅샷 봉인.

Usage:
  go run ./cmd/rotor [command]

Examples:
  go run ./cmd/rotor api
  go run ./cmd/rotor cycle
  go run ./cmd/rotor backtest run --from 2024-01-01
  go run ./cmd/rotor scheduler start
  go run ./cmd/rotor status`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
