package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rotor/internal/api"
	"github.com/wonny/rotor/internal/api/handlers"
	"github.com/wonny/rotor/internal/backtest"
	"github.com/wonny/rotor/internal/store"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "대시보드 API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- 대시보드 HTTP API 서버 시작
- 포트폴리오/히스토리/이벤트 조회 엔드포인트 제공
- 리밸런스/백테스트 트리거 제공
- WebSocket으로 사이클 봉인 이벤트 푸시

Endpoints:
  GET  /health                 - Health check
  GET  /api/portfolio          - 현재 바스켓 조회
  GET  /api/portfolio/history  - 스냅샷 히스토리 (1M|3M|6M|YTD|ALL)
  GET  /api/portfolio/events   - 최근 사이클 이벤트 로그
  GET  /api/portfolio/status   - 마지막 에러/스냅샷 상태
  POST /api/rebalance/run      - 리밸런스 사이클 트리거
  GET  /api/settings           - 설정 조회
  PUT  /api/settings           - 설정 갱신
  POST /api/backtest/run       - 백테스트 실행
  GET  /ws                     - WebSocket 구독

Example:
  go run ./cmd/rotor api
  go run ./cmd/rotor api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT 환경변수)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rotor API Server ===")

	// 1. Wire the live rebalance engine
	deps, err := initLiveDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	// Override port if flag is set
	if apiPort != "" {
		deps.Cfg.Port = apiPort
	}

	log := deps.Log
	log.WithFields(map[string]interface{}{
		"port": deps.Cfg.Port,
		"env":  deps.Cfg.Env,
	}).Info("Initializing API server")

	// 2. Wire the backtest simulator over the historical tables.
	// 백테스트 스냅샷은 라이브 히스토리와 분리 (인메모리).
	simulator := backtest.New(
		deps.Settings,
		deps.Strategy.Tiers,
		deps.ConfigHash,
		deps.Rankings,
		deps.Prices,
		store.NewMemorySnapshots(),
		log,
	)

	// 3. Create handlers
	hub := handlers.NewHub(log)
	portfolioHandler := handlers.NewPortfolioHandler(deps.Engine, deps.Snapshots, hub, log)
	settingsHandler := handlers.NewSettingsHandler(deps.SettingsDB, log)
	backtestHandler := handlers.NewBacktestHandler(simulator, deps.Guard, log)

	// 4. Create router
	router := api.NewRouter(portfolioHandler, settingsHandler, backtestHandler, hub, log)

	// 5. Create server
	server := api.New(deps.Cfg, log, router)

	// 6. Start server with graceful shutdown
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", deps.Cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET  /health")
	fmt.Println("  GET  /api/portfolio")
	fmt.Println("  GET  /api/portfolio/history")
	fmt.Println("  GET  /api/portfolio/events")
	fmt.Println("  GET  /api/portfolio/status")
	fmt.Println("  POST /api/rebalance/run")
	fmt.Println("  GET  /api/settings")
	fmt.Println("  PUT  /api/settings")
	fmt.Println("  POST /api/backtest/run")
	fmt.Println("  GET  /ws")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
