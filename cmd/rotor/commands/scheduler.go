package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/rotor/internal/scheduler"
	"github.com/wonny/rotor/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `주간 리밸런스 스케줄러를 시작하거나 작업을 관리합니다.

이 명령어는:
- 스케줄러 데몬 시작
- 등록된 작업 즉시 실행
- 작업 실행 이력 조회

등록되는 작업:
- rebalance_cycle: 설정된 요일/시각 (기본: 매주 월요일 19:00 Europe/Rome)
- data_capture:    평일 22:30 (랭킹/종가 히스토리 적재)

Subcommands:
  start   - 스케줄러 시작
  run     - 작업 즉시 실행

Example:
  go run ./cmd/rotor scheduler start
  go run ./cmd/rotor scheduler run rebalance_cycle`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 리밸런스 작업을 스케줄합니다.

cron 스펙은 설정 저장소의 schedule_day / schedule_time /
schedule_timezone에서 빌드됩니다. 런 가드가 잡혀 있으면
해당 회차는 건너뜁니다 (재시도 없음).

스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "등록된 작업 즉시 실행",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func buildScheduler(deps *liveDeps) (*scheduler.Scheduler, error) {
	loc, err := time.LoadLocation(deps.Settings.ScheduleTimezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %s: %w", deps.Settings.ScheduleTimezone, err)
	}

	sched := scheduler.New(deps.Log, loc)

	rebalanceJob := jobs.NewRebalanceJob(deps.Engine, deps.Settings, deps.Log)
	if err := sched.AddJob(rebalanceJob); err != nil {
		return nil, fmt.Errorf("add rebalance job: %w", err)
	}

	// 백테스트용 히스토리는 매 거래일 장 마감 후 적재
	captureJob := jobs.NewCaptureJob(deps.Finviz, deps.Yahoo, deps.Rankings, deps.Prices, deps.Log)
	if err := sched.AddJob(captureJob); err != nil {
		return nil, fmt.Errorf("add capture job: %w", err)
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rotor Scheduler ===")

	deps, err := initLiveDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	sched, err := buildScheduler(deps)
	if err != nil {
		return err
	}

	sched.Start()

	fmt.Printf("\n✅ Scheduler started (%s %s %s)\n",
		deps.Settings.ScheduleDay,
		deps.Settings.ScheduleTime,
		deps.Settings.ScheduleTimezone)
	fmt.Println("\nRegistered jobs:")
	for _, name := range sched.Jobs() {
		fmt.Printf("  • %s\n", name)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nStopping scheduler...")
	sched.Stop()
	fmt.Println("✅ Scheduler stopped")
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Rotor Scheduler: manual run ===")

	jobName := "rebalance_cycle"
	if len(args) == 1 {
		jobName = args[0]
	}

	deps, err := initLiveDeps(cmd.Context())
	if err != nil {
		return err
	}
	defer deps.Close()

	sched, err := buildScheduler(deps)
	if err != nil {
		return err
	}

	fmt.Printf("\n🚀 Running %s...\n", jobName)
	if err := sched.RunJob(jobName); err != nil {
		return fmt.Errorf("run job: %w", err)
	}

	// RunJob은 비동기: 이력에 결과가 찍힐 때까지 대기
	deadline := time.After(10 * time.Minute)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			return fmt.Errorf("timed out waiting for %s", jobName)
		case <-ticker.C:
			history, err := sched.JobHistoryFor(jobName)
			if err != nil {
				return err
			}
			latest := history.Latest()
			if latest == nil {
				continue
			}
			switch {
			case latest.Skipped:
				fmt.Println("⚠️  Job skipped, another run in progress")
			case latest.Success:
				fmt.Printf("✅ Job completed in %.2fs\n", latest.Duration.Seconds())
			default:
				fmt.Printf("❌ Job failed: %s\n", latest.Error)
			}
			return nil
		}
	}
}
