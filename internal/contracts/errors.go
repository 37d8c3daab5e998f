package contracts

import (
	"errors"
	"fmt"
	"time"
)

// RankingUnavailableError signals an upstream ranking feed failure.
// 사이클 치명적: 이전 스냅샷이 그대로 유지됨.
type RankingUnavailableError struct {
	AsOf time.Time
	Err  error
}

func (e *RankingUnavailableError) Error() string {
	return fmt.Sprintf("ranking unavailable as of %s: %v", e.AsOf.Format("2006-01-02"), e.Err)
}

func (e *RankingUnavailableError) Unwrap() error {
	return e.Err
}

// InsufficientUniverseError signals that the ranking feed returned fewer
// candidates than the configured basket size. Surfaced, never padded.
type InsufficientUniverseError struct {
	Got  int
	Want int
}

func (e *InsufficientUniverseError) Error() string {
	return fmt.Sprintf("insufficient universe: got %d tickers, need %d", e.Got, e.Want)
}

// LookAheadViolationError signals that a backtest data source supplied
// data timestamped after the checkpoint date. 백테스트 전체 중단.
type LookAheadViolationError struct {
	Checkpoint time.Time
	DataAsOf   time.Time
	Source     string
	Ticker     string
}

func (e *LookAheadViolationError) Error() string {
	msg := fmt.Sprintf("look-ahead violation: %s data as of %s exceeds checkpoint %s",
		e.Source,
		e.DataAsOf.Format("2006-01-02 15:04:05"),
		e.Checkpoint.Format("2006-01-02"),
	)
	if e.Ticker != "" {
		msg += " (ticker " + e.Ticker + ")"
	}
	return msg
}

// ErrRunInProgress is returned when the exclusive run guard is already held
var ErrRunInProgress = errors.New("another rebalance run is already in progress")
