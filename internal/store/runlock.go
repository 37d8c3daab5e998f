package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rotor/internal/contracts"
)

// rotorCycleLockKey identifies the advisory lock shared by every rotor
// process against one database. 임의의 고정값.
const rotorCycleLockKey = 0x726f746f72 // "rotor"

// PGRunGuard serializes cycles across processes with a Postgres session
// advisory lock. 세션이 죽으면 락도 자동 해제됨.
// ⭐ SSOT: 프로세스 간 중복 실행 방지는 여기서만
type PGRunGuard struct {
	pool *pgxpool.Pool
}

// NewPGRunGuard creates an advisory-lock run guard
func NewPGRunGuard(pool *pgxpool.Pool) *PGRunGuard {
	return &PGRunGuard{pool: pool}
}

// Acquire tries the advisory lock without blocking. The returned release
// func must run on every exit path; it unlocks and returns the pinned
// connection to the pool.
func (g *PGRunGuard) Acquire(ctx context.Context) (func(), error) {
	// 락은 세션 단위: release까지 커넥션을 점유
	conn, err := g.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection for run lock: %w", err)
	}

	var locked bool
	err = conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", rotorCycleLockKey).Scan(&locked)
	if err != nil {
		conn.Release()
		return nil, fmt.Errorf("try advisory lock: %w", err)
	}
	if !locked {
		conn.Release()
		return nil, contracts.ErrRunInProgress
	}

	var once sync.Once
	release := func() {
		once.Do(func() {
			// release 시점의 ctx는 이미 취소됐을 수 있음
			_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", rotorCycleLockKey)
			conn.Release()
		})
	}
	return release, nil
}
