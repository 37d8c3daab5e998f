package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rotor/internal/contracts"
)

// PGSnapshots persists snapshots in Postgres.
// ⭐ SSOT: 스냅샷 영속화는 여기서만
//
// Append-only: the only write paths are INSERT (Save) and the one-way
// locked flip (Lock). 잠긴 행을 고치는 UPDATE/DELETE 경로는 존재하지
// 않음 — 과거는 불변.
type PGSnapshots struct {
	pool *pgxpool.Pool
}

// NewPGSnapshots creates a Postgres-backed snapshot store
func NewPGSnapshots(pool *pgxpool.Pool) *PGSnapshots {
	return &PGSnapshots{pool: pool}
}

// Save inserts the snapshot as a new row and returns its id
func (r *PGSnapshots) Save(ctx context.Context, snapshot *contracts.Snapshot) (int64, error) {
	basketJSON, err := json.Marshal(snapshot.Basket)
	if err != nil {
		return 0, fmt.Errorf("marshal basket: %w", err)
	}
	positionsJSON, err := json.Marshal(snapshot.Positions)
	if err != nil {
		return 0, fmt.Errorf("marshal positions: %w", err)
	}
	eventsJSON, err := json.Marshal(snapshot.Events)
	if err != nil {
		return 0, fmt.Errorf("marshal events: %w", err)
	}
	warningsJSON, err := json.Marshal(snapshot.Warnings)
	if err != nil {
		return 0, fmt.Errorf("marshal warnings: %w", err)
	}

	query := `
		INSERT INTO rotor.snapshots (
			ts, basket, positions, equity_value, cash,
			events, warnings, notes, config_hash, locked
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	err = r.pool.QueryRow(ctx, query,
		snapshot.Timestamp, basketJSON, positionsJSON,
		snapshot.EquityValue, snapshot.Cash,
		eventsJSON, warningsJSON,
		snapshot.Notes, snapshot.ConfigHash, snapshot.Locked,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert snapshot: %w", err)
	}

	return id, nil
}

// Latest returns the most recent snapshot, nil when the table is empty
func (r *PGSnapshots) Latest(ctx context.Context) (*contracts.Snapshot, error) {
	snapshots, err := r.query(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(snapshots) == 0 {
		return nil, nil
	}
	return snapshots[0], nil
}

// History returns up to limit snapshots, newest first
func (r *PGSnapshots) History(ctx context.Context, limit int) ([]*contracts.Snapshot, error) {
	return r.query(ctx, limit)
}

// Lock seals a draft snapshot in place. Sealing an already-locked
// snapshot is a no-op (the flip is one-way).
func (r *PGSnapshots) Lock(ctx context.Context, id int64) error {
	result, err := r.pool.Exec(ctx,
		"UPDATE rotor.snapshots SET locked = TRUE WHERE id = $1",
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to lock snapshot: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("snapshot %d not found", id)
	}
	return nil
}

func (r *PGSnapshots) query(ctx context.Context, limit int) ([]*contracts.Snapshot, error) {
	query := `
		SELECT id, ts, basket, positions, equity_value, cash,
		       events, warnings, notes, config_hash, locked
		FROM rotor.snapshots
		ORDER BY id DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]*contracts.Snapshot, 0, limit)
	for rows.Next() {
		snapshot, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, snapshot)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}
	return snapshots, nil
}

func scanSnapshot(row pgx.Row) (*contracts.Snapshot, error) {
	var (
		snapshot      contracts.Snapshot
		ts            time.Time
		basketJSON    []byte
		positionsJSON []byte
		eventsJSON    []byte
		warningsJSON  []byte
	)

	err := row.Scan(
		&snapshot.ID, &ts, &basketJSON, &positionsJSON,
		&snapshot.EquityValue, &snapshot.Cash,
		&eventsJSON, &warningsJSON,
		&snapshot.Notes, &snapshot.ConfigHash, &snapshot.Locked,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan snapshot: %w", err)
	}

	snapshot.Timestamp = ts
	if err := json.Unmarshal(basketJSON, &snapshot.Basket); err != nil {
		return nil, fmt.Errorf("unmarshal basket: %w", err)
	}
	if err := json.Unmarshal(positionsJSON, &snapshot.Positions); err != nil {
		return nil, fmt.Errorf("unmarshal positions: %w", err)
	}
	if err := json.Unmarshal(eventsJSON, &snapshot.Events); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &snapshot.Warnings); err != nil {
			return nil, fmt.Errorf("unmarshal warnings: %w", err)
		}
	}

	return &snapshot, nil
}
