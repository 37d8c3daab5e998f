package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/rotor/internal/contracts"
)

// PGSettings persists the typed runtime settings as a single row.
// ⭐ SSOT: 런타임 설정 영속화는 여기서만
//
// 자유형 key/value 테이블 대신 열거된 필드의 JSONB 한 건: 필드 추가는
// 코드(Settings 구조체)와 함께만 가능하고, 저장 전에 항상 검증.
type PGSettings struct {
	pool *pgxpool.Pool
}

// NewPGSettings creates a Postgres-backed settings store
func NewPGSettings(pool *pgxpool.Pool) *PGSettings {
	return &PGSettings{pool: pool}
}

// Load returns the stored settings, or the defaults when none are saved
func (r *PGSettings) Load(ctx context.Context) (*contracts.Settings, error) {
	var data []byte
	err := r.pool.QueryRow(ctx,
		"SELECT data FROM rotor.settings WHERE id = 1",
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return contracts.DefaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	var settings contracts.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := settings.Validate(); err != nil {
		// 저장된 레코드가 현재 화이트리스트와 불일치 (스키마 드리프트)
		return nil, fmt.Errorf("stored settings invalid: %w", err)
	}
	return &settings, nil
}

// Save validates and upserts the settings row
func (r *PGSettings) Save(ctx context.Context, settings *contracts.Settings) error {
	if err := settings.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("marshal settings: %w", err)
	}

	query := `
		INSERT INTO rotor.settings (id, data, updated_at)
		VALUES (1, $1, NOW())
		ON CONFLICT (id) DO UPDATE SET
			data = EXCLUDED.data,
			updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, data); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	return nil
}
