package contracts

import (
	"fmt"
	"regexp"
)

// Settings is the statically-typed runtime configuration persisted in the
// settings store. 자유형 key/value 저장 대신 열거된 필드만 허용,
// 로드 시 한 번만 검증.
type Settings struct {
	TakeProfitCount  int     `json:"take_profit_count"`
	HoldCount        int     `json:"hold_count"`
	BufferCount      int     `json:"buffer_count"`
	TrailingStopPct  float64 `json:"trailing_stop_pct"`
	InitialCapital   float64 `json:"initial_capital"`
	ScheduleDay      string  `json:"schedule_day"`      // mon..sun
	ScheduleTime     string  `json:"schedule_time"`     // HH:MM
	ScheduleTimezone string  `json:"schedule_timezone"` // IANA name
}

// DefaultSettings mirrors the baseline rotation strategy:
// 3 / 10 / 2 tiers, 15% trailing stop, $150k, Monday 19:00 Europe/Rome.
func DefaultSettings() *Settings {
	return &Settings{
		TakeProfitCount:  3,
		HoldCount:        10,
		BufferCount:      2,
		TrailingStopPct:  0.15,
		InitialCapital:   150000,
		ScheduleDay:      "mon",
		ScheduleTime:     "19:00",
		ScheduleTimezone: "Europe/Rome",
	}
}

// TotalSize returns the full basket size K1+K2+K3
func (s *Settings) TotalSize() int {
	return s.TakeProfitCount + s.HoldCount + s.BufferCount
}

var (
	validDays = map[string]bool{
		"mon": true, "tue": true, "wed": true, "thu": true,
		"fri": true, "sat": true, "sun": true,
	}
	validTimezones = map[string]bool{
		"Europe/Rome":         true,
		"America/New_York":    true,
		"America/Los_Angeles": true,
		"Asia/Tokyo":          true,
		"Asia/Seoul":          true,
		"UTC":                 true,
	}
	timePattern = regexp.MustCompile(`^\d{2}:\d{2}$`)
)

// Validate checks every field against its whitelist rule
func (s *Settings) Validate() error {
	if s.TakeProfitCount <= 0 || s.HoldCount <= 0 || s.BufferCount < 0 {
		return fmt.Errorf("tier sizes must be positive (take_profit=%d, hold=%d, buffer=%d)",
			s.TakeProfitCount, s.HoldCount, s.BufferCount)
	}
	if s.TotalSize() > 50 {
		return fmt.Errorf("basket size %d exceeds limit of 50", s.TotalSize())
	}
	if s.TrailingStopPct <= 0 || s.TrailingStopPct >= 1 {
		return fmt.Errorf("trailing_stop_pct must be in (0, 1), got %.4f", s.TrailingStopPct)
	}
	if s.InitialCapital <= 0 {
		return fmt.Errorf("initial_capital must be positive, got %.2f", s.InitialCapital)
	}
	if !validDays[s.ScheduleDay] {
		return fmt.Errorf("schedule_day %q not in mon..sun", s.ScheduleDay)
	}
	if !timePattern.MatchString(s.ScheduleTime) {
		return fmt.Errorf("schedule_time %q must be HH:MM", s.ScheduleTime)
	}
	if !validTimezones[s.ScheduleTimezone] {
		return fmt.Errorf("schedule_timezone %q not allowed", s.ScheduleTimezone)
	}
	return nil
}
