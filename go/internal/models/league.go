package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type LeagueStatus string

const (
	LeagueStatusPending   LeagueStatus = "PENDING"
	LeagueStatusActive    LeagueStatus = "ACTIVE"
	LeagueStatusCompleted LeagueStatus = "COMPLETED"
)

// RosterLimits maps a player role to the maximum number of roster slots for it.
type RosterLimits map[Role]int

// Limit returns the slot limit for a role, 0 when the role is not configured.
func (l RosterLimits) Limit(role Role) int {
	return l[role]
}

// Total returns the sum of all per-role limits.
func (l RosterLimits) Total() int {
	total := 0
	for _, n := range l {
		total += n
	}
	return total
}

// Value implements driver.Valuer (stored as JSONB).
func (l RosterLimits) Value() (driver.Value, error) {
	if l == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *RosterLimits) Scan(src any) error {
	data, err := jsonBytes(src)
	if err != nil {
		return fmt.Errorf("scan roster limits: %w", err)
	}
	if len(data) == 0 {
		*l = RosterLimits{}
		return nil
	}
	return json.Unmarshal(data, l)
}

// League represents a fantasy league running market sessions.
type League struct {
	ID            uuid.UUID    `json:"id"`
	Name          string       `json:"name"`
	Status        LeagueStatus `json:"status"`
	InitialBudget int          `json:"initial_budget"`
	RosterLimits  RosterLimits `json:"roster_limits"`
	CreatedAt     time.Time    `json:"created_at"`
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported type %T", src)
	}
}
