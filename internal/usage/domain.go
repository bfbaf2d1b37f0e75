package usage

import (
	"time"

	"github.com/google/uuid"
)

// Mode is how a completion was served.
type Mode string

const (
	ModeComplete Mode = "complete"
	ModeStream   Mode = "stream"
)

// Record is one ledger row per chat call. It never holds message content.
type Record struct {
	ID          uuid.UUID     `json:"id" db:"id"`
	RequestID   string        `json:"request_id" db:"request_id"`
	Mode        Mode          `json:"mode" db:"mode"`
	Backend     string        `json:"backend" db:"backend"`
	Model       string        `json:"model" db:"model"`
	Status      string        `json:"status" db:"status"`
	Fragments   int           `json:"fragments" db:"fragments"`
	OutputBytes int           `json:"output_bytes" db:"output_bytes"`
	Duration    time.Duration `json:"duration" db:"duration_ms"`
	Error       string        `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time     `json:"created_at" db:"created_at"`
}

// Summary aggregates records sharing a mode and status.
type Summary struct {
	Mode          Mode    `json:"mode"`
	Status        string  `json:"status"`
	Count         int     `json:"count"`
	OutputBytes   int64   `json:"output_bytes"`
	AvgDurationMs float64 `json:"avg_duration_ms"`
}
