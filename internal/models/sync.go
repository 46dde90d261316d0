package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// SyncType names an independent sync stream with its own high-water mark.
type SyncType string

const (
	SyncTypeOrders   SyncType = "orders"
	SyncTypeProducts SyncType = "products"
	SyncTypeStock    SyncType = "stock"
)

// SyncRunStatus represents the lifecycle of one sync pass.
type SyncRunStatus string

const (
	SyncRunRunning   SyncRunStatus = "RUNNING"
	SyncRunCompleted SyncRunStatus = "COMPLETED"
	SyncRunFailed    SyncRunStatus = "FAILED"
	SyncRunCancelled SyncRunStatus = "CANCELLED"
)

// TriggerType represents what started a sync pass.
type TriggerType string

const (
	TriggerManual    TriggerType = "MANUAL"
	TriggerScheduled TriggerType = "SCHEDULED"
)

// JSONB custom type for PostgreSQL JSONB (stored as TEXT under sqlite).
type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(map[string]interface{})
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, j)
}

// SyncState holds the high-water mark for one sync type. The timestamp
// advances to a pass's start time only when the pass completes without a
// fatal error; a failed pass records success=false and leaves it alone so
// the next run re-covers the same window.
type SyncState struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	SyncType          SyncType  `gorm:"type:varchar(50);not null;uniqueIndex:idx_sync_state_type" json:"syncType"`
	LastSyncTimestamp time.Time `json:"lastSyncTimestamp"`
	LastSyncSuccess   bool      `gorm:"default:true" json:"lastSyncSuccess"`
	LastError         string    `gorm:"type:text" json:"lastError,omitempty"`
	UpdatedAt         time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for SyncState
func (SyncState) TableName() string {
	return "sync_state"
}

// SyncCounters accumulates the per-pass observability summary.
type SyncCounters struct {
	OrdersFound      int `json:"ordersFound"`
	OrdersProcessed  int `json:"ordersProcessed"`
	LinesInserted    int `json:"linesInserted"`
	SkippedDuplicate int `json:"skippedDuplicate"`
	SkippedVoided    int `json:"skippedVoided"`
	Errored          int `json:"errored"`
}

// SyncRun records one end-to-end sync pass over a bounded window.
type SyncRun struct {
	ID       uuid.UUID     `gorm:"type:uuid;primaryKey" json:"id"`
	SyncType SyncType      `gorm:"type:varchar(50);not null;index:idx_sync_runs_type" json:"syncType"`
	Status   SyncRunStatus `gorm:"type:varchar(50);not null;default:'RUNNING';index:idx_sync_runs_status" json:"status"`

	TriggeredBy TriggerType `gorm:"type:varchar(50)" json:"triggeredBy,omitempty"`

	// Window covered by the pass: (WindowSince, WindowUntil].
	WindowSince *time.Time `json:"windowSince,omitempty"`
	WindowUntil *time.Time `json:"windowUntil,omitempty"`

	Counters JSONB `gorm:"type:jsonb" json:"counters,omitempty"`

	StartedAt    *time.Time `json:"startedAt,omitempty"`
	CompletedAt  *time.Time `json:"completedAt,omitempty"`
	ErrorMessage string     `gorm:"type:text" json:"errorMessage,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`

	Logs []SyncRunLog `gorm:"foreignKey:SyncRunID" json:"logs,omitempty"`
}

// TableName specifies the table name for SyncRun
func (SyncRun) TableName() string {
	return "sync_runs"
}

// counterValue reads a numeric JSONB entry. Values round-trip through
// JSON as float64 but are plain ints before persistence.
func counterValue(v interface{}) int {
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	}
	return 0
}

// GetCounters returns the counters as a structured object.
func (r *SyncRun) GetCounters() SyncCounters {
	c := SyncCounters{}
	if r.Counters == nil {
		return c
	}
	c.OrdersFound = counterValue(r.Counters["ordersFound"])
	c.OrdersProcessed = counterValue(r.Counters["ordersProcessed"])
	c.LinesInserted = counterValue(r.Counters["linesInserted"])
	c.SkippedDuplicate = counterValue(r.Counters["skippedDuplicate"])
	c.SkippedVoided = counterValue(r.Counters["skippedVoided"])
	c.Errored = counterValue(r.Counters["errored"])
	return c
}

// SetCounters sets the counters from a structured object.
func (r *SyncRun) SetCounters(c SyncCounters) {
	r.Counters = JSONB{
		"ordersFound":      c.OrdersFound,
		"ordersProcessed":  c.OrdersProcessed,
		"linesInserted":    c.LinesInserted,
		"skippedDuplicate": c.SkippedDuplicate,
		"skippedVoided":    c.SkippedVoided,
		"errored":          c.Errored,
	}
}

// LogLevel represents the severity level of a sync run log entry.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// SyncRunLog is a structured log entry attached to a sync run.
type SyncRunLog struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	SyncRunID uuid.UUID `gorm:"type:uuid;not null;index:idx_sync_run_logs_run" json:"syncRunId"`

	Level   LogLevel `gorm:"type:varchar(20);not null;default:'info'" json:"level"`
	Message string   `gorm:"type:text;not null" json:"message"`
	Data    JSONB    `gorm:"type:jsonb" json:"data,omitempty"`

	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
}

// TableName specifies the table name for SyncRunLog
func (SyncRunLog) TableName() string {
	return "sync_run_logs"
}

// SyncLock is an advisory lease guarding the single-writer invariant.
// Acquisition either inserts the row or steals an expired lease in one
// statement, so there is no check-then-create window.
type SyncLock struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(255);not null;uniqueIndex:idx_sync_locks_name" json:"name"`
	Holder    string    `gorm:"type:varchar(255);not null" json:"holder"`
	ExpiresAt time.Time `gorm:"not null" json:"expiresAt"`
	CreatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"createdAt"`
	UpdatedAt time.Time `gorm:"default:CURRENT_TIMESTAMP" json:"updatedAt"`
}

// TableName specifies the table name for SyncLock
func (SyncLock) TableName() string {
	return "sync_locks"
}
