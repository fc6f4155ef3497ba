package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type deliveryEventRecord struct {
	bun.BaseModel `bun:"table:federation_delivery_events,alias:fde"`

	ID           string     `bun:"id,pk"`
	StatusID     string     `bun:"status_id,notnull"`
	UserID       string     `bun:"user_id,notnull"`
	ActivityType string     `bun:"activity_type,notnull"`
	Result       string     `bun:"result,notnull"`
	ErrorMessage string     `bun:"error_message"`
	Attempts     int        `bun:"attempts,notnull"`
	StartAt      *time.Time `bun:"start_at,nullzero"`
	EndAt        *time.Time `bun:"end_at,nullzero"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type deliveryItemRecord struct {
	bun.BaseModel `bun:"table:federation_delivery_items,alias:fdi"`

	ID           string     `bun:"id,pk"`
	EventID      string     `bun:"event_id,notnull"`
	URL          string     `bun:"url,notnull"`
	IsSuccess    *bool      `bun:"is_success"`
	ErrorMessage string     `bun:"error_message"`
	StartAt      *time.Time `bun:"start_at,nullzero"`
	EndAt        *time.Time `bun:"end_at,nullzero"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
