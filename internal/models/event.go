package models

import (
	"time"

	"github.com/uptrace/bun"
)

type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	EventName   string    `bun:"event_name,notnull" json:"eventName"`
	Description string    `bun:"description" json:"description"`
	StartDate   time.Time `bun:"start_date,notnull" json:"startDate"`
	EndDate     time.Time `bun:"end_date,notnull" json:"endDate"`
}
