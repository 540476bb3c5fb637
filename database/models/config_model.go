package models

import "time"

// Config is a plain key/value store used for operational bookkeeping like
// the daemon's last-sync timestamps and the leader election lease.
type Config struct {
	Key       string    `json:"key" gorm:"primaryKey;type:text;"`
	Val       string    `json:"val" gorm:"type:text;"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (m Config) TableName() string {
	return "config"
}
