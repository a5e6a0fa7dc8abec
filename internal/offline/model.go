package offline

import (
	"time"

	"gorm.io/datatypes"
)

// Fixed keys of the local_state table.
const (
	CacheKey = "voicemail_cache"
	QueueKey = "offline_action_queue"
)

type LocalState struct {
	Key       string         `gorm:"column:key;type:text;primaryKey;not null"`
	Value     datatypes.JSON `gorm:"column:value;type:json;not null"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:datetime;autoUpdateTime;not null"`
}

func (LocalState) TableName() string {
	return "local_state"
}
