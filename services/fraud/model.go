package fraud

import "time"

// ConnectionRecord is one observed (user, ip) pair. Rows are upserted by the
// session layer on every authenticated request; LastSeenAt bounds the lookback
// window during screening.
type ConnectionRecord struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	UserID     string    `gorm:"column:user_id;uniqueIndex:idx_connection_user_ip"`
	IP         string    `gorm:"column:ip;uniqueIndex:idx_connection_user_ip"`
	LastSeenAt time.Time `gorm:"column:last_seen_at"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (ConnectionRecord) TableName() string {
	return "connection_records"
}

// Verdict is the outcome of a shared-origin screen.
type Verdict struct {
	Fraud     bool
	Reason    string
	SharedIPs []string
}
