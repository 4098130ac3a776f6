package entity

// Notification represents a notification addressed to a single user,
// created by application-level triggers (new message, mention, system).
type Notification struct {
	Id        string  `json:"id" gorm:"column:id;primaryKey"`
	UserId    string  `json:"user_id" gorm:"column:user_id;index:idx_user_created,priority:1"`
	Category  string  `json:"category" gorm:"column:category"`
	Title     string  `json:"title" gorm:"column:title"`
	Body      string  `json:"body" gorm:"column:body"`
	Payload   *string `json:"payload" gorm:"column:payload;type:json"`
	Read      bool    `json:"read" gorm:"column:read"`
	CreatedAt int64   `json:"created_at" gorm:"column:created_at;index:idx_user_created,priority:2"`
}

// TableName returns the table name for Notification
func (Notification) TableName() string {
	return "notifications"
}
