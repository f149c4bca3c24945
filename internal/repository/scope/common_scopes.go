package scope

import "gorm.io/gorm"

// NewestFirst orders rows by creation time, most recent first.
func NewestFirst(db *gorm.DB) *gorm.DB {
	return db.Order("created_at DESC")
}
