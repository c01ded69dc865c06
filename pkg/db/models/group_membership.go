package models

import "time"

// GroupMembership links an entity to a named group: a customer to a customer
// group or a product family to a category.
type GroupMembership struct {
	GroupCode  string    `gorm:"column:group_code;primaryKey"`
	EntityType string    `gorm:"column:entity_type;primaryKey"`
	EntityCode string    `gorm:"column:entity_code;primaryKey"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
}
