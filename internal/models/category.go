package models

import (
	"database/sql"
	"time"
)

// Category groups posts; every post belongs to exactly one category
type Category struct {
	ID          int64          `gorm:"primaryKey;autoIncrement;column:id"`
	Name        string         `gorm:"type:varchar(255);not null;uniqueIndex:categories_name_unique;column:name"`
	Slug        string         `gorm:"type:varchar(255);not null;uniqueIndex:categories_slug_unique;column:slug"`
	Description sql.NullString `gorm:"type:varchar(1000);column:description"`
	CreatedAt   time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt   time.Time      `gorm:"not null;column:updated_at"`

	// PostsCount is filled by listing queries and never written
	PostsCount int64 `gorm:"->;-:migration;column:posts_count"`

	Posts []Post `gorm:"foreignKey:CategoryID;references:ID"`
}

// TableName specifies the table name for Category
func (Category) TableName() string {
	return "categories"
}
