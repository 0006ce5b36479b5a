package models

import (
	"database/sql"
	"time"

	"gorm.io/gorm"
)

// Post represents a blog post. Lifecycle status is derived from PublishedAt
// and DeletedAt, never stored.
type Post struct {
	ID            int64          `gorm:"primaryKey;autoIncrement;column:id"`
	UserID        int64          `gorm:"not null;index;column:user_id"`
	CategoryID    int64          `gorm:"not null;index;column:category_id"`
	Title         string         `gorm:"type:varchar(255);not null;uniqueIndex:posts_title_unique;column:title"`
	Slug          string         `gorm:"type:varchar(255);not null;uniqueIndex:posts_slug_unique;column:slug"`
	Content       string         `gorm:"type:text;not null;column:content"`
	FeaturedImage sql.NullString `gorm:"type:varchar(255);column:featured_image"`
	PublishedAt   sql.NullTime   `gorm:"index;column:published_at"`
	CreatedAt     time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt     time.Time      `gorm:"not null;column:updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index;column:deleted_at"`

	// Relationships
	User     *User     `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Category *Category `gorm:"foreignKey:CategoryID;references:ID;constraint:OnDelete:RESTRICT"`
}

// TableName specifies the table name for Post
func (Post) TableName() string {
	return "posts"
}

// Comment is a reader response attached to a post
type Comment struct {
	ID        int64          `gorm:"primaryKey;autoIncrement;column:id"`
	PostID    int64          `gorm:"not null;index;column:post_id"`
	UserID    int64          `gorm:"not null;index;column:user_id"`
	Content   string         `gorm:"type:varchar(1000);not null;column:content"`
	CreatedAt time.Time      `gorm:"not null;column:created_at"`
	UpdatedAt time.Time      `gorm:"not null;column:updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index;column:deleted_at"`

	// Relationships
	Post *Post `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	User *User `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName specifies the table name for Comment
func (Comment) TableName() string {
	return "comments"
}

// Status is the publication state derived from a post's publish time
type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusPublished Status = "published"
)
