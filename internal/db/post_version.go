package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PostVersion 记录文章编辑前的历史快照。
//
// Rows are write-once: Seq orders them per post and UpdatedAt is the snapshot
// time, which gorm must never refresh.
type PostVersion struct {
	ID        string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	PostID    string                      `gorm:"type:varchar(36);not null;uniqueIndex:idx_post_versions_post_seq,priority:1" json:"post_id"`
	Seq       int                         `gorm:"not null;uniqueIndex:idx_post_versions_post_seq,priority:2" json:"seq"`
	Title     string                      `gorm:"not null" json:"title"`
	Content   string                      `gorm:"type:text" json:"content"`
	Images    datatypes.JSONSlice[string] `json:"images"`
	UpdatedAt time.Time                   `gorm:"autoUpdateTime:false" json:"updated_at"`
	UpdatedBy *string                     `gorm:"type:varchar(36)" json:"updated_by"`
	CreatedAt time.Time                   `json:"-"`
}

// TableName 指定自定义表名。
func (PostVersion) TableName() string {
	return "post_versions"
}

// BeforeCreate assigns a UUID when the caller did not.
func (v *PostVersion) BeforeCreate(*gorm.DB) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	return nil
}
