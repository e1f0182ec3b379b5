package db

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Post 定义了文章模型
//
// IsDeleted/DeletedAt implement soft deletion by hand; DeletedAt is a plain
// *time.Time so gorm does not apply its own soft-delete scope and slug
// uniqueness keeps covering hidden rows.
type Post struct {
	ID         string                      `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Slug       string                      `gorm:"uniqueIndex:idx_posts_slug;not null" json:"slug"`
	Title      string                      `gorm:"not null" json:"title"`
	Content    string                      `gorm:"type:text;not null" json:"content"`
	Excerpt    string                      `gorm:"size:300" json:"excerpt"`
	AuthorID   string                      `gorm:"type:varchar(36);index;not null" json:"author_id"`
	Author     User                        `gorm:"foreignKey:AuthorID" json:"author"`
	Categories []Category                  `gorm:"many2many:post_categories;" json:"categories"`
	Tags       datatypes.JSONSlice[string] `json:"tags"`
	Images     datatypes.JSONSlice[string] `json:"images"`
	Versions   []PostVersion               `gorm:"foreignKey:PostID" json:"versions,omitempty"`
	IsDeleted  bool                        `gorm:"index;not null;default:false" json:"is_deleted"`
	DeletedAt  *time.Time                  `json:"deleted_at"`
	ArchivedAt *time.Time                  `json:"archived_at"`
	CreatedAt  time.Time                   `gorm:"index" json:"created_at"`
	UpdatedAt  time.Time                   `json:"updated_at"`
}

// BeforeCreate assigns a UUID when the caller did not.
func (p *Post) BeforeCreate(*gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// IsArchived reports whether the post has been archived at least once.
func (p *Post) IsArchived() bool {
	return p.ArchivedAt != nil
}

// CategoryIDs returns the ids of the attached categories in stored order.
func (p *Post) CategoryIDs() []string {
	ids := make([]string, 0, len(p.Categories))
	for _, category := range p.Categories {
		ids = append(ids, category.ID)
	}
	return ids
}
