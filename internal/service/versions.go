package service

import (
	"errors"
	"slices"
	"time"

	"github.com/inkpost/internal/db"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// snapshotOf captures the editable state of post before it changes.
func snapshotOf(post *db.Post, actorID string, now time.Time, seq int) db.PostVersion {
	version := db.PostVersion{
		PostID:    post.ID,
		Seq:       seq,
		Title:     post.Title,
		Content:   post.Content,
		Images:    datatypes.JSONSlice[string](slices.Clone(nonNil(post.Images))),
		UpdatedAt: now,
	}
	if actorID != "" {
		actor := actorID
		version.UpdatedBy = &actor
	}
	return version
}

// appendVersion is the only writer of post_versions.
func appendVersion(tx *gorm.DB, post *db.Post, actorID string, now time.Time) (*db.PostVersion, error) {
	var maxSeq int
	if err := tx.Model(&db.PostVersion{}).
		Where("post_id = ?", post.ID).
		Select("COALESCE(MAX(seq), 0)").
		Scan(&maxSeq).Error; err != nil {
		return nil, err
	}

	version := snapshotOf(post, actorID, now, maxSeq+1)
	if err := tx.Create(&version).Error; err != nil {
		return nil, err
	}
	return &version, nil
}

func findVersion(tx *gorm.DB, postID, versionID string) (*db.PostVersion, error) {
	var version db.PostVersion
	err := tx.Where("id = ? AND post_id = ?", versionID, postID).First(&version).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrVersionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &version, nil
}

func listVersions(tx *gorm.DB, postID string) ([]db.PostVersion, error) {
	versions := []db.PostVersion{}
	if err := tx.Where("post_id = ?", postID).Order("seq asc").Find(&versions).Error; err != nil {
		return nil, err
	}
	return versions, nil
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
