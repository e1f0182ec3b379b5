package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/slug"
	"gorm.io/gorm"
)

// CategoryService is the category directory posts validate against.
type CategoryService struct {
	db *gorm.DB
}

// NewCategoryService creates a CategoryService instance.
func NewCategoryService(gdb *gorm.DB) *CategoryService {
	return &CategoryService{db: gdb}
}

// List returns all categories ordered by name.
func (s *CategoryService) List(ctx context.Context) ([]db.Category, error) {
	var categories []db.Category
	if err := s.db.WithContext(ctx).Order("name asc").Order("id asc").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

// Get 根据 ID 查找分类
func (s *CategoryService) Get(ctx context.Context, id string) (*db.Category, error) {
	canonical, err := canonicalID(id)
	if err != nil {
		return nil, &CategoryRefError{ID: id, Err: err}
	}

	var category db.Category
	if err := s.db.WithContext(ctx).Where("id = ?", canonical).First(&category).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}
	return &category, nil
}

// Exists reports whether a category with id is stored. Malformed ids do not exist.
func (s *CategoryService) Exists(ctx context.Context, id string) (bool, error) {
	canonical, err := canonicalID(id)
	if err != nil {
		return false, nil
	}
	var count int64
	if err := s.db.WithContext(ctx).Model(&db.Category{}).Where("id = ?", canonical).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Validate checks ids in order and stops at the first malformed or unknown one.
func (s *CategoryService) Validate(ctx context.Context, ids []string) error {
	_, err := s.resolve(s.db.WithContext(ctx), ids)
	return err
}

// resolve validates ids and loads the categories, dropping duplicates.
func (s *CategoryService) resolve(tx *gorm.DB, ids []string) ([]db.Category, error) {
	categories := make([]db.Category, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, raw := range ids {
		id, err := canonicalID(raw)
		if err != nil {
			return nil, &CategoryRefError{ID: raw, Err: err}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		var category db.Category
		if err := tx.Where("id = ?", id).First(&category).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, &CategoryRefError{ID: raw, Err: ErrCategoryNotFound}
			}
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, nil
}

// Create inserts a category. Names that slugify to an existing slug conflict.
func (s *CategoryService) Create(ctx context.Context, name string) (*db.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCategoryNameRequired
	}

	category := db.Category{Name: name, Slug: slug.Make(name)}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCategorySlugFree(tx, category.Slug, ""); err != nil {
			return err
		}
		return tx.Create(&category).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrCategoryExists
	}
	if err != nil {
		return nil, err
	}
	return &category, nil
}

// Update renames a category and regenerates its slug.
func (s *CategoryService) Update(ctx context.Context, id, name string) (*db.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrCategoryNameRequired
	}

	category, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	category.Name = name
	category.Slug = slug.Make(name)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureCategorySlugFree(tx, category.Slug, category.ID); err != nil {
			return err
		}
		return tx.Save(category).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrCategoryExists
	}
	if err != nil {
		return nil, err
	}
	return category, nil
}

// Delete removes the category and its post links. Posts themselves are untouched.
func (s *CategoryService) Delete(ctx context.Context, id string) error {
	category, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(category).Association("Posts").Clear(); err != nil {
			return err
		}
		return tx.Delete(category).Error
	})
}

func ensureCategorySlugFree(tx *gorm.DB, categorySlug, excludeID string) error {
	query := tx.Model(&db.Category{}).Where("slug = ?", categorySlug)
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return ErrCategoryExists
	}
	return nil
}

func canonicalID(raw string) (string, error) {
	parsed, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", ErrMalformedReference
	}
	return parsed.String(), nil
}
