package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/events"
	"github.com/inkpost/internal/lock"
	"github.com/inkpost/internal/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	minTitleLength   = 3
	maxExcerptLength = 300

	defaultPerPage = 10
	maxPerPage     = 100

	// maxWriteAttempts bounds retries after a unique index rejected a write.
	maxWriteAttempts = 3
)

// PostService owns the post lifecycle: create, edit, soft delete, restore,
// archive and rollback, plus the read side used by the API.
type PostService struct {
	db         *gorm.DB
	categories *CategoryService
	locker     lock.Locker
	publisher  events.Publisher
	now        func() time.Time
}

// PostOption customizes a PostService.
type PostOption func(*PostService)

// WithLocker replaces the in-process slug lock.
func WithLocker(l lock.Locker) PostOption {
	return func(s *PostService) {
		if l != nil {
			s.locker = l
		}
	}
}

// WithPublisher sets where lifecycle events go.
func WithPublisher(p events.Publisher) PostOption {
	return func(s *PostService) {
		if p != nil {
			s.publisher = p
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) PostOption {
	return func(s *PostService) {
		if now != nil {
			s.now = now
		}
	}
}

// CreatePostInput holds the fields of a new post.
type CreatePostInput struct {
	Title       string
	Content     string
	Excerpt     string
	CategoryIDs []string
	Tags        []string
	Images      []string
	AuthorID    string
}

// EditPostInput is a partial update. A nil field was not supplied.
// Blank title, content or excerpt also leave the stored value alone.
type EditPostInput struct {
	Title       *string
	Content     *string
	Excerpt     *string
	CategoryIDs *[]string
	Tags        *[]string
	// Images are appended to the existing list.
	Images  []string
	ActorID string
}

// PostFilter describes filters for listing posts.
type PostFilter struct {
	IncludeDeleted bool
	CategoryID     string
	Tag            string
	AuthorID       string
	Page           int
	PerPage        int
}

// PostListResult aggregates paginated list data.
type PostListResult struct {
	Posts      []db.Post
	Total      int64
	TotalPages int
	Page       int
	PerPage    int
}

// NewPostService creates a PostService instance. A nil categories falls back
// to a CategoryService over the same database.
func NewPostService(gdb *gorm.DB, categories *CategoryService, opts ...PostOption) *PostService {
	s := &PostService{
		db:         gdb,
		categories: categories,
		locker:     lock.NewLocal(),
		publisher:  events.LogPublisher{},
		now:        time.Now,
	}
	if s.categories == nil {
		s.categories = NewCategoryService(gdb)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create validates input and stores a post with an empty version history.
func (s *PostService) Create(ctx context.Context, input CreatePostInput) (*db.Post, error) {
	authorID := strings.TrimSpace(input.AuthorID)
	if authorID == "" {
		return nil, ErrUnauthorized
	}

	title, err := normalizeTitle(input.Title)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, ErrContentRequired
	}
	excerpt, err := normalizeExcerpt(input.Excerpt)
	if err != nil {
		return nil, err
	}
	categories, err := s.categories.resolve(s.db.WithContext(ctx), input.CategoryIDs)
	if err != nil {
		return nil, err
	}

	now := s.now()
	post := &db.Post{
		Title:     title,
		Content:   input.Content,
		Excerpt:   excerpt,
		AuthorID:  authorID,
		Tags:      normalizeTags(input.Tags),
		Images:    appendImages(nil, input.Images),
		CreatedAt: now,
	}

	base := slug.Make(title)
	err = s.writeWithSlug(ctx, base, func(tx *gorm.DB) error {
		next, err := nextSlug(tx, base, "")
		if err != nil {
			return err
		}
		post.Slug = next
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		if len(categories) == 0 {
			return nil
		}
		return replaceCategories(tx, post, categories)
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.PostCreated, PostID: post.ID, Slug: post.Slug, ActorID: authorID})
	return s.load(ctx, post.ID)
}

// Edit snapshots the current state into the version log and applies input.
// Every check runs before the snapshot, so a rejected edit leaves no trace.
func (s *PostService) Edit(ctx context.Context, postID string, input EditPostInput) (*db.Post, error) {
	var (
		title      string
		retitle    bool
		content    *string
		excerpt    *string
		categories []db.Category
		tags       datatypes.JSONSlice[string]
	)

	if input.Title != nil && strings.TrimSpace(*input.Title) != "" {
		normalized, err := normalizeTitle(*input.Title)
		if err != nil {
			return nil, err
		}
		title, retitle = normalized, true
	}
	if input.Content != nil && strings.TrimSpace(*input.Content) != "" {
		content = input.Content
	}
	if input.Excerpt != nil && strings.TrimSpace(*input.Excerpt) != "" {
		normalized, err := normalizeExcerpt(*input.Excerpt)
		if err != nil {
			return nil, err
		}
		excerpt = &normalized
	}
	if input.CategoryIDs != nil {
		resolved, err := s.categories.resolve(s.db.WithContext(ctx), *input.CategoryIDs)
		if err != nil {
			return nil, err
		}
		categories = resolved
	}
	if input.Tags != nil {
		tags = normalizeTags(*input.Tags)
	}

	actorID := strings.TrimSpace(input.ActorID)
	var (
		post    *db.Post
		version *db.PostVersion
	)
	write := func(tx *gorm.DB) error {
		current, err := findPost(tx, postID, false)
		if err != nil {
			return err
		}

		version, err = appendVersion(tx, current, actorID, s.now())
		if err != nil {
			return err
		}

		if retitle && title != current.Title {
			next, err := nextSlug(tx, slug.Make(title), current.ID)
			if err != nil {
				return err
			}
			current.Title = title
			current.Slug = next
		}
		if content != nil {
			current.Content = *content
		}
		if excerpt != nil {
			current.Excerpt = *excerpt
		}
		if input.Tags != nil {
			current.Tags = tags
		}
		current.Tags = datatypes.JSONSlice[string](nonNil(current.Tags))
		current.Images = appendImages(current.Images, input.Images)

		if err := tx.Omit(clause.Associations).Save(current).Error; err != nil {
			return err
		}
		if input.CategoryIDs != nil {
			if err := replaceCategories(tx, current, categories); err != nil {
				return err
			}
		}
		post = current
		return nil
	}

	var err error
	if retitle {
		err = s.writeWithSlug(ctx, slug.Make(title), write)
	} else {
		err = s.transact(ctx, write)
	}
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.PostEdited,
		PostID:     post.ID,
		Slug:       post.Slug,
		ActorID:    actorID,
		VersionID:  version.ID,
		VersionSeq: version.Seq,
	})
	return s.load(ctx, post.ID)
}

// SoftDelete hides a post from default reads. Its slug stays reserved.
func (s *PostService) SoftDelete(ctx context.Context, postID, actorID string) (*db.Post, error) {
	var post *db.Post
	err := s.transact(ctx, func(tx *gorm.DB) error {
		current, err := findPost(tx, postID, true)
		if err != nil {
			return err
		}
		if current.IsDeleted {
			return ErrAlreadyDeleted
		}
		now := s.now()
		current.IsDeleted = true
		current.DeletedAt = &now
		post = current
		return tx.Model(current).Updates(map[string]any{"is_deleted": true, "deleted_at": now}).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.PostDeleted, PostID: post.ID, Slug: post.Slug, ActorID: actorID})
	return s.load(ctx, post.ID)
}

// Restore clears the deletion flags. Restoring an active post is not an error.
func (s *PostService) Restore(ctx context.Context, postID, actorID string) (*db.Post, error) {
	var post *db.Post
	err := s.transact(ctx, func(tx *gorm.DB) error {
		current, err := findPost(tx, postID, true)
		if err != nil {
			return err
		}
		current.IsDeleted = false
		current.DeletedAt = nil
		post = current
		return tx.Model(current).Updates(map[string]any{"is_deleted": false, "deleted_at": nil}).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.PostRestored, PostID: post.ID, Slug: post.Slug, ActorID: actorID})
	return s.load(ctx, post.ID)
}

// Archive stamps archived_at. Archiving again refreshes the timestamp.
func (s *PostService) Archive(ctx context.Context, postID, actorID string) (*db.Post, error) {
	var post *db.Post
	err := s.transact(ctx, func(tx *gorm.DB) error {
		current, err := findPost(tx, postID, true)
		if err != nil {
			return err
		}
		now := s.now()
		current.ArchivedAt = &now
		post = current
		return tx.Model(current).Update("archived_at", now).Error
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{Type: events.PostArchived, PostID: post.ID, Slug: post.Slug, ActorID: actorID})
	return s.load(ctx, post.ID)
}

// Rollback snapshots the current state and then restores title, content and
// images from versionID. The slug is kept even when the title changes back.
func (s *PostService) Rollback(ctx context.Context, postID, versionID, actorID string) (*db.Post, error) {
	var (
		post    *db.Post
		version *db.PostVersion
	)
	err := s.transact(ctx, func(tx *gorm.DB) error {
		current, err := findPost(tx, postID, true)
		if err != nil {
			return err
		}
		target, err := findVersion(tx, current.ID, versionID)
		if err != nil {
			return err
		}

		version, err = appendVersion(tx, current, actorID, s.now())
		if err != nil {
			return err
		}

		current.Title = target.Title
		current.Content = target.Content
		current.Images = datatypes.JSONSlice[string](slices.Clone(nonNil(target.Images)))
		current.Tags = datatypes.JSONSlice[string](nonNil(current.Tags))
		if err := tx.Omit(clause.Associations).Save(current).Error; err != nil {
			return err
		}
		post = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish(ctx, events.Event{
		Type:       events.PostRolledBack,
		PostID:     post.ID,
		Slug:       post.Slug,
		ActorID:    actorID,
		VersionID:  version.ID,
		VersionSeq: version.Seq,
	})
	return s.load(ctx, post.ID)
}

// Get resolves idOrSlug by id first, then by slug.
func (s *PostService) Get(ctx context.Context, idOrSlug string, includeDeleted bool) (*db.Post, error) {
	key := strings.TrimSpace(idOrSlug)
	if key == "" {
		return nil, ErrPostNotFound
	}

	var post db.Post
	err := postPreloads(s.db.WithContext(ctx)).Where("id = ?", key).First(&post).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		err = postPreloads(s.db.WithContext(ctx)).Where("slug = ?", key).First(&post).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, err
	}
	if post.IsDeleted && !includeDeleted {
		return nil, ErrPostNotFound
	}
	return &post, nil
}

// Versions returns the version log of a post, oldest first.
func (s *PostService) Versions(ctx context.Context, postID string, includeDeleted bool) ([]db.PostVersion, error) {
	tx := s.db.WithContext(ctx)
	post, err := findPost(tx, postID, includeDeleted)
	if err != nil {
		return nil, err
	}
	return listVersions(tx, post.ID)
}

// List returns a page of posts, newest first.
func (s *PostService) List(ctx context.Context, filter PostFilter) (*PostListResult, error) {
	result := &PostListResult{Page: filter.Page, PerPage: filter.PerPage}
	if result.Page <= 0 {
		result.Page = 1
	}
	if result.PerPage <= 0 {
		result.PerPage = defaultPerPage
	}
	if result.PerPage > maxPerPage {
		result.PerPage = maxPerPage
	}

	countQuery, err := s.applyFilters(ctx, s.db.WithContext(ctx).Model(&db.Post{}), filter)
	if err != nil {
		return nil, err
	}
	if err := countQuery.Count(&result.Total).Error; err != nil {
		return nil, err
	}

	dataQuery, err := s.applyFilters(ctx, s.db.WithContext(ctx).Model(&db.Post{}), filter)
	if err != nil {
		return nil, err
	}
	posts := []db.Post{}
	if err := dataQuery.
		Preload("Author").
		Preload("Categories", orderCategories).
		Order("posts.created_at desc").
		Order("posts.id desc").
		Limit(result.PerPage).
		Offset((result.Page - 1) * result.PerPage).
		Find(&posts).Error; err != nil {
		return nil, err
	}

	if result.Total == 0 {
		result.TotalPages = 1
	} else {
		result.TotalPages = int((result.Total + int64(result.PerPage) - 1) / int64(result.PerPage))
	}
	result.Posts = posts
	return result, nil
}

func (s *PostService) applyFilters(ctx context.Context, query *gorm.DB, filter PostFilter) (*gorm.DB, error) {
	if !filter.IncludeDeleted {
		query = query.Where("posts.is_deleted = ?", false)
	}

	if raw := strings.TrimSpace(filter.CategoryID); raw != "" {
		categoryID, err := canonicalID(raw)
		if err != nil {
			return nil, &CategoryRefError{ID: raw, Err: err}
		}
		linked := s.db.WithContext(ctx).Table("post_categories").Select("post_id").Where("category_id = ?", categoryID)
		query = query.Where("posts.id IN (?)", linked)
	}

	if tag := strings.TrimSpace(filter.Tag); tag != "" {
		query = query.Where("EXISTS (SELECT 1 FROM json_each(CAST(posts.tags AS TEXT)) WHERE json_each.value = ?)", tag)
	}

	if author := strings.TrimSpace(filter.AuthorID); author != "" {
		query = query.Where("posts.author_id = ?", author)
	}

	return query, nil
}

func (s *PostService) load(ctx context.Context, id string) (*db.Post, error) {
	var post db.Post
	if err := postPreloads(s.db.WithContext(ctx)).Where("id = ?", id).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	return &post, nil
}

// writeWithSlug holds the lock for base while fn computes and stores a slug.
func (s *PostService) writeWithSlug(ctx context.Context, base string, fn func(tx *gorm.DB) error) error {
	unlock, err := s.locker.Lock(ctx, "post-slug:"+base)
	if err != nil {
		if errors.Is(err, lock.ErrLockTimeout) {
			return ErrWriteConflict
		}
		return fmt.Errorf("acquire slug lock: %w", err)
	}
	defer unlock()
	return s.transact(ctx, fn)
}

// transact runs fn in a transaction and retries it when a unique index
// (posts.slug or the per-post version sequence) rejected the write.
func (s *PostService) transact(ctx context.Context, fn func(tx *gorm.DB) error) error {
	for attempt := 1; ; attempt++ {
		err := s.db.WithContext(ctx).Transaction(fn)
		if !errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		if attempt >= maxWriteAttempts {
			slog.WarnContext(ctx, "post write kept hitting unique constraint", slog.Int("attempts", attempt))
			return ErrWriteConflict
		}
		slog.InfoContext(ctx, "retrying post write after unique violation", slog.Int("attempt", attempt))
	}
}

func (s *PostService) publish(ctx context.Context, event events.Event) {
	event.OccurredAt = s.now()
	if err := s.publisher.Publish(ctx, event); err != nil {
		slog.ErrorContext(ctx, "failed to publish post event",
			slog.String("type", string(event.Type)),
			slog.String("post_id", event.PostID),
			slog.Any("error", err),
		)
	}
}

func postPreloads(tx *gorm.DB) *gorm.DB {
	return tx.
		Preload("Author").
		Preload("Categories", orderCategories).
		Preload("Versions", func(q *gorm.DB) *gorm.DB { return q.Order("seq asc") })
}

func orderCategories(q *gorm.DB) *gorm.DB {
	return q.Order("categories.name asc")
}

func findPost(tx *gorm.DB, id string, includeDeleted bool) (*db.Post, error) {
	var post db.Post
	if err := tx.Where("id = ?", strings.TrimSpace(id)).First(&post).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPostNotFound
		}
		return nil, err
	}
	if post.IsDeleted && !includeDeleted {
		return nil, ErrPostNotFound
	}
	return &post, nil
}

// nextSlug queries the slugs derived from base, soft-deleted posts included,
// and returns the first free one.
func nextSlug(tx *gorm.DB, base, excludeID string) (string, error) {
	query := tx.Model(&db.Post{}).Where("slug = ? OR slug LIKE ?", base, base+"-%")
	if excludeID != "" {
		query = query.Where("id <> ?", excludeID)
	}
	var taken []string
	if err := query.Pluck("slug", &taken).Error; err != nil {
		return "", err
	}
	return slug.Next(base, slug.Set(taken)), nil
}

// replaceCategories swaps the whole category set of post.
func replaceCategories(tx *gorm.DB, post *db.Post, categories []db.Category) error {
	if err := tx.Model(post).Association("Categories").Replace(categories); err != nil {
		return err
	}
	post.Categories = categories
	return nil
}

// normalizeTags trims tags and drops blanks. The result replaces the stored list.
func normalizeTags(tags []string) datatypes.JSONSlice[string] {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// appendImages adds new references after the existing ones.
func appendImages(existing []string, added []string) datatypes.JSONSlice[string] {
	out := slices.Clone(nonNil(existing))
	for _, ref := range added {
		if trimmed := strings.TrimSpace(ref); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", ErrTitleRequired
	}
	if utf8.RuneCountInString(title) < minTitleLength {
		return "", ErrTitleTooShort
	}
	return title, nil
}

func normalizeExcerpt(raw string) (string, error) {
	excerpt := strings.TrimSpace(raw)
	if utf8.RuneCountInString(excerpt) > maxExcerptLength {
		return "", ErrExcerptTooLong
	}
	return excerpt, nil
}
