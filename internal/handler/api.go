package handler

import (
	"github.com/go-playground/validator/v10"
	"github.com/inkpost/internal/events"
	"github.com/inkpost/internal/lock"
	"github.com/inkpost/internal/render"
	"github.com/inkpost/internal/security"
	"github.com/inkpost/internal/service"
	"github.com/inkpost/internal/storage"
	"gorm.io/gorm"
)

// maxUploadImages caps the image files accepted with one create or edit.
const maxUploadImages = 5

// API bundles shared dependencies for HTTP handlers.
type API struct {
	db         *gorm.DB
	posts      *service.PostService
	categories *service.CategoryService
	auth       *service.AuthService
	tokens     *security.Tokens
	blobs      storage.BlobStore
	renderer   *render.Renderer
	validate   *validator.Validate
}

// Options carries the collaborators chosen at startup. Zero values fall back
// to in-process implementations.
type Options struct {
	Tokens    *security.Tokens
	Blobs     storage.BlobStore
	Locker    lock.Locker
	Publisher events.Publisher
}

// NewAPI constructs a handler set with shared services.
func NewAPI(gdb *gorm.DB, opts Options) *API {
	if opts.Tokens == nil {
		opts.Tokens = security.NewTokens("", 0)
	}
	if opts.Blobs == nil {
		opts.Blobs = storage.NewLocal("web/static/uploads", "/static/uploads")
	}

	categories := service.NewCategoryService(gdb)
	return &API{
		db:         gdb,
		posts:      service.NewPostService(gdb, categories, service.WithLocker(opts.Locker), service.WithPublisher(opts.Publisher)),
		categories: categories,
		auth:       service.NewAuthService(gdb, opts.Tokens),
		tokens:     opts.Tokens,
		blobs:      opts.Blobs,
		renderer:   render.New(),
		validate:   validator.New(),
	}
}

// DB exposes the underlying gorm instance.
func (a *API) DB() *gorm.DB {
	return a.db
}
