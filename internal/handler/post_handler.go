package handler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/service"
	"github.com/inkpost/internal/storage"
)

var errTooManyImages = fmt.Errorf("%w: at most %d images per request", service.ErrValidation, maxUploadImages)

// postRequest is shared by create and edit. Nil pointers mark absent fields.
type postRequest struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	Excerpt    *string   `json:"excerpt"`
	Categories *[]string `json:"categories"`
	Tags       *[]string `json:"tags"`
	Images     []string  `json:"images"`
}

type categoryResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type versionResponse struct {
	ID        string    `json:"id"`
	Seq       int       `json:"seq"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Images    []string  `json:"images"`
	UpdatedAt time.Time `json:"updated_at"`
	UpdatedBy *string   `json:"updated_by"`
}

type postResponse struct {
	ID           string             `json:"id"`
	Slug         string             `json:"slug"`
	Title        string             `json:"title"`
	Content      string             `json:"content"`
	ContentHTML  string             `json:"content_html"`
	Excerpt      string             `json:"excerpt"`
	AuthorID     string             `json:"author_id"`
	Writer       *userResponse      `json:"author,omitempty"`
	CategoryList []categoryResponse `json:"categories"`
	Tags         []string           `json:"tags"`
	Images       []string           `json:"images"`
	History      []versionResponse  `json:"versions,omitempty"`
	IsDeleted    bool               `json:"is_deleted"`
	DeletedAt    *time.Time         `json:"deleted_at"`
	ArchivedAt   *time.Time         `json:"archived_at"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

func (a *API) newPostResponse(ctx context.Context, post *db.Post) postResponse {
	var resp postResponse
	copyResponse(ctx, &resp, post)
	copyResponse(ctx, &resp.CategoryList, &post.Categories)
	if len(post.Versions) > 0 {
		copyResponse(ctx, &resp.History, &post.Versions)
	}
	if post.Author.ID != "" {
		author := newUserResponse(ctx, &post.Author)
		resp.Writer = &author
	}

	if resp.CategoryList == nil {
		resp.CategoryList = []categoryResponse{}
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if resp.Images == nil {
		resp.Images = []string{}
	}

	html, err := a.renderer.Markdown(post.Content)
	if err != nil {
		slog.WarnContext(ctx, "render post content", slog.String("post_id", post.ID), slog.Any("error", err))
	}
	resp.ContentHTML = html
	return resp
}

// includeDeleted is only honored for identified callers.
func (a *API) includeDeleted(c *gin.Context) bool {
	return identity(c) != "" && parseBoolQuery(c, "include_deleted")
}

// ListPosts 分页返回文章列表
func (a *API) ListPosts(c *gin.Context) {
	result, err := a.posts.List(c.Request.Context(), service.PostFilter{
		IncludeDeleted: a.includeDeleted(c),
		CategoryID:     c.Query("category"),
		Tag:            c.Query("tag"),
		AuthorID:       c.Query("author"),
		Page:           parseIntQuery(c, "page", 1),
		PerPage:        parseIntQuery(c, "page_size", 0),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := make([]postResponse, 0, len(result.Posts))
	for i := range result.Posts {
		items = append(items, a.newPostResponse(c.Request.Context(), &result.Posts[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"posts":       items,
		"total":       result.Total,
		"page":        result.Page,
		"page_size":   result.PerPage,
		"total_pages": result.TotalPages,
	})
}

// GetPost 根据 ID 或 slug 获取文章
func (a *API) GetPost(c *gin.Context) {
	post, err := a.posts.Get(c.Request.Context(), c.Param("id"), a.includeDeleted(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": a.newPostResponse(c.Request.Context(), post)})
}

// ListPostVersions returns the version log of a post, oldest first.
func (a *API) ListPostVersions(c *gin.Context) {
	versions, err := a.posts.Versions(c.Request.Context(), c.Param("id"), true)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := []versionResponse{}
	copyResponse(c.Request.Context(), &items, &versions)
	c.JSON(http.StatusOK, gin.H{"versions": items})
}

// CreatePost 创建文章，支持 JSON 或带图片的 multipart 表单
func (a *API) CreatePost(c *gin.Context) {
	req, ok := a.readPostRequest(c)
	if !ok {
		return
	}

	input := service.CreatePostInput{
		Images:   req.Images,
		AuthorID: identity(c),
	}
	if req.Title != nil {
		input.Title = *req.Title
	}
	if req.Content != nil {
		input.Content = *req.Content
	}
	if req.Excerpt != nil {
		input.Excerpt = *req.Excerpt
	}
	if req.Categories != nil {
		input.CategoryIDs = *req.Categories
	}
	if req.Tags != nil {
		input.Tags = *req.Tags
	}

	post, err := a.posts.Create(c.Request.Context(), input)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"post": a.newPostResponse(c.Request.Context(), post)})
}

// UpdatePost 局部更新文章，编辑前的内容会记入版本历史
func (a *API) UpdatePost(c *gin.Context) {
	req, ok := a.readPostRequest(c)
	if !ok {
		return
	}

	post, err := a.posts.Edit(c.Request.Context(), c.Param("id"), service.EditPostInput{
		Title:       req.Title,
		Content:     req.Content,
		Excerpt:     req.Excerpt,
		CategoryIDs: req.Categories,
		Tags:        req.Tags,
		Images:      req.Images,
		ActorID:     identity(c),
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": a.newPostResponse(c.Request.Context(), post)})
}

// DeletePost 软删除文章
func (a *API) DeletePost(c *gin.Context) {
	a.respondLifecycle(c, a.posts.SoftDelete)
}

// RestorePost 恢复软删除的文章
func (a *API) RestorePost(c *gin.Context) {
	a.respondLifecycle(c, a.posts.Restore)
}

// ArchivePost 归档文章
func (a *API) ArchivePost(c *gin.Context) {
	a.respondLifecycle(c, a.posts.Archive)
}

// RollbackPost 将文章回滚到指定版本
func (a *API) RollbackPost(c *gin.Context) {
	post, err := a.posts.Rollback(c.Request.Context(), c.Param("id"), c.Param("versionId"), identity(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": a.newPostResponse(c.Request.Context(), post)})
}

func (a *API) respondLifecycle(c *gin.Context, op func(ctx context.Context, postID, actorID string) (*db.Post, error)) {
	post, err := op(c.Request.Context(), c.Param("id"), identity(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"post": a.newPostResponse(c.Request.Context(), post)})
}

func (a *API) readPostRequest(c *gin.Context) (postRequest, bool) {
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		req, err := a.readPostForm(c)
		if err != nil {
			respondServiceError(c, err)
			return postRequest{}, false
		}
		return req, true
	}

	var req postRequest
	if !bindJSON(c, &req, "invalid post payload") {
		return postRequest{}, false
	}
	return req, true
}

// readPostForm maps form fields onto postRequest and stores uploaded images.
// Reference strings sent as images values are kept ahead of new uploads.
func (a *API) readPostForm(c *gin.Context) (postRequest, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return postRequest{}, fmt.Errorf("%w: invalid multipart form", service.ErrValidation)
	}

	var req postRequest
	formString := func(key string) *string {
		if values, ok := form.Value[key]; ok && len(values) > 0 {
			value := values[0]
			return &value
		}
		return nil
	}
	formList := func(key string) *[]string {
		if values, ok := form.Value[key]; ok {
			list := splitList(values)
			return &list
		}
		return nil
	}

	req.Title = formString("title")
	req.Content = formString("content")
	req.Excerpt = formString("excerpt")
	req.Categories = formList("categories")
	req.Tags = formList("tags")
	req.Images = splitList(form.Value["images"])

	files := form.File["images"]
	if len(files) > maxUploadImages {
		return postRequest{}, errTooManyImages
	}
	for _, file := range files {
		ref, err := a.storeImage(c.Request.Context(), file)
		if err != nil {
			return postRequest{}, err
		}
		req.Images = append(req.Images, ref)
	}
	return req, nil
}

func (a *API) storeImage(ctx context.Context, header *multipart.FileHeader) (string, error) {
	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return "", storage.ErrNotImage
	}

	file, err := header.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	if _, err := storage.InspectImage(file); err != nil {
		return "", err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("rewind upload: %w", err)
	}

	return a.blobs.Put(ctx, header.Filename, contentType, file, header.Size)
}
