package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/inkpost/internal/db"
	"github.com/inkpost/internal/security"
	"github.com/inkpost/internal/service"
	"github.com/inkpost/internal/storage"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type testEnv struct {
	api       *API
	gdb       *gorm.DB
	user      db.User
	uploadDir string
}

func setupTestAPI(t *testing.T) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:handler-%d?mode=memory&cache=shared", time.Now().UnixNano())
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	user := db.User{Name: "tester", Email: "tester@example.com", Password: "hashed"}
	if err := gdb.Create(&user).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}

	uploadDir := t.TempDir()
	api := NewAPI(gdb, Options{
		Tokens: security.NewTokens("handler-secret", time.Hour),
		Blobs:  storage.NewLocal(uploadDir, "/static/uploads"),
	})

	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return &testEnv{api: api, gdb: gdb, user: user, uploadDir: uploadDir}
}

func serve(h gin.HandlerFunc, req *http.Request, userID string, params ...gin.Param) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = req
	c.Params = params
	if userID != "" {
		c.Set(identityContextKey, userID)
	}
	h(c)
	return w
}

func jsonRequest(method, path string, payload any) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodePost(t *testing.T, w *httptest.ResponseRecorder) postResponse {
	t.Helper()
	var body struct {
		Post postResponse `json:"post"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode post response: %v (%s)", err, w.Body.String())
	}
	return body.Post
}

func pngFile(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 3))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

type formFile struct {
	name        string
	contentType string
	data        []byte
}

func multipartRequest(t *testing.T, method, path string, fields map[string][]string, files []formFile) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for key, values := range fields {
		for _, value := range values {
			if err := mw.WriteField(key, value); err != nil {
				t.Fatalf("write field: %v", err)
			}
		}
	}
	for _, file := range files {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="images"; filename="%s"`, file.name))
		header.Set("Content-Type", file.contentType)
		part, err := mw.CreatePart(header)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		part.Write(file.data)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart writer: %v", err)
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestCreatePostJSON(t *testing.T) {
	env := setupTestAPI(t)

	w := serve(env.api.CreatePost, jsonRequest(http.MethodPost, "/api/v1/posts", map[string]any{
		"title":   "Hello World",
		"content": "# Heading\n\n<script>alert(1)</script>body",
		"tags":    []string{"go", " "},
		"images":  []string{"/static/uploads/existing.png"},
	}), env.user.ID)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}
	post := decodePost(t, w)
	if post.Slug != "hello-world" || post.AuthorID != env.user.ID {
		t.Fatalf("unexpected post %+v", post)
	}
	if !strings.Contains(post.ContentHTML, "<h1") || strings.Contains(post.ContentHTML, "<script") {
		t.Fatalf("expected sanitized html, got %q", post.ContentHTML)
	}
	if len(post.Tags) != 1 || len(post.Images) != 1 || post.CategoryList == nil {
		t.Fatalf("unexpected lists %+v", post)
	}
	if post.Writer == nil || post.Writer.Email != env.user.Email {
		t.Fatalf("expected author in response, got %+v", post.Writer)
	}
	if len(post.History) != 0 {
		t.Fatalf("expected no versions on create")
	}
}

func TestCreatePostErrors(t *testing.T) {
	env := setupTestAPI(t)

	cases := []struct {
		name   string
		user   string
		body   map[string]any
		status int
	}{
		{"anonymous", "", map[string]any{"title": "Valid", "content": "body"}, http.StatusUnauthorized},
		{"long excerpt", env.user.ID, map[string]any{"title": "Valid", "content": "body", "excerpt": strings.Repeat("x", 301)}, http.StatusBadRequest},
		{"missing content", env.user.ID, map[string]any{"title": "Valid"}, http.StatusBadRequest},
		{"malformed category", env.user.ID, map[string]any{"title": "Valid", "content": "body", "categories": []string{"1"}}, http.StatusBadRequest},
		{"unknown category", env.user.ID, map[string]any{"title": "Valid", "content": "body", "categories": []string{"4f9d4c1e-4a35-4bd4-8f0f-0e1b7d7f5f3a"}}, http.StatusNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(env.api.CreatePost, jsonRequest(http.MethodPost, "/api/v1/posts", tc.body), tc.user)
			if w.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, w.Code, w.Body.String())
			}
		})
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/posts", strings.NewReader("{broken"))
	req.Header.Set("Content-Type", "application/json")
	if w := serve(env.api.CreatePost, req, env.user.ID); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", w.Code)
	}

	var count int64
	env.gdb.Model(&db.Post{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no posts persisted, got %d", count)
	}
}

func TestCreatePostMultipartStoresImages(t *testing.T) {
	env := setupTestAPI(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/posts", map[string][]string{
		"title":   {"With Pictures"},
		"content": {"body"},
		"tags":    {"a,b", "c"},
		"images":  {"/static/uploads/kept.png"},
	}, []formFile{{name: "cover.png", contentType: "image/png", data: pngFile(t)}})

	w := serve(env.api.CreatePost, req, env.user.ID)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	post := decodePost(t, w)
	if fmt.Sprint(post.Tags) != "[a b c]" {
		t.Fatalf("unexpected tags %v", post.Tags)
	}
	if len(post.Images) != 2 || post.Images[0] != "/static/uploads/kept.png" {
		t.Fatalf("unexpected images %v", post.Images)
	}
	if !strings.HasPrefix(post.Images[1], "/static/uploads/") || !strings.HasSuffix(post.Images[1], ".png") {
		t.Fatalf("unexpected uploaded reference %q", post.Images[1])
	}

	entries, err := os.ReadDir(env.uploadDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one stored upload, got %d (%v)", len(entries), err)
	}
}

func TestCreatePostMultipartRejectsBadUploads(t *testing.T) {
	env := setupTestAPI(t)
	fields := map[string][]string{"title": {"Uploads"}, "content": {"body"}}

	tooMany := make([]formFile, maxUploadImages+1)
	for i := range tooMany {
		tooMany[i] = formFile{name: fmt.Sprintf("%d.png", i), contentType: "image/png", data: pngFile(t)}
	}

	cases := []struct {
		name  string
		files []formFile
	}{
		{"too many", tooMany},
		{"wrong content type", []formFile{{name: "notes.txt", contentType: "text/plain", data: []byte("hi")}}},
		{"disguised", []formFile{{name: "fake.png", contentType: "image/png", data: []byte("not really a png")}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := serve(env.api.CreatePost, multipartRequest(t, http.MethodPost, "/api/v1/posts", fields, tc.files), env.user.ID)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected status 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestUpdatePostVersionsAndRollback(t *testing.T) {
	env := setupTestAPI(t)

	created := decodePost(t, serve(env.api.CreatePost, jsonRequest(http.MethodPost, "/api/v1/posts", map[string]any{
		"title": "Draft Title", "content": "first body",
	}), env.user.ID))
	idParam := gin.Param{Key: "id", Value: created.ID}

	w := serve(env.api.UpdatePost, jsonRequest(http.MethodPut, "/api/v1/posts/"+created.ID, map[string]any{
		"title": "Final Title", "content": "second body", "images": []string{"new.png"},
	}), env.user.ID, idParam)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	edited := decodePost(t, w)
	if edited.Slug != "final-title" || len(edited.History) != 1 {
		t.Fatalf("unexpected edit result %+v", edited)
	}

	w = serve(env.api.ListPostVersions, httptest.NewRequest(http.MethodGet, "/", nil), env.user.ID, idParam)
	var versions struct {
		Versions []versionResponse `json:"versions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &versions); err != nil || len(versions.Versions) != 1 {
		t.Fatalf("unexpected versions response %s", w.Body.String())
	}
	first := versions.Versions[0]
	if first.Title != "Draft Title" || first.Seq != 1 || first.UpdatedBy == nil || *first.UpdatedBy != env.user.ID {
		t.Fatalf("unexpected version %+v", first)
	}

	w = serve(env.api.UpdatePost, jsonRequest(http.MethodPut, "/", map[string]any{"title": "no"}), env.user.ID, idParam)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short title, got %d", w.Code)
	}

	w = serve(env.api.RollbackPost, httptest.NewRequest(http.MethodPost, "/", nil), env.user.ID,
		idParam, gin.Param{Key: "versionId", Value: first.ID})
	if w.Code != http.StatusOK {
		t.Fatalf("expected rollback 200, got %d: %s", w.Code, w.Body.String())
	}
	rolled := decodePost(t, w)
	if rolled.Title != "Draft Title" || rolled.Content != "first body" || rolled.Slug != "final-title" {
		t.Fatalf("unexpected rollback result %+v", rolled)
	}
	if len(rolled.History) != 2 {
		t.Fatalf("expected two versions after rollback, got %d", len(rolled.History))
	}

	w = serve(env.api.RollbackPost, httptest.NewRequest(http.MethodPost, "/", nil), env.user.ID,
		idParam, gin.Param{Key: "versionId", Value: "missing"})
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown version, got %d", w.Code)
	}
}

func TestDeleteRestoreArchiveStatusCodes(t *testing.T) {
	env := setupTestAPI(t)
	created := decodePost(t, serve(env.api.CreatePost, jsonRequest(http.MethodPost, "/", map[string]any{
		"title": "Lifecycle", "content": "body",
	}), env.user.ID))
	idParam := gin.Param{Key: "id", Value: created.ID}
	empty := func() *http.Request { return httptest.NewRequest(http.MethodPost, "/", nil) }

	if w := serve(env.api.DeletePost, empty(), env.user.ID, idParam); w.Code != http.StatusOK || !decodePost(t, w).IsDeleted {
		t.Fatalf("expected delete 200, got %d", w.Code)
	}
	if w := serve(env.api.DeletePost, empty(), env.user.ID, idParam); w.Code != http.StatusConflict {
		t.Fatalf("expected second delete 409, got %d", w.Code)
	}
	if w := serve(env.api.UpdatePost, jsonRequest(http.MethodPut, "/", map[string]any{"content": "x"}), env.user.ID, idParam); w.Code != http.StatusNotFound {
		t.Fatalf("expected edit of deleted post 404, got %d", w.Code)
	}

	get := func(query, user string) int {
		return serve(env.api.GetPost, httptest.NewRequest(http.MethodGet, "/api/v1/posts/"+created.ID+query, nil), user, idParam).Code
	}
	if code := get("", ""); code != http.StatusNotFound {
		t.Fatalf("expected anonymous get 404, got %d", code)
	}
	if code := get("?include_deleted=true", ""); code != http.StatusNotFound {
		t.Fatalf("expected anonymous include_deleted ignored, got %d", code)
	}
	if code := get("?include_deleted=true", env.user.ID); code != http.StatusOK {
		t.Fatalf("expected identified include_deleted 200, got %d", code)
	}

	if w := serve(env.api.ArchivePost, empty(), env.user.ID, idParam); w.Code != http.StatusOK || decodePost(t, w).ArchivedAt == nil {
		t.Fatalf("expected archive 200, got %d", w.Code)
	}
	if w := serve(env.api.RestorePost, empty(), env.user.ID, idParam); w.Code != http.StatusOK || decodePost(t, w).IsDeleted {
		t.Fatalf("expected restore 200, got %d", w.Code)
	}
	if code := get("", ""); code != http.StatusOK {
		t.Fatalf("expected restored post visible, got %d", code)
	}
	if w := serve(env.api.RestorePost, empty(), env.user.ID, gin.Param{Key: "id", Value: "nope"}); w.Code != http.StatusNotFound {
		t.Fatalf("expected restore of missing post 404, got %d", w.Code)
	}
}

func TestListPostsHonorsIdentityForDeleted(t *testing.T) {
	env := setupTestAPI(t)
	for _, title := range []string{"First Post", "Second Post", "Third Post"} {
		serve(env.api.CreatePost, jsonRequest(http.MethodPost, "/", map[string]any{"title": title, "content": "body"}), env.user.ID)
	}
	var victim db.Post
	env.gdb.Where("slug = ?", "second-post").First(&victim)
	serve(env.api.DeletePost, httptest.NewRequest(http.MethodDelete, "/", nil), env.user.ID, gin.Param{Key: "id", Value: victim.ID})

	list := func(query, user string) (int, []postResponse) {
		w := serve(env.api.ListPosts, httptest.NewRequest(http.MethodGet, "/api/v1/posts"+query, nil), user)
		var body struct {
			Posts      []postResponse `json:"posts"`
			Total      int            `json:"total"`
			TotalPages int            `json:"total_pages"`
		}
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("decode list: %v", err)
		}
		return body.Total, body.Posts
	}

	if total, posts := list("", ""); total != 2 || len(posts) != 2 {
		t.Fatalf("expected 2 visible posts, got %d", total)
	}
	if total, _ := list("?include_deleted=1", ""); total != 2 {
		t.Fatalf("expected anonymous include_deleted ignored, got %d", total)
	}
	if total, _ := list("?include_deleted=1", env.user.ID); total != 3 {
		t.Fatalf("expected identified include_deleted to list 3, got %d", total)
	}
	if total, posts := list("?page=2&page_size=1", ""); total != 2 || len(posts) != 1 || posts[0].Slug == "second-post" {
		t.Fatalf("unexpected second page %+v", posts)
	}

	w := serve(env.api.ListPosts, httptest.NewRequest(http.MethodGet, "/api/v1/posts?category=bad", nil), "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed category filter, got %d", w.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{service.ErrTitleTooShort, http.StatusBadRequest},
		{&service.CategoryRefError{ID: "x", Err: service.ErrMalformedReference}, http.StatusBadRequest},
		{storage.ErrNotImage, http.StatusBadRequest},
		{service.ErrInvalidCredentials, http.StatusUnauthorized},
		{service.ErrVersionNotFound, http.StatusNotFound},
		{&service.CategoryRefError{ID: "x", Err: service.ErrCategoryNotFound}, http.StatusNotFound},
		{service.ErrAlreadyDeleted, http.StatusConflict},
		{service.ErrWriteConflict, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := statusForError(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
