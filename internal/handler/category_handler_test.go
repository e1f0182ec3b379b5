package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func TestCategoryHandlers(t *testing.T) {
	env := setupTestAPI(t)

	create := func(name string) *httptest.ResponseRecorder {
		return serve(env.api.CreateCategory, jsonRequest(http.MethodPost, "/api/v1/categories", map[string]any{"name": name}), env.user.ID)
	}

	w := create("Go Tips")
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		Category categoryResponse `json:"category"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil || created.Category.Slug != "go-tips" {
		t.Fatalf("unexpected category response %s", w.Body.String())
	}

	if w := create("Go Tips"); w.Code != http.StatusConflict {
		t.Fatalf("expected duplicate 409, got %d", w.Code)
	}
	if w := create(""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected empty name 400, got %d", w.Code)
	}
	create("Archive")

	w = serve(env.api.ListCategories, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil), "")
	var list struct {
		Categories []categoryResponse `json:"categories"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil || len(list.Categories) != 2 || list.Categories[0].Name != "Archive" {
		t.Fatalf("unexpected category list %s", w.Body.String())
	}

	idParam := gin.Param{Key: "id", Value: created.Category.ID}
	w = serve(env.api.UpdateCategory, jsonRequest(http.MethodPut, "/", map[string]any{"name": "Rust Tips"}), env.user.ID, idParam)
	if w.Code != http.StatusOK {
		t.Fatalf("expected rename 200, got %d: %s", w.Code, w.Body.String())
	}

	w = serve(env.api.CreatePost, jsonRequest(http.MethodPost, "/", map[string]any{
		"title": "Categorized", "content": "body", "categories": []string{created.Category.ID},
	}), env.user.ID)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected post create 201, got %d: %s", w.Code, w.Body.String())
	}
	if post := decodePost(t, w); len(post.CategoryList) != 1 || post.CategoryList[0].Slug != "rust-tips" {
		t.Fatalf("unexpected post categories %+v", post.CategoryList)
	}

	if w := serve(env.api.DeleteCategory, httptest.NewRequest(http.MethodDelete, "/", nil), env.user.ID, idParam); w.Code != http.StatusOK {
		t.Fatalf("expected delete 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := serve(env.api.DeleteCategory, httptest.NewRequest(http.MethodDelete, "/", nil), env.user.ID, idParam); w.Code != http.StatusNotFound {
		t.Fatalf("expected second delete 404, got %d", w.Code)
	}
}

func TestUploadImage(t *testing.T) {
	env := setupTestAPI(t)

	req := multipartRequest(t, http.MethodPost, "/api/v1/uploads", nil, nil)
	if w := serve(env.api.UploadImage, req, env.user.ID); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without file, got %d", w.Code)
	}
}
