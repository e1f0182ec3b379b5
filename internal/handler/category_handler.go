package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type categoryRequest struct {
	Name string `json:"name" validate:"required,max=100"`
}

// ListCategories 返回所有分类
func (a *API) ListCategories(c *gin.Context) {
	categories, err := a.categories.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, err)
		return
	}

	items := []categoryResponse{}
	copyResponse(c.Request.Context(), &items, &categories)
	c.JSON(http.StatusOK, gin.H{"categories": items})
}

// CreateCategory 创建分类
func (a *API) CreateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req, "invalid category payload") || !a.validateDTO(c, &req) {
		return
	}

	category, err := a.categories.Create(c.Request.Context(), req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var resp categoryResponse
	copyResponse(c.Request.Context(), &resp, category)
	c.JSON(http.StatusCreated, gin.H{"category": resp})
}

// UpdateCategory 重命名分类
func (a *API) UpdateCategory(c *gin.Context) {
	var req categoryRequest
	if !bindJSON(c, &req, "invalid category payload") || !a.validateDTO(c, &req) {
		return
	}

	category, err := a.categories.Update(c.Request.Context(), c.Param("id"), req.Name)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	var resp categoryResponse
	copyResponse(c.Request.Context(), &resp, category)
	c.JSON(http.StatusOK, gin.H{"category": resp})
}

// DeleteCategory 删除分类
func (a *API) DeleteCategory(c *gin.Context) {
	if err := a.categories.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}
