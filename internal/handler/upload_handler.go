package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// UploadImage 处理单张图片上传，返回可写入文章 images 的引用
func (a *API) UploadImage(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		respondError(c, http.StatusBadRequest, "image file is required")
		return
	}

	ref, err := a.storeImage(c.Request.Context(), file)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"url": ref})
}
