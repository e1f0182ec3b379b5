package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/inkpost/internal/service"
	"github.com/inkpost/internal/storage"
	"github.com/jinzhu/copier"
)

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

// respondServiceError maps the service error classes onto HTTP statuses.
// Anything unclassified is logged and hidden behind a 500.
func respondServiceError(c *gin.Context, err error) {
	status := statusForError(err)
	if status == http.StatusInternalServerError {
		_ = c.Error(err)
		slog.ErrorContext(c.Request.Context(), "request failed",
			slog.String("path", c.FullPath()),
			slog.Any("error", err),
		)
		respondError(c, status, "internal server error")
		return
	}
	respondError(c, status, err.Error())
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation), errors.Is(err, storage.ErrNotImage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrConflict), errors.Is(err, service.ErrAlreadyDeleted):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// copyResponse maps a model onto its response DTO. Fields that fail to map
// stay zero and the failure is logged.
func copyResponse(ctx context.Context, dst, src any) {
	if err := copier.Copy(dst, src); err != nil {
		slog.WarnContext(ctx, "copy response",
			slog.String("type", fmt.Sprintf("%T", dst)),
			slog.Any("error", err),
		)
	}
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, http.StatusBadRequest, message)
		return false
	}
	return true
}

// validateDTO runs struct tag validation and reports the first failing field.
func (a *API) validateDTO(c *gin.Context, dto any) bool {
	err := a.validate.Struct(dto)
	if err == nil {
		return true
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) && len(vErrs) > 0 {
		first := vErrs[0]
		respondError(c, http.StatusBadRequest, fmt.Sprintf("field %s failed on the %s rule", strings.ToLower(first.Field()), first.Tag()))
		return false
	}
	respondError(c, http.StatusBadRequest, err.Error())
	return false
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func parseBoolQuery(c *gin.Context, key string) bool {
	value, err := strconv.ParseBool(strings.TrimSpace(c.Query(key)))
	return err == nil && value
}

// splitList accepts repeated values as well as comma separated ones.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				out = append(out, trimmed)
			}
		}
	}
	return out
}
