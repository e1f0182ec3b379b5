// Package render turns stored markdown into sanitized HTML for API responses.
package render

import (
	"bytes"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

// Renderer converts markdown with GFM extensions and strips unsafe markup.
type Renderer struct {
	engine goldmark.Markdown
	policy *bluemonday.Policy
}

// New returns a Renderer using the UGC sanitizer policy.
func New() *Renderer {
	return &Renderer{
		engine: goldmark.New(
			goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
			goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML()),
		),
		policy: bluemonday.UGCPolicy(),
	}
}

// Markdown renders content. The result is safe to embed in a page.
func (r *Renderer) Markdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := r.engine.Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return string(r.policy.SanitizeBytes(buf.Bytes())), nil
}

// Text strips every tag from s.
func Text(s string) string {
	return bluemonday.StrictPolicy().Sanitize(s)
}
