package render

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkdownRendersGFM(t *testing.T) {
	out, err := New().Markdown("# Title\n\n- [x] done\n\n| a | b |\n|---|---|\n| 1 | 2 |\n\nvisit https://example.com")
	require.NoError(t, err)

	assert.Contains(t, out, "<h1")
	assert.Contains(t, out, "<table>")
	assert.Contains(t, out, `href="https://example.com"`)
}

func TestMarkdownStripsScripts(t *testing.T) {
	out, err := New().Markdown("hello <script>alert(1)</script> <a href=\"javascript:alert(1)\">x</a>")
	require.NoError(t, err)

	assert.NotContains(t, out, "<script")
	assert.False(t, strings.Contains(out, "javascript:"))
	assert.Contains(t, out, "hello")
}

func TestText(t *testing.T) {
	assert.Equal(t, "bold move", Text("<b>bold</b> move"))
}
