package tokens

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/gorazor/pkg/semtok"
)

func TestTokens(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/proj/Index.cshtml", []byte("@page\n<p>@DateTime.Now</p>\n"), 0o644))

	var out bytes.Buffer
	h := &Handler{fs: fs, file: "/proj/Index.cshtml", out: &out}
	require.NoError(t, h.Run(context.Background()))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	assert.True(t, strings.HasPrefix(lines[0], "1:1 "), lines[0])
	assert.Contains(t, lines[0], semtok.TypeRazorTransition)
	assert.Contains(t, lines[0], `"@"`)
	assert.Contains(t, lines[1], semtok.TypeRazorDirective)
	assert.Contains(t, lines[1], `"page"`)
	assert.Contains(t, out.String(), `"p"`)
}

func TestTokensMissingFile(t *testing.T) {
	h := &Handler{fs: afero.NewMemMapFs(), file: "/proj/Nope.cshtml", out: &bytes.Buffer{}}
	require.Error(t, h.Run(context.Background()))
}
