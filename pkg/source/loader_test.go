package source

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFs(t *testing.T, files map[string]string) afero.Fs {
	t.Helper()

	fsys := afero.NewMemMapFs()
	for name, content := range files {
		require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
	}

	return fsys
}

func TestLoader_List(t *testing.T) {
	t.Parallel()

	fsys := newTestFs(t, map[string]string{
		"/src/base.js":          "base",
		"/src/goog.js":          "goog",
		"/src/a.js":             "a",
		"/src/x/y/b.js":         "b",
		"/src/x/readme.md":      "doc",
		"/src/vendor/lib.js":    "lib",
		"/elsewhere/outside.js": "out",
	})

	loader := NewLoader(fsys, Options{
		Root:    "/src",
		Pattern: "**/*.js",
		Exclude: []string{"base.js", "goog.js"},
	}, nil)

	paths, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.js", "/src/vendor/lib.js", "/src/x/y/b.js"}, paths)
}

func TestLoader_ListSkipVendor(t *testing.T) {
	t.Parallel()

	fsys := newTestFs(t, map[string]string{
		"/src/a.js":          "a",
		"/src/vendor/lib.js": "lib",
	})

	loader := NewLoader(fsys, Options{Root: "/src", Pattern: "**/*.js", SkipVendor: true}, nil)

	paths, err := loader.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/src/a.js"}, paths)
}

func TestLoader_ListMissingRoot(t *testing.T) {
	t.Parallel()

	loader := NewLoader(afero.NewMemMapFs(), Options{Root: "/nope", Pattern: "**/*.js"}, nil)

	_, err := loader.List(context.Background())
	require.ErrorIs(t, err, ErrList)
}

func TestLoader_ListCanceled(t *testing.T) {
	t.Parallel()

	fsys := newTestFs(t, map[string]string{"/src/a.js": "a"})
	loader := NewLoader(fsys, Options{Root: "/src", Pattern: "**/*.js"}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := loader.List(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestLoader_Read(t *testing.T) {
	t.Parallel()

	fsys := newTestFs(t, map[string]string{
		"/src/a.js":   "small",
		"/src/big.js": "0123456789",
	})

	loader := NewLoader(fsys, Options{Root: "/src", MaxFileSize: 5}, nil)

	content, err := loader.Read("/src/a.js")
	require.NoError(t, err)
	assert.Equal(t, "small", string(content))

	_, err = loader.Read("/src/big.js")
	require.ErrorIs(t, err, ErrTooLarge)

	_, err = loader.Read("/src/missing.js")
	require.ErrorIs(t, err, ErrRead)
}

func TestIsJavaScript(t *testing.T) {
	t.Parallel()

	assert.True(t, IsJavaScript("/src/a.js", []byte("goog.provide('a');")))
	assert.False(t, IsJavaScript("/src/a.py", []byte("print(1)")))
}

func TestWriter_Write(t *testing.T) {
	t.Parallel()

	fsys := afero.NewMemMapFs()
	writer := NewWriter(fsys, "/src", "/lib")

	target, err := writer.Write("/src/x/y/b.js", "content")
	require.NoError(t, err)
	assert.Equal(t, "/lib/x/y/b.js", target)

	got, err := afero.ReadFile(fsys, "/lib/x/y/b.js")
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
}

func TestWriter_TargetOutsideRoot(t *testing.T) {
	t.Parallel()

	writer := NewWriter(afero.NewMemMapFs(), "/src", "/lib")

	_, err := writer.Target("/other/a.js")
	require.ErrorIs(t, err, ErrOutsideRoot)

	_, err = writer.Write("/src/../other/a.js", "x")
	require.ErrorIs(t, err, ErrOutsideRoot)
}

func TestWriter_Clean(t *testing.T) {
	t.Parallel()

	fsys := newTestFs(t, map[string]string{
		"/lib/stale.js": "old",
		"/src/a.js":     "a",
	})

	writer := NewWriter(fsys, "/src", "/lib")
	require.NoError(t, writer.Clean())

	exists, err := afero.Exists(fsys, "/lib/stale.js")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = afero.Exists(fsys, "/src/a.js")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, writer.Clean())
}
