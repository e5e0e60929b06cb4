package assets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCacheKeyStable(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	a := cache.Key("https://example.com/icons/abc.jpg")
	b := cache.Key("https://example.com/icons/abc.jpg")
	c := cache.Key("https://example.com/icons/def.jpg")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Equal(t, ".jpg", filepath.Ext(a))
}

func TestCacheKeyKeepsExtension(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	require.Equal(t, ".png", filepath.Ext(cache.Key("https://example.com/a.png")))
	// extension defaults to .jpg when the URL path has none
	require.Equal(t, ".jpg", filepath.Ext(cache.Key("https://example.com/a")))
}

func TestCacheResolve(t *testing.T) {
	cache, err := NewCache(t.TempDir())
	require.NoError(t, err)

	url := "https://example.com/icons/abc.jpg"
	_, ok := cache.Resolve(url)
	require.False(t, ok)

	p, err := cache.Put(url, []byte("image-bytes"))
	require.NoError(t, err)

	resolved, ok := cache.Resolve(url)
	require.True(t, ok)
	require.Equal(t, p, resolved)

	contents, err := os.ReadFile(resolved)
	require.NoError(t, err)
	require.Equal(t, []byte("image-bytes"), contents)
}

func TestCacheResolveRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	cache, err := NewCache(dir)
	require.NoError(t, err)

	url := "https://example.com/icons/empty.jpg"
	err = os.WriteFile(cache.Path(url), nil, 0644)
	require.NoError(t, err)

	_, ok := cache.Resolve(url)
	require.False(t, ok)
}
