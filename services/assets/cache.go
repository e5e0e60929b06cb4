package assets

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Cache is the shared on-disk icon cache, keyed by image URL (not by
// achievement, since the same icon may be reused across entries).
type Cache struct {
	dir string
}

func NewCache(dir string) (Cache, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return Cache{}, err
	}
	return Cache{dir: dir}, nil
}

// Key hashes the URL and keeps the original extension so cached files
// stay recognizable as images.
func (c Cache) Key(rawURL string) string {
	sum := sha256.Sum256([]byte(rawURL))
	key := hex.EncodeToString(sum[:])

	ext := ".jpg"
	if u, err := url.Parse(rawURL); err == nil {
		if e := strings.ToLower(path.Ext(u.Path)); e != "" {
			ext = e
		}
	}
	return key + ext
}

func (c Cache) Path(rawURL string) string {
	return filepath.Join(c.dir, c.Key(rawURL))
}

// Resolve returns the cached file for a URL; a hit requires the file
// to exist and be non-empty.
func (c Cache) Resolve(rawURL string) (string, bool) {
	p := c.Path(rawURL)
	info, err := os.Stat(p)
	if err != nil || info.Size() == 0 {
		return "", false
	}
	return p, true
}

// Put writes the fetched body through a temp file and an atomic rename
// so a torn write never shows up as a cache hit.
func (c Cache) Put(rawURL string, body []byte) (string, error) {
	p := c.Path(rawURL)

	tmp, err := os.CreateTemp(c.dir, ".partial-*")
	if err != nil {
		return "", err
	}
	_, err = tmp.Write(body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	err = os.Rename(tmp.Name(), p)
	if err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return p, nil
}
