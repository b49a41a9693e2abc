package yomichan

import (
	"bytes"
	"encoding/hex"
	"image/png"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/zeebo/blake3"
	"golang.org/x/image/webp"

	"github.com/meikido/kotoba/internal/logging"
)

// ResourceResolver extracts images referenced by a packaged lexicon into
// a shared resource cache directory. Cache filenames are content
// addressed by (source title, relative path), so repeated imports of an
// unmodified source reuse the extracted files. Extraction and transcode
// failures resolve to ""; the renderer treats that as "no image".
type ResourceResolver struct {
	fsys     fs.FS
	title    string
	cacheDir string
}

// NewResourceResolver creates a resolver over an already-opened lexicon
// file system.
func NewResourceResolver(fsys fs.FS, title, cacheDir string) *ResourceResolver {
	return &ResourceResolver{fsys: fsys, title: title, cacheDir: cacheDir}
}

// Resolve implements render.Resolver.
func (r *ResourceResolver) Resolve(relPath string) string {
	clean := path.Clean(strings.TrimPrefix(relPath, "/"))
	if clean == "." || strings.HasPrefix(clean, "..") {
		return ""
	}

	transcode := strings.ToLower(path.Ext(clean)) == ".webp"
	cachePath := filepath.Join(r.cacheDir, cacheName(r.title, clean))

	if _, err := os.Stat(cachePath); err == nil {
		return cachePath
	}

	data, err := fs.ReadFile(r.fsys, clean)
	if err != nil {
		logging.Debug("resource extraction failed", "source", r.title, "path", clean, "error", err)
		return ""
	}

	if transcode {
		data, err = webpToPNG(data)
		if err != nil {
			logging.Debug("resource transcode failed", "source", r.title, "path", clean, "error", err)
			return ""
		}
	}

	if err := writeFileAtomic(r.cacheDir, cachePath, data); err != nil {
		logging.Debug("resource cache write failed", "source", r.title, "path", clean, "error", err)
		return ""
	}
	return cachePath
}

// cacheName computes the content-addressed cache filename for a
// resource: the blake3 hash of (title, relative path) plus the extension
// the cached payload will carry (.png for transcoded WebP sources).
func cacheName(title, relPath string) string {
	sum := blake3.Sum256([]byte(title + ":" + relPath))
	ext := strings.ToLower(path.Ext(relPath))
	if ext == ".webp" {
		ext = ".png"
	}
	return hex.EncodeToString(sum[:]) + ext
}

// webpToPNG transcodes a WebP payload to PNG, the one uncommon codec
// packaged lexicons ship that display layers cannot load directly.
func webpToPNG(data []byte) ([]byte, error) {
	img, err := webp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeFileAtomic writes data through a temp file and rename, so a
// half-written resource is never visible under its final name.
func writeFileAtomic(dir, dest string, data []byte) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".resource-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
