package raster

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

// Cache provides thread-safe caching of decoded document images so that
// repeated tool calls against the same file skip disk I/O and decoding.
//
// Cached buffers are shared between callers. Every pipeline stage treats
// its input as read-only, so sharing is safe as long as callers follow the
// same rule.
//
// # Memory Management
//
// Buffers remain cached until removed via Evict or Clear. Phone captures
// are large (a 12MP photo is ~48MB as RGBA), so long-running servers
// should evict files once a scan completes.
type Cache struct {
	mu      sync.RWMutex
	buffers map[string]*Buffer
}

// NewCache creates an empty cache ready for concurrent use.
func NewCache() *Cache {
	return &Cache{
		buffers: make(map[string]*Buffer),
	}
}

// Load returns the decoded buffer for path, reading and decoding the file
// on the first call.
//
// Decoding honours EXIF orientation, so portrait phone photos arrive
// upright. PNG, JPEG, GIF, BMP, TIFF and WebP files are accepted.
//
// The cache key is the exact path string; relative and absolute spellings
// of the same file are cached separately.
func (c *Cache) Load(path string) (*Buffer, error) {
	c.mu.RLock()
	if buf, ok := c.buffers[path]; ok {
		c.mu.RUnlock()
		return buf, nil
	}
	c.mu.RUnlock()

	buf, err := Open(path)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.buffers[path] = buf
	c.mu.Unlock()

	return buf, nil
}

// Open reads and decodes path without caching, honouring EXIF
// orientation.
func Open(path string) (*Buffer, error) {
	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	buf, err := FromImage(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	return buf, nil
}

// Clear removes all cached buffers.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.buffers = make(map[string]*Buffer)
	c.mu.Unlock()
}

// Evict removes the buffer cached under path, if any.
func (c *Cache) Evict(path string) {
	c.mu.Lock()
	delete(c.buffers, path)
	c.mu.Unlock()
}

// Len reports how many buffers are cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.buffers)
}

// Info describes a document image file.
type Info struct {
	// Width is the image width in pixels after orientation correction.
	Width int `json:"width"`

	// Height is the image height in pixels after orientation correction.
	Height int `json:"height"`

	// Format is the lower-case format name derived from the file
	// extension ("jpeg", "png", "webp", ...), or "unknown".
	Format string `json:"format"`

	// FileSizeBytes is the size of the file on disk.
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadInfo loads path into the cache and reports its dimensions, format
// and size on disk.
func LoadInfo(cache *Cache, path string) (*Info, error) {
	buf, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	return &Info{
		Width:         buf.Width,
		Height:        buf.Height,
		Format:        formatName(path),
		FileSizeBytes: stat.Size(),
	}, nil
}

func formatName(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".webp" {
		return "webp"
	}
	f, err := imaging.FormatFromFilename(path)
	if err != nil {
		return "unknown"
	}
	return strings.ToLower(f.String())
}
