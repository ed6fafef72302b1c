package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/zombor/bill-ingest/internal/billing"
)

// Archive keeps the original uploads
type Archive interface {
	// Save stores data under key and returns where it was stored
	Save(key string, data []byte) (string, error)
}

// LocalStorage implements the Archive interface using local filesystem
type LocalStorage struct {
	basePath string
}

// NewLocalStorage creates a new LocalStorage instance
func NewLocalStorage(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("creating storage directory: %w", err)
	}

	return &LocalStorage{
		basePath: basePath,
	}, nil
}

// Save writes data under basePath, creating intermediate directories
func (l *LocalStorage) Save(key string, data []byte) (string, error) {
	path := filepath.Join(l.basePath, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("writing file: %w", err)
	}
	return key, nil
}

var (
	unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9\s\-_]`)
	repeatedSpaces      = regexp.MustCompile(`\s+`)
	unsafePathChars     = regexp.MustCompile(`[^a-zA-Z0-9\-_.]`)
)

// sanitizeFilename cleans up a filename by removing special characters and truncating length
func sanitizeFilename(filename string) string {
	filename = filepath.Base(strings.ReplaceAll(filename, `\`, "/"))
	ext := strings.ToLower(unsafePathChars.ReplaceAllString(filepath.Ext(filename), ""))
	base := strings.TrimSuffix(filename, filepath.Ext(filename))

	base = unsafeFilenameChars.ReplaceAllString(base, "")
	base = strings.TrimSpace(repeatedSpaces.ReplaceAllString(base, " "))
	base = strings.ReplaceAll(base, " ", "_")

	// Phones produce very long names; 50 chars is plenty to recognise a file
	maxLen := 50
	if len(base) > maxLen {
		base = base[:maxLen]
	}

	if base == "" {
		base = "bill"
	}

	return base + ext
}

// archiveKey builds {entityId}/{documentType}/{unixMillis}_{filename}
func archiveKey(entityID string, documentType billing.DocumentType, at time.Time, filename string) string {
	entityID = unsafePathChars.ReplaceAllString(entityID, "")
	if entityID == "" || strings.Trim(entityID, ".") == "" {
		entityID = "anonymous"
	}
	return fmt.Sprintf("%s/%s/%d_%s", entityID, documentType, at.UnixMilli(), sanitizeFilename(filename))
}
