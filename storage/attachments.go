// Package storage keeps chat attachments on local disk. The badger store only
// holds the reference; bytes live here.
package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// Attachment describes one stored upload.
type Attachment struct {
	ID   string `json:"id"`
	Mime string `json:"mime"`
	Size int64  `json:"size"`
	Path string `json:"-"`
}

// allowedMimes restricts uploads to what the chat UI can render.
var allowedMimes = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/webp":      ".webp",
	"application/pdf": ".pdf",
}

type AttachmentStore struct {
	root string
	log  *slog.Logger
}

func NewAttachmentStore(root string, log *slog.Logger) (*AttachmentStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &AttachmentStore{root: root, log: log}, nil
}

// Save sniffs the content type from the bytes themselves (never from the
// client-declared header) and persists the file under a generated name.
func (s *AttachmentStore) Save(data []byte) (Attachment, error) {
	detected := mimetype.Detect(data)
	ext, ok := allowedMimes[detected.String()]
	if !ok {
		return Attachment{}, fmt.Errorf("unsupported attachment type: %s", detected.String())
	}

	id := uuid.NewString()
	path := filepath.Join(s.root, id+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return Attachment{}, err
	}
	s.log.Info("Attachment stored", "id", id, "mime", detected.String(), "bytes", len(data))
	return Attachment{ID: id, Mime: detected.String(), Size: int64(len(data)), Path: path}, nil
}

// Open returns the stored file path for an attachment ID, checking the ID is
// a UUID so path traversal is impossible.
func (s *AttachmentStore) Open(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("invalid attachment id: %w", err)
	}
	matches, err := filepath.Glob(filepath.Join(s.root, id+".*"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", os.ErrNotExist
	}
	return matches[0], nil
}
