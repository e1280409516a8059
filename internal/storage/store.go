// Package storage stages uploaded documents and chat attachments in object storage.
package storage

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// ObjectStore is the minimal object storage surface the service needs.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Delete(ctx context.Context, key string) error
}

// Config for an Uploader.
type Config struct {
	Prefix string           // key prefix, e.g. "textract_uploads"
	Now    func() time.Time // injectable clock; defaults to time.Now
}

// Uploader stages files under generated keys and removes them best-effort.
type Uploader struct {
	store  ObjectStore
	cfg    Config
	logger *slog.Logger
}

func NewUploader(store ObjectStore, cfg Config, logger *slog.Logger) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	cfg.Prefix = strings.Trim(cfg.Prefix, "/")
	return &Uploader{store: store, cfg: cfg, logger: logger}
}

// Stage stores r under a fresh key and returns that key.
func (u *Uploader) Stage(ctx context.Context, r io.Reader, filename, contentType string) (string, error) {
	key := u.NewKey(filename)
	return key, u.StageAt(ctx, key, r, contentType)
}

// StageAt stores r under an explicit key.
func (u *Uploader) StageAt(ctx context.Context, key string, r io.Reader, contentType string) error {
	start := time.Now()
	u.logger.Info("storage.stage.start", "key", key, "content_type", contentType)
	if err := u.store.Put(ctx, key, r, contentType); err != nil {
		u.logger.Error("storage.stage.failed", "key", key, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		return fmt.Errorf("stage %s: %w", key, err)
	}
	u.logger.Info("storage.stage.ok", "key", key, "elapsed_ms", time.Since(start).Milliseconds())
	return nil
}

// Remove deletes key. Failures are logged and swallowed.
func (u *Uploader) Remove(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := u.store.Delete(ctx, key); err != nil {
		u.logger.Warn("storage.remove.failed", "key", key, "error", err)
		return
	}
	u.logger.Info("storage.remove.ok", "key", key)
}

// NewKey builds "{prefix}/{unix}_{random}_{filename}".
func (u *Uploader) NewKey(filename string) string {
	name := fmt.Sprintf("%d_%s_%s", u.cfg.Now().Unix(), randomToken(), SanitizeFilename(filename))
	if u.cfg.Prefix == "" {
		return name
	}
	return u.cfg.Prefix + "/" + name
}

// KeyUnder builds "{prefix}/{segments...}/{uuid}_{filename}".
func (u *Uploader) KeyUnder(filename string, segments ...string) string {
	parts := make([]string, 0, len(segments)+2)
	if u.cfg.Prefix != "" {
		parts = append(parts, u.cfg.Prefix)
	}
	for _, s := range segments {
		parts = append(parts, SanitizeFilename(s))
	}
	parts = append(parts, uuid.NewString()+"_"+SanitizeFilename(filename))
	return strings.Join(parts, "/")
}

// SanitizeFilename keeps the base name and replaces characters unsafe in object keys.
func SanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r < 128 && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		return "upload"
	}
	return out
}

func randomToken() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("%08x", time.Now().UnixNano()&0xffffffff)
	}
	return hex.EncodeToString(b[:])
}
