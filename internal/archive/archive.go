// Package archive copies stage outputs to object storage, zstd-compressed and
// keyed by run and stage.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/laue-dials/laue-go/internal/domain"
	"github.com/laue-dials/laue-go/internal/storage/objectstore"
)

const (
	contentType      = "application/zstd"
	metaSHA256       = "sha256"
	metaSize         = "original-size"
	compressedSuffix = ".zst"
)

// Entry describes one archived file.
type Entry struct {
	Source  string
	Key     string
	SHA256  string
	Size    int64
	Skipped bool
}

type Archiver struct {
	store  objectstore.Store
	bucket string
	logger *slog.Logger
}

func New(store objectstore.Store, bucket string, logger *slog.Logger) (*Archiver, error) {
	if store == nil {
		return nil, errors.New("object store is required")
	}
	if strings.TrimSpace(bucket) == "" {
		return nil, errors.New("bucket is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: store, bucket: bucket, logger: logger}, nil
}

// Key returns the object key for a stage output file.
func Key(runID string, stage domain.Stage, source string) string {
	return path.Join("runs", runID, string(stage), filepath.Base(source)+compressedSuffix)
}

// ArchiveStage uploads every file of a stage output. Files already stored
// with the same checksum are skipped.
func (a *Archiver) ArchiveStage(ctx context.Context, runID string, stage domain.Stage, files ...string) ([]Entry, error) {
	entries := make([]Entry, 0, len(files))
	for _, source := range files {
		if strings.TrimSpace(source) == "" {
			continue
		}
		entry, err := a.archiveFile(ctx, runID, stage, source)
		if err != nil {
			return entries, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func (a *Archiver) archiveFile(ctx context.Context, runID string, stage domain.Stage, source string) (Entry, error) {
	key := Key(runID, stage, source)

	tmp, err := os.CreateTemp("", "laue-archive-*"+compressedSuffix)
	if err != nil {
		return Entry{}, fmt.Errorf("archive temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	sum, size, err := compressFile(source, tmp)
	if err != nil {
		return Entry{}, err
	}
	entry := Entry{Source: source, Key: key, SHA256: sum, Size: size}

	if info, err := a.store.Stat(ctx, a.bucket, key); err == nil && metadataValue(info.UserMetadata, metaSHA256) == sum {
		entry.Skipped = true
		a.logger.Debug("archive object up to date", "key", key)
		return entry, nil
	}

	compressed, err := tmp.Seek(0, io.SeekEnd)
	if err != nil {
		return Entry{}, fmt.Errorf("archive size: %w", err)
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return Entry{}, fmt.Errorf("archive rewind: %w", err)
	}
	opts := objectstore.PutOptions{
		ContentType: contentType,
		UserMetadata: map[string]string{
			metaSHA256: sum,
			metaSize:   strconv.FormatInt(size, 10),
		},
	}
	if err := a.store.Put(ctx, a.bucket, key, tmp, compressed, opts); err != nil {
		return Entry{}, fmt.Errorf("upload %s: %w", key, err)
	}
	a.logger.Info("archived stage output", "key", key, "size", size, "compressed", compressed)
	return entry, nil
}

// compressFile writes the zstd stream of source to dst and returns the
// sha256 and size of the uncompressed content.
func compressFile(source string, dst io.Writer) (string, int64, error) {
	f, err := os.Open(source)
	if err != nil {
		return "", 0, fmt.Errorf("open stage output: %w", err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(dst, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return "", 0, fmt.Errorf("zstd writer: %w", err)
	}
	hasher := sha256.New()
	size, err := io.Copy(enc, io.TeeReader(f, hasher))
	if err != nil {
		_ = enc.Close()
		return "", 0, fmt.Errorf("compress %s: %w", source, err)
	}
	if err := enc.Close(); err != nil {
		return "", 0, fmt.Errorf("compress %s: %w", source, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// metadataValue looks a key up case-insensitively; S3 servers canonicalize
// user metadata names.
func metadataValue(meta map[string]string, key string) string {
	for k, v := range meta {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}
