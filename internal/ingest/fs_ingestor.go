package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"
)

// MaxFileBytes caps how much of an inbox file is read.
const MaxFileBytes = 64 << 10

var (
	ErrUnsupportedExt = errors.New("unsupported or missing extension")
	ErrEmptyOrder     = errors.New("order file is empty")
	ErrTooLarge       = errors.New("order file too large")
	ErrNotUTF8        = errors.New("order file is not valid UTF-8")
)

// FSIngestor reads order files from the local filesystem. Identical content
// is submitted once per process; the content hash is the dedup key.
type FSIngestor struct {
	AllowedExts map[string]struct{} // lowercased sans '.'; nil -> default set
	Now         func() time.Time

	submit SubmitFunc
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]string // sha256 hex -> order id
}

func NewFSIngestor(submit SubmitFunc, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		Now:    time.Now,
		submit: submit,
		logger: logger,
		seen:   map[string]string{},
	}
}

func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	var out IngestionResult

	abs, err := filepath.Abs(path)
	if err != nil {
		return out, fmt.Errorf("abs path: %w", err)
	}
	out.SourcePath = abs
	if !AllowedExt(abs, i.AllowedExts) {
		return out, fmt.Errorf("%w: %q", ErrUnsupportedExt, filepath.Ext(abs))
	}

	body, err := readOrderFile(abs)
	if err != nil {
		return out, err
	}
	sum := sha256.Sum256(body)
	out.HashHex = hex.EncodeToString(sum[:])
	out.IngestedAt = i.Now().UTC()

	i.mu.Lock()
	if id, ok := i.seen[out.HashHex]; ok {
		i.mu.Unlock()
		out.OrderID = id
		out.Deduplicated = true
		i.logger.Debug("inbox.file.dedup", "path", abs, "order_id", id)
		return out, nil
	}
	i.mu.Unlock()

	id, err := i.submit(ctx, strings.ReplaceAll(string(body), "\r\n", "\n"))
	if err != nil {
		return out, fmt.Errorf("submit: %w", err)
	}

	i.mu.Lock()
	if prev, ok := i.seen[out.HashHex]; ok {
		// a concurrent ingest of the same content won the race
		id, out.Deduplicated = prev, true
	} else {
		i.seen[out.HashHex] = id
	}
	i.mu.Unlock()

	out.OrderID = id
	i.logger.Info("inbox.file.ok", "path", abs, "order_id", id, "sha256", out.HashHex[:12])
	return out, nil
}

// IngestDirectory walks root, skips hidden if requested,
// and calls IngestPath for each file. Returns per-file results + aggregate stats.
func (i *FSIngestor) IngestDirectory(
	ctx context.Context,
	root string,
	skipHidden bool,
) ([]IngestionResult, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root_path is required")
	}

	var results []IngestionResult
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			results = append(results, IngestionResult{SourcePath: path, Err: walkErr.Error()})
			stats.Failed++
			return nil
		}
		if skipHidden && path != root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if d.IsDir() {
			return nil
		}
		if !AllowedExt(path, i.AllowedExts) {
			return nil
		}
		stats.Matched++

		r, err := i.IngestPath(ctx, path)
		if err != nil {
			i.logger.Warn("inbox.file.failed", "path", path, "error", err)
			results = append(results, IngestionResult{SourcePath: path, Err: err.Error()})
			stats.Failed++
			return nil
		}

		results = append(results, r)
		stats.Succeeded++
		if r.Deduplicated {
			stats.Deduplicated++
		}
		return nil
	})

	if err != nil {
		return results, stats, fmt.Errorf("walk: %w", err)
	}
	return results, stats, nil
}

func readOrderFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	body, err := io.ReadAll(io.LimitReader(f, MaxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	if len(body) > MaxFileBytes {
		return nil, ErrTooLarge
	}
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(body) {
		return nil, ErrNotUTF8
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyOrder
	}
	return body, nil
}
