// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"sync"

	"github.com/sourcegraph/conc/pool"
)

// extractCopyBufferSize defines per-entry buffer size for file copy during extraction.
const extractCopyBufferSize = 64 * 1024

// extractWorkItem stores one selected entry with prepared output relative paths.
type extractWorkItem struct {
	key     string
	relPath string
	relDir  string
	size    int64
	order   int
}

// extractOpenFunc opens the payload stream of one selected key.
type extractOpenFunc func(key string) (io.ReadCloser, error)

// ExtractTo writes the decompressed bytes of one entry to destDir/destFileName,
// creating parent directories. Empty destFileName uses the base name of key.
func (a *Archive) ExtractTo(destDir, key, destFileName string) error {
	data, err := a.ReadEntry(key)
	if err != nil {
		return err
	}

	if destFileName == "" {
		destFileName = path.Base(NormalizePath(key))
	}

	return writeExtractFile(destDir, destFileName, data)
}

// Extract writes selected entries to dstDir. Work is spread over MaxWorkers
// goroutines; failing entries are collected into *ExtractError and do not stop
// the remaining entries.
func (a *Archive) Extract(ctx context.Context, dstDir string, opts ExtractOptions) error {
	if err := a.checkOpen(); err != nil {
		return err
	}

	entries := a.Entries()
	keys := make([]string, len(entries))
	sizes := make(map[string]int64, len(entries))
	for i := range entries {
		keys[i] = entries[i].Key
		sizes[entries[i].Key] = int64(entries[i].Size)
	}

	return extractKeys(ctx, dstDir, keys, opts, func(key string) int64 { return sizes[key] }, func(key string) (io.ReadCloser, error) {
		return a.OpenEntry(key)
	})
}

// extractKeys runs the shared selection, naming and worker logic for any container.
func extractKeys(
	ctx context.Context,
	dstDir string,
	keys []string,
	opts ExtractOptions,
	sizeOf func(key string) int64,
	open extractOpenFunc,
) error {
	opts.applyDefaults()

	selector, err := newEntrySelector(opts)
	if err != nil {
		return err
	}

	selected := make([]string, 0, len(keys))
	for _, key := range keys {
		if selector.Selected(key) {
			selected = append(selected, key)
		}
	}
	if len(selected) == 0 {
		return nil
	}

	dstRootAbs, err := filepath.Abs(dstDir)
	if err != nil {
		return fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(dstRootAbs, 0o750); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	workItems, failures, err := prepareExtractWorkItems(selected, opts.RawNames, sizeOf)
	if err != nil {
		return err
	}
	if err := prepareExtractDirs(dstRootAbs, workItems); err != nil {
		return err
	}

	workers := opts.MaxWorkers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var mu sync.Mutex
	p := pool.New().WithMaxGoroutines(max(workers, 1))
	for _, task := range workItems {
		if ctx.Err() != nil {
			break
		}

		p.Go(func() {
			if err := extractPreparedEntry(ctx, dstRootAbs, task, opts, open); err != nil {
				mu.Lock()
				failures = append(failures, orderedFailure{order: task.order, EntryFailure: EntryFailure{Key: task.key, Err: err}})
				mu.Unlock()
			}
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if len(failures) == 0 {
		return nil
	}

	slices.SortFunc(failures, func(a, b orderedFailure) int { return a.order - b.order })
	out := &ExtractError{Failures: make([]EntryFailure, len(failures))}
	for i := range failures {
		out.Failures[i] = failures[i].EntryFailure
	}

	return out
}

// orderedFailure keeps the selection position of a failed entry.
type orderedFailure struct {
	EntryFailure
	order int
}

// prepareExtractWorkItems prepares relative fs paths. Keys that cannot be
// mapped to a safe path are returned as failures.
func prepareExtractWorkItems(keys []string, rawNames bool, sizeOf func(string) int64) ([]extractWorkItem, []orderedFailure, error) {
	names := keys
	if !rawNames {
		sanitized, err := sanitizeKeys(keys)
		if err != nil {
			return nil, nil, err
		}

		names = sanitized
	}

	var failures []orderedFailure
	workItems := make([]extractWorkItem, 0, len(keys))
	for i, key := range keys {
		normalizedPath, err := normalizeExtractEntryPath(names[i])
		if err != nil {
			failures = append(failures, orderedFailure{order: i, EntryFailure: EntryFailure{Key: key, Err: fmt.Errorf("%w: %s", err, key)}})
			continue
		}

		relPath := filepath.FromSlash(normalizedPath)
		relDir := filepath.Dir(relPath)
		if relDir == "." {
			relDir = ""
		}

		workItems = append(workItems, extractWorkItem{
			key:     key,
			relPath: relPath,
			relDir:  relDir,
			size:    sizeOf(key),
			order:   i,
		})
	}

	return workItems, failures, nil
}

// prepareExtractDirs creates all unique parent directories needed by work items.
func prepareExtractDirs(dstRootAbs string, workItems []extractWorkItem) error {
	seen := make(map[string]struct{}, len(workItems))
	for _, task := range workItems {
		if task.relDir == "" {
			continue
		}

		dirPath := filepath.Join(dstRootAbs, task.relDir)
		key := strings.ToLower(dirPath)
		if _, exists := seen[key]; exists {
			continue
		}

		seen[key] = struct{}{}
		if err := os.MkdirAll(dirPath, 0o750); err != nil {
			return fmt.Errorf("create output directory %s: %w", dirPath, err)
		}
	}

	return nil
}

// extractPreparedEntry writes one prepared work item to destination root.
func extractPreparedEntry(ctx context.Context, dstRootAbs string, task extractWorkItem, opts ExtractOptions, open extractOpenFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	outPath := filepath.Join(dstRootAbs, task.relPath)
	file, err := openExtractFile(outPath, opts.FileMode)
	if err != nil {
		return fmt.Errorf("open %s: %w", task.key, err)
	}
	if file == nil {
		return nil
	}

	rc, err := open(task.key)
	if err != nil {
		_ = file.Close()
		return err
	}
	defer func() { _ = rc.Close() }()

	buf := make([]byte, min(extractCopyBufferSize, max(task.size, 1)))
	written, copyErr := io.CopyBuffer(file, rc, buf)
	closeErr := file.Close()
	if copyErr != nil {
		return fmt.Errorf("write %s: %w", task.key, copyErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close %s: %w", task.key, closeErr)
	}

	if opts.OnEntryDone != nil {
		opts.OnEntryDone(task.key, written, outPath)
	}

	return nil
}

// openExtractFile opens output path according to the file mode.
// A nil file with nil error means the entry is skipped.
func openExtractFile(path string, mode ExtractFileMode) (*os.File, error) {
	switch mode {
	case ExtractFileModeTruncate:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	case ExtractFileModeCreateOnly:
		return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	case ExtractFileModeSkipExisting:
		file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err != nil && os.IsExist(err) {
			return nil, nil
		}

		return file, err
	default:
		return nil, fmt.Errorf("unknown extract file mode %q", mode)
	}
}

// writeExtractFile writes data to destDir/name, creating parents.
func writeExtractFile(destDir, name string, data []byte) error {
	rel, err := normalizeExtractEntryPath(name)
	if err != nil {
		return fmt.Errorf("%w: %s", err, name)
	}

	outPath := filepath.Join(destDir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(outPath), 0o750); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	if err := os.WriteFile(outPath, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}

	return nil
}

// normalizeExtractEntryPath normalizes entry path and rejects absolute/traversal inputs.
func normalizeExtractEntryPath(entryPath string) (string, error) {
	raw := strings.TrimSpace(entryPath)
	if raw == "" {
		return "", ErrInvalidExtractPath
	}
	if strings.ContainsRune(raw, 0) {
		return "", ErrInvalidExtractPath
	}
	if strings.HasPrefix(raw, `/`) || strings.HasPrefix(raw, `\`) {
		return "", ErrInvalidExtractPath
	}

	raw = strings.ReplaceAll(raw, `\`, `/`)
	if hasWindowsAbsDrivePrefix(raw) {
		return "", ErrInvalidExtractPath
	}

	parts := strings.Split(raw, `/`)
	cleanParts := make([]string, 0, len(parts))
	for _, part := range parts {
		switch part {
		case "", ".":
			continue
		case "..":
			return "", ErrInvalidExtractPath
		default:
			cleanParts = append(cleanParts, part)
		}
	}
	if len(cleanParts) == 0 {
		return "", ErrInvalidExtractPath
	}

	return strings.Join(cleanParts, `/`), nil
}

// hasWindowsAbsDrivePrefix reports whether path starts with drive-root prefix like C:/.
func hasWindowsAbsDrivePrefix(path string) bool {
	if len(path) < 3 {
		return false
	}

	return isASCIIAlpha(path[0]) && path[1] == ':' && path[2] == '/'
}

// isASCIIAlpha reports whether byte is ASCII latin letter.
func isASCIIAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
