package ingest

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/ledger"
)

// File is one unique tabular file found by discovery.
type File struct {
	Path string
	Hash string
	Kind domain.RecordKind
}

// Skipped records a file discovery could not use and why.
type Skipped struct {
	Path   string
	Reason string
}

// Result summarizes one rescan.
type Result struct {
	NewFiles     int
	NoNewContent bool
	FilesByKind  map[domain.RecordKind]int
	RowsByKind   map[domain.RecordKind]int
	SkippedFiles []Skipped
}

// Ingestor discovers raw files, classifies them, and maintains the per-kind
// clean snapshots. Every distinct file ever seen is retained under the
// archive directory keyed by content hash, so snapshots are always rebuilt
// from the union of all known content, not just what currently sits in the
// upload directory.
type Ingestor struct {
	store      dataset.Store
	ledger     ledger.Ledger
	uploadDir  string
	archiveDir string
	extractor  Extractor
	log        *slog.Logger
}

// Option configures an Ingestor.
type Option func(*Ingestor)

// WithLogger overrides the default logger.
func WithLogger(log *slog.Logger) Option {
	return func(i *Ingestor) {
		if log != nil {
			i.log = log
		}
	}
}

// WithExtractor overrides the non-zip archive extractor.
func WithExtractor(e Extractor) Option {
	return func(i *Ingestor) {
		if e != nil {
			i.extractor = e
		}
	}
}

// NewIngestor validates dependencies and prepares the directories.
func NewIngestor(store dataset.Store, lg ledger.Ledger, uploadDir, archiveDir string, opts ...Option) (*Ingestor, error) {
	if store == nil {
		return nil, fmt.Errorf("ingest: store is required")
	}
	if lg == nil {
		return nil, fmt.Errorf("ingest: ledger is required")
	}
	for _, dir := range []string{uploadDir, archiveDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ingest: create %s: %w", dir, err)
		}
	}

	i := &Ingestor{
		store:      store,
		ledger:     lg,
		uploadDir:  uploadDir,
		archiveDir: archiveDir,
		extractor:  NewExecExtractor(),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// UploadDir returns the directory scanned for raw files.
func (i *Ingestor) UploadDir() string { return i.uploadDir }

// Discover walks the upload tree, expands archives, and returns the unique
// classified tabular files plus everything it had to skip.
func (i *Ingestor) Discover(ctx context.Context) (map[domain.RecordKind][]File, []Skipped, error) {
	var skipped []Skipped

	skipped = append(skipped, i.extractArchives(ctx)...)

	byHash := map[string]File{}
	err := filepath.WalkDir(i.uploadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Reason: fmt.Sprintf("walk: %v", err)})
			return nil
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".csv") {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Reason: fmt.Sprintf("read: %v", err)})
			return nil
		}
		hash := HashBytes(data)
		if _, dup := byHash[hash]; dup {
			// Identical bytes under a different name count once.
			return nil
		}

		header, err := readHeader(data)
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Reason: fmt.Sprintf("header: %v", err)})
			return nil
		}
		kind, err := Classify(header)
		if err != nil {
			skipped = append(skipped, Skipped{Path: path, Reason: "unclassifiable header"})
			return nil
		}

		byHash[hash] = File{Path: path, Hash: hash, Kind: kind}
		return nil
	})
	if err != nil {
		return nil, skipped, fmt.Errorf("ingest: walk upload dir: %w", err)
	}

	out := map[domain.RecordKind][]File{}
	for _, f := range byHash {
		out[f.Kind] = append(out[f.Kind], f)
	}
	for _, files := range out {
		sort.Slice(files, func(a, b int) bool { return files[a].Hash < files[b].Hash })
	}
	return out, skipped, nil
}

// extractArchives expands every archive under the upload tree in place,
// best-effort. Each archive extracts into "<name>_extracted" next to it;
// archives whose target directory already exists are assumed done.
func (i *Ingestor) extractArchives(ctx context.Context) []Skipped {
	var skipped []Skipped

	_ = filepath.WalkDir(i.uploadDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		isZip := ext == ".zip"
		isOther := ext == ".7z" || ext == ".rar" || ext == ".tgz" ||
			strings.HasSuffix(strings.ToLower(path), ".tar.gz")
		if !isZip && !isOther {
			return nil
		}

		dest := strings.TrimSuffix(path, filepath.Ext(path)) + "_extracted"
		if _, err := os.Stat(dest); err == nil {
			return nil
		}

		var xerr error
		if isZip {
			xerr = extractZip(path, dest)
		} else {
			xerr = i.extractor.Extract(ctx, path, dest)
		}
		if xerr != nil {
			i.log.Warn("archive extraction skipped", "path", path, "error", xerr)
			skipped = append(skipped, Skipped{Path: path, Reason: fmt.Sprintf("extract: %v", xerr)})
			_ = os.RemoveAll(dest)
		}
		return nil
	})
	return skipped
}

// Ingest decodes the given files and merges them into one table with union
// schema, saving it as the kind's clean snapshot.
func (i *Ingestor) Ingest(ctx context.Context, paths []string, kind domain.RecordKind) (*dataset.Table, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, kind)
	}

	tables := make([]*dataset.Table, 0, len(paths))
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			i.log.Warn("unreadable file skipped", "path", path, "error", err)
			continue
		}
		t, err := DecodeCSV(f)
		f.Close()
		if err != nil {
			i.log.Warn("undecodable file skipped", "path", path, "error", err)
			continue
		}
		if t.NumRows() > 0 {
			tables = append(tables, t)
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, kind)
	}

	merged, err := dataset.Concat(tables...)
	if err != nil {
		return nil, fmt.Errorf("ingest: merge %s files: %w", kind, err)
	}
	if err := i.store.Save(ctx, dataset.CleanSnapshot(kind), merged); err != nil {
		return nil, fmt.Errorf("ingest: save %s snapshot: %w", kind, err)
	}
	return merged, nil
}

// Rescan discovers new content and, when any exists, rebuilds every kind's
// snapshot from the full archived union. Hashes are marked processed only
// after the rebuilt snapshots are saved, keeping ingestion at-least-once.
func (i *Ingestor) Rescan(ctx context.Context) (*Result, error) {
	discovered, skipped, err := i.Discover(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{
		FilesByKind:  map[domain.RecordKind]int{},
		RowsByKind:   map[domain.RecordKind]int{},
		SkippedFiles: skipped,
	}

	var newHashes []string
	for _, kind := range domain.Kinds() {
		for _, f := range discovered[kind] {
			isNew, err := i.ledger.IsNew(ctx, f.Hash)
			if err != nil {
				return nil, fmt.Errorf("ingest: ledger lookup: %w", err)
			}
			if !isNew {
				continue
			}
			if err := i.archiveFile(f); err != nil {
				return nil, err
			}
			newHashes = append(newHashes, f.Hash)
		}
	}

	if len(newHashes) == 0 {
		res.NoNewContent = true
		i.log.Info("rescan found no new content", "skipped", len(skipped))
		return res, nil
	}
	res.NewFiles = len(newHashes)

	for _, kind := range domain.Kinds() {
		paths, err := i.archivedPaths(kind)
		if err != nil {
			return nil, err
		}
		res.FilesByKind[kind] = len(paths)
		if len(paths) == 0 {
			i.log.Warn("no files for kind", "kind", kind)
			continue
		}
		merged, err := i.Ingest(ctx, paths, kind)
		if err != nil {
			if errors.Is(err, ErrNoFiles) {
				i.log.Warn("kind produced no rows", "kind", kind)
				continue
			}
			return nil, err
		}
		res.RowsByKind[kind] = merged.NumRows()
	}

	if err := i.ledger.MarkProcessed(ctx, newHashes...); err != nil {
		return nil, fmt.Errorf("ingest: mark processed: %w", err)
	}

	i.log.Info("rescan merged new content",
		"new_files", res.NewFiles,
		"enrolment_rows", res.RowsByKind[domain.KindEnrolment],
		"demographic_rows", res.RowsByKind[domain.KindDemographic],
		"biometric_rows", res.RowsByKind[domain.KindBiometric])
	return res, nil
}

// ClearArchive removes every archived raw copy; used by full system reset.
func (i *Ingestor) ClearArchive(ctx context.Context) error {
	if err := os.RemoveAll(i.archiveDir); err != nil {
		return fmt.Errorf("ingest: clear archive: %w", err)
	}
	if err := os.MkdirAll(i.archiveDir, 0o755); err != nil {
		return fmt.Errorf("ingest: recreate archive: %w", err)
	}
	return nil
}

func (i *Ingestor) archiveFile(f File) error {
	dir := filepath.Join(i.archiveDir, string(f.Kind))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ingest: create archive dir: %w", err)
	}
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return fmt.Errorf("ingest: re-read %s: %w", f.Path, err)
	}
	target := filepath.Join(dir, f.Hash+".csv")
	if err := os.WriteFile(target, data, 0o644); err != nil {
		return fmt.Errorf("ingest: archive %s: %w", f.Path, err)
	}
	return nil
}

func (i *Ingestor) archivedPaths(kind domain.RecordKind) ([]string, error) {
	dir := filepath.Join(i.archiveDir, string(kind))
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ingest: list archive %s: %w", kind, err)
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".csv") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// HashBytes returns the hex SHA-256 content hash used for deduplication.
func HashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// readHeader returns the first CSV record.
func readHeader(data []byte) ([]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err != nil {
		return nil, err
	}
	return header, nil
}
