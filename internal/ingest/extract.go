package ingest

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// Extractor expands non-zip archives. Extraction is best-effort: a failure
// skips the archive, it never aborts a scan.
type Extractor interface {
	// Extract expands the archive into destDir, creating it if needed.
	Extract(ctx context.Context, archivePath, destDir string) error
}

// ExecExtractor shells out to the first available of a list of extraction
// commands (7z by default).
type ExecExtractor struct {
	commands [][]string
}

// NewExecExtractor returns the default command-based extractor. Each command
// template uses %ARCHIVE% and %DEST% placeholders.
func NewExecExtractor() *ExecExtractor {
	return &ExecExtractor{
		commands: [][]string{
			{"7z", "x", "-y", "-o%DEST%", "%ARCHIVE%"},
			{"unar", "-force-overwrite", "-output-directory", "%DEST%", "%ARCHIVE%"},
		},
	}
}

// Extract tries each configured command until one succeeds.
func (e *ExecExtractor) Extract(ctx context.Context, archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("ingest: create extract dir: %w", err)
	}

	var lastErr error
	for _, tmpl := range e.commands {
		name := tmpl[0]
		if _, err := exec.LookPath(name); err != nil {
			lastErr = fmt.Errorf("ingest: %s not available: %w", name, err)
			continue
		}
		args := make([]string, 0, len(tmpl)-1)
		for _, a := range tmpl[1:] {
			a = strings.ReplaceAll(a, "%ARCHIVE%", archivePath)
			a = strings.ReplaceAll(a, "%DEST%", destDir)
			args = append(args, a)
		}
		cmd := exec.CommandContext(ctx, name, args...)
		if out, err := cmd.CombinedOutput(); err != nil {
			lastErr = fmt.Errorf("ingest: %s failed: %w: %s", name, err, strings.TrimSpace(string(out)))
			continue
		}
		return nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("ingest: no extraction command configured")
	}
	return lastErr
}

// extractZip expands a zip archive natively. Entries escaping destDir are
// rejected.
func extractZip(archivePath, destDir string) error {
	zr, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("ingest: open zip: %w", err)
	}
	defer zr.Close()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("ingest: create extract dir: %w", err)
	}

	for _, f := range zr.File {
		target := filepath.Join(destDir, filepath.Clean(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(destDir)+string(os.PathSeparator)) {
			return fmt.Errorf("ingest: zip entry %q escapes destination", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("ingest: create zip dir: %w", err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("ingest: create zip parent: %w", err)
		}
		if err := copyZipEntry(f, target); err != nil {
			return err
		}
	}
	return nil
}

func copyZipEntry(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("ingest: open zip entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("ingest: create %q: %w", target, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, rc); err != nil {
		return fmt.Errorf("ingest: extract %q: %w", f.Name, err)
	}
	return nil
}
