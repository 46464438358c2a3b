package httptransport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/mssola/useragent"

	"fluxmap/internal/dataset"
	"fluxmap/internal/domain"
	"fluxmap/internal/ingest"
	"fluxmap/internal/pipeline"
	dErrors "fluxmap/pkg/domainerrors"
	"fluxmap/pkg/httputil"
	"fluxmap/pkg/requestcontext"
)

// maxUploadBytes bounds one upload request body.
const maxUploadBytes = 256 << 20

func (h *Handlers) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	components := map[string]string{}
	healthy := true

	if _, err := h.deps.Store.List(ctx); err != nil {
		components["store"] = err.Error()
		healthy = false
	} else {
		components["store"] = "ok"
	}

	if _, err := h.deps.Ledger.Hashes(ctx); err != nil {
		components["ledger"] = err.Error()
		healthy = false
	} else {
		components["ledger"] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	httputil.WriteJSON(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}

func (h *Handlers) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InitializeDemo bool `json:"initialize_demo"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid JSON body", err))
		return
	}

	manifest, err := h.deps.Orchestrator.Run(r.Context(), pipeline.RunOptions{
		InitializeDemo: req.InitializeDemo,
	})
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusAccepted, manifest)
}

func (h *Handlers) handlePipelineStatus(w http.ResponseWriter, r *http.Request) {
	manifest, err := h.deps.Orchestrator.Status(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, manifest)
}

func (h *Handlers) handleDataStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	hashes, err := h.deps.Ledger.Hashes(ctx)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}

	snapshots := map[string]int{}
	names := []string{
		dataset.CleanSnapshot(domain.KindEnrolment),
		dataset.CleanSnapshot(domain.KindDemographic),
		dataset.CleanSnapshot(domain.KindBiometric),
	}
	names = append(names, dataset.DerivedSnapshots()...)
	for _, name := range names {
		t, err := h.deps.Store.Load(ctx, name)
		if errors.Is(err, dataset.ErrNotFound) {
			continue
		}
		if err != nil {
			httputil.WriteError(w, apiError(err))
			return
		}
		snapshots[name] = t.NumRows()
	}

	files, size := uploadDirStats(h.deps.Ingestor.UploadDir())
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"processed_hashes": len(hashes),
		"snapshots":        snapshots,
		"upload_dir": map[string]any{
			"path":  h.deps.Ingestor.UploadDir(),
			"files": files,
			"bytes": size,
		},
		"pipeline_running": h.deps.Orchestrator.Running(),
	})
}

func uploadDirStats(dir string) (files int, size int64) {
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		files++
		if info, err := d.Info(); err == nil {
			size += info.Size()
		}
		return nil
	})
	return files, size
}

func (h *Handlers) handleDataUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h.logUploadClient(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		httputil.WriteError(w, dErrors.Wrap(dErrors.CodeBadRequest, "invalid multipart body", err))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	var saved []string
	for _, headers := range r.MultipartForm.File {
		for _, fh := range headers {
			name, err := h.saveUpload(fh)
			if err != nil {
				httputil.WriteError(w, err)
				return
			}
			saved = append(saved, name)
		}
	}
	if len(saved) == 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "no files in upload"))
		return
	}

	result, err := h.deps.Ingestor.Rescan(ctx)
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"saved":  saved,
		"rescan": rescanBody(result),
	})
}

// logUploadClient records who pushed data, with the raw user agent parsed
// into something greppable.
func (h *Handlers) logUploadClient(ctx context.Context) {
	raw := requestcontext.UserAgent(ctx)
	ua := useragent.New(raw)
	browser, version := ua.Browser()
	h.log.Info("data upload received",
		"client_ip", requestcontext.ClientIP(ctx),
		"browser", browser,
		"browser_version", version,
		"os", ua.OS(),
		"mobile", ua.Mobile(),
		"bot", ua.Bot(),
		"request_id", requestcontext.RequestID(ctx),
	)
}

func (h *Handlers) saveUpload(fh *multipart.FileHeader) (string, error) {
	name := filepath.Base(fh.Filename)
	if name == "." || name == "/" || name == "" {
		return "", dErrors.New(dErrors.CodeBadRequest, "invalid file name")
	}

	src, err := fh.Open()
	if err != nil {
		return "", dErrors.Wrap(dErrors.CodeBadRequest, "open uploaded file", err)
	}
	defer src.Close()

	target := filepath.Join(h.deps.Ingestor.UploadDir(), name)
	dst, err := os.Create(target)
	if err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return name, nil
}

func rescanBody(res *ingest.Result) map[string]any {
	filesByKind := map[string]int{}
	for kind, n := range res.FilesByKind {
		filesByKind[string(kind)] = n
	}
	rowsByKind := map[string]int{}
	for kind, n := range res.RowsByKind {
		rowsByKind[string(kind)] = n
	}
	skipped := make([]map[string]string, 0, len(res.SkippedFiles))
	for _, s := range res.SkippedFiles {
		skipped = append(skipped, map[string]string{
			"path":   s.Path,
			"reason": s.Reason,
		})
	}
	return map[string]any{
		"new_files":      res.NewFiles,
		"no_new_content": res.NoNewContent,
		"files_by_kind":  filesByKind,
		"rows_by_kind":   rowsByKind,
		"skipped":        skipped,
	}
}

func (h *Handlers) handleDataFetch(w http.ResponseWriter, r *http.Request) {
	if h.deps.Fetcher == nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "external fetch is not configured"))
		return
	}

	path, err := h.deps.Fetcher.FetchLatest(r.Context())
	if err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}

	body := map[string]any{"saved_path": path}
	manifest, err := h.deps.Orchestrator.Run(r.Context(), pipeline.RunOptions{})
	switch {
	case errors.Is(err, pipeline.ErrAlreadyRunning):
		body["pipeline"] = "already_running"
	case err != nil:
		httputil.WriteError(w, apiError(err))
		return
	default:
		body["pipeline"] = manifest
	}
	httputil.WriteJSON(w, http.StatusOK, body)
}

func (h *Handlers) handleSystemReset(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Orchestrator.Reset(r.Context()); err != nil {
		httputil.WriteError(w, apiError(err))
		return
	}
	h.log.Info("system reset",
		"client_ip", requestcontext.ClientIP(r.Context()),
		"request_id", requestcontext.RequestID(r.Context()),
	)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
