package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/soundscribe/soundscribe/internal/export"
	"github.com/soundscribe/soundscribe/internal/job"
	"github.com/soundscribe/soundscribe/internal/observe"
	"github.com/soundscribe/soundscribe/internal/store"
)

// submitResponse is returned by the two submission endpoints.
type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// handleUpload accepts a multipart upload under the "file" field, stores it
// in the upload directory, and enqueues a processing job.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("upload exceeds the %d byte limit", s.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, "malformed multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `missing "file" field`)
		return
	}
	defer file.Close()

	// A fresh prefix per upload avoids collisions between identically
	// named files while keeping the original name for the result title.
	name := filepath.Base(header.Filename)
	if name == "." || name == string(filepath.Separator) {
		name = "upload"
	}
	dir := filepath.Join(s.uploadDir, uuid.NewString())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		writeError(w, http.StatusInternalServerError, "storing upload failed")
		return
	}
	path := filepath.Join(dir, name)

	dst, err := os.Create(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "storing upload failed")
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		os.Remove(path)
		writeError(w, http.StatusInternalServerError, "storing upload failed")
		return
	}
	if err := dst.Close(); err != nil {
		writeError(w, http.StatusInternalServerError, "storing upload failed")
		return
	}

	s.enqueue(w, r, "upload", path)
}

// processURLRequest is the body of POST /api/process-url.
type processURLRequest struct {
	URL string `json:"url"`
}

// handleProcessURL enqueues a job that downloads its media first.
func (s *Server) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	var req processURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return
	}
	u, err := url.Parse(req.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		writeError(w, http.StatusBadRequest, "url must be absolute http or https")
		return
	}

	s.enqueue(w, r, "url", req.URL)
}

// enqueue submits the job and writes the 202 response.
func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, sourceType, source string) {
	rec, err := s.jobs.Enqueue(r.Context(), sourceType, source)
	if err != nil {
		if errors.Is(err, job.ErrQueueFull) {
			writeError(w, http.StatusServiceUnavailable, "processing queue is full, retry later")
			return
		}
		observe.Logger(r.Context()).Error("enqueue failed", "err", err)
		writeError(w, http.StatusInternalServerError, "submitting job failed")
		return
	}
	writeJSON(w, http.StatusAccepted, submitResponse{JobID: rec.ID, Status: string(rec.Status)})
}

// handleListJobs returns all known jobs, newest first.
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs, err := s.store.ListJobs(r.Context())
	if err != nil {
		observe.Logger(r.Context()).Error("list jobs failed", "err", err)
		writeError(w, http.StatusInternalServerError, "listing jobs failed")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

// handleStatus returns the persisted status record for one job.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, err := s.jobs.Status(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		observe.Logger(r.Context()).Error("status lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleResult returns the full processing result for a completed job.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	result, err := s.store.GetResult(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		observe.Logger(r.Context()).Error("result lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "result lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// searchHit is one row of the /api/search response.
type searchHit struct {
	JobID    string  `json:"job_id"`
	Text     string  `json:"text"`
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Distance float64 `json:"distance"`
}

// handleSearch embeds the query text and returns the closest transcript
// chunks across all jobs.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusBadRequest, `missing "q" parameter`)
		return
	}
	if s.embedder == nil {
		writeError(w, http.StatusNotImplemented, "semantic search requires an embeddings provider")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, `"limit" must be a positive integer`)
			return
		}
		limit = n
	}

	vector, err := s.embedder.Embed(r.Context(), query)
	if err != nil {
		observe.Logger(r.Context()).Error("query embedding failed", "err", err)
		writeError(w, http.StatusBadGateway, "embedding the query failed")
		return
	}

	results, err := s.store.SearchChunks(r.Context(), vector, limit)
	if err != nil {
		if errors.Is(err, store.ErrSearchUnsupported) {
			writeError(w, http.StatusNotImplemented, "semantic search is not supported by the configured storage backend")
			return
		}
		observe.Logger(r.Context()).Error("search failed", "err", err)
		writeError(w, http.StatusInternalServerError, "search failed")
		return
	}

	hits := make([]searchHit, len(results))
	for i, res := range results {
		hits[i] = searchHit{
			JobID:    res.Chunk.JobID,
			Text:     res.Chunk.Text,
			Start:    res.Chunk.Start,
			End:      res.Chunk.End,
			Distance: res.Distance,
		}
	}
	writeJSON(w, http.StatusOK, hits)
}

// handleDownload renders the result as an SRT subtitle file or a Markdown
// report.
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	format, id := vars["format"], vars["id"]

	result, err := s.store.GetResult(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "result not found")
			return
		}
		observe.Logger(r.Context()).Error("result lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "result lookup failed")
		return
	}

	switch format {
	case "srt":
		w.Header().Set("Content-Type", "application/x-subrip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".srt"))
		if err := export.WriteSRT(w, result.Transcript); err != nil {
			observe.Logger(r.Context()).Error("srt export failed", "err", err)
		}
	case "report":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", id+".md"))
		if err := export.WriteMarkdownReport(w, result); err != nil {
			observe.Logger(r.Context()).Error("report export failed", "err", err)
		}
	default:
		writeError(w, http.StatusBadRequest, `format must be "srt" or "report"`)
	}
}

// handleStatusSocket streams status updates for one job over a websocket
// until the job reaches a terminal state or the client disconnects.
func (s *Server) handleStatusSocket(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	rec, err := s.jobs.Status(r.Context(), id)
	if err != nil {
		if errors.Is(err, job.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}

	// Subscribe before the snapshot write so no update can slip between.
	updates, cancel := s.jobs.Subscribe(id)
	defer cancel()

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx := r.Context()
	if err := wsjson.Write(ctx, conn, rec); err != nil {
		return
	}
	if terminal(rec.Status) {
		conn.Close(websocket.StatusNormalClosure, "job finished")
		return
	}

	for {
		select {
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := wsjson.Write(ctx, conn, u); err != nil {
				return
			}
			if terminal(u.Status) {
				conn.Close(websocket.StatusNormalClosure, "job finished")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// terminal reports whether a job status can no longer change.
func terminal(status store.JobStatus) bool {
	return status == store.JobCompleted || status == store.JobFailed
}
