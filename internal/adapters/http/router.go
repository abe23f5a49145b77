package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/kpi-benchmark/internal/core/domain"
	"github.com/kirillkom/kpi-benchmark/internal/core/ports"
)

const maxUploadBytes = 50 << 20

// Router exposes one workflow session to the dashboard front end.
type Router struct {
	workflow ports.KPIWorkflow
	sink     ports.ArtifactSink
	logger   *slog.Logger
}

func NewRouter(workflow ports.KPIWorkflow, sink ports.ArtifactSink, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		workflow: workflow,
		sink:     sink,
		logger:   logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)

	mux.HandleFunc("GET /v1/workflow", rt.snapshot)
	mux.HandleFunc("PUT /v1/workflow/input", rt.setInput)
	mux.HandleFunc("POST /v1/workflow/advance", rt.advance)
	mux.HandleFunc("POST /v1/workflow/back", rt.back)
	mux.HandleFunc("POST /v1/workflow/reset", rt.reset)

	mux.HandleFunc("POST /v1/workflow/documents", rt.stageDocument)
	mux.HandleFunc("DELETE /v1/workflow/documents/{local_id}", rt.removeDocument)
	mux.HandleFunc("POST /v1/workflow/documents/{local_id}/retry", rt.retryDocument)
	mux.HandleFunc("POST /v1/workflow/documents/{local_id}/primary", rt.setPrimary)

	mux.HandleFunc("POST /v1/workflow/submit", rt.submit)
	mux.HandleFunc("POST /v1/workflow/export", rt.export)

	mux.HandleFunc("GET /v1/workflow/history", rt.enterHistory)
	mux.HandleFunc("DELETE /v1/workflow/history", rt.leaveHistory)
	mux.HandleFunc("POST /v1/workflow/history/{evaluation_id}", rt.openFromHistory)

	return withRequestID(accessLogMiddleware(rt.logger, mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) snapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, rt.workflow.Snapshot())
}

func (rt *Router) setInput(w http.ResponseWriter, r *http.Request) {
	var input domain.TargetInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	rt.respond(w, rt.workflow.SetInput(input))
}

func (rt *Router) advance(w http.ResponseWriter, _ *http.Request) {
	rt.respond(w, rt.workflow.Advance())
}

func (rt *Router) back(w http.ResponseWriter, _ *http.Request) {
	rt.respond(w, rt.workflow.Back())
}

func (rt *Router) reset(w http.ResponseWriter, _ *http.Request) {
	rt.respond(w, rt.workflow.StartNew())
}

func (rt *Router) stageDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.workflow.StageDocument(
		r.Context(),
		fileHeader.Filename,
		domain.DocumentType(strings.TrimSpace(r.FormValue("document_type"))),
		file,
	)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) removeDocument(w http.ResponseWriter, r *http.Request) {
	rt.respond(w, rt.workflow.RemoveDocument(r.PathValue("local_id")))
}

func (rt *Router) retryDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := rt.workflow.RetryDocument(r.Context(), r.PathValue("local_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) setPrimary(w http.ResponseWriter, r *http.Request) {
	rt.respond(w, rt.workflow.SetPrimary(r.PathValue("local_id")))
}

// submit answers 202 right away; with ?wait=true it holds the request until
// this submission has been applied or superseded.
func (rt *Router) submit(w http.ResponseWriter, r *http.Request) {
	done, err := rt.workflow.Submit(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		select {
		case <-done:
		case <-r.Context().Done():
			return
		}
		writeJSON(w, http.StatusOK, rt.workflow.Snapshot())
		return
	}
	writeJSON(w, http.StatusAccepted, rt.workflow.Snapshot())
}

func (rt *Router) export(w http.ResponseWriter, r *http.Request) {
	artifact, err := rt.workflow.Export(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if save, _ := strconv.ParseBool(r.URL.Query().Get("save")); save && rt.sink != nil {
		location, err := rt.sink.Save(r.Context(), artifact)
		if err != nil {
			rt.logger.Warn("artifact_save_failed", "filename", artifact.Filename, "error", err)
		} else {
			w.Header().Set("X-Artifact-Location", location)
		}
	}

	contentType := artifact.ContentType
	if contentType == "" {
		contentType = "application/pdf"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", artifact.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

func (rt *Router) enterHistory(w http.ResponseWriter, r *http.Request) {
	items, err := rt.workflow.EnterHistory(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"evaluations": items})
}

func (rt *Router) leaveHistory(w http.ResponseWriter, _ *http.Request) {
	rt.respond(w, rt.workflow.LeaveHistory())
}

func (rt *Router) openFromHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("evaluation_id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "open from history", errors.New("evaluation id must be a positive integer")))
		return
	}
	rt.respond(w, rt.workflow.OpenFromHistory(r.Context(), id))
}

// respond writes the session after a state-changing call. Failures still
// carry the session so the front end can render the step-scoped message.
func (rt *Router) respond(w http.ResponseWriter, err error) {
	if err != nil {
		writeJSON(w, mapErrorToHTTPStatus(err), map[string]any{
			"error":   domain.UserMessage(err),
			"session": rt.workflow.Snapshot(),
		})
		return
	}
	writeJSON(w, http.StatusOK, rt.workflow.Snapshot())
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
