package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/nguyentantai21042004/meeting-flow/internal/contextstore"
	"github.com/nguyentantai21042004/meeting-flow/internal/gateway"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
	"github.com/nguyentantai21042004/meeting-flow/internal/pipeline"
	"github.com/nguyentantai21042004/meeting-flow/internal/tasks"
)

// Handler bundles the collaborators behind the HTTP routes.
type Handler struct {
	registry  *tasks.Registry
	runner    *pipeline.Runner
	retriever pipeline.Retriever
	contexts  *contextstore.Store
	uploadDir string
	topK      int
	logger    logger.Logger
}

// NewHandler wires the route handlers.
func NewHandler(registry *tasks.Registry, runner *pipeline.Runner, retriever pipeline.Retriever, contexts *contextstore.Store, uploadDir string, topK int, log logger.Logger) *Handler {
	if topK <= 0 {
		topK = 5
	}
	return &Handler{
		registry:  registry,
		runner:    runner,
		retriever: retriever,
		contexts:  contexts,
		uploadDir: uploadDir,
		topK:      topK,
		logger:    log,
	}
}

// Health reports liveness.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// InitiateProcessing accepts a multipart audio upload, stores it under a
// unique name, registers a task, and returns the task id. Processing does
// not start until the client opens the progress stream.
func (h *Handler) InitiateProcessing(c echo.Context) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no file part in the request"})
	}
	if file.Filename == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "no selected file"})
	}
	if !gateway.AllowedFile(file.Filename) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "file type not allowed"})
	}

	if err := os.MkdirAll(h.uploadDir, 0755); err != nil {
		h.logger.Error(c.Request().Context(), "Failed to create upload directory: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
	}

	src, err := file.Open()
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not read upload"})
	}
	defer src.Close()

	stored := filepath.Join(h.uploadDir, uuid.NewString()+"_"+sanitizeUploadName(file.Filename))
	dst, err := os.Create(stored)
	if err != nil {
		h.logger.Error(c.Request().Context(), "Failed to create upload file %s: %v", stored, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
	}
	defer dst.Close()
	if _, err := io.Copy(dst, src); err != nil {
		os.Remove(stored)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not store upload"})
	}

	userPrompt := c.FormValue("user_prompt")
	taskID := h.registry.Create(stored, file.Filename, userPrompt)
	h.logger.Info(c.Request().Context(), "Registered task %s for %s", taskID, file.Filename)

	return c.JSON(http.StatusOK, map[string]string{"task_id": taskID})
}

// StreamProgress runs the pipeline for a task and streams its events as
// server-sent events. The pipeline runs on a detached context so a client
// disconnect never interrupts processing or cleanup.
func (h *Handler) StreamProgress(c echo.Context) error {
	taskID := c.Param("task_id")
	promptOverride := c.QueryParam("prompt")

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set("Cache-Control", "no-cache")
	res.Header().Set("Connection", "keep-alive")
	res.WriteHeader(http.StatusOK)

	events := h.runner.Run(context.WithoutCancel(c.Request().Context()), taskID, promptOverride)

	gone := false
	for ev := range events {
		if gone {
			// Keep draining so the pipeline finishes and cleans up.
			continue
		}
		payload, err := json.Marshal(ev)
		if err != nil {
			h.logger.Error(c.Request().Context(), "Failed to encode event for task %s: %v", taskID, err)
			continue
		}
		if _, err := fmt.Fprintf(res, "data: %s\n\n", payload); err != nil {
			h.logger.Warn(c.Request().Context(), "Client disconnected from task %s stream", taskID)
			gone = true
			continue
		}
		res.Flush()
	}
	return nil
}

// SaveContext persists the user's prompt preferences.
func (h *Handler) SaveContext(c echo.Context) error {
	var prefs contextstore.Preferences
	if err := c.Bind(&prefs); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if err := h.contexts.Save(prefs); err != nil {
		h.logger.Error(c.Request().Context(), "Failed to save context: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "could not save context"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "success"})
}

// GetContext returns the stored preferences plus the knowledge index state.
func (h *Handler) GetContext(c echo.Context) error {
	prefs := h.contexts.Get()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"business_context":    prefs.BusinessContext,
		"custom_instructions": prefs.CustomInstructions,
		"rag_index_status":    h.retriever.Status(),
	})
}

type fetchRAGRequest struct {
	Keywords string `json:"keywords"`
}

// FetchRAGContext runs a direct knowledge query, a diagnostic for
// inspecting what the summarizer would retrieve for given keywords.
func (h *Handler) FetchRAGContext(c echo.Context) error {
	var req fetchRAGRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if strings.TrimSpace(req.Keywords) == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "keywords are required"})
	}

	snippets := h.retriever.Query(c.Request().Context(), req.Keywords, h.topK)
	return c.JSON(http.StatusOK, map[string]interface{}{
		"index_status":       h.retriever.Status(),
		"retrieved_snippets": snippets,
	})
}

// sanitizeUploadName keeps stored filenames shell- and path-safe while
// preserving the extension the MIME lookup depends on.
func sanitizeUploadName(name string) string {
	name = filepath.Base(name)
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
