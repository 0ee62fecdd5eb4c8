// Package httpapi exposes the interview engine over HTTP and enforces the
// per-request policy chain: extract session, load and extend, validate
// state, moderate, then process the turn.
package httpapi

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChamsBouzaiene/interviewd/internal/audit"
	"github.com/ChamsBouzaiene/interviewd/internal/interview"
	"github.com/ChamsBouzaiene/interviewd/internal/moderation"
	"github.com/ChamsBouzaiene/interviewd/internal/session"
)

// API wires the HTTP surface to the engine.
type API struct {
	sessions   *session.Service
	orch       *interview.Orchestrator
	classifier *moderation.Classifier
	auditor    audit.Recorder
	logger     *slog.Logger
	production bool
}

// New creates the API. auditor may be nil when auditing is disabled.
func New(sessions *session.Service, orch *interview.Orchestrator, classifier *moderation.Classifier, auditor audit.Recorder, logger *slog.Logger, production bool) *API {
	if logger == nil {
		logger = slog.Default()
	}
	return &API{
		sessions:   sessions,
		orch:       orch,
		classifier: classifier,
		auditor:    auditor,
		logger:     logger,
		production: production,
	}
}

// Router builds the gin engine with the ordered middleware chain.
func (a *API) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.POST("/init", a.handleInit)
	r.POST("/interview", a.extractSession(), a.checkSession(), a.extractMessage(), a.checkOffensiveLanguage(), a.handleInterview)
	r.POST("/interview/end", a.extractSession(), a.handleEndInterview)

	return r
}

type initRequest struct {
	Identity string `json:"identity"`
	Role     string `json:"role"`
}

// handleInit creates a fresh session for one interview attempt.
func (a *API) handleInit(c *gin.Context) {
	var req initRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if req.Role == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Role is required"})
		return
	}

	sessionID, err := a.sessions.Create(c.Request.Context(), req.Identity, req.Role)
	if err != nil {
		a.logger.Error("session create failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to initialize session"})
		return
	}

	if a.production && a.auditor != nil {
		rec := audit.Record{
			Action:     audit.ActionInit,
			Collection: audit.CollectionInterviews,
			User:       audit.User{Identity: req.Identity, Role: req.Role},
		}
		if err := a.auditor.Record(c.Request.Context(), rec); err != nil {
			a.logger.Warn("init audit failed", slog.String("error", err.Error()))
		}
	}

	a.logger.Info("session started",
		slog.String("identity", req.Identity),
		slog.String("role", req.Role))

	c.JSON(http.StatusOK, gin.H{
		"message":   "Session started",
		"success":   true,
		"sessionId": sessionID,
	})
}

// handleInterview processes one turn: text from the extracted message,
// audio from an optional multipart file.
func (a *API) handleInterview(c *gin.Context) {
	id := c.MustGet(ctxSessionID).(string)

	in := interview.Input{Text: c.MustGet(ctxMessage).(string)}
	if fh, err := c.FormFile("file"); err == nil {
		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable audio file"})
			return
		}
		defer f.Close()
		in.Audio, err = io.ReadAll(f)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unreadable audio file"})
			return
		}
		in.MIME = fh.Header.Get("Content-Type")
	}

	reply, err := a.orch.ProcessTurn(c.Request.Context(), id, in)
	if err != nil {
		a.renderTurnError(c, err)
		return
	}
	c.JSON(http.StatusOK, reply)
}

// handleEndInterview ends the session on explicit request, returning the
// fixed closing message. Idempotent on an already-ended session.
func (a *API) handleEndInterview(c *gin.Context) {
	id := c.MustGet(ctxSessionID).(string)

	reply, err := a.orch.EndByUser(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})
			return
		}
		a.logger.Error("end interview failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to end interview"})
		return
	}
	c.JSON(http.StatusOK, reply)
}

// renderTurnError maps the error taxonomy onto response shapes: client
// errors 4xx, invalid state a terminal policy response, conflicts
// retryable 409s, and collaborator or store failures 5xx.
func (a *API) renderTurnError(c *gin.Context, err error) {
	var clientErr *interview.ClientError
	var stateErr *interview.InvalidStateError
	var genErr *interview.GenerationError
	var storeErr *session.StorageError

	switch {
	case errors.As(err, &clientErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": clientErr.Reason})

	case errors.As(err, &stateErr):
		terminal(c, stateErr.Reason)

	case errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})

	case errors.Is(err, session.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": "Another turn is in flight for this session, retry shortly"})

	case errors.As(err, &genErr):
		a.logger.Error("generation failed",
			slog.String("class", string(genErr.Class)),
			slog.String("error", genErr.Error()))
		c.JSON(http.StatusBadGateway, gin.H{"error": "AI interview error", "retryable": genErr.Retryable()})

	case errors.As(err, &storeErr):
		a.logger.Error("session store failed", slog.String("error", storeErr.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Session storage unavailable"})

	default:
		a.logger.Error("interview turn failed", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "AI interview error"})
	}
}
