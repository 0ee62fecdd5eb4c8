package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ChamsBouzaiene/interviewd/internal/interview"
	"github.com/ChamsBouzaiene/interviewd/internal/session"
)

// Context keys set by the extraction middlewares for downstream
// handlers.
const (
	ctxSessionID = "sessionID"
	ctxSession   = "session"
	ctxMessage   = "message"
)

// terminal is the policy-shaped response that tells the client the
// session is over and local state should be reset.
func terminal(c *gin.Context, text string) {
	code := interview.CodeEndInterview
	c.AbortWithStatusJSON(http.StatusOK, interview.Reply{Text: text, Code: &code})
}

// extractSession reads the session id from the X-Session-Id header (query
// parameter sessionId as fallback), loads the session, and refreshes its
// TTL. Requests without an id are client errors; unknown ids are 404s.
func (a *API) extractSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Session-Id")
		if id == "" {
			id = c.Query("sessionId")
		}
		if id == "" {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Session ID is required"})
			return
		}

		sess, err := a.sessions.Get(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, session.ErrNotFound) {
				c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Session not found or expired"})
				return
			}
			a.logger.Error("session load failed", slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}

		if err := a.sessions.Extend(c.Request.Context(), id); err != nil && !errors.Is(err, session.ErrNotFound) {
			a.logger.Error("session extend failed", slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to load session"})
			return
		}

		c.Set(ctxSessionID, id)
		c.Set(ctxSession, sess)
		c.Next()
	}
}

// checkSession is the state-machine guard: an ended session, a missing
// history, or a missing role each short-circuit with a distinct terminal
// response rather than an HTTP error.
func (a *API) checkSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := c.MustGet(ctxSession).(*session.Session)

		switch {
		case sess.Status == session.StatusEnded:
			terminal(c, "Interview has ended")
		case sess.History == nil:
			terminal(c, "History missing")
		case sess.Role == "":
			terminal(c, "Role missing")
		default:
			c.Next()
		}
	}
}

// extractMessage reads the turn's text out of the request body exactly
// once: the message form field for form and multipart requests, or the
// message property of a JSON body. The text is stashed in the context so
// the moderation guard and the handler see the same value regardless of
// the body shape.
func (a *API) extractMessage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var text string
		if c.ContentType() == "application/json" {
			var body struct {
				Message string `json:"message"`
			}
			if err := c.ShouldBindJSON(&body); err != nil {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
				return
			}
			text = body.Message
		} else {
			text = c.PostForm("message")
		}
		c.Set(ctxMessage, text)
		c.Next()
	}
}

// checkOffensiveLanguage scans the incoming text against the blocklist.
// On a hit the session is force-ended with an audit record and the turn
// never reaches the collaborator.
func (a *API) checkOffensiveLanguage() gin.HandlerFunc {
	return func(c *gin.Context) {
		text := c.MustGet(ctxMessage).(string)
		if !a.classifier.IsOffensive(text) {
			c.Next()
			return
		}

		id := c.MustGet(ctxSessionID).(string)
		sess := c.MustGet(ctxSession).(*session.Session)

		if err := a.orch.EndByModeration(c.Request.Context(), id, sess); err != nil {
			a.logger.Error("moderation end failed", slog.String("error", err.Error()))
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to end interview"})
			return
		}

		terminal(c, "Offensive language detected. The interview has ended.")
	}
}
