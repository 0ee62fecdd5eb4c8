package interview

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ChamsBouzaiene/interviewd/internal/audit"
	"github.com/ChamsBouzaiene/interviewd/internal/prompts"
	"github.com/ChamsBouzaiene/interviewd/internal/session"
)

// CodeEndInterview is the termination sentinel returned to clients when a
// session has ended and no further turns will be accepted.
const CodeEndInterview = "end-interview"

// ClosingMessage is the fixed reply for an explicit end-by-user request.
const ClosingMessage = "Interview ended."

// DefaultMaxQuestions caps how many questions one interview may ask,
// enforced here against the session's turn count rather than trusting the
// model to self-terminate.
const DefaultMaxQuestions = 7

// DefaultEndPhrases are the end-of-interview signals scanned for in model
// replies. The match is an exact substring check; the phrasing is a
// contract with the interviewer prompt, which always closes with
// "The interview has ended".
var DefaultEndPhrases = []string{
	"end interview",
	"end the interview",
	"end the session",
	"end the conversation",
	"end the interview session",
	"conclude the interview",
	"interview is concluded",
	"interview has ended",
}

// Input is one incoming user turn: text or audio, at least one present.
type Input struct {
	Text  string
	Audio []byte
	MIME  string
}

// Reply is the orchestrator's answer to one turn. Code is the termination
// sentinel when the session ended in this interaction, nil otherwise.
type Reply struct {
	Text string  `json:"text"`
	Code *string `json:"code"`
}

// Config tunes the orchestrator.
type Config struct {
	MaxQuestions int
	EndPhrases   []string
	GenTimeout   time.Duration
	Retry        RetryPolicy
}

// Orchestrator composes the LLM call from session history and role,
// detects termination, and triggers the end-of-session side effects.
type Orchestrator struct {
	sessions  *session.Service
	generator Generator
	auditor   audit.Recorder
	registry  *prompts.Registry
	cfg       Config
	logger    *slog.Logger
}

// New creates an orchestrator. Zero config fields fall back to defaults.
func New(sessions *session.Service, generator Generator, auditor audit.Recorder, registry *prompts.Registry, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.MaxQuestions <= 0 {
		cfg.MaxQuestions = DefaultMaxQuestions
	}
	if len(cfg.EndPhrases) == 0 {
		cfg.EndPhrases = DefaultEndPhrases
	}
	if cfg.GenTimeout <= 0 {
		cfg.GenTimeout = 30 * time.Second
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		sessions:  sessions,
		generator: generator,
		auditor:   auditor,
		registry:  registry,
		cfg:       cfg,
		logger:    logger,
	}
}

// ProcessTurn runs one interaction: append the user turn, call the
// collaborator with the full history, append the model turn, and detect
// termination. On a generation failure no model turn is appended, so
// resubmitting the same interaction is safe.
func (o *Orchestrator) ProcessTurn(ctx context.Context, sessionID string, in Input) (Reply, error) {
	userTurn, err := in.turn()
	if err != nil {
		return Reply{}, err
	}

	sess, err := o.sessions.AddTurn(ctx, sessionID, userTurn)
	if err != nil {
		if errors.Is(err, session.ErrEnded) {
			return Reply{}, &InvalidStateError{Reason: "Interview has ended"}
		}
		return Reply{}, err
	}

	instruction := o.registry.Instruction(sess.Role, o.cfg.MaxQuestions)

	genCtx, cancel := context.WithTimeout(ctx, o.cfg.GenTimeout)
	defer cancel()

	replyText, err := retryGenerate(genCtx, o.cfg.Retry, func(ctx context.Context) (string, error) {
		return o.generator.Generate(ctx, sess.History, instruction)
	})
	if err != nil {
		return Reply{}, &GenerationError{Err: err, Class: ClassifyGenerationError(err)}
	}

	sess, err = o.sessions.AddTurn(ctx, sessionID, session.Turn{Speaker: session.SpeakerModel, Text: replyText})
	if err != nil {
		if errors.Is(err, session.ErrEnded) {
			// A moderation hit or explicit end raced us; the reply is moot.
			return Reply{}, &InvalidStateError{Reason: "Interview has ended"}
		}
		return Reply{}, err
	}

	reply := Reply{Text: replyText}
	if o.shouldEnd(replyText, sess.TurnCount) {
		o.recordAudit(ctx, audit.Record{
			Action:     audit.ActionEnd,
			Reason:     audit.ReasonAI,
			Collection: audit.CollectionInterviews,
			User:       audit.User{Identity: sess.Identity, Role: sess.Role},
		})
		if err := o.sessions.End(ctx, sessionID); err != nil {
			return Reply{}, err
		}
		code := CodeEndInterview
		reply.Code = &code
	}
	return reply, nil
}

// EndByUser ends the session on explicit request, bypassing the
// collaborator entirely. Idempotent on an already-ended session.
func (o *Orchestrator) EndByUser(ctx context.Context, sessionID string) (Reply, error) {
	sess, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return Reply{}, err
	}

	o.recordAudit(ctx, audit.Record{
		Action:     audit.ActionEnd,
		Reason:     audit.ReasonUserRequest,
		Collection: audit.CollectionInterviews,
		User:       audit.User{Identity: sess.Identity, Role: sess.Role},
	})

	if err := o.sessions.End(ctx, sessionID); err != nil {
		return Reply{}, err
	}

	code := CodeEndInterview
	return Reply{Text: ClosingMessage, Code: &code}, nil
}

// EndByModeration ends the session after a blocklist hit. The caller
// returns the fixed moderation response; the collaborator is never
// invoked.
func (o *Orchestrator) EndByModeration(ctx context.Context, sessionID string, sess *session.Session) error {
	o.recordAudit(ctx, audit.Record{
		Action:     audit.ActionEnd,
		Reason:     audit.ReasonOffensiveLanguage,
		Collection: audit.CollectionInterviews,
		User:       audit.User{Identity: sess.Identity, Role: sess.Role},
	})
	return o.sessions.End(ctx, sessionID)
}

// shouldEnd is the termination check: a model-emitted end phrase, or the
// question cap reached.
func (o *Orchestrator) shouldEnd(replyText string, turnCount int) bool {
	if turnCount >= o.cfg.MaxQuestions {
		return true
	}
	for _, phrase := range o.cfg.EndPhrases {
		if strings.Contains(replyText, phrase) {
			return true
		}
	}
	return false
}

// recordAudit writes an audit record, logging failures instead of failing
// the user-facing turn.
func (o *Orchestrator) recordAudit(ctx context.Context, rec audit.Record) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Record(ctx, rec); err != nil {
		o.logger.Warn("audit record failed",
			slog.String("action", rec.Action),
			slog.String("reason", rec.Reason),
			slog.String("error", err.Error()))
	}
}

// turn validates the input and converts it into a user turn.
func (in Input) turn() (session.Turn, error) {
	switch {
	case in.Text != "":
		return session.Turn{Speaker: session.SpeakerUser, Text: in.Text}, nil
	case len(in.Audio) > 0:
		mime := in.MIME
		if mime == "" {
			mime = "audio/webm"
		}
		return session.Turn{Speaker: session.SpeakerUser, Audio: in.Audio, MIME: mime}, nil
	default:
		return session.Turn{}, &ClientError{Reason: "missing audio file or text input"}
	}
}
