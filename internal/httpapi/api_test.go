package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ChamsBouzaiene/interviewd/internal/audit"
	"github.com/ChamsBouzaiene/interviewd/internal/interview"
	"github.com/ChamsBouzaiene/interviewd/internal/moderation"
	"github.com/ChamsBouzaiene/interviewd/internal/prompts"
	"github.com/ChamsBouzaiene/interviewd/internal/session"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memRecorder struct {
	mu      sync.Mutex
	records []audit.Record
}

func (m *memRecorder) Record(ctx context.Context, rec audit.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	return nil
}

type apiEnv struct {
	router   *gin.Engine
	svc      *session.Service
	recorder *memRecorder
	genCalls *int
}

// newAPIEnv builds the full pipeline on a memory store with a canned
// generator reply.
func newAPIEnv(t *testing.T, replyText string) *apiEnv {
	t.Helper()

	svc := session.NewService(session.NewMemoryStore(), time.Hour)
	recorder := &memRecorder{}
	calls := 0
	gen := interview.GeneratorFunc(func(ctx context.Context, history []session.Turn, instruction string) (string, error) {
		calls++
		return replyText, nil
	})
	orch := interview.New(svc, gen, recorder, prompts.NewRegistry(), interview.Config{}, nil)
	classifier := moderation.NewClassifier([]string{"badword"})
	api := New(svc, orch, classifier, recorder, nil, false)

	return &apiEnv{router: api.Router(), svc: svc, recorder: recorder, genCalls: &calls}
}

func (e *apiEnv) initSession(t *testing.T) string {
	t.Helper()
	body := `{"identity":"a@b.com","role":"senior-software-engineer"}`
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	e.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("init returned %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionID string `json:"sessionId"`
		Success   bool   `json:"success"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode init response: %v", err)
	}
	if !resp.Success || resp.SessionID == "" {
		t.Fatalf("unexpected init response: %+v", resp)
	}
	return resp.SessionID
}

func (e *apiEnv) postTurn(t *testing.T, sessionID, message string) *httptest.ResponseRecorder {
	t.Helper()
	form := "message=" + message
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interview", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sessionID != "" {
		req.Header.Set("X-Session-Id", sessionID)
	}
	e.router.ServeHTTP(w, req)
	return w
}

type turnResponse struct {
	Text string  `json:"text"`
	Code *string `json:"code"`
}

func decodeTurn(t *testing.T, w *httptest.ResponseRecorder) turnResponse {
	t.Helper()
	var resp turnResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return resp
}

func TestMissingSessionID(t *testing.T) {
	env := newAPIEnv(t, "hi")
	w := env.postTurn(t, "", "hello")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without session id, got %d", w.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	env := newAPIEnv(t, "hi")
	w := env.postTurn(t, "nope", "hello")
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestSessionIDFromQueryParameter(t *testing.T) {
	env := newAPIEnv(t, "Thanks, next question...")
	id := env.initSession(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interview?sessionId="+id, strings.NewReader("message=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with query session id, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInterviewTurnFlow(t *testing.T) {
	env := newAPIEnv(t, "Thanks, that's helpful. Next question...")
	id := env.initSession(t)

	w := env.postTurn(t, id, "Tell me about yourself")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	resp := decodeTurn(t, w)
	if resp.Text != "Thanks, that's helpful. Next question..." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.Code != nil {
		t.Errorf("expected null code, got %q", *resp.Code)
	}

	sess, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Status != session.StatusInProgress {
		t.Errorf("expected IN_PROGRESS, got %s", sess.Status)
	}
	if len(sess.History) != 2 {
		t.Errorf("expected 2 turns, got %d", len(sess.History))
	}
}

func TestEndedSessionTerminalResponse(t *testing.T) {
	env := newAPIEnv(t, "should not be generated")
	id := env.initSession(t)

	if err := env.svc.End(context.Background(), id); err != nil {
		t.Fatalf("End failed: %v", err)
	}

	w := env.postTurn(t, id, "hello")
	if w.Code != http.StatusOK {
		t.Fatalf("terminal responses are 200s, got %d", w.Code)
	}
	resp := decodeTurn(t, w)
	if resp.Text != "Interview has ended" {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.Code == nil || *resp.Code != interview.CodeEndInterview {
		t.Errorf("expected termination code, got %v", resp.Code)
	}
	if *env.genCalls != 0 {
		t.Error("collaborator must not be invoked for an ended session")
	}

	sess, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(sess.History) != 0 {
		t.Errorf("history must remain empty, got %d turns", len(sess.History))
	}
}

func TestModerationShortCircuit(t *testing.T) {
	env := newAPIEnv(t, "should not be generated")
	id := env.initSession(t)

	w := env.postTurn(t, id, "you+BADWORD")
	if w.Code != http.StatusOK {
		t.Fatalf("moderation responses are 200s, got %d", w.Code)
	}
	resp := decodeTurn(t, w)
	if resp.Text != "Offensive language detected. The interview has ended." {
		t.Errorf("unexpected text: %q", resp.Text)
	}
	if resp.Code == nil || *resp.Code != interview.CodeEndInterview {
		t.Errorf("expected termination code, got %v", resp.Code)
	}
	if *env.genCalls != 0 {
		t.Error("collaborator must never see a moderated turn")
	}

	sess, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Status != session.StatusEnded {
		t.Errorf("expected ENDED after moderation hit, got %s", sess.Status)
	}
	if len(sess.History) != 0 {
		t.Errorf("expected cleared history, got %d turns", len(sess.History))
	}

	env.recorder.mu.Lock()
	defer env.recorder.mu.Unlock()
	found := false
	for _, rec := range env.recorder.records {
		if rec.Reason == audit.ReasonOffensiveLanguage {
			found = true
		}
	}
	if !found {
		t.Error("expected an offensive-language audit record")
	}
}

func TestTerminationPhraseInReply(t *testing.T) {
	env := newAPIEnv(t, "Great session. The interview has ended.")
	id := env.initSession(t)

	w := env.postTurn(t, id, "That's all from me")
	resp := decodeTurn(t, w)
	if resp.Code == nil || *resp.Code != interview.CodeEndInterview {
		t.Fatalf("expected termination code with the reply, got %v", resp.Code)
	}
	if resp.Text != "Great session. The interview has ended." {
		t.Errorf("the same response must carry the reply text, got %q", resp.Text)
	}

	sess, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if sess.Status != session.StatusEnded {
		t.Errorf("expected ENDED, got %s", sess.Status)
	}
}

func TestExplicitEnd(t *testing.T) {
	env := newAPIEnv(t, "irrelevant")
	id := env.initSession(t)

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/interview/end", nil)
		req.Header.Set("X-Session-Id", id)
		env.router.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d: %s", i, w.Code, w.Body.String())
		}
		resp := decodeTurn(t, w)
		if resp.Text != interview.ClosingMessage {
			t.Errorf("attempt %d: unexpected text %q", i, resp.Text)
		}
		if resp.Code == nil || *resp.Code != interview.CodeEndInterview {
			t.Errorf("attempt %d: expected termination code, got %v", i, resp.Code)
		}
	}
	if *env.genCalls != 0 {
		t.Error("explicit end must bypass the collaborator")
	}
}

func TestInterviewAudioUpload(t *testing.T) {
	env := newAPIEnv(t, "Heard you loud and clear. Next question...")
	id := env.initSession(t)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "answer.webm")
	if err != nil {
		t.Fatalf("CreateFormFile failed: %v", err)
	}
	if _, err := fw.Write([]byte{0x1a, 0x45, 0xdf, 0xa3}); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	mw.Close()

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interview", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("X-Session-Id", id)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for audio turn, got %d: %s", w.Code, w.Body.String())
	}

	sess, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(sess.History) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(sess.History))
	}
	if len(sess.History[0].Audio) == 0 {
		t.Error("expected the audio payload on the user turn")
	}
}

func TestInterviewJSONBody(t *testing.T) {
	env := newAPIEnv(t, "Thanks, next question...")
	id := env.initSession(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interview", strings.NewReader(`{"message":"Tell me about yourself"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", id)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for a JSON turn, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeTurn(t, w)
	if resp.Text != "Thanks, next question..." {
		t.Errorf("unexpected text: %q", resp.Text)
	}

	sess, err := env.svc.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if len(sess.History) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(sess.History))
	}
	if sess.History[0].Text != "Tell me about yourself" {
		t.Errorf("unexpected user turn: %+v", sess.History[0])
	}

	// A malformed JSON body is a client error, not a processed turn.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/interview", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", id)
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed JSON, got %d", w.Code)
	}
}

func TestModerationAppliesToJSONBody(t *testing.T) {
	env := newAPIEnv(t, "should not be generated")
	id := env.initSession(t)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interview", strings.NewReader(`{"message":"you BADWORD"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Session-Id", id)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("moderation responses are 200s, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeTurn(t, w)
	if resp.Code == nil || *resp.Code != interview.CodeEndInterview {
		t.Fatalf("expected termination code, got %v", resp.Code)
	}
	if *env.genCalls != 0 {
		t.Error("collaborator must never see a moderated turn")
	}
}

func TestInterviewMissingInput(t *testing.T) {
	env := newAPIEnv(t, "irrelevant")
	id := env.initSession(t)

	w := env.postTurn(t, id, "")
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without text or audio, got %d: %s", w.Code, w.Body.String())
	}
}

func TestInitValidation(t *testing.T) {
	env := newAPIEnv(t, "irrelevant")

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/init", strings.NewReader(`{"identity":"a@b.com"}`))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without role, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/init", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	env.router.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for malformed body, got %d", w.Code)
	}
}

func TestHeaderTakesPriorityOverQuery(t *testing.T) {
	env := newAPIEnv(t, "Next question...")
	id := env.initSession(t)

	// Bogus query id, valid header id: the header wins.
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/interview?sessionId=bogus", strings.NewReader("message=hello"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Session-Id", id)
	env.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("expected header to take priority, got %d: %s", w.Code, w.Body.String())
	}
}
