package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/ai"
	httptransport "github.com/smart-care/voice-gateway/internal/api/http"
	"github.com/smart-care/voice-gateway/internal/api/http/handlers"
	"github.com/smart-care/voice-gateway/internal/auth"
	"github.com/smart-care/voice-gateway/internal/config"
	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/events"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/repository"
	"github.com/smart-care/voice-gateway/internal/service"
	"github.com/smart-care/voice-gateway/internal/session"
	"github.com/smart-care/voice-gateway/internal/telephony"
)

type stubCompletion struct {
	structured string
	reply      string
}

func (s *stubCompletion) StructuredCompletion(context.Context, string, string) (string, error) {
	return s.structured, nil
}

func (s *stubCompletion) ChatReply(context.Context, string, []ai.ChatPart) (string, error) {
	return s.reply, nil
}

type stubCalls struct {
	callTo map[string]string
	sms    []string
}

func (s *stubCalls) Originate(_ context.Context, to string) (*telephony.CallRef, error) {
	return &telephony.CallRef{Sid: "CAoutbound", To: to}, nil
}

func (s *stubCalls) LookupCall(_ context.Context, callSid string) (*telephony.CallRef, error) {
	return &telephony.CallRef{Sid: callSid, To: s.callTo[callSid]}, nil
}

func (s *stubCalls) SendSMS(_ context.Context, to, body string) error {
	s.sms = append(s.sms, to)
	return nil
}

type stubDialer struct{}

func (stubDialer) Dial(context.Context) (ai.RealtimeConn, error) {
	return nil, context.DeadlineExceeded
}

type fixture struct {
	app         *fiber.App
	transcripts repository.TranscriptRepository
	tickets     repository.TicketRepository
	calls       *stubCalls
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := zap.NewNop()
	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	userRepo := repository.NewMemoryUserRepository()
	ticketRepo := repository.NewMemoryTicketRepository()
	transcriptRepo := repository.NewMemoryTranscriptRepository()
	chatRepo := repository.NewMemoryChatRepository()

	completion := &stubCompletion{
		structured: `{"residentName":"caller","problemDescription":"leaking sink","preferredServiceTime":"tomorrow"}`,
		reply:      "Check the shut-off valve under the sink.",
	}
	calls := &stubCalls{callTo: map[string]string{}}

	ticketService := service.NewTicketService(ticketRepo, dispatcher, logger, metrics)
	authService := service.NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4}, userRepo)
	chatService := service.NewChatService(completion, chatRepo, logger)
	pipeline := service.NewPipeline(service.PipelineDependencies{
		Dedup:       session.NewMemoryProcessedSet(),
		Extractor:   service.NewExtractor(completion),
		Tickets:     ticketService,
		Users:       userRepo,
		Transcripts: transcriptRepo,
		Calls:       calls,
		Dispatcher:  dispatcher,
		Logger:      logger,
		Metrics:     metrics,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, 0)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler("voice-gateway", "test", nil, nil),
		Users:  handlers.NewUsersHandler(authService, ticketService),
		Calls: handlers.NewCallHandler(handlers.CallHandlerDependencies{
			Registry:    session.NewRegistry(),
			Dialer:      stubDialer{},
			Pipeline:    pipeline,
			Calls:       calls,
			Transcripts: transcriptRepo,
			AIConfig:    config.OpenAIConfig{Voice: "echo"},
			Logger:      logger,
			Metrics:     metrics,
		}),
		Chat:           handlers.NewChatHandler(chatService, ticketService, pipeline),
		AuthMiddleware: auth.NewAuthMiddleware(authService.TokenManager(), userRepo),
	})

	return &fixture{app: app, transcripts: transcriptRepo, tickets: ticketRepo, calls: calls}
}

func (f *fixture) doJSON(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	data, _ := io.ReadAll(resp.Body)
	if len(data) > 0 && strings.Contains(resp.Header.Get("Content-Type"), "json") {
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("decode response %s: %v", data, err)
		}
	}
	return resp.StatusCode, decoded
}

func (f *fixture) register(t *testing.T, email string) string {
	t.Helper()
	status, body := f.doJSON(t, http.MethodPost, "/auth/register", "", map[string]string{
		"firstName": "Sara",
		"lastName":  "Alfayez",
		"email":     email,
		"phone":     "0512345678",
		"password":  "hunter22",
	})
	if status != http.StatusCreated {
		t.Fatalf("register status = %d, body = %v", status, body)
	}
	token := body["data"].(map[string]any)["auth"].(map[string]any)["token"].(string)
	if token == "" {
		t.Fatal("no token in register response")
	}
	return token
}

func TestRegisterLoginMe(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "sara@example.com")

	status, body := f.doJSON(t, http.MethodGet, "/auth/me/", token, nil)
	if status != http.StatusOK {
		t.Fatalf("me status = %d, body = %v", status, body)
	}
	user := body["data"].(map[string]any)
	if user["email"] != "sara@example.com" {
		t.Errorf("me email = %v", user["email"])
	}
	if user["phone"] != "+966512345678" {
		t.Errorf("me phone = %v", user["phone"])
	}

	if status, _ := f.doJSON(t, http.MethodGet, "/auth/me/", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated me status = %d", status)
	}

	status, body = f.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "sara@example.com", "password": "hunter22",
	})
	if status != http.StatusOK {
		t.Fatalf("login status = %d, body = %v", status, body)
	}
	status, _ = f.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email": "sara@example.com", "password": "wrong",
	})
	if status != http.StatusUnauthorized {
		t.Fatalf("bad login status = %d", status)
	}
}

func TestChatAndHistory(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "chat@example.com")

	status, body := f.doJSON(t, http.MethodPost, "/chat", token, map[string]string{
		"message": "my sink leaks",
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d, body = %v", status, body)
	}
	if body["response"] != "Check the shut-off valve under the sink." {
		t.Errorf("chat response = %v", body["response"])
	}

	status, body = f.doJSON(t, http.MethodGet, "/chat/history", token, nil)
	if status != http.StatusOK {
		t.Fatalf("history status = %d", status)
	}
	if items := body["data"].([]any); len(items) != 1 {
		t.Errorf("history length = %d", len(items))
	}

	if status, _ := f.doJSON(t, http.MethodPost, "/chat", "", map[string]string{"message": "hi"}); status != http.StatusUnauthorized {
		t.Fatalf("unauthenticated chat status = %d", status)
	}
}

func TestChatCreateTicket(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "chat-ticket@example.com")

	if status, _ := f.doJSON(t, http.MethodPost, "/chat", token, map[string]any{
		"message": "my sink leaks",
	}); status != http.StatusOK {
		t.Fatalf("chat status = %d", status)
	}

	status, body := f.doJSON(t, http.MethodPost, "/chat", token, map[string]any{
		"message":      "yes please open a request",
		"createTicket": true,
	})
	if status != http.StatusOK {
		t.Fatalf("chat status = %d, body = %v", status, body)
	}
	number, _ := body["ticketNumber"].(string)
	if number == "" {
		t.Fatal("no ticketNumber in response")
	}

	ticket, err := f.tickets.GetByNumber(context.Background(), number)
	if err != nil {
		t.Fatalf("stored ticket lookup: %v", err)
	}
	if ticket.ResidentName != "Sara Alfayez" {
		t.Errorf("resident name = %q, want profile name", ticket.ResidentName)
	}
	if ticket.UserID == nil {
		t.Error("ticket not linked to the chat user")
	}
}

func TestTrackRequest(t *testing.T) {
	f := newFixture(t)
	token := f.register(t, "track@example.com")

	status, body := f.doJSON(t, http.MethodPost, "/track-request", token, map[string]string{"requestNumber": "12345"})
	if status != http.StatusOK {
		t.Fatalf("track status = %d, body = %v", status, body)
	}
	if body["found"] != true || body["status"] != "in_progress" {
		t.Errorf("track body = %v", body)
	}

	status, body = f.doJSON(t, http.MethodPost, "/track-request", token, map[string]string{"requestNumber": "00000"})
	if status != http.StatusOK {
		t.Fatalf("track status = %d", status)
	}
	if body["found"] != false {
		t.Errorf("unknown number reported found: %v", body)
	}
}

func TestIncomingCallReturnsTwiML(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/incoming-call", nil)
	req.Host = "gateway.example.com"
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("incoming-call: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.Contains(ct, "text/xml") {
		t.Errorf("content type = %q", ct)
	}
	data, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(data), "wss://gateway.example.com/media-stream") {
		t.Errorf("twiml missing stream url:\n%s", data)
	}
}

func (f *fixture) postCallStatus(t *testing.T, callSid, status string) map[string]any {
	t.Helper()
	form := url.Values{"CallSid": {callSid}, "CallStatus": {status}}
	req := httptest.NewRequest(http.MethodPost, "/call-status", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("call-status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("call-status status = %d", resp.StatusCode)
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return body
}

func TestCallStatusProcessesOnce(t *testing.T) {
	f := newFixture(t)
	const callSid = "CAstatus1"
	f.calls.callTo[callSid] = "+966512345678"
	if err := f.transcripts.Save(context.Background(), &domain.CallTranscript{
		CallSid:    callSid,
		Transcript: "User: my sink leaks\nAgent: noted\n",
	}); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}

	body := f.postCallStatus(t, callSid, "completed")
	if body["message"] != "Call processed" {
		t.Fatalf("first webhook body = %v", body)
	}
	ticketNumber, _ := body["ticketNumber"].(string)
	if ticketNumber == "" {
		t.Fatal("no ticket number on first webhook")
	}
	if _, err := f.tickets.GetByNumber(context.Background(), ticketNumber); err != nil {
		t.Fatalf("ticket not stored: %v", err)
	}

	body = f.postCallStatus(t, callSid, "completed")
	if body["message"] != "Call already processed" {
		t.Fatalf("second webhook body = %v", body)
	}
}

func TestCallStatusWithoutTranscript(t *testing.T) {
	f := newFixture(t)
	body := f.postCallStatus(t, "CAghost", "completed")
	if body["message"] != "No transcript for call" {
		t.Fatalf("body = %v", body)
	}
}

func TestManualTicketRecoversCall(t *testing.T) {
	f := newFixture(t)
	if err := f.transcripts.Save(context.Background(), &domain.CallTranscript{
		CallSid:    "CAmangled",
		Transcript: "User: static noise\n",
	}); err != nil {
		t.Fatalf("seed transcript: %v", err)
	}

	status, body := f.doJSON(t, http.MethodPost, "/manual-ticket", "", map[string]string{"callSid": "CAmangled"})
	if status != http.StatusOK {
		t.Fatalf("manual-ticket status = %d, body = %v", status, body)
	}
	number, _ := body["ticketNumber"].(string)
	if number == "" {
		t.Fatal("no ticketNumber in response")
	}

	ticket, err := f.tickets.GetByNumber(context.Background(), number)
	if err != nil {
		t.Fatalf("stored ticket lookup: %v", err)
	}
	if ticket.Transcript != "User: static noise\n" {
		t.Errorf("stored transcript = %q", ticket.Transcript)
	}

	if status, _ := f.doJSON(t, http.MethodPost, "/manual-ticket", "", map[string]string{}); status != http.StatusBadRequest {
		t.Fatalf("missing callSid status = %d", status)
	}
}

func TestCallStatusIgnoresNonTerminal(t *testing.T) {
	f := newFixture(t)
	body := f.postCallStatus(t, "CAring", "ringing")
	if body["message"] != "Status noted" {
		t.Fatalf("body = %v", body)
	}
}

func TestMakeCall(t *testing.T) {
	f := newFixture(t)

	status, body := f.doJSON(t, http.MethodPost, "/make-call", "", map[string]string{"phoneNumber": "0512345678"})
	if status != http.StatusOK {
		t.Fatalf("make-call status = %d, body = %v", status, body)
	}
	if body["callSid"] != "CAoutbound" {
		t.Errorf("make-call body = %v", body)
	}

	status, _ = f.doJSON(t, http.MethodPost, "/make-call", "", map[string]string{"phoneNumber": "not-a-number"})
	if status != http.StatusBadRequest {
		t.Fatalf("bad phone status = %d", status)
	}
}

func TestMediaStreamRequiresUpgrade(t *testing.T) {
	f := newFixture(t)
	req := httptest.NewRequest(http.MethodGet, "/media-stream", nil)
	resp, err := f.app.Test(req, -1)
	if err != nil {
		t.Fatalf("media-stream: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUpgradeRequired {
		t.Fatalf("status = %d, want 426", resp.StatusCode)
	}
}
