package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/ai"
	"github.com/smart-care/voice-gateway/internal/api/dto"
	"github.com/smart-care/voice-gateway/internal/bridge"
	"github.com/smart-care/voice-gateway/internal/config"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/repository"
	"github.com/smart-care/voice-gateway/internal/service"
	"github.com/smart-care/voice-gateway/internal/session"
	"github.com/smart-care/voice-gateway/internal/telephony"
	apperrors "github.com/smart-care/voice-gateway/pkg/util"
)

// CallHandler owns the voice surface: call origination, the provider
// webhooks and the media-stream socket.
type CallHandler struct {
	registry    *session.Registry
	dialer      ai.RealtimeDialer
	pipeline    *service.Pipeline
	calls       telephony.CallService
	transcripts repository.TranscriptRepository
	aiCfg       config.OpenAIConfig
	logger      *zap.Logger
	metrics     *observability.Metrics
}

// CallHandlerDependencies bundles what the handler needs.
type CallHandlerDependencies struct {
	Registry    *session.Registry
	Dialer      ai.RealtimeDialer
	Pipeline    *service.Pipeline
	Calls       telephony.CallService
	Transcripts repository.TranscriptRepository
	AIConfig    config.OpenAIConfig
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewCallHandler constructs handler.
func NewCallHandler(deps CallHandlerDependencies) *CallHandler {
	return &CallHandler{
		registry:    deps.Registry,
		dialer:      deps.Dialer,
		pipeline:    deps.Pipeline,
		calls:       deps.Calls,
		transcripts: deps.Transcripts,
		aiCfg:       deps.AIConfig,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
	}
}

// MakeCall handles POST /make-call: originates an outbound support call to a
// resident.
func (h *CallHandler) MakeCall(c *fiber.Ctx) error {
	if h.calls == nil {
		return apperrors.NewDomainError("TELEPHONY_DISABLED", "telephony provider not configured", http.StatusServiceUnavailable, nil)
	}

	var req dto.MakeCallRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	phone, err := service.NormalizePhone(req.PhoneNumber)
	if err != nil {
		return err
	}

	ref, err := h.calls.Originate(c.Context(), phone)
	if err != nil {
		return apperrors.NewTransportError("originate call failed", err)
	}

	h.logger.Info("call originated", zap.String("call_sid", ref.Sid))
	return c.JSON(dto.MakeCallResponse{Message: "Call initiated", CallSid: ref.Sid})
}

// IncomingCall handles the voice webhook: it answers with TwiML that greets
// the caller and connects the media stream back to this host.
func (h *CallHandler) IncomingCall(c *fiber.Ctx) error {
	twiml, err := telephony.IncomingCallTwiML(c.Hostname())
	if err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, "text/xml")
	return c.SendString(twiml)
}

// CallStatus handles the provider status webhook. For terminal statuses it
// runs the pipeline if, and only if, the stream-close path has not already
// claimed the session. The webhook and the stream close race; the
// processed-session claim decides the winner.
func (h *CallHandler) CallStatus(c *fiber.Ctx) error {
	callSid := c.FormValue("CallSid")
	status := c.FormValue("CallStatus")
	if callSid == "" {
		return fiber.NewError(http.StatusBadRequest, "CallSid required")
	}

	h.logger.Info("call status", zap.String("call_sid", callSid), zap.String("status", status))

	switch status {
	case telephony.CallStatusCompleted, telephony.CallStatusFailed,
		telephony.CallStatusNoAnswer, telephony.CallStatusBusy:
	default:
		return c.JSON(dto.CallStatusResponse{Message: "Status noted"})
	}

	if h.pipeline.AlreadyProcessed(c.Context(), callSid) {
		return c.JSON(dto.CallStatusResponse{Message: "Call already processed"})
	}

	transcript, ok := h.transcriptFor(c.Context(), callSid)
	if !ok {
		return c.JSON(dto.CallStatusResponse{Message: "No transcript for call"})
	}

	ref, already, err := h.pipeline.ProcessSession(c.Context(), callSid, transcript)
	if err != nil {
		return err
	}
	if already {
		return c.JSON(dto.CallStatusResponse{Message: "Call already processed"})
	}
	return c.JSON(dto.CallStatusResponse{Message: "Call processed", TicketNumber: ref.TicketNumber})
}

// ManualTicket handles POST /manual-ticket: the recovery path for a call
// whose automatic extraction failed. A minimal ticket is minted from
// whatever was stored for the call so the session is not lost.
func (h *CallHandler) ManualTicket(c *fiber.Ctx) error {
	var req dto.ManualTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, "invalid payload")
	}
	if req.CallSid == "" {
		return fiber.NewError(http.StatusBadRequest, "callSid required")
	}

	ref, err := h.pipeline.ProcessManual(c.Context(), req.CallSid)
	if err != nil {
		return err
	}
	return c.JSON(dto.ManualTicketResponse{Message: "Ticket created", TicketNumber: ref.TicketNumber})
}

// transcriptFor finds the conversation text for a call: the live session if
// the stream is still up, otherwise the stored transcript.
func (h *CallHandler) transcriptFor(ctx context.Context, callSid string) (string, bool) {
	if sess, ok := h.registry.Get(callSid); ok {
		if t := sess.Transcript(); t != "" {
			return t, true
		}
	}
	if h.transcripts != nil {
		stored, err := h.transcripts.GetByCallSid(ctx, callSid)
		if err == nil && stored.Transcript != "" {
			return stored.Transcript, true
		}
		if err != nil && !errors.Is(err, repository.ErrNoRows) {
			h.logger.Warn("load stored transcript", zap.String("call_sid", callSid), zap.Error(err))
		}
	}
	return "", false
}

// MediaStream is the websocket endpoint the provider connects its media
// stream to. The connection read loop lives here; everything stateful
// belongs to the per-session bridge created on the start frame.
func (h *CallHandler) MediaStream(conn *websocket.Conn) {
	var br *bridge.Bridge
	defer func() {
		if br != nil {
			br.Shutdown("media stream closed")
			<-br.Done()
		}
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if br != nil {
				h.logger.Info("media stream read ended", zap.Error(err))
			}
			return
		}

		if br == nil {
			var frame telephony.StreamFrame
			if err := json.Unmarshal(data, &frame); err != nil {
				h.metrics.Inc(observability.CounterMalformedFrames)
				continue
			}
			// The provider sends a connected preamble before start.
			if frame.Event != telephony.StreamEventStart || frame.Start == nil {
				continue
			}

			key := session.DeriveKey(frame.Start.CallSid)
			sess := h.registry.GetOrCreate(key)
			br = bridge.New(bridge.Options{
				Session:  sess,
				Registry: h.registry,
				Media:    conn,
				Dialer:   h.dialer,
				Pipeline: h.pipeline,
				AIConfig: h.aiCfg,
				Logger:   h.logger,
				Metrics:  h.metrics,
			})
			br.Start(context.Background())
		}

		br.HandleMediaFrame(data)
	}
}
