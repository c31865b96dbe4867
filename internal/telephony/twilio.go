package telephony

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
	"github.com/twilio/twilio-go/twiml"

	"github.com/smart-care/voice-gateway/internal/config"
)

// Call status values reported by the provider's status callback.
const (
	CallStatusCompleted = "completed"
	CallStatusFailed    = "failed"
	CallStatusNoAnswer  = "no-answer"
	CallStatusBusy      = "busy"
)

// CallRef identifies an originated call.
type CallRef struct {
	Sid string
	To  string
}

// CallService is the narrow interface over the telephony provider: originate
// a call, resolve a call's destination number, send an SMS. The provider's
// call-control API is a black box behind it.
type CallService interface {
	Originate(ctx context.Context, to string) (*CallRef, error)
	LookupCall(ctx context.Context, callSid string) (*CallRef, error)
	SendSMS(ctx context.Context, to, body string) error
}

type twilioService struct {
	client *twilio.RestClient
	cfg    config.TwilioConfig
}

// NewCallService builds the Twilio-backed implementation.
func NewCallService(cfg config.TwilioConfig) (CallService, error) {
	if cfg.AccountSID == "" || cfg.AuthToken == "" || cfg.FromNumber == "" {
		return nil, errors.New("missing twilio credentials")
	}
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &twilioService{client: client, cfg: cfg}, nil
}

func (s *twilioService) Originate(ctx context.Context, to string) (*CallRef, error) {
	base := strings.TrimSuffix(s.cfg.WebhookBaseURL, "/")
	if !strings.HasPrefix(base, "http") {
		base = "https://" + base
	}

	params := &api.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(s.cfg.FromNumber)
	params.SetUrl(base + "/incoming-call")
	params.SetStatusCallback(base + "/call-status")
	params.SetStatusCallbackEvent([]string{CallStatusCompleted})
	params.SetStatusCallbackMethod("POST")

	call, err := s.client.Api.CreateCall(params)
	if err != nil {
		return nil, fmt.Errorf("create call: %w", err)
	}

	ref := &CallRef{To: to}
	if call.Sid != nil {
		ref.Sid = *call.Sid
	}
	return ref, nil
}

func (s *twilioService) LookupCall(ctx context.Context, callSid string) (*CallRef, error) {
	call, err := s.client.Api.FetchCall(callSid, &api.FetchCallParams{})
	if err != nil {
		return nil, fmt.Errorf("fetch call %s: %w", callSid, err)
	}
	ref := &CallRef{Sid: callSid}
	if call.To != nil {
		ref.To = *call.To
	}
	return ref, nil
}

func (s *twilioService) SendSMS(ctx context.Context, to, body string) error {
	params := &api.CreateMessageParams{}
	params.SetTo(to)
	params.SetFrom(s.cfg.FromNumber)
	params.SetBody(body)

	if _, err := s.client.Api.CreateMessage(params); err != nil {
		return fmt.Errorf("send sms to %s: %w", to, err)
	}
	return nil
}

// IncomingCallTwiML renders the voice response that greets the caller and
// connects the media stream back to this host.
func IncomingCallTwiML(host string) (string, error) {
	say := &twiml.VoiceSay{
		Message: "Smart Care system. How can we assist you today?",
	}
	stream := &twiml.VoiceStream{
		Url: fmt.Sprintf("wss://%s/media-stream", host),
	}
	connect := &twiml.VoiceConnect{
		InnerElements: []twiml.Element{stream},
	}
	return twiml.Voice([]twiml.Element{say, connect})
}
