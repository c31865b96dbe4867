package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/smart-care/voice-gateway/internal/config"
)

// Realtime server event types the bridge reacts to.
const (
	EventSessionUpdated         = "session.updated"
	EventTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	EventResponseDone           = "response.done"
	EventResponseAudioDelta     = "response.audio.delta"
)

// SessionUpdateEvent configures the realtime session. Sent once, after the
// settle delay, because the service rejects configuration sent immediately
// on socket open.
type SessionUpdateEvent struct {
	Type    string         `json:"type"`
	Session SessionOptions `json:"session"`
}

// SessionOptions mirrors the realtime session.update payload.
type SessionOptions struct {
	TurnDetection           *TurnDetection       `json:"turn_detection,omitempty"`
	InputAudioFormat        string               `json:"input_audio_format,omitempty"`
	OutputAudioFormat       string               `json:"output_audio_format,omitempty"`
	Voice                   string               `json:"voice,omitempty"`
	Instructions            string               `json:"instructions,omitempty"`
	Modalities              []string             `json:"modalities,omitempty"`
	Temperature             float32              `json:"temperature,omitempty"`
	InputAudioTranscription *TranscriptionOption `json:"input_audio_transcription,omitempty"`
}

// TurnDetection selects the provider's voice-activity detection.
type TurnDetection struct {
	Type string `json:"type"`
}

// TranscriptionOption selects the transcription model.
type TranscriptionOption struct {
	Model string `json:"model"`
}

// AudioAppendEvent forwards one base64 audio payload to the input buffer.
type AudioAppendEvent struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

// NewAudioAppend packages a media payload for the realtime input buffer.
func NewAudioAppend(payload string) AudioAppendEvent {
	return AudioAppendEvent{Type: "input_audio_buffer.append", Audio: payload}
}

// NewSessionUpdate builds the one-shot session configuration event.
func NewSessionUpdate(cfg config.OpenAIConfig) SessionUpdateEvent {
	return SessionUpdateEvent{
		Type: "session.update",
		Session: SessionOptions{
			TurnDetection:           &TurnDetection{Type: "server_vad"},
			InputAudioFormat:        "g711_ulaw",
			OutputAudioFormat:       "g711_ulaw",
			Voice:                   cfg.Voice,
			Instructions:            VoiceSystemPrompt,
			Modalities:              []string{"text", "audio"},
			Temperature:             cfg.Temperature,
			InputAudioTranscription: &TranscriptionOption{Model: "whisper-1"},
		},
	}
}

// ServerEvent is the decoded shape of a realtime server message. Only the
// fields the bridge consumes are mapped; everything else is ignored.
type ServerEvent struct {
	Type       string        `json:"type"`
	Transcript string        `json:"transcript"`
	Delta      string        `json:"delta"`
	Response   *ResponseBody `json:"response"`
}

// ResponseBody carries the structured output of a completed response.
type ResponseBody struct {
	Output []ResponseOutput `json:"output"`
}

// ResponseOutput is one output item of a completed response.
type ResponseOutput struct {
	Content []ResponseContent `json:"content"`
}

// ResponseContent is one content part; audio parts carry a transcript.
type ResponseContent struct {
	Transcript string `json:"transcript"`
}

// FirstTranscript returns the first transcript fragment of a completed
// response, or false when the response carries none.
func (r *ResponseBody) FirstTranscript() (string, bool) {
	if r == nil {
		return "", false
	}
	for _, out := range r.Output {
		for _, content := range out.Content {
			if content.Transcript != "" {
				return content.Transcript, true
			}
		}
	}
	return "", false
}

// ParseServerEvent decodes one raw realtime message.
func ParseServerEvent(data []byte) (*ServerEvent, error) {
	var evt ServerEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, err
	}
	return &evt, nil
}

// RealtimeConn is one live connection to the AI realtime endpoint. Events
// delivers raw server messages; the channel closes when the connection ends.
type RealtimeConn interface {
	Send(v any) error
	Events() <-chan []byte
	Close() error
}

// RealtimeDialer opens realtime connections. The bridge takes a dialer so
// tests can swap in a fake connection.
type RealtimeDialer interface {
	Dial(ctx context.Context) (RealtimeConn, error)
}

type realtimeDialer struct {
	cfg config.OpenAIConfig
}

// NewRealtimeDialer builds the production dialer.
func NewRealtimeDialer(cfg config.OpenAIConfig) (RealtimeDialer, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("missing OpenAI API key")
	}
	return &realtimeDialer{cfg: cfg}, nil
}

func (d *realtimeDialer) Dial(ctx context.Context) (RealtimeConn, error) {
	url := fmt.Sprintf("wss://api.openai.com/v1/realtime?model=%s", d.cfg.RealtimeModel)
	header := http.Header{}
	header.Set("Authorization", "Bearer "+d.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial realtime: %w", err)
	}

	conn := &realtimeConn{ws: ws, events: make(chan []byte, 64)}
	go conn.readPump()
	return conn, nil
}

type realtimeConn struct {
	ws     *websocket.Conn
	events chan []byte

	writeMu   sync.Mutex
	closeOnce sync.Once
}

func (c *realtimeConn) Send(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *realtimeConn) Events() <-chan []byte {
	return c.events
}

func (c *realtimeConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.ws.Close()
	})
	return err
}

func (c *realtimeConn) readPump() {
	defer close(c.events)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		c.events <- data
	}
}
