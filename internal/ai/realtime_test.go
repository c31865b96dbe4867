package ai

import (
	"encoding/json"
	"testing"

	"github.com/smart-care/voice-gateway/internal/config"
)

func TestParseServerEvent(t *testing.T) {
	raw := []byte(`{
		"type": "response.done",
		"response": {"output": [
			{"content": [{"transcript": ""}, {"transcript": "How can I help?"}]}
		]}
	}`)
	evt, err := ParseServerEvent(raw)
	if err != nil {
		t.Fatalf("ParseServerEvent: %v", err)
	}
	if evt.Type != EventResponseDone {
		t.Errorf("type = %q", evt.Type)
	}
	transcript, ok := evt.Response.FirstTranscript()
	if !ok || transcript != "How can I help?" {
		t.Errorf("FirstTranscript = %q, %v", transcript, ok)
	}
}

func TestFirstTranscriptEmpty(t *testing.T) {
	var nilBody *ResponseBody
	if _, ok := nilBody.FirstTranscript(); ok {
		t.Error("nil body reported a transcript")
	}
	empty := &ResponseBody{Output: []ResponseOutput{{Content: []ResponseContent{{Transcript: ""}}}}}
	if _, ok := empty.FirstTranscript(); ok {
		t.Error("empty content reported a transcript")
	}
}

func TestNewSessionUpdate(t *testing.T) {
	cfg := config.OpenAIConfig{Voice: "echo", Temperature: 0.8}
	evt := NewSessionUpdate(cfg)

	if evt.Type != "session.update" {
		t.Errorf("type = %q", evt.Type)
	}
	s := evt.Session
	if s.InputAudioFormat != "g711_ulaw" || s.OutputAudioFormat != "g711_ulaw" {
		t.Errorf("audio formats = %q/%q", s.InputAudioFormat, s.OutputAudioFormat)
	}
	if s.TurnDetection == nil || s.TurnDetection.Type != "server_vad" {
		t.Errorf("turn detection = %+v", s.TurnDetection)
	}
	if s.InputAudioTranscription == nil || s.InputAudioTranscription.Model != "whisper-1" {
		t.Errorf("transcription = %+v", s.InputAudioTranscription)
	}
	if s.Voice != "echo" || s.Instructions == "" {
		t.Errorf("voice/instructions = %q/%q", s.Voice, s.Instructions)
	}

	data, err := json.Marshal(evt)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var round map[string]any
	if err := json.Unmarshal(data, &round); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if round["type"] != "session.update" {
		t.Errorf("wire type = %v", round["type"])
	}
}
