package telephony

// Twilio Media Streams wire frames. Inbound frames carry an event
// discriminator; only start, media and stop matter to the bridge.
// https://www.twilio.com/docs/voice/media-streams

// StreamEvent values seen on the inbound connection.
const (
	StreamEventStart = "start"
	StreamEventMedia = "media"
	StreamEventStop  = "stop"
)

// StreamFrame is one inbound media-stream message.
type StreamFrame struct {
	Event string       `json:"event"`
	Start *StreamStart `json:"start,omitempty"`
	Media *StreamMedia `json:"media,omitempty"`
}

// StreamStart announces the provider-assigned stream identifier.
type StreamStart struct {
	StreamSid string `json:"streamSid"`
	CallSid   string `json:"callSid,omitempty"`
}

// StreamMedia carries one base64 mulaw audio payload.
type StreamMedia struct {
	Payload string `json:"payload"`
}

// OutboundMediaFrame is the frame written back to the provider with AI
// audio. It must be tagged with the StreamSid bound at start.
type OutboundMediaFrame struct {
	Event     string        `json:"event"`
	StreamSid string        `json:"streamSid"`
	Media     OutboundMedia `json:"media"`
}

// OutboundMedia wraps the base64 payload of an outbound frame.
type OutboundMedia struct {
	Payload string `json:"payload"`
}

// NewOutboundMediaFrame packages an AI audio delta for the inbound stream.
func NewOutboundMediaFrame(streamSid, payload string) OutboundMediaFrame {
	return OutboundMediaFrame{
		Event:     StreamEventMedia,
		StreamSid: streamSid,
		Media:     OutboundMedia{Payload: payload},
	}
}
