// Package bridge pairs one inbound telephony media stream with one outbound
// AI realtime connection for the lifetime of a single session. A bridge is a
// per-session actor: both connections are owned by one goroutine, and the
// only entry points are message-passing methods, so no state is shared
// between the two event streams.
package bridge

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/smart-care/voice-gateway/internal/ai"
	"github.com/smart-care/voice-gateway/internal/config"
	"github.com/smart-care/voice-gateway/internal/domain"
	"github.com/smart-care/voice-gateway/internal/observability"
	"github.com/smart-care/voice-gateway/internal/session"
	"github.com/smart-care/voice-gateway/internal/telephony"
)

// AgentMessageMissing is appended when a completed response carries no
// transcript fragment. A placeholder documents the gap instead of silently
// dropping the turn.
const AgentMessageMissing = "Agent message not found"

// MediaWriter is the write side of the inbound media connection.
type MediaWriter interface {
	WriteJSON(v any) error
}

// Pipeline is the post-call processing entry point. Satisfied by
// service.Pipeline.
type Pipeline interface {
	ProcessSession(ctx context.Context, key, transcript string) (*domain.TicketRef, bool, error)
}

// Options bundle bridge dependencies.
type Options struct {
	Session  *session.Session
	Registry *session.Registry
	Media    MediaWriter
	Dialer   ai.RealtimeDialer
	Pipeline Pipeline
	AIConfig config.OpenAIConfig
	Logger   *zap.Logger
	Metrics  *observability.Metrics
}

// Bridge relays frames between the two connections of one session.
type Bridge struct {
	sess     *session.Session
	registry *session.Registry
	media    MediaWriter
	dialer   ai.RealtimeDialer
	pipeline Pipeline
	aiCfg    config.OpenAIConfig
	logger   *zap.Logger
	metrics  *observability.Metrics

	cmds      chan any
	done      chan struct{}
	closeOnce sync.Once
}

type mediaFrameCmd struct{ data []byte }
type aiDialedCmd struct{ conn ai.RealtimeConn }
type aiDialFailedCmd struct{ err error }
type shutdownCmd struct{ reason string }

// New constructs a bridge for one session. Call Start to begin relaying.
func New(opts Options) *Bridge {
	return &Bridge{
		sess:     opts.Session,
		registry: opts.Registry,
		media:    opts.Media,
		dialer:   opts.Dialer,
		pipeline: opts.Pipeline,
		aiCfg:    opts.AIConfig,
		logger:   opts.Logger.With(zap.String("session", opts.Session.Key)),
		metrics:  opts.Metrics,
		cmds:     make(chan any, 64),
		done:     make(chan struct{}),
	}
}

// Start launches the actor goroutine and begins dialing the AI link.
func (b *Bridge) Start(ctx context.Context) {
	b.metrics.Inc(observability.CounterSessionsStarted)
	go b.run(ctx)
}

// HandleMediaFrame hands one raw inbound frame to the actor. Safe to call
// from the connection read loop; frames arriving after shutdown are ignored.
func (b *Bridge) HandleMediaFrame(data []byte) {
	frame := append([]byte(nil), data...)
	select {
	case b.cmds <- mediaFrameCmd{data: frame}:
	case <-b.done:
	}
}

// Shutdown closes the bridge: the AI link is closed, the pipeline is
// triggered asynchronously with the accumulated transcript, and the session
// is removed from the registry. Idempotent; concurrent callers and the
// out-of-band status webhook are both safe because ticket creation is
// guarded by the pipeline's processed-session claim.
func (b *Bridge) Shutdown(reason string) {
	b.closeOnce.Do(func() {
		select {
		case b.cmds <- shutdownCmd{reason: reason}:
		case <-b.done:
		}
	})
}

// Done is closed once the actor has exited.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

func (b *Bridge) run(ctx context.Context) {
	defer close(b.done)

	go b.dialAI(ctx)

	var (
		aiConn   ai.RealtimeConn
		aiEvents <-chan []byte
		settleCh <-chan time.Time
	)

	closeAI := func() {
		if aiConn != nil {
			if err := aiConn.Close(); err != nil {
				b.logger.Debug("close ai link", zap.Error(err))
			}
			aiConn = nil
			b.sess.SetAILinkOpen(false)
		}
	}

	for {
		select {
		case cmd := <-b.cmds:
			switch c := cmd.(type) {
			case mediaFrameCmd:
				b.onMediaFrame(aiConn, c.data)
			case aiDialedCmd:
				aiConn = c.conn
				aiEvents = c.conn.Events()
				b.sess.SetAILinkOpen(true)
				settleCh = time.After(b.aiCfg.SettleDelay())
				b.logger.Info("ai link open",
					zap.Duration("settle_delay", b.aiCfg.SettleDelay()))
			case aiDialFailedCmd:
				b.logger.Error("ai link dial failed", zap.Error(c.err))
			case shutdownCmd:
				b.logger.Info("closing bridge", zap.String("reason", c.reason))
				closeAI()
				b.finish(ctx)
				return
			}

		case <-settleCh:
			settleCh = nil
			if aiConn == nil {
				continue
			}
			if err := aiConn.Send(ai.NewSessionUpdate(b.aiCfg)); err != nil {
				b.logger.Error("send session configuration", zap.Error(err))
			}

		case evt, ok := <-aiEvents:
			if !ok {
				// AI side dropped on its own. Log only; the caller may
				// still be speaking or receiving buffered audio.
				b.logger.Warn("ai link closed independently")
				aiEvents = nil
				aiConn = nil
				b.sess.SetAILinkOpen(false)
				continue
			}
			b.onAIEvent(evt)

		case <-ctx.Done():
			closeAI()
			b.finish(context.WithoutCancel(ctx))
			return
		}
	}
}

func (b *Bridge) dialAI(ctx context.Context) {
	conn, err := b.dialer.Dial(ctx)
	if err != nil {
		select {
		case b.cmds <- aiDialFailedCmd{err: err}:
		case <-b.done:
		}
		return
	}
	select {
	case b.cmds <- aiDialedCmd{conn: conn}:
	case <-b.done:
		_ = conn.Close()
	}
}

func (b *Bridge) onMediaFrame(aiConn ai.RealtimeConn, data []byte) {
	var frame telephony.StreamFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		b.metrics.Inc(observability.CounterMalformedFrames)
		b.logger.Warn("malformed media frame", zap.Error(err))
		return
	}

	switch frame.Event {
	case telephony.StreamEventStart:
		if frame.Start == nil {
			b.metrics.Inc(observability.CounterMalformedFrames)
			return
		}
		b.sess.SetStreamSid(frame.Start.StreamSid)
		b.logger.Info("inbound stream started", zap.String("stream_sid", frame.Start.StreamSid))

	case telephony.StreamEventMedia:
		if frame.Media == nil {
			b.metrics.Inc(observability.CounterMalformedFrames)
			return
		}
		if aiConn == nil {
			// Data-loss window between stream start and AI-link readiness.
			b.metrics.Inc(observability.CounterDroppedFrames)
			return
		}
		if err := aiConn.Send(ai.NewAudioAppend(frame.Media.Payload)); err != nil {
			b.logger.Warn("forward audio to ai", zap.Error(err))
			return
		}
		b.metrics.Inc(observability.CounterRelayedFrames)

	case telephony.StreamEventStop:
		b.logger.Info("inbound stream stopped")

	default:
		b.logger.Debug("non-media event", zap.String("event", frame.Event))
	}
}

func (b *Bridge) onAIEvent(data []byte) {
	evt, err := ai.ParseServerEvent(data)
	if err != nil {
		b.metrics.Inc(observability.CounterMalformedFrames)
		b.logger.Warn("malformed ai event", zap.Error(err))
		return
	}

	switch evt.Type {
	case ai.EventSessionUpdated:
		b.logger.Info("ai session configured")

	case ai.EventTranscriptionCompleted:
		b.sess.AppendUser(strings.TrimSpace(evt.Transcript))

	case ai.EventResponseDone:
		if transcript, ok := evt.Response.FirstTranscript(); ok {
			b.sess.AppendAgent(transcript)
		} else {
			b.sess.AppendAgent(AgentMessageMissing)
		}

	case ai.EventResponseAudioDelta:
		if evt.Delta == "" {
			return
		}
		frame := telephony.NewOutboundMediaFrame(b.sess.StreamSid(), evt.Delta)
		if err := b.media.WriteJSON(frame); err != nil {
			b.logger.Warn("forward audio to caller", zap.Error(err))
		}
	}
}

// finish triggers the post-call pipeline and tears the session down. The
// pipeline runs asynchronously: its failures never propagate back to the
// already-terminated connection.
func (b *Bridge) finish(ctx context.Context) {
	transcript := b.sess.Transcript()
	key := b.sess.Key

	if strings.TrimSpace(transcript) != "" && b.pipeline != nil {
		go func() {
			if _, already, err := b.pipeline.ProcessSession(context.WithoutCancel(ctx), key, transcript); err != nil {
				b.logger.Error("post-call pipeline", zap.Error(err))
			} else if already {
				b.logger.Info("session already processed")
			}
		}()
	} else {
		b.logger.Info("no transcript accumulated; skipping ticket creation")
	}

	b.registry.Remove(key)
	b.metrics.Inc(observability.CounterSessionsClosed)
}
