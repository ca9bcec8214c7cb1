// Package bridge relays audio between a telephony media stream and a
// conversational-speech session, transcoding both directions in real
// time and overlapping session outages with a bounded frame buffer.
package bridge

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/matedort/careline/internal/audio"
	"github.com/matedort/careline/internal/live"
	"github.com/matedort/careline/internal/observability"
	"github.com/matedort/careline/internal/policy"
	"github.com/matedort/careline/internal/protocol"
	"github.com/matedort/careline/internal/reliability"
	"github.com/matedort/careline/internal/store"
)

const (
	// reconnectWindow bounds how long a dropped session may take to
	// come back before buffered audio is discarded.
	reconnectWindow = 5 * time.Second
	// drainInterval paces buffered frames back into a fresh session.
	drainInterval = 20 * time.Millisecond
	reconnectBase = 250 * time.Millisecond
	reconnectCap  = time.Second
)

// LiveSession is the slice of the conversational session the bridge
// drives. *live.Session satisfies it.
type LiveSession interface {
	SendAudio(pcm []byte) error
	SendNotice(text string) error
	SendToolResponses(resps []live.FunctionResponse) error
	Connected() bool
	Events() <-chan live.Event
	Disconnect()
}

// Dialer opens a fresh conversational session.
type Dialer func(ctx context.Context) (LiveSession, error)

// Invoker executes a batch of model function calls.
type Invoker interface {
	Invoke(ctx context.Context, calls []live.FunctionCall) []live.FunctionResponse
}

// CallTracker is the scheduler surface the bridge reports call state to.
type CallTracker interface {
	SetInCall(ctx context.Context, callID string, inCall bool)
	PendingAnnouncement(callID string) (string, bool)
	Announcement(ctx context.Context) (string, bool)
}

// StreamConn is the telephony websocket leg. *websocket.Conn satisfies
// it.
type StreamConn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// Bridge builds one relay per accepted media-stream connection.
type Bridge struct {
	dial     Dialer
	invoker  Invoker
	tracker  CallTracker
	store    store.Store
	metrics  *observability.Metrics
	registry *Registry

	bufferFrames int
	now          func() time.Time
}

type Option func(*Bridge)

// WithBufferFrames overrides the reconnection buffer capacity.
func WithBufferFrames(n int) Option {
	return func(b *Bridge) { b.bufferFrames = n }
}

func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

func New(dial Dialer, invoker Invoker, tracker CallTracker, st store.Store, metrics *observability.Metrics, opts ...Option) *Bridge {
	b := &Bridge{
		dial:         dial,
		invoker:      invoker,
		tracker:      tracker,
		store:        st,
		metrics:      metrics,
		registry:     NewRegistry(),
		bufferFrames: DefaultBufferFrames,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Registry exposes the active-call table, for the HTTP API.
func (b *Bridge) Registry() *Registry { return b.registry }

// Run relays one telephony media stream until the stream stops or the
// transport drops. It owns the connection's read side; assistant audio
// is written from the session pump goroutine.
func (b *Bridge) Run(ctx context.Context, conn StreamConn) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var call *activeCall
	defer func() {
		if call != nil {
			b.teardown(call)
		}
	}()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if call != nil {
				log.Printf("bridge: stream read ended for %s: %v", call.callSid, err)
			}
			return nil
		}

		ev, err := protocol.ParseStreamEvent(raw)
		if err != nil {
			if !errors.Is(err, protocol.ErrUnsupportedEvent) {
				log.Printf("bridge: dropping bad stream event: %v", err)
			}
			continue
		}

		switch ev := ev.(type) {
		case protocol.StreamStart:
			if call != nil {
				// One relay per connection; a duplicate start would leak
				// the first call's session and registry entry.
				log.Printf("bridge: ignoring duplicate start for %s on stream owned by %s",
					ev.Start.CallSid, call.callSid)
				continue
			}
			call = b.startCall(ctx, conn, ev)
		case protocol.MediaFrame:
			if call == nil {
				continue
			}
			b.handleMedia(ctx, call, ev)
		case protocol.StreamStop:
			return nil
		}
	}
}

// activeCall is the mutable state of one bridged call.
type activeCall struct {
	callSid   string
	streamSid string
	conn      StreamConn
	startedAt time.Time

	mu      sync.Mutex
	session LiveSession

	writeMu      sync.Mutex
	buffer       *frameBuffer
	reconnecting atomic.Bool
	stopping     atomic.Bool
	sawAudio     atomic.Bool
	opened       atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func (c *activeCall) liveSession() LiveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *activeCall) setSession(s LiveSession) {
	c.mu.Lock()
	c.session = s
	c.mu.Unlock()
}

func (c *activeCall) writeFrame(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bridge) startCall(ctx context.Context, conn StreamConn, ev protocol.StreamStart) *activeCall {
	callCtx, cancel := context.WithCancel(ctx)
	call := &activeCall{
		callSid:   ev.Start.CallSid,
		streamSid: ev.Start.StreamSid,
		conn:      conn,
		startedAt: b.now(),
		buffer:    newFrameBuffer(b.bufferFrames),
		ctx:       callCtx,
		cancel:    cancel,
	}
	b.registry.Add(call.callSid, call.streamSid)
	b.metrics.ActiveCalls.Inc()
	b.tracker.SetInCall(callCtx, call.callSid, true)
	log.Printf("bridge: stream %s started for call %s", call.streamSid, call.callSid)

	sess, err := b.dial(callCtx)
	if err != nil {
		// Buffer caller audio and let the reconnect path establish the
		// session.
		log.Printf("bridge: initial session dial for %s failed: %v", call.callSid, err)
		b.beginReconnect(call)
		return call
	}
	call.setSession(sess)
	call.opened.Store(true)
	b.sendOpeningNotices(callCtx, call, sess)
	go b.pumpEvents(call, sess)
	return call
}

// sendOpeningNotices primes the conversation before any caller audio:
// wall-clock context first, then the reminder announcement when this
// call exists to deliver one.
func (b *Bridge) sendOpeningNotices(ctx context.Context, call *activeCall, sess LiveSession) {
	now := b.now()
	timeNotice := "The current time is " + now.Format("03:04 PM on Monday, January 02, 2006") + "."
	if err := sess.SendNotice(timeNotice); err != nil {
		log.Printf("bridge: time notice for %s: %v", call.callSid, err)
	}

	announcement, ok := b.tracker.PendingAnnouncement(call.callSid)
	if !ok {
		announcement, ok = b.tracker.Announcement(ctx)
	}
	if ok {
		if err := sess.SendNotice(announcement); err != nil {
			log.Printf("bridge: announcement for %s: %v", call.callSid, err)
		}
	}
}

func (b *Bridge) handleMedia(ctx context.Context, call *activeCall, frame protocol.MediaFrame) {
	companded, err := frame.DecodePayload()
	if err != nil {
		log.Printf("bridge: dropping undecodable media frame: %v", err)
		b.metrics.TranscodeErrors.Inc()
		return
	}
	pcm := audio.UplinkFromCaller(companded)
	b.metrics.MediaFrames.WithLabelValues("inbound").Inc()
	b.registry.Touch(call.callSid, true)

	sess := call.liveSession()
	if sess == nil || call.reconnecting.Load() || !sess.Connected() {
		call.buffer.push(pcm)
		b.metrics.BufferedFrames.Set(float64(call.buffer.len()))
		b.beginReconnect(call)
		return
	}

	if err := sess.SendAudio(pcm); err != nil {
		if reliability.IsConnectionFault(err) {
			call.buffer.push(pcm)
			b.metrics.BufferedFrames.Set(float64(call.buffer.len()))
			b.beginReconnect(call)
			return
		}
		log.Printf("bridge: send audio for %s: %v", call.callSid, err)
	}
}

// beginReconnect starts at most one concurrent reconnection attempt.
// The attempt redials within a bounded grace window, then either drains
// the buffered audio into the fresh session or discards it.
func (b *Bridge) beginReconnect(call *activeCall) {
	if call.stopping.Load() {
		return
	}
	if !call.reconnecting.CompareAndSwap(false, true) {
		return
	}
	b.metrics.SessionReconnects.Inc()

	go func() {
		defer call.reconnecting.Store(false)

		if old := call.liveSession(); old != nil {
			old.Disconnect()
		}

		deadline := time.Now().Add(reconnectWindow)
		for attempt := 0; ; attempt++ {
			if call.stopping.Load() || call.ctx.Err() != nil {
				call.buffer.discard()
				return
			}
			if time.Now().After(deadline) {
				log.Printf("bridge: reconnect window expired for %s, discarding %d buffered frames",
					call.callSid, call.buffer.len())
				call.buffer.discard()
				b.metrics.BufferedFrames.Set(0)
				return
			}

			dialCtx, cancel := context.WithDeadline(call.ctx, deadline)
			sess, err := b.dial(dialCtx)
			cancel()
			if err == nil && sess.Connected() {
				call.setSession(sess)
				go b.pumpEvents(call, sess)
				if call.opened.CompareAndSwap(false, true) {
					// The call never had a session; open it properly.
					b.sendOpeningNotices(call.ctx, call, sess)
				}
				b.drainBuffer(call, sess)
				// Inbound media goes direct from here. A frame racing the
				// flag flip would replay stale on a later outage, so drop
				// any residue instead of keeping it.
				call.reconnecting.Store(false)
				call.buffer.discard()
				log.Printf("bridge: session restored for %s", call.callSid)
				return
			}
			if err != nil {
				log.Printf("bridge: reconnect dial for %s: %v", call.callSid, err)
			}
			time.Sleep(reliability.ExponentialBackoff(attempt, reconnectBase, reconnectCap))
		}
	}()
}

// drainBuffer replays buffered caller audio in arrival order, paced so
// the fresh session is not flooded. Frames keep arriving while the
// replay runs (the reconnecting flag still routes them into the
// buffer), so the drain loops until a pass finds the buffer empty.
func (b *Bridge) drainBuffer(call *activeCall, sess LiveSession) {
	limiter := rate.NewLimiter(rate.Every(drainInterval), 1)
	total := 0
	for {
		frames := call.buffer.drain()
		if len(frames) == 0 {
			break
		}
		for _, frame := range frames {
			if err := limiter.Wait(call.ctx); err != nil {
				return
			}
			if err := sess.SendAudio(frame); err != nil {
				log.Printf("bridge: drain for %s stopped: %v", call.callSid, err)
				return
			}
			total++
		}
	}
	if total > 0 {
		b.metrics.BufferedFrames.Set(0)
		log.Printf("bridge: drained %d buffered frames for %s", total, call.callSid)
	}
}

// pumpEvents consumes one session's event stream until it closes:
// assistant audio goes back down the telephony leg, transcripts go to
// the conversation store, tool calls are dispatched and answered.
func (b *Bridge) pumpEvents(call *activeCall, sess LiveSession) {
	for ev := range sess.Events() {
		switch ev.Type {
		case live.EventAudio:
			b.forwardAudio(call, ev.Audio)
		case live.EventTranscript:
			b.logTranscript(call, ev)
		case live.EventToolCall:
			b.dispatchCalls(call, sess, ev.Calls)
		case live.EventClosed:
			log.Printf("bridge: session for %s closed: %s", call.callSid, ev.Detail)
		}
	}
	// Stream closed. If the call is still up this was a provider-side
	// drop; buffering starts with the next caller frame.
	if !call.stopping.Load() && !call.reconnecting.Load() {
		b.beginReconnect(call)
	}
}

func (b *Bridge) forwardAudio(call *activeCall, pcm []byte) {
	companded, err := audio.DownlinkToCaller(pcm)
	if err != nil {
		log.Printf("bridge: downlink transcode for %s: %v", call.callSid, err)
		b.metrics.TranscodeErrors.Inc()
		return
	}
	frame, err := protocol.EncodeOutboundMedia(call.streamSid, companded)
	if err != nil {
		log.Printf("bridge: encode outbound frame for %s: %v", call.callSid, err)
		return
	}
	if err := call.writeFrame(frame); err != nil {
		log.Printf("bridge: write to stream %s: %v", call.streamSid, err)
		return
	}
	if call.sawAudio.CompareAndSwap(false, true) {
		b.metrics.ObserveFirstAudioLatency(b.now().Sub(call.startedAt))
	}
	b.metrics.MediaFrames.WithLabelValues("outbound").Inc()
	b.registry.Touch(call.callSid, false)
}

func (b *Bridge) logTranscript(call *activeCall, ev live.Event) {
	text, _ := policy.RedactTranscript(ev.Text)
	msg := store.ConversationMessage{
		Sender:  string(ev.Source),
		Message: text,
		Medium:  "voice",
		CallSid: call.callSid,
	}
	if ev.Source == live.SourceUser {
		msg.Direction = "inbound"
	} else {
		msg.Direction = "outbound"
	}
	if err := b.store.AddConversationMessage(call.ctx, msg); err != nil {
		log.Printf("bridge: log transcript for %s: %v", call.callSid, err)
	}
}

func (b *Bridge) dispatchCalls(call *activeCall, sess LiveSession, calls []live.FunctionCall) {
	resps := b.invoker.Invoke(call.ctx, calls)
	for _, r := range resps {
		outcome := "ok"
		if r.Err != "" {
			outcome = "error"
		}
		b.metrics.FunctionCalls.WithLabelValues(r.Name, outcome).Inc()
	}
	if err := sess.SendToolResponses(resps); err != nil {
		log.Printf("bridge: tool responses for %s: %v", call.callSid, err)
	}
}

func (b *Bridge) teardown(call *activeCall) {
	call.stopping.Store(true)
	call.cancel()
	if sess := call.liveSession(); sess != nil {
		sess.Disconnect()
	}
	call.buffer.discard()
	b.registry.Remove(call.callSid)
	b.metrics.ActiveCalls.Dec()
	b.tracker.SetInCall(context.Background(), call.callSid, false)
	log.Printf("bridge: stream %s for call %s torn down", call.streamSid, call.callSid)
}
