package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

const (
	defaultEndpoint = "wss://generativelanguage.googleapis.com"
	defaultModel    = "models/gemini-2.5-flash-native-audio-preview-12-2025"
	defaultVoice    = "Puck"

	bidiPath = "/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// NoticePrefix marks out-of-band system text so the model can tell it
	// apart from caller speech.
	NoticePrefix = "System Notification: "

	handshakeTimeout = 15 * time.Second
	audioMimeType    = "audio/pcm;rate=24000"
)

var (
	// ErrConnection reports a failed upstream handshake or transport. The
	// bridge treats it as recoverable and starts buffering.
	ErrConnection = errors.New("live: connection failed")
	// ErrNotConnected reports a send attempted while disconnected.
	ErrNotConnected = errors.New("live: session not connected")
)

// Config carries everything needed to open one conversational session.
type Config struct {
	APIKey            string
	Endpoint          string
	Model             string
	SystemInstruction string
	VoiceName         string
	Declarations      []FunctionDeclaration
}

// Session is one upstream conversational-speech session. Connected()
// reflects transport liveness: the provider can drop the session
// asynchronously, and the owner is expected to poll the flag rather than
// rely on a state-change callback.
type Session struct {
	cfg       Config
	conn      *websocket.Conn
	writeMu   sync.Mutex
	closeOnce sync.Once
	connected atomic.Bool
	events    chan Event
}

// Dial opens the session: websocket handshake, setup message, and the
// provider's setup acknowledgement. On any failure the session is fully
// torn down; a partial connection is never returned.
func Dial(ctx context.Context, cfg Config) (*Session, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("%w: api key is required", ErrConnection)
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.VoiceName == "" {
		cfg.VoiceName = defaultVoice
	}

	u := strings.TrimRight(cfg.Endpoint, "/") + bidiPath + "?key=" + cfg.APIKey
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: dial: %v", ErrConnection, err)
	}

	s := &Session{cfg: cfg, conn: conn, events: make(chan Event, 256)}

	if err := s.writeJSON(s.setupMessage()); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setup: %v", ErrConnection, err)
	}

	// The first server frame must acknowledge setup.
	_ = conn.SetReadDeadline(time.Now().Add(handshakeTimeout))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: setup ack: %v", ErrConnection, err)
	}
	var ack serverMessage
	if err := json.Unmarshal(raw, &ack); err != nil || ack.SetupComplete == nil {
		conn.Close()
		return nil, fmt.Errorf("%w: unexpected setup reply", ErrConnection)
	}
	_ = conn.SetReadDeadline(time.Time{})

	s.connected.Store(true)
	go s.receiveLoop()
	return s, nil
}

// Connected reports transport liveness.
func (s *Session) Connected() bool { return s.connected.Load() }

// Events returns the session's event stream. The channel closes after
// Disconnect or a transport failure, with a final EventClosed beforehand
// when the close was not requested.
func (s *Session) Events() <-chan Event { return s.events }

// SendAudio forwards one chunk of 24 kHz PCM16LE caller audio without
// signaling end of turn.
func (s *Session) SendAudio(pcm []byte) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	msg := realtimeInputMessage{}
	msg.RealtimeInput.MediaChunks = []blob{{
		MimeType: audioMimeType,
		Data:     base64.StdEncoding.EncodeToString(pcm),
	}}
	return s.sendOrFlag(msg)
}

// SendText sends a text turn. endOfTurn requests a model reply; without
// it the text only extends the current user turn.
func (s *Session) SendText(text string, endOfTurn bool) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	msg := clientContentMessage{}
	msg.ClientContent.Turns = []turn{{Role: "user", Parts: []part{{Text: text}}}}
	msg.ClientContent.TurnComplete = endOfTurn
	return s.sendOrFlag(msg)
}

// SendNotice injects an out-of-band system notice as a complete turn,
// prefixed so the model can distinguish it from caller speech.
func (s *Session) SendNotice(text string) error {
	return s.SendText(NoticePrefix+text, true)
}

// SendToolResponses returns function results to the model, echoing each
// call's correlation id.
func (s *Session) SendToolResponses(resps []FunctionResponse) error {
	if !s.connected.Load() {
		return ErrNotConnected
	}
	msg := toolResponseMessage{}
	for _, r := range resps {
		payload := map[string]any{}
		if r.Err != "" {
			payload["error"] = r.Err
		} else {
			payload["result"] = r.Result
		}
		msg.ToolResponse.FunctionResponses = append(msg.ToolResponse.FunctionResponses, functionResponsePayload{
			ID:       r.ID,
			Name:     r.Name,
			Response: payload,
		})
	}
	return s.sendOrFlag(msg)
}

// Disconnect closes the session. Safe to call repeatedly and from any
// goroutine; liveness is false afterwards. The event channel is closed by
// the receive loop once the transport is down.
func (s *Session) Disconnect() {
	s.connected.Store(false)
	s.closeOnce.Do(func() {
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		_ = s.conn.Close()
	})
}

func (s *Session) sendOrFlag(v any) error {
	if err := s.writeJSON(v); err != nil {
		s.connected.Store(false)
		return fmt.Errorf("%w: %v", ErrConnection, err)
	}
	return nil
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// receiveLoop runs for the lifetime of the connection. A turn ending
// naturally is a normal event and the loop keeps listening; only a
// transport error or closed connection ends it and flips liveness.
func (s *Session) receiveLoop() {
	defer func() {
		s.connected.Store(false)
		s.closeOnce.Do(func() { _ = s.conn.Close() })
		close(s.events)
	}()

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if s.connected.Load() {
				log.Printf("live: receive loop ended: %v", err)
				s.emit(Event{Type: EventClosed, Detail: err.Error()})
			}
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			log.Printf("live: dropping unparseable server frame: %v", err)
			continue
		}
		s.dispatch(msg)
	}
}

func (s *Session) dispatch(msg serverMessage) {
	if sc := msg.ServerContent; sc != nil {
		if sc.ModelTurn != nil {
			for _, p := range sc.ModelTurn.Parts {
				if p.InlineData != nil && p.InlineData.Data != "" {
					audio, err := base64.StdEncoding.DecodeString(p.InlineData.Data)
					if err != nil {
						log.Printf("live: bad audio chunk: %v", err)
						continue
					}
					s.emit(Event{Type: EventAudio, Audio: audio})
				}
			}
		}
		if sc.OutputTranscription != nil && sc.OutputTranscription.Text != "" {
			s.emit(Event{Type: EventTranscript, Source: SourceAssistant, Text: sc.OutputTranscription.Text})
		}
		if sc.InputTranscription != nil && sc.InputTranscription.Text != "" {
			s.emit(Event{Type: EventTranscript, Source: SourceUser, Text: sc.InputTranscription.Text})
		}
		if sc.TurnComplete {
			s.emit(Event{Type: EventTurnComplete})
		}
	}

	if tc := msg.ToolCall; tc != nil && len(tc.FunctionCalls) > 0 {
		calls := make([]FunctionCall, 0, len(tc.FunctionCalls))
		for _, fc := range tc.FunctionCalls {
			calls = append(calls, FunctionCall{ID: fc.ID, Name: fc.Name, Args: fc.Args})
		}
		s.emit(Event{Type: EventToolCall, Calls: calls})
	}

	if msg.GoAway != nil {
		log.Printf("live: server requested shutdown")
	}
}

// emit drops the event if the owner has stopped draining; stalling the
// receive loop on a full channel would freeze the whole session.
func (s *Session) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
		log.Printf("live: event buffer full, dropping %s event", ev.Type)
	}
}

func (s *Session) setupMessage() setupMessage {
	msg := setupMessage{}
	msg.Setup.Model = s.cfg.Model
	msg.Setup.GenerationConfig.ResponseModalities = []string{"AUDIO"}
	msg.Setup.GenerationConfig.SpeechConfig = &speechConfig{}
	msg.Setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName = s.cfg.VoiceName
	if s.cfg.SystemInstruction != "" {
		msg.Setup.SystemInstruction = &content{Parts: []part{{Text: s.cfg.SystemInstruction}}}
	}
	msg.Setup.Tools = []toolSpec{{GoogleSearch: &struct{}{}}}
	if len(s.cfg.Declarations) > 0 {
		msg.Setup.Tools = append(msg.Setup.Tools, toolSpec{FunctionDeclarations: s.cfg.Declarations})
	}
	msg.Setup.OutputAudioTranscription = &struct{}{}
	msg.Setup.InputAudioTranscription = &struct{}{}
	return msg
}

// Wire format for the bidirectional session protocol (v1beta).

type setupMessage struct {
	Setup setupPayload `json:"setup"`
}

type setupPayload struct {
	Model                    string           `json:"model"`
	GenerationConfig         generationConfig `json:"generationConfig"`
	SystemInstruction        *content         `json:"systemInstruction,omitempty"`
	Tools                    []toolSpec       `json:"tools,omitempty"`
	OutputAudioTranscription *struct{}        `json:"outputAudioTranscription,omitempty"`
	InputAudioTranscription  *struct{}        `json:"inputAudioTranscription,omitempty"`
}

type generationConfig struct {
	ResponseModalities []string      `json:"responseModalities"`
	SpeechConfig       *speechConfig `json:"speechConfig,omitempty"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type toolSpec struct {
	GoogleSearch         *struct{}             `json:"googleSearch,omitempty"`
	FunctionDeclarations []FunctionDeclaration `json:"functionDeclarations,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string `json:"text,omitempty"`
	InlineData *blob  `json:"inlineData,omitempty"`
}

type blob struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type realtimeInputMessage struct {
	RealtimeInput struct {
		MediaChunks []blob `json:"mediaChunks"`
	} `json:"realtimeInput"`
}

type clientContentMessage struct {
	ClientContent struct {
		Turns        []turn `json:"turns"`
		TurnComplete bool   `json:"turnComplete"`
	} `json:"clientContent"`
}

type turn struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type toolResponseMessage struct {
	ToolResponse struct {
		FunctionResponses []functionResponsePayload `json:"functionResponses"`
	} `json:"toolResponse"`
}

type functionResponsePayload struct {
	ID       string         `json:"id,omitempty"`
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type serverMessage struct {
	SetupComplete *struct{}      `json:"setupComplete"`
	ServerContent *serverContent `json:"serverContent"`
	ToolCall      *toolCallMsg   `json:"toolCall"`
	GoAway        *struct{}      `json:"goAway"`
}

type serverContent struct {
	ModelTurn           *content       `json:"modelTurn"`
	TurnComplete        bool           `json:"turnComplete"`
	Interrupted         bool           `json:"interrupted"`
	OutputTranscription *transcription `json:"outputTranscription"`
	InputTranscription  *transcription `json:"inputTranscription"`
}

type transcription struct {
	Text string `json:"text"`
}

type toolCallMsg struct {
	FunctionCalls []functionCallMsg `json:"functionCalls"`
}

type functionCallMsg struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}
