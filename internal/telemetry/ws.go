package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simevent"
	"github.com/georgehampton08-rgb/fincrime-thedesk-sub001/internal/simlog"
)

const (
	writeWait          = 10 * time.Second
	pongWaitMultiplier = 2
)

var pingInterval = 15 * time.Second

var upgrader = websocket.Upgrader{}

// wireEnvelope is the JSON frame sent to a websocket subscriber: the
// simevent.Event payload carries its own "type" discriminator from
// simevent.Encode, so it is embedded as a raw message rather than
// re-wrapped.
type wireEnvelope struct {
	Sequence  uint64          `json:"sequence"`
	Tick      uint64          `json:"tick"`
	Subsystem string          `json:"subsystem"`
	Event     json.RawMessage `json:"event"`
}

// inboundMessage is the only message shape accepted from a client: an
// acknowledgement of the next pending sequence it has processed. Acks are
// taken one at a time in sequence order.
type inboundMessage struct {
	Ack uint64 `json:"ack"`
}

// Handler upgrades HTTP requests to websocket connections and attaches them
// as subscribers of the given stream, in the style of the teacher's
// connection handler: a read goroutine draining acks, a write goroutine
// draining the subscription channel plus a ping ticker.
type Handler struct {
	stream  *Stream
	log     *simlog.Logger
	limiter *subscribeLimiter
	verify  *TokenVerifier
}

// NewHandler constructs a websocket handler bound to a stream.
func NewHandler(stream *Stream, log *simlog.Logger) *Handler {
	if log == nil {
		log = simlog.Discard()
	}
	return &Handler{stream: stream, log: log}
}

// WithSubscribeLimit caps new subscriptions to limit attempts per window,
// rejecting excess attempts with 429. A non-positive window or limit
// disables the cap (the default).
func (h *Handler) WithSubscribeLimit(window time.Duration, limit int) *Handler {
	h.limiter = newSubscribeLimiter(window, limit, nil)
	return h
}

// WithTokenVerifier requires every connection to present a valid `token`
// query parameter whose subject matches subscriber_id. A nil verifier (the
// default) accepts any subscriber_id unauthenticated.
func (h *Handler) WithTokenVerifier(v *TokenVerifier) *Handler {
	h.verify = v
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	subscriberID := r.URL.Query().Get("subscriber_id")
	if subscriberID == "" {
		http.Error(w, "subscriber_id is required", http.StatusBadRequest)
		return
	}

	if h.limiter != nil && !h.limiter.allow() {
		http.Error(w, "too many subscribe attempts", http.StatusTooManyRequests)
		return
	}

	if h.verify != nil {
		claims, err := h.verify.Verify(r.URL.Query().Get("token"))
		if err != nil || claims.Subject != subscriberID {
			http.Error(w, "invalid or missing token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", simlog.String("subscriber_id", subscriberID), simlog.Err(err))
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	sub, err := h.stream.Subscribe(ctx, subscriberID, 64)
	if err != nil {
		h.log.Error("subscribe failed", simlog.String("subscriber_id", subscriberID), simlog.Err(err))
		cancel()
		_ = conn.Close()
		return
	}

	waitDuration := pingInterval * pongWaitMultiplier
	if err := conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
		h.log.Error("failed to set initial read deadline", simlog.Err(err))
		cancel()
		_ = conn.Close()
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(waitDuration))
	})

	go h.readLoop(conn, sub, waitDuration)
	h.writeLoop(conn, sub, cancel)
}

func (h *Handler) readLoop(conn *websocket.Conn, sub *Subscription, waitDuration time.Duration) {
	defer sub.Close()
	for {
		messageType, msg, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.log.Debug("websocket read error", simlog.Err(err))
			}
			return
		}
		if err := conn.SetReadDeadline(time.Now().Add(waitDuration)); err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}
		var in inboundMessage
		if err := json.Unmarshal(msg, &in); err != nil {
			h.log.Debug("dropping invalid ack frame", simlog.Err(err))
			continue
		}
		if err := sub.Ack(in.Ack); err != nil {
			h.log.Debug("ack rejected", simlog.String("ack", strconv.FormatUint(in.Ack, 10)), simlog.Err(err))
		}
	}
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *Subscription, cancel context.CancelFunc) {
	pingTicker := time.NewTicker(pingInterval)
	defer func() {
		pingTicker.Stop()
		cancel()
		_ = conn.Close()
	}()
	for {
		select {
		case env, ok := <-sub.Events():
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			payload, err := encodeWireEnvelope(env)
			if err != nil {
				h.log.Error("encode envelope failed", simlog.Err(err))
				continue
			}
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				h.log.Warn("websocket write error", simlog.Err(err))
				return
			}
		case <-pingTicker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func encodeWireEnvelope(env *Envelope) ([]byte, error) {
	body, err := simevent.Encode(env.Event)
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireEnvelope{
		Sequence:  env.Sequence,
		Tick:      env.Tick,
		Subsystem: env.Subsystem,
		Event:     body,
	})
}
