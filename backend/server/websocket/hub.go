package websocket

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/adwski/chatapp/backend/model"
	"github.com/rs/zerolog"
)

// Hub is a table of live connections. It implements outbound
// emission for the switch: frames are queued to per-connection
// buffers and dropped when a buffer is full.
type Hub struct {
	logger   zerolog.Logger
	mx       *sync.RWMutex
	sessions map[model.ConnID]*session
}

type session struct {
	id     model.ConnID
	tx     chan []byte
	logger zerolog.Logger
}

func NewHub(logger *zerolog.Logger) *Hub {
	return &Hub{
		logger:   logger.With().Str("component", "hub").Logger(),
		mx:       &sync.RWMutex{},
		sessions: make(map[model.ConnID]*session),
	}
}

func (h *Hub) Send(conn model.ConnID, event string, payload any) {
	b, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("cannot encode outgoing frame")
		return
	}

	h.mx.RLock()
	sess, ok := h.sessions[conn]
	h.mx.RUnlock()

	if !ok {
		h.logger.Debug().
			Str("dst", string(conn)).
			Str("event", event).
			Msg("cannot send, connection is gone")
		return
	}
	sess.enqueue(event, b)
}

func (h *Hub) Broadcast(event string, payload any) {
	b, err := encodeFrame(event, payload)
	if err != nil {
		h.logger.Error().Err(err).Str("event", event).Msg("cannot encode outgoing frame")
		return
	}

	h.mx.RLock()
	defer h.mx.RUnlock()
	for _, sess := range h.sessions {
		sess.enqueue(event, b)
	}
}

// Len returns number of live connections.
func (h *Hub) Len() int {
	h.mx.RLock()
	defer h.mx.RUnlock()
	return len(h.sessions)
}

func (h *Hub) add(sess *session) {
	h.mx.Lock()
	defer h.mx.Unlock()
	h.sessions[sess.id] = sess
}

func (h *Hub) remove(id model.ConnID) {
	h.mx.Lock()
	defer h.mx.Unlock()
	delete(h.sessions, id)
}

func newSession(id model.ConnID, queueSize int, logger *zerolog.Logger) *session {
	return &session{
		id:     id,
		tx:     make(chan []byte, queueSize),
		logger: logger.With().Str("connID", string(id)).Logger(),
	}
}

func (s *session) enqueue(event string, frame []byte) {
	select {
	case s.tx <- frame:
	default:
		s.logger.Warn().Str("event", event).Msg("outbound queue is full, frame dropped")
	}
}

func encodeFrame(event string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", event, err)
	}
	b, err := json.Marshal(&model.Envelope{Event: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("marshal %s frame: %w", event, err)
	}
	return b, nil
}
