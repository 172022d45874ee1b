package _switch

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/adwski/chatapp/backend/model"
	"github.com/adwski/chatapp/backend/storage/memory"
	"github.com/davecgh/go-spew/spew"
	"github.com/rs/zerolog"
)

const (
	defaultQueueSize = 1024
)

var (
	ErrTargetNotFound = errors.New("target user is not connected")
	ErrStopped        = errors.New("switch is stopped")
)

type (
	// Emitter delivers outbound events. Delivery is fire-and-forget.
	Emitter interface {
		Send(conn model.ConnID, event string, payload any)
		Broadcast(event string, payload any)
	}

	Config struct {
		Logger    *zerolog.Logger
		Emitter   Emitter
		QueueSize int
	}

	// Switch owns active users and room membership and relays
	// inbound events to their recipients. All state is touched
	// only from the goroutine running Run (or from Dispatch callers
	// when Run is not used).
	Switch struct {
		logger zerolog.Logger
		out    Emitter
		users  *memory.Registry
		rooms  *memory.Rooms
		events chan model.Event
		done   chan struct{}
	}
)

func NewSwitch(cfg Config) *Switch {
	qs := cfg.QueueSize
	if qs <= 0 {
		qs = defaultQueueSize
	}
	return &Switch{
		logger: cfg.Logger.With().Str("component", "switch").Logger(),
		out:    cfg.Emitter,
		users:  memory.NewRegistry(),
		rooms:  memory.NewRooms(),
		events: make(chan model.Event, qs),
		done:   make(chan struct{}),
	}
}

// Submit queues ev for dispatching. Events submitted by one goroutine
// are dispatched in submission order.
func (sw *Switch) Submit(ctx context.Context, ev model.Event) error {
	select {
	case <-sw.done:
		return ErrStopped
	default:
	}
	select {
	case sw.events <- ev:
		return nil
	case <-sw.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dispatches queued events one at a time until ctx is canceled.
// Active users and rooms are dropped on exit.
func (sw *Switch) Run(ctx context.Context, wg *sync.WaitGroup) {
	defer func() {
		close(sw.done)
		sw.users.Reset()
		sw.rooms.Reset()
		sw.logger.Debug().Msg("switch stopped")
		wg.Done()
	}()
	sw.logger.Debug().Msg("switch started")

	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-sw.events:
			sw.Dispatch(ev)
		}
	}
}

// Dispatch handles a single event. A failing or panicking handler
// is logged and does not affect subsequent events.
func (sw *Switch) Dispatch(ev model.Event) {
	logger := sw.logger.With().
		Str("connID", string(ev.Source())).
		Str("type", fmt.Sprintf("%T", ev)).
		Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("event handler panicked")
		}
	}()

	if e := logger.Trace(); e.Enabled() {
		e.Str("dump", spew.Sdump(ev)).Msg("dispatching event")
	}

	err := sw.handle(ev)
	switch {
	case err == nil:
	case errors.Is(err, ErrTargetNotFound):
		logger.Debug().Err(err).Msg("signal dropped")
	default:
		logger.Error().Err(err).Msg("event dropped")
	}
}

func (sw *Switch) handle(ev model.Event) error {
	switch e := ev.(type) {
	case model.Register:
		sw.out.Broadcast(model.EventGetUsers, sw.users.Register(e.UserID, e.ConnID))

	case model.Disconnect:
		sw.rooms.LeaveAll(e.ConnID)
		sw.out.Broadcast(model.EventGetUsers, sw.users.Unregister(e.ConnID))

	case model.JoinRoom:
		sw.rooms.Join(e.ChatID, e.ConnID)

	case model.SendMessage:
		for _, member := range sw.rooms.MembersOf(e.ChatID) {
			if member != e.ConnID {
				sw.out.Send(member, model.EventReceiveMessage, e.Message)
			}
		}

	case model.DeleteMessage:
		notice := model.MessageDeleted{MessageID: e.MessageID}
		for _, member := range sw.rooms.MembersOf(e.ChatID) {
			sw.out.Send(member, model.EventMessageDeleted, notice)
		}

	case model.CallOffer:
		return sw.signal(e.Target, model.EventReceiveCall, e.Offer)

	case model.CallAnswer:
		return sw.signal(e.Target, model.EventCallAnswered, e.Answer)

	case model.IceCandidate:
		return sw.signal(e.Target, model.EventNewIceCandidate, e.Candidate)

	default:
		return fmt.Errorf("%w: %T", model.ErrUnknownEvent, ev)
	}
	return nil
}

// signal relays call setup payload to the connection of target user.
func (sw *Switch) signal(target model.ID, event string, payload any) error {
	conn, ok := sw.users.Lookup(target)
	if !ok {
		return fmt.Errorf("%w: %s", ErrTargetNotFound, target)
	}
	sw.out.Send(conn, event, payload)
	return nil
}
