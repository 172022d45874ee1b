package model

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedEvent = errors.New("malformed event")
	ErrUnknownEvent   = errors.New("unknown event")
)

// Event is a signal coming from a single connection.
// The set of implementations is closed: only types of this package satisfy it.
type Event interface {
	Source() ConnID
	event()
}

// Inbound carries the connection the event arrived from.
type Inbound struct {
	ConnID ConnID
}

func (in Inbound) Source() ConnID { return in.ConnID }
func (Inbound) event()            {}

type (
	Register struct {
		Inbound
		UserID ID
	}

	Disconnect struct {
		Inbound
	}

	JoinRoom struct {
		Inbound
		ChatID ID
	}

	SendMessage struct {
		Inbound
		ChatID  ID
		Message json.RawMessage
	}

	DeleteMessage struct {
		Inbound
		ChatID    ID
		MessageID ID
	}

	CallOffer struct {
		Inbound
		Target ID
		Offer  json.RawMessage
	}

	CallAnswer struct {
		Inbound
		Target ID
		Answer json.RawMessage
	}

	IceCandidate struct {
		Inbound
		Target    ID
		Candidate json.RawMessage
	}
)

type (
	sendMessageData struct {
		ChatID  ID              `json:"chatId"`
		Message json.RawMessage `json:"message"`
	}

	deleteMessageData struct {
		ChatID    ID `json:"chatId"`
		MessageID ID `json:"messageId"`
	}

	callData struct {
		UserID    ID              `json:"userId"`
		Offer     json.RawMessage `json:"offer"`
		Answer    json.RawMessage `json:"answer"`
		Candidate json.RawMessage `json:"candidate"`
	}
)

// Decode turns an inbound frame into an Event.
func Decode(src ConnID, env Envelope) (Event, error) {
	in := Inbound{ConnID: src}
	switch env.Event {
	case EventNewUserAdd:
		var id ID
		if err := decodeData(env, &id); err != nil {
			return nil, err
		}
		if err := required(env.Event, "userId", id); err != nil {
			return nil, err
		}
		return Register{Inbound: in, UserID: id}, nil

	case EventJoinChat:
		var id ID
		if err := decodeData(env, &id); err != nil {
			return nil, err
		}
		if err := required(env.Event, "chatId", id); err != nil {
			return nil, err
		}
		return JoinRoom{Inbound: in, ChatID: id}, nil

	case EventSendMessage:
		var d sendMessageData
		if err := decodeData(env, &d); err != nil {
			return nil, err
		}
		if err := required(env.Event, "chatId", d.ChatID); err != nil {
			return nil, err
		}
		if isEmpty(d.Message) {
			return nil, missing(env.Event, "message")
		}
		return SendMessage{Inbound: in, ChatID: d.ChatID, Message: d.Message}, nil

	case EventDeleteMessage:
		var d deleteMessageData
		if err := decodeData(env, &d); err != nil {
			return nil, err
		}
		if err := required(env.Event, "chatId", d.ChatID); err != nil {
			return nil, err
		}
		if err := required(env.Event, "messageId", d.MessageID); err != nil {
			return nil, err
		}
		return DeleteMessage{Inbound: in, ChatID: d.ChatID, MessageID: d.MessageID}, nil

	case EventCallUser:
		d, err := decodeCall(env, "offer", func(d *callData) json.RawMessage { return d.Offer })
		if err != nil {
			return nil, err
		}
		return CallOffer{Inbound: in, Target: d.UserID, Offer: d.Offer}, nil

	case EventAnswerCall:
		d, err := decodeCall(env, "answer", func(d *callData) json.RawMessage { return d.Answer })
		if err != nil {
			return nil, err
		}
		return CallAnswer{Inbound: in, Target: d.UserID, Answer: d.Answer}, nil

	case EventIceCandidate:
		d, err := decodeCall(env, "candidate", func(d *callData) json.RawMessage { return d.Candidate })
		if err != nil {
			return nil, err
		}
		return IceCandidate{Inbound: in, Target: d.UserID, Candidate: d.Candidate}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
}

func decodeCall(env Envelope, field string, payload func(*callData) json.RawMessage) (*callData, error) {
	var d callData
	if err := decodeData(env, &d); err != nil {
		return nil, err
	}
	if err := required(env.Event, "userId", d.UserID); err != nil {
		return nil, err
	}
	if isEmpty(payload(&d)) {
		return nil, missing(env.Event, field)
	}
	return &d, nil
}

func decodeData(env Envelope, v any) error {
	if isEmpty(env.Data) {
		return fmt.Errorf("%w: %s: no data", ErrMalformedEvent, env.Event)
	}
	if err := json.Unmarshal(env.Data, v); err != nil {
		return errors.Join(fmt.Errorf("%w: %s", ErrMalformedEvent, env.Event), err)
	}
	return nil
}

func required(event, field string, id ID) error {
	if id == "" {
		return missing(event, field)
	}
	return nil
}

func missing(event, field string) error {
	return fmt.Errorf("%w: %s: missing %s", ErrMalformedEvent, event, field)
}

func isEmpty(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}
