package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
)

// Inbound event names sent by clients.
const (
	EventNewUserAdd    = "new-user-add"
	EventSendMessage   = "send-message"
	EventDeleteMessage = "delete-message"
	EventJoinChat      = "join-chat"
	EventCallUser      = "call-user"
	EventAnswerCall    = "answer-call"
	EventIceCandidate  = "ice-candidate"
)

// Outbound event names sent by server.
const (
	EventGetUsers        = "get-users"
	EventReceiveMessage  = "receive-message"
	EventMessageDeleted  = "message-deleted"
	EventReceiveCall     = "receive-call"
	EventCallAnswered    = "call-answered"
	EventNewIceCandidate = "new-ice-candidate"
)

var errBadID = errors.New("id must be a json string or number")

// ConnID is a transport assigned connection token.
type ConnID string

// ID is an opaque identifier of a user, chat or message.
// Clients may send it either as a string or as a number,
// it is kept in its text form and always emitted as a string.
// Integral numbers are canonical, so 5, 5.0 and 5e0 are the same id.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case len(b) > 0 && b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errBadID
	}
	*id = ID(canonicalNumber(n))
	return nil
}

func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		return strconv.FormatInt(int64(f), 10)
	}
	return n.String()
}

type ActiveUser struct {
	UserID ID     `json:"userId"`
	ConnID ConnID `json:"connectionId"`
}

// Envelope is a single websocket frame in either direction.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type MessageDeleted struct {
	MessageID ID `json:"messageId"`
}
