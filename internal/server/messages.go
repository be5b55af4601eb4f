package server

import (
	"net/http"
	"time"

	"github.com/npezzotti/go-chatgateway/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type ClientMessage struct {
	BaseMessage
	Join    *Join    `json:"join,omitempty"`
	Leave   *Leave   `json:"leave,omitempty"`
	Publish *Publish `json:"publish,omitempty"`
	Private *Private `json:"private,omitempty"`
	Typing  *Typing  `json:"typing,omitempty"`

	client *Client
	// implicit is set on leaves issued by the server itself, which are
	// not acknowledged.
	implicit bool
	// processed is closed by the room once the message has been handled.
	processed chan struct{}
}

type Join struct {
	Room string `json:"room"`
}

type Leave struct{}

type Publish struct {
	Text string `json:"text"`
}

type Private struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

type Typing struct {
	To       string `json:"to"`
	IsTyping bool   `json:"is_typing"`
}

// ServerMessage carries exactly one of its event fields. Group and Private
// are durable events, Typing is ephemeral and never persisted.
type ServerMessage struct {
	BaseMessage
	Ready    *Ready                `json:"ready,omitempty"`
	Response *Response             `json:"response,omitempty"`
	Group    *types.GroupMessage   `json:"group,omitempty"`
	Private  *types.PrivateMessage `json:"private,omitempty"`
	Notice   *Notice               `json:"notice,omitempty"`
	Typing   *TypingSignal         `json:"typing,omitempty"`
}

type Ready struct {
	Username string `json:"username"`
}

type Response struct {
	Ok           bool           `json:"ok"`
	ResponseCode int            `json:"response_code"`
	Message      string         `json:"message,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Notice struct {
	Room string `json:"room"`
	Text string `json:"text"`
}

type TypingSignal struct {
	From     string `json:"from"`
	IsTyping bool   `json:"is_typing"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			Ok:           true,
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func errResponse(id, code int, message string) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: code,
			Message:      message,
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrInvalidRoom(id int) *ServerMessage {
	return errResponse(id, http.StatusNotFound, "unknown room")
}

func ErrNotInRoom(id int) *ServerMessage {
	return errResponse(id, http.StatusConflict, "not in a room")
}

func ErrEmptyPayload(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "empty message")
}

func ErrMissingRecipient(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "missing recipient")
}

func ErrStorageFailure(id int) *ServerMessage {
	return errResponse(id, http.StatusInternalServerError, "storage failure")
}

func ErrServiceUnavailable(id int) *ServerMessage {
	return errResponse(id, http.StatusServiceUnavailable, "service unavailable")
}

func ErrRateLimited(id int) *ServerMessage {
	return errResponse(id, http.StatusTooManyRequests, "rate limit exceeded")
}

func ErrInvalidMessage(id int) *ServerMessage {
	return errResponse(id, http.StatusBadRequest, "invalid message format")
}

func readyEvent(username string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Ready:       &Ready{Username: username},
	}
}

func groupEvent(msg types.GroupMessage) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Group:       &msg,
	}
}

func privateEvent(msg types.PrivateMessage) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Private:     &msg,
	}
}

func noticeEvent(room, text string) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notice:      &Notice{Room: room, Text: text},
	}
}

func typingEvent(from string, isTyping bool) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Typing:      &TypingSignal{From: from, IsTyping: isTyping},
	}
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
