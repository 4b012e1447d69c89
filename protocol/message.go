package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Message is any message that can cross the wire. The set of implementations
// is closed; use a type switch to tell them apart.
type Message interface {
	Kind() Kind
	isMessage()
}

// ClientMessage is a message an authenticated client may send. These are also
// the messages a server can forward on behalf of a client, see FromClient.
type ClientMessage interface {
	Message
	isClientMessage()
}

// Greeting is sent by the server once, right after a successful handshake.
type Greeting struct {
	Motd string
}

// AuthRequest is the first message a client sends.
type AuthRequest struct {
	Username string
}

// AuthResponse answers an AuthRequest. Build one with Accept or Reject.
type AuthResponse struct {
	// Username is the name the server accepted, possibly normalised.
	Username string

	// Reason explains why the server refused the request.
	Reason string

	Rejected bool
}

// Accept builds a successful AuthResponse for username.
func Accept(username string) AuthResponse {
	return AuthResponse{Username: username}
}

// Reject builds a failed AuthResponse carrying a human readable reason.
func Reject(reason string) AuthResponse {
	return AuthResponse{Reason: reason, Rejected: true}
}

// Result returns the accepted username, or an error wrapping
// ErrHandshakeRejected with the server's reason.
func (r AuthResponse) Result() (string, error) {
	if r.Rejected {
		return "", fmt.Errorf("%w: %s", ErrHandshakeRejected, r.Reason)
	}

	return r.Username, nil
}

// Goodbye ends a session. Either side may send it.
type Goodbye struct {
	// Reason is nil when no reason was given. An empty reason is still a reason.
	Reason *string
}

// NewGoodbye returns a Goodbye with the given reason.
func NewGoodbye(reason string) Goodbye {
	return Goodbye{Reason: &reason}
}

// ReasonOr returns the reason, or fallback when there is none.
func (g Goodbye) ReasonOr(fallback string) string {
	if g.Reason == nil {
		return fallback
	}

	return *g.Reason
}

// FromClient wraps a message the server forwards from another client. Nothing
// produces these yet; they are reserved for broadcast.
type FromClient struct {
	Source  string
	Content ClientMessage
}

func (Greeting) Kind() Kind     { return KindGreeting }
func (AuthRequest) Kind() Kind  { return KindAuthRequest }
func (AuthResponse) Kind() Kind { return KindAuthResponse }
func (Goodbye) Kind() Kind      { return KindGoodbye }

// Kind of a forwarded message is the kind of its content.
func (f FromClient) Kind() Kind {
	if f.Content == nil {
		return ""
	}

	return f.Content.Kind()
}

func (Greeting) isMessage()     {}
func (AuthRequest) isMessage()  {}
func (AuthResponse) isMessage() {}
func (Goodbye) isMessage()      {}
func (FromClient) isMessage()   {}

func (Goodbye) isClientMessage() {}

type taggedGreeting struct {
	Kind Kind   `json:"kind"`
	Motd string `json:"motd"`
}

type taggedAuthRequest struct {
	Kind     Kind   `json:"kind"`
	Username string `json:"username"`
}

type taggedAuthResponse struct {
	Kind Kind    `json:"kind"`
	Ok   *string `json:"Ok,omitempty"`
	Err  *string `json:"Err,omitempty"`
}

type taggedGoodbye struct {
	Kind   Kind    `json:"kind"`
	Reason *string `json:"reason,omitempty"`
}

// Encode serialises m to its JSON wire shape.
func Encode(m Message) ([]byte, error) {
	switch msg := m.(type) {
	case Greeting:
		return json.Marshal(taggedGreeting{Kind: KindGreeting, Motd: msg.Motd})

	case AuthRequest:
		return json.Marshal(taggedAuthRequest{Kind: KindAuthRequest, Username: msg.Username})

	case AuthResponse:
		wire := taggedAuthResponse{Kind: KindAuthResponse}
		if msg.Rejected {
			wire.Err = &msg.Reason
		} else {
			wire.Ok = &msg.Username
		}

		return json.Marshal(wire)

	case Goodbye:
		return json.Marshal(taggedGoodbye{Kind: KindGoodbye, Reason: msg.Reason})

	case FromClient:
		if msg.Content == nil {
			return nil, fmt.Errorf("%w: forwarded message from %q has no content", ErrSchema, msg.Source)
		}

		content, err := Encode(msg.Content)
		if err != nil {
			return nil, err
		}

		return sjson.SetBytes(content, "source", msg.Source)

	default:
		return nil, fmt.Errorf("%w: cannot encode %T", ErrSchema, m)
	}
}

// Decode parses one JSON payload read by a peer in direction dir.
//
// Unknown kinds, kinds that belong to the other direction and missing or
// mistyped fields are all reported as ErrSchema. Unknown extra fields are
// ignored.
func Decode(data []byte, dir Direction) (Message, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("%w: payload is not valid JSON", ErrSchema)
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrSchema)
	}

	rawKind, err := stringField(doc, "kind")
	if err != nil {
		return nil, err
	}

	kind := Kind(rawKind)
	if !kind.known() {
		return nil, fmt.Errorf("%w: unknown message kind %q", ErrSchema, rawKind)
	}

	// Forwarded messages have no tag of their own, only a source.
	if dir == ToClient && doc.Get("source").Exists() {
		return decodeFromClient(doc, kind)
	}

	if !dir.allows(kind) {
		return nil, fmt.Errorf("%w: %s message is not valid %s", ErrSchema, kind, dir)
	}

	switch kind {
	case KindGreeting:
		motd, err := stringField(doc, "motd")
		if err != nil {
			return nil, err
		}

		return Greeting{Motd: motd}, nil

	case KindAuthRequest:
		username, err := stringField(doc, "username")
		if err != nil {
			return nil, err
		}

		return AuthRequest{Username: username}, nil

	case KindAuthResponse:
		return decodeAuthResponse(doc)

	default:
		return decodeGoodbye(doc)
	}
}

func decodeFromClient(doc gjson.Result, kind Kind) (Message, error) {
	source, err := stringField(doc, "source")
	if err != nil {
		return nil, err
	}

	if kind != KindGoodbye {
		return nil, fmt.Errorf("%w: %s message cannot be forwarded", ErrSchema, kind)
	}

	content, err := decodeGoodbye(doc)
	if err != nil {
		return nil, err
	}

	return FromClient{Source: source, Content: content}, nil
}

func decodeAuthResponse(doc gjson.Result) (Message, error) {
	ok, fail := doc.Get("Ok"), doc.Get("Err")

	switch {
	case ok.Exists() && fail.Exists():
		return nil, fmt.Errorf("%w: auth_response has both Ok and Err", ErrSchema)

	case ok.Exists():
		username, err := stringField(doc, "Ok")
		if err != nil {
			return nil, err
		}

		return Accept(username), nil

	case fail.Exists():
		reason, err := stringField(doc, "Err")
		if err != nil {
			return nil, err
		}

		return Reject(reason), nil

	default:
		return nil, fmt.Errorf("%w: auth_response has neither Ok nor Err", ErrSchema)
	}
}

func decodeGoodbye(doc gjson.Result) (Goodbye, error) {
	reason := doc.Get("reason")

	switch reason.Type {
	case gjson.String:
		s := reason.String()
		return Goodbye{Reason: &s}, nil

	case gjson.Null:
		// Covers both a missing field and an explicit null.
		return Goodbye{}, nil

	default:
		return Goodbye{}, fmt.Errorf("%w: goodbye reason is not a string", ErrSchema)
	}
}

func stringField(doc gjson.Result, name string) (string, error) {
	field := doc.Get(name)

	if !field.Exists() {
		return "", fmt.Errorf("%w: missing %q field", ErrSchema, name)
	}

	if field.Type != gjson.String {
		return "", fmt.Errorf("%w: %q field is not a string", ErrSchema, name)
	}

	return field.String(), nil
}
