package protocol

// Kind is the value of the `kind` tag carried by every message.
type Kind string

const (
	KindGreeting     Kind = "greeting"
	KindAuthRequest  Kind = "auth_request"
	KindAuthResponse Kind = "auth_response"
	KindGoodbye      Kind = "goodbye"
)

func (k Kind) known() bool {
	switch k {
	case KindGreeting, KindAuthRequest, KindAuthResponse, KindGoodbye:
		return true
	default:
		return false
	}
}

// Direction says which peer is reading. It decides which kinds decode.
type Direction int

const (
	// ToServer is the direction of messages sent by clients.
	ToServer Direction = iota

	// ToClient is the direction of messages sent by the server.
	ToClient
)

func (d Direction) String() string {
	switch d {
	case ToServer:
		return "to_server"
	case ToClient:
		return "to_client"
	default:
		return "unknown"
	}
}

func (d Direction) allows(k Kind) bool {
	switch d {
	case ToServer:
		return k == KindAuthRequest || k == KindGoodbye
	case ToClient:
		return k == KindAuthResponse || k == KindGreeting || k == KindGoodbye
	default:
		return false
	}
}
