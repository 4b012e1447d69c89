package protocol_test

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/ginkgo/extensions/table"
	. "github.com/onsi/gomega"

	"github.com/luma/chatter/protocol"
)

func reason(s string) *string {
	return &s
}

var _ = Describe("Messages", func() {
	DescribeTable("wire shape and round trip",
		func(msg protocol.Message, dir protocol.Direction, expected string) {
			data, err := protocol.Encode(msg)
			Expect(err).To(Succeed())
			Expect(data).To(MatchJSON(expected))

			decoded, err := protocol.Decode(data, dir)
			Expect(err).To(Succeed())
			Expect(decoded).To(Equal(msg))
		},
		Entry("goodbye without a reason",
			protocol.Goodbye{}, protocol.ToServer,
			`{"kind":"goodbye"}`),
		Entry("goodbye with a reason",
			protocol.NewGoodbye("user quit"), protocol.ToServer,
			`{"kind":"goodbye","reason":"user quit"}`),
		Entry("goodbye with an empty reason",
			protocol.NewGoodbye(""), protocol.ToServer,
			`{"kind":"goodbye","reason":""}`),
		Entry("auth request",
			protocol.AuthRequest{Username: "wiz"}, protocol.ToServer,
			`{"kind":"auth_request","username":"wiz"}`),
		Entry("accepted auth response",
			protocol.Accept("wiz"), protocol.ToClient,
			`{"kind":"auth_response","Ok":"wiz"}`),
		Entry("rejected auth response",
			protocol.Reject("Invalid username."), protocol.ToClient,
			`{"kind":"auth_response","Err":"Invalid username."}`),
		Entry("greeting",
			protocol.Greeting{Motd: "Hello, world!"}, protocol.ToClient,
			`{"kind":"greeting","motd":"Hello, world!"}`),
		Entry("goodbye from the server",
			protocol.NewGoodbye("server shutting down"), protocol.ToClient,
			`{"kind":"goodbye","reason":"server shutting down"}`),
		Entry("goodbye from the server without a reason",
			protocol.Goodbye{}, protocol.ToClient,
			`{"kind":"goodbye"}`),
		Entry("forwarded goodbye",
			protocol.FromClient{Source: "user", Content: protocol.Goodbye{}}, protocol.ToClient,
			`{"kind":"goodbye","source":"user"}`),
		Entry("forwarded goodbye with a reason",
			protocol.FromClient{Source: "user", Content: protocol.NewGoodbye("Goodbye, world.")}, protocol.ToClient,
			`{"kind":"goodbye","source":"user","reason":"Goodbye, world."}`),
	)

	Describe("Encode()", func() {
		It("never emits a null reason", func() {
			data, err := protocol.Encode(protocol.Goodbye{})
			Expect(err).To(Succeed())
			Expect(string(data)).NotTo(ContainSubstring("reason"))
		})

		It("refuses a forwarded message with no content", func() {
			_, err := protocol.Encode(protocol.FromClient{Source: "user"})
			Expect(err).To(MatchError(protocol.ErrSchema))
		})
	})

	Describe("Decode()", func() {
		It("rejects unknown kinds in both directions", func() {
			for _, dir := range []protocol.Direction{protocol.ToServer, protocol.ToClient} {
				_, err := protocol.Decode([]byte(`{"kind":"shout","text":"hi"}`), dir)
				Expect(err).To(MatchError(protocol.ErrSchema), "direction %s", dir)
			}
		})

		It("rejects a forwarded message with an unknown kind", func() {
			_, err := protocol.Decode([]byte(`{"kind":"shout","source":"user"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("rejects kinds meant for the other peer", func() {
			_, err := protocol.Decode([]byte(`{"kind":"greeting","motd":"hi"}`), protocol.ToServer)
			Expect(err).To(MatchError(protocol.ErrSchema))

			_, err = protocol.Decode([]byte(`{"kind":"auth_request","username":"wiz"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("rejects payloads that are not objects", func() {
			for _, payload := range []string{`not json`, `[1,2]`, `"goodbye"`, ``} {
				_, err := protocol.Decode([]byte(payload), protocol.ToServer)
				Expect(err).To(MatchError(protocol.ErrSchema), "payload %q", payload)
			}
		})

		It("rejects a missing or mistyped kind", func() {
			_, err := protocol.Decode([]byte(`{"username":"wiz"}`), protocol.ToServer)
			Expect(err).To(MatchError(protocol.ErrSchema))

			_, err = protocol.Decode([]byte(`{"kind":7}`), protocol.ToServer)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("rejects missing required fields", func() {
			_, err := protocol.Decode([]byte(`{"kind":"auth_request"}`), protocol.ToServer)
			Expect(err).To(MatchError(protocol.ErrSchema))

			_, err = protocol.Decode([]byte(`{"kind":"greeting"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("requires exactly one arm of an auth response", func() {
			_, err := protocol.Decode([]byte(`{"kind":"auth_response"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))

			_, err = protocol.Decode([]byte(`{"kind":"auth_response","Ok":"a","Err":"b"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("matches auth response arms case sensitively", func() {
			_, err := protocol.Decode([]byte(`{"kind":"auth_response","ok":"wiz"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("rejects a goodbye reason that is not a string", func() {
			_, err := protocol.Decode([]byte(`{"kind":"goodbye","reason":42}`), protocol.ToServer)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})

		It("treats a null reason as no reason", func() {
			msg, err := protocol.Decode([]byte(`{"kind":"goodbye","reason":null}`), protocol.ToServer)
			Expect(err).To(Succeed())
			Expect(msg).To(Equal(protocol.Goodbye{}))
		})

		It("ignores unknown extra fields", func() {
			msg, err := protocol.Decode([]byte(`{"kind":"auth_request","username":"wiz","colour":"blue"}`), protocol.ToServer)
			Expect(err).To(Succeed())
			Expect(msg).To(Equal(protocol.AuthRequest{Username: "wiz"}))
		})

		It("only decodes the forwarding envelope for clients", func() {
			msg, err := protocol.Decode([]byte(`{"kind":"goodbye","source":"user"}`), protocol.ToServer)
			Expect(err).To(Succeed())
			Expect(msg).To(Equal(protocol.Goodbye{}))
		})

		It("refuses to forward messages that are not client messages", func() {
			_, err := protocol.Decode([]byte(`{"kind":"greeting","motd":"hi","source":"user"}`), protocol.ToClient)
			Expect(err).To(MatchError(protocol.ErrSchema))
		})
	})

	Describe("AuthResponse.Result()", func() {
		It("returns the accepted username", func() {
			name, err := protocol.Accept("alice").Result()
			Expect(err).To(Succeed())
			Expect(name).To(Equal("alice"))
		})

		It("returns the rejection reason as an error", func() {
			_, err := protocol.Reject("name taken").Result()
			Expect(err).To(MatchError(protocol.ErrHandshakeRejected))
			Expect(err.Error()).To(ContainSubstring("name taken"))
		})
	})

	Describe("Goodbye.ReasonOr()", func() {
		It("falls back when there is no reason", func() {
			Expect(protocol.Goodbye{}.ReasonOr("none")).To(Equal("none"))
			Expect(protocol.Goodbye{Reason: reason("bye")}.ReasonOr("none")).To(Equal("bye"))
		})
	})
})
