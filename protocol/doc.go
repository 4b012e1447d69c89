// Package protocol implements framing and the message schema for the chat
// protocol spoken between chatter servers and their clients.
//
// The protocol aims to be
//
// - trivial to frame
// - strict, so that schema mismatches fail loudly instead of desynchronising peers
// - human readable once unframed
//
// === Framing
//
// A connection is a TCP stream of frames. Every frame is a 4 byte big-endian
// length followed by exactly that many bytes of UTF-8 JSON:
//
//   ```
//   <len:u32 BE><json payload>
//   ```
//
// One frame carries exactly one message. Frames larger than MaxFrameSize are
// refused by both the reader and the writer.
//
// === Messages
//
// Messages are JSON objects tagged with a `kind` field:
//
//   ```
//   {"kind":"auth_request","username":"wiz"}
//   {"kind":"auth_response","Ok":"wiz"}
//   {"kind":"auth_response","Err":"Invalid username."}
//   {"kind":"greeting","motd":"Hello, world!"}
//   {"kind":"goodbye","reason":"user quit"}
//   ```
//
// `reason` is optional and is left out entirely when there is none.
//
// A message forwarded by the server on behalf of another client is the
// client's message with an extra `source` field naming the sender. It has no
// kind of its own:
//
//   ```
//   {"kind":"goodbye","source":"wiz","reason":"user quit"}
//   ```
//
// === Directions
//
// Servers and clients read different sets of messages, see Direction. A server
// reads `auth_request` and `goodbye`. A client reads `auth_response`,
// `greeting`, `goodbye` and forwarded messages. A goodbye carrying a `source`
// was forwarded from another client; a bare one comes from the server. A well formed message arriving in the
// wrong direction is a schema error, exactly like an unknown kind.
//
// === Session
//
//   ```
//   > {"kind":"auth_request","username":"wiz"}
//   < {"kind":"auth_response","Ok":"wiz"}
//   < {"kind":"greeting","motd":"Hello, world!"}
//   > {"kind":"goodbye","reason":"timed out"}
//   ```
//
// The auth exchange happens exactly once per connection and must come first.
// Either side may end the session with a goodbye; nobody waits for a reply to
// one.
package protocol
