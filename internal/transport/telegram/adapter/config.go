package adapter

import "time"

type Config struct {
	Token       string
	PollTimeout time.Duration
	// APIURL overrides the Bot API endpoint (self-hosted bot API servers).
	APIURL string
	// Offline skips the getMe handshake; used by tests.
	Offline bool
}
