// File: chat/config.go
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0

package chat

import (
	"github.com/rs/zerolog"
)

// Config carries the tunables shared by the five servers.
type Config struct {
	// MaxConns bounds the number of simultaneously live peers. Peers
	// accepted beyond the bound are closed immediately.
	MaxConns int

	// BufferSize is the largest single relay chunk. Larger client sends
	// arrive as multiple independent chunks and are fanned out as such.
	BufferSize int

	// QueueDepth is the completion facility's submission-queue depth.
	// Steady state needs one accept, one read per live peer and up to one
	// write per live peer, so twice MaxConns is comfortable.
	QueueDepth int

	// Backlog is the listen(2) backlog.
	Backlog int

	// Logger receives connect/disconnect/error events.
	Logger zerolog.Logger
}

// DefaultConfig returns the defaults matching the original servers.
func DefaultConfig() Config {
	return Config{
		MaxConns:   128,
		BufferSize: 1024,
		QueueDepth: 256,
		Backlog:    10,
		Logger:     zerolog.Nop(),
	}
}
