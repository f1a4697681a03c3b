//go:build linux

// File: cmd/yc-uring/main.go
// Package main
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Completion-based yoctochat server on io_uring. Accepts TCP connections on
// the given port and relays every received chunk verbatim to every other
// connected peer.

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/robn/yoctochat/chat"
	"github.com/robn/yoctochat/internal/socket"
	"github.com/robn/yoctochat/internal/uring"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <port>\n", os.Args[0])
		os.Exit(1)
	}
	port, err := strconv.Atoi(os.Args[1])
	if err != nil || port <= 0 || port > 65535 {
		fmt.Fprintf(os.Stderr, "'%s' not a valid port number\n", os.Args[1])
		os.Exit(1)
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()

	cfg := chat.DefaultConfig()
	cfg.Logger = log

	listenFD, err := socket.ListenTCP(port, cfg.Backlog)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}

	ring, err := uring.New(uint32(cfg.QueueDepth))
	if err != nil {
		log.Fatal().Err(err).Msg("io_uring setup")
	}
	defer ring.Close()

	log.Info().Int("port", port).Msg("listening")
	if err := chat.New(listenFD, ring, cfg).Run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
