//go:build linux || darwin

// File: cmd/yc-select/main.go
// Package main
// Author: robn <robn@despairlabs.com>
// License: Apache-2.0
//
// Readiness-based yoctochat server on select(2).

package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/robn/yoctochat/internal/netpoll"
	"github.com/robn/yoctochat/internal/socket"
	"github.com/robn/yoctochat/relay"
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

	cfg := relay.DefaultConfig()
	cfg.Logger = log

	listenFD, err := socket.ListenTCP(port, 10)
	if err != nil {
		log.Fatal().Err(err).Msg("listen")
	}

	log.Info().Int("port", port).Msg("listening")
	if err := relay.New(listenFD, netpoll.NewSelect(), cfg).Run(); err != nil {
		log.Fatal().Err(err).Msg("server failed")
	}
}
