// Copyright 2024-2026 Aiku AI

// Command flowdock-tail connects to Flowdock and prints normalized
// messages from the subscribed flows until interrupted.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/aiku/go-flowdock/pkg/flowdock"
)

// These are filled at build time with -ldflags.
var (
	Tag       = "unknown"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the yaml config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		With().Timestamp().Logger()
	if !*debug {
		log = log.Level(zerolog.InfoLevel)
	}

	cfg, err := flowdock.LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	client, err := flowdock.NewClient(cfg, flowdock.WithLogger(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create client")
	}

	client.OnLoad(func(evt flowdock.LoadEvent) {
		log.Info().Int("flows", evt.Flows).Int("users", evt.Users).Msg("State loaded")
	})
	client.OnMessage(func(msg flowdock.Message) {
		author := "<unknown>"
		if msg.Author != nil {
			author = msg.Author.Name
		}
		log.Info().
			Str("flow", msg.Raw.Flow).
			Str("author", author).
			Time("sent", msg.Raw.Sent.Time).
			Str("text", msg.Text).
			Msg("Message")
	})
	client.OnError(func(evt flowdock.ErrorEvent) {
		log.Error().Err(evt.Err).Msg("Client error")
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Connect(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to connect")
	}
	log.Info().Str("version", Tag).Msg("Connected, tailing flows")

	<-ctx.Done()
	client.End()
	log.Info().Msg("Shut down")
}
