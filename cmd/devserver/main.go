package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"voicechat/internal/devserver"
)

func main() {
	var (
		bind     string
		port     int
		path     string
		minBytes int
		echo     bool
		level    string
	)

	_ = godotenv.Load()

	flag.StringVar(&bind, "bind", envOr("VOICECHAT_DEV_BIND", "127.0.0.1"), "Address to listen on")
	flag.IntVar(&port, "port", 8000, "Port to listen on")
	flag.StringVar(&path, "path", "/voice_chat", "Websocket path")
	flag.IntVar(&minBytes, "min-bytes", 8000, "Skip segments smaller than this")
	flag.BoolVar(&echo, "echo", false, "Send each accepted segment back as reply audio")
	flag.StringVar(&level, "log-level", envOr("VOICECHAT_LOG_LEVEL", "info"), "Log level")
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339Nano
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	srv := devserver.New(devserver.Config{
		Bind:            bind,
		Port:            port,
		Path:            path,
		MinSegmentBytes: minBytes,
	}, devserver.EchoResponder{Echo: echo}, log.Logger)

	if err := srv.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("dev server stopped with error")
	}
	log.Info().Msg("shutdown complete")
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
