// Command voice joins the storefront's assistant room from a terminal. Remote
// audio is written to Ogg files; SIGUSR1 mutes or unmutes that playback.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ariefcatur/go-voice-storefront/internal/config"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/ariefcatur/go-voice-storefront/internal/voice"
	"github.com/ariefcatur/go-voice-storefront/internal/voice/livekit"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	log := logx.New("voice-client", cfg.LogLevel)

	if err := os.MkdirAll(cfg.VoiceOutputDir, 0o755); err != nil {
		log.Error("output dir", logx.Err(err))
		os.Exit(1)
	}

	ctl := voice.NewController(
		voice.Options{
			URL:            cfg.LiveKit.PublicURL,
			Room:           cfg.VoiceRoom,
			ConnectTimeout: cfg.VoiceConnectTimeout,
		},
		voice.NewHTTPTokenSource(cfg.TokenEndpoint, nil),
		livekit.Connector{},
		voice.OggFileSinks(cfg.VoiceOutputDir),
		log,
	)

	if err := ctl.Start(context.Background()); err != nil {
		log.Error("voice session failed to start", logx.Err(err))
		os.Exit(1)
	}
	log.Info("voice session live",
		logx.Room, cfg.VoiceRoom,
		logx.Identity, ctl.Identity(),
		slog.Any("participants", ctl.Participants()))

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	for s := range sig {
		if s == syscall.SIGUSR1 {
			log.Info("mute toggled", slog.Bool("muted", ctl.ToggleMute()), slog.Bool("speaking", ctl.Speaking()))
			continue
		}
		break
	}
	ctl.Stop()
	log.Info("voice session ended", slog.String("state", string(ctl.State())))
}
