// Command kiosk starts one requester-side assist session against a running
// signald, prints the session code for the agent, and tears down on SIGINT.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kiosklink/assist/internal/adapters/client"
	"github.com/kiosklink/assist/internal/adapters/media"
	"github.com/kiosklink/assist/internal/adapters/rtc"
	"github.com/kiosklink/assist/internal/annotation"
	"github.com/kiosklink/assist/internal/peer"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "signald base url")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	wsBase := strings.Replace(*server, "http", "ws", 1)
	overlay := annotation.NewStore()
	go overlay.Run(ctx)

	ctrl := peer.NewController(peer.Options{
		API:         client.NewSessionClient(*server),
		Dialer:      client.NewSignalDialer(wsBase),
		Media:       media.NewSampleSource(),
		NewLink:     rtc.NewPeerLink,
		Annotations: overlay,
	})

	if err := ctrl.Start(ctx); err != nil {
		log.Fatal().Str("reason", ctrl.Err()).Msg("session failed to start")
	}
	for _, w := range ctrl.Warnings() {
		log.Warn().Msg(w)
	}
	log.Info().Str("session", string(ctrl.SessionID())).Msg("waiting for an agent; share this code")

	<-ctx.Done()
	ctrl.Hangup()
	log.Info().Msg("session ended")
}
