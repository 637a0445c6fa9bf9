// The kiosk binary runs on the studio machine. It dials the relay, joins the
// consultation room and publishes the studio camera and microphone tracks.
package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/mama165/sdk-go/logs"
	"github.com/pion/webrtc/v4"

	"studio-live/domain"
	"studio-live/signal"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

type Config struct {
	RelayURL    string   `envconfig:"RELAY_URL" required:"true"`
	RoomID      string   `envconfig:"ROOM_ID" required:"true"`
	UserID      string   `envconfig:"USER_ID" required:"true"`
	STUNServers []string `envconfig:"STUN_SERVERS" default:"stun:stun.l.google.com:19302"`
	LogLevel    string   `envconfig:"LOG_LEVEL" default:"INFO"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Kiosk terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	_ = godotenv.Load()

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}
	logger := logs.GetLoggerFromString(config.LogLevel)

	devices := signal.NewStaticDevices([]signal.DeviceInfo{
		{ID: "studio-cam-front", Label: "Studio camera (front)", Kind: signal.VideoInput},
		{ID: "studio-cam-wide", Label: "Studio camera (wide)", Kind: signal.VideoInput},
		{ID: "studio-mic", Label: "Studio microphone", Kind: signal.AudioInput},
	})

	client := signal.New(signal.Config{
		RelayURL: config.RelayURL,
		ICEServers: []webrtc.ICEServer{
			{URLs: config.STUNServers},
		},
	}, devices, signal.Events{
		OnStateChange: func(state domain.ConnState) {
			logger.Info("Connection state changed", "state", state)
		},
		OnRemoteTrack: func(track *webrtc.TrackRemote) {
			logger.Info("Remote track received",
				"kind", track.Kind().String(), "id", track.ID())
		},
		OnPeerJoined: func(userID string) {
			logger.Info("Peer joined the room", "user", userID)
		},
		OnPeerLeft: func(userID string) {
			logger.Info("Peer left the room", "user", userID)
		},
		OnError: func(err error) {
			logger.Error("Signaling error", "err", err)
		},
	}, logger)

	ctx, stop := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := client.Initialize(ctx); err != nil {
		return exitRuntime, fmt.Errorf("initialization failed: %w", err)
	}
	defer client.Cleanup()

	if err := client.JoinRoom(config.RoomID, config.UserID); err != nil {
		return exitRuntime, fmt.Errorf("failed to join room %s: %w", config.RoomID, err)
	}
	logger.Info("Joined room, publishing stream",
		"room", config.RoomID, "user", config.UserID)

	if err := client.StartStream(signal.Constraints{Video: true, Audio: true}); err != nil {
		return exitRuntime, fmt.Errorf("failed to start stream: %w", err)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received, leaving room")

	if stats := client.ConnectionStats(); stats != nil {
		logger.Info("Final connection stats",
			"bytes_sent", stats.BytesSent,
			"bytes_received", stats.BytesReceived,
			"packets_lost", stats.PacketsLost)
	}
	return exitOK, nil
}
