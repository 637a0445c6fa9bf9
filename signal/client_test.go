package signal

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"studio-live/domain"
	"studio-live/errors"
	"studio-live/observability"
	"studio-live/relay"
)

// Prometheus collectors register globally, so the test binary shares one set.
var relayMetrics = relay.NewMetrics()

func startRelay(t *testing.T) string {
	t.Helper()
	log := slog.Default()
	hub := relay.NewHub(log, relayMetrics, observability.NewMonitor(log))
	go hub.Run()
	t.Cleanup(hub.Close)

	server := httptest.NewServer(relay.NewHandler(log, hub, []string{"*"}))
	t.Cleanup(server.Close)
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

// trackSpy wraps a real local track and records whether it was stopped.
type trackSpy struct {
	LocalTrack
	stopped atomic.Bool
}

func (s *trackSpy) Stop() error {
	s.stopped.Store(true)
	return s.LocalTrack.Stop()
}

// spyBackend opens real static tracks but keeps a trace of every opened track
// so tests can observe release behavior.
type spyBackend struct {
	inner  *StaticDevices
	opened []*trackSpy
}

func newSpyBackend(devices []DeviceInfo) *spyBackend {
	return &spyBackend{inner: NewStaticDevices(devices)}
}

func (b *spyBackend) Enumerate() ([]DeviceInfo, error) { return b.inner.Enumerate() }

func (b *spyBackend) OpenVideo(deviceID string) (LocalTrack, error) {
	track, err := b.inner.OpenVideo(deviceID)
	if err != nil {
		return nil, err
	}
	spy := &trackSpy{LocalTrack: track}
	b.opened = append(b.opened, spy)
	return spy, nil
}

func (b *spyBackend) OpenAudio(deviceID string) (LocalTrack, error) {
	track, err := b.inner.OpenAudio(deviceID)
	if err != nil {
		return nil, err
	}
	spy := &trackSpy{LocalTrack: track}
	b.opened = append(b.opened, spy)
	return spy, nil
}

func twoCamerasOneMic() []DeviceInfo {
	return []DeviceInfo{
		{ID: "cam-front", Label: "Front camera", Kind: VideoInput},
		{ID: "cam-wide", Label: "Wide camera", Kind: VideoInput},
		{ID: "mic-1", Label: "Microphone", Kind: AudioInput},
	}
}

func newConnectedClient(t *testing.T, devices Devices, events Events) *Client {
	t.Helper()
	url := startRelay(t)
	client := New(Config{RelayURL: url}, devices, events, slog.Default())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, client.Initialize(ctx))
	t.Cleanup(client.Cleanup)
	return client
}

func TestClient_JoinRoom_Requires_Initialize(t *testing.T) {
	req := require.New(t)

	var reported atomic.Value
	client := New(Config{RelayURL: "ws://unused"}, NewStaticDevices(nil), Events{
		OnError: func(err error) { reported.Store(err) },
	}, slog.Default())

	err := client.JoinRoom("room-1", "alice")
	req.ErrorIs(err, errors.ErrNoSignalChannel)
	req.ErrorIs(reported.Load().(error), errors.ErrNoSignalChannel)
}

func TestClient_StartStream_Requires_Initialize(t *testing.T) {
	req := require.New(t)
	client := New(Config{RelayURL: "ws://unused"}, NewStaticDevices(nil), Events{}, slog.Default())

	err := client.StartStream(Constraints{Video: true})
	req.ErrorIs(err, errors.ErrNotInitialized)
}

func TestClient_Initialize_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	client := newConnectedClient(t, newSpyBackend(twoCamerasOneMic()), Events{})

	// A second call must not tear down or re-dial anything
	req.NoError(client.Initialize(context.Background()))
	req.Equal(domain.ConnNew, client.State())
}

func TestClient_JoinRoom_Tracks_Session(t *testing.T) {
	req := require.New(t)
	client := newConnectedClient(t, newSpyBackend(twoCamerasOneMic()), Events{})

	req.NoError(client.JoinRoom("room-1", "alice"))
	req.Equal("room-1", client.Room())

	client.LeaveRoom()
	req.Empty(client.Room())
}

func TestClient_StartStream_Publishes_Tracks(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend(twoCamerasOneMic())
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.StartStream(Constraints{Video: true, Audio: true}))
	req.True(client.Streaming())
	req.Len(backend.opened, 2)
}

func TestClient_StartStream_Stops_Previous_Stream(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend(twoCamerasOneMic())
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.StartStream(Constraints{Video: true, Audio: true}))
	req.NoError(client.StartStream(Constraints{Video: true, Audio: true}))

	// Two streams were opened but only one is ever live
	req.True(client.Streaming())
	req.Len(backend.opened, 4)
	req.True(backend.opened[0].stopped.Load())
	req.True(backend.opened[1].stopped.Load())
	req.False(backend.opened[2].stopped.Load())
	req.False(backend.opened[3].stopped.Load())
}

func TestClient_StopStream_Is_Idempotent(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend(twoCamerasOneMic())
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.StartStream(Constraints{Video: true}))
	client.StopStream()
	req.False(client.Streaming())

	// Stopping while already stopped is a no-op
	client.StopStream()
	req.False(client.Streaming())
}

func TestClient_ToggleCamera_Flips_State(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend(twoCamerasOneMic())
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.StartStream(Constraints{Video: true, Audio: true}))

	// Tracks start enabled; a toggle disables, a second one restores
	req.False(client.ToggleCamera())
	req.True(client.ToggleCamera())
}

func TestClient_ToggleMicrophone_Without_Stream(t *testing.T) {
	req := require.New(t)
	client := newConnectedClient(t, newSpyBackend(twoCamerasOneMic()), Events{})

	req.False(client.ToggleMicrophone())
}

func TestClient_SwitchCamera_Needs_Two_Cameras(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend([]DeviceInfo{
		{ID: "cam-only", Label: "Only camera", Kind: VideoInput},
	})
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.StartStream(Constraints{Video: true}))

	switched, err := client.SwitchCamera()
	req.NoError(err)
	req.False(switched)
}

func TestClient_SwitchCamera_Replaces_Track(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend(twoCamerasOneMic())
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.StartStream(Constraints{Video: true}))
	req.Equal("cam-front", backend.opened[0].DeviceID())

	switched, err := client.SwitchCamera()
	req.NoError(err)
	req.True(switched)

	// The old capture is released and the new one targets the other device
	req.True(backend.opened[0].stopped.Load())
	req.Len(backend.opened, 2)
	req.Equal("cam-wide", backend.opened[1].DeviceID())
	req.True(client.Streaming())
}

func TestClient_SwitchCamera_Without_Stream(t *testing.T) {
	req := require.New(t)
	client := newConnectedClient(t, newSpyBackend(twoCamerasOneMic()), Events{})

	switched, err := client.SwitchCamera()
	req.NoError(err)
	req.False(switched)
}

func TestClient_ConnectionStats_Before_Initialize(t *testing.T) {
	req := require.New(t)
	client := New(Config{RelayURL: "ws://unused"}, NewStaticDevices(nil), Events{}, slog.Default())

	req.Nil(client.ConnectionStats())
}

func TestClient_ConnectionStats_After_Initialize(t *testing.T) {
	req := require.New(t)
	client := newConnectedClient(t, newSpyBackend(twoCamerasOneMic()), Events{})

	stats := client.ConnectionStats()
	req.NotNil(stats)
}

func TestClient_Cleanup_Tears_Everything_Down(t *testing.T) {
	req := require.New(t)
	backend := newSpyBackend(twoCamerasOneMic())
	client := newConnectedClient(t, backend, Events{})

	req.NoError(client.JoinRoom("room-1", "alice"))
	req.NoError(client.StartStream(Constraints{Video: true, Audio: true}))

	client.Cleanup()

	req.Equal(domain.ConnClosed, client.State())
	req.False(client.Streaming())
	req.Empty(client.Room())
	for _, track := range backend.opened {
		req.True(track.stopped.Load())
	}

	// Cleanup twice must be safe
	client.Cleanup()
	req.Equal(domain.ConnClosed, client.State())
}

func TestClient_CreateOffer_Requires_Initialize(t *testing.T) {
	req := require.New(t)
	client := New(Config{RelayURL: "ws://unused"}, NewStaticDevices(nil), Events{}, slog.Default())

	req.ErrorIs(client.CreateOffer(), errors.ErrNotInitialized)
}
