package signal

import (
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"
)

type DeviceKind string

const (
	VideoInput DeviceKind = "videoinput"
	AudioInput DeviceKind = "audioinput"
)

// DeviceInfo describes one capture device the backend can open.
type DeviceInfo struct {
	ID    string
	Label string
	Kind  DeviceKind
}

// LocalTrack is an outgoing media track owned by the client while streaming.
// It extends pion's TrackLocal with the enable flag and release semantics the
// client needs for toggling and camera switching.
type LocalTrack interface {
	webrtc.TrackLocal
	DeviceID() string
	Enabled() bool
	SetEnabled(enabled bool)
	Stop() error
}

// Devices abstracts the capture backend so the client never talks to
// hardware directly. The kiosk installs a real backend; tests install a fake.
type Devices interface {
	Enumerate() ([]DeviceInfo, error)
	OpenVideo(deviceID string) (LocalTrack, error)
	OpenAudio(deviceID string) (LocalTrack, error)
}

// Constraints selects which capture kinds to open, mirroring the
// video/audio flags of a media request. Empty device IDs mean "default".
type Constraints struct {
	Video         bool
	Audio         bool
	VideoDeviceID string
	AudioDeviceID string
}

// staticTrack wraps a sample-fed pion track with the LocalTrack contract.
type staticTrack struct {
	*webrtc.TrackLocalStaticSample
	deviceID string

	mu      sync.Mutex
	enabled bool
	stopped bool
}

func (t *staticTrack) DeviceID() string { return t.deviceID }

func (t *staticTrack) Enabled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.enabled
}

func (t *staticTrack) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

func (t *staticTrack) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopped = true
	return nil
}

// WriteSample forwards a media sample unless the track is disabled or
// stopped. Disabled tracks swallow samples so the remote side sees silence
// or a frozen frame, matching the enabled-flag semantics of a muted track.
func (t *staticTrack) WriteSample(sample media.Sample) error {
	t.mu.Lock()
	enabled, stopped := t.enabled, t.stopped
	t.mu.Unlock()
	if stopped || !enabled {
		return nil
	}
	return t.TrackLocalStaticSample.WriteSample(sample)
}

// StaticDevices is a Devices backend over a fixed device list, producing
// sample-fed tracks. The kiosk feeds them from its capture pipeline; tests
// leave them idle.
type StaticDevices struct {
	devices []DeviceInfo
}

func NewStaticDevices(devices []DeviceInfo) *StaticDevices {
	return &StaticDevices{devices: devices}
}

func (d *StaticDevices) Enumerate() ([]DeviceInfo, error) {
	out := make([]DeviceInfo, len(d.devices))
	copy(out, d.devices)
	return out, nil
}

func (d *StaticDevices) OpenVideo(deviceID string) (LocalTrack, error) {
	id := d.defaultFor(VideoInput, deviceID)
	inner, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, "video-"+uuid.NewString(), "studio-live")
	if err != nil {
		return nil, err
	}
	return &staticTrack{TrackLocalStaticSample: inner, deviceID: id, enabled: true}, nil
}

func (d *StaticDevices) OpenAudio(deviceID string) (LocalTrack, error) {
	id := d.defaultFor(AudioInput, deviceID)
	inner, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio-"+uuid.NewString(), "studio-live")
	if err != nil {
		return nil, err
	}
	return &staticTrack{TrackLocalStaticSample: inner, deviceID: id, enabled: true}, nil
}

func (d *StaticDevices) defaultFor(kind DeviceKind, deviceID string) string {
	if deviceID != "" {
		return deviceID
	}
	for _, dev := range d.devices {
		if dev.Kind == kind {
			return dev.ID
		}
	}
	return ""
}
