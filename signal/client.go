// Package signal implements the client side of the consultation video flow:
// one peer connection and one companion control channel to the relay.
// The client observes transport state and republishes it, it never drives
// reconnection itself; recovery policy belongs to the caller.
package signal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/webrtc/v4"

	"studio-live/domain"
	"studio-live/errors"
	"studio-live/relay"
)

// Config carries the static connection settings: relay address and the fixed
// list of NAT-traversal helper servers.
type Config struct {
	RelayURL   string
	ICEServers []webrtc.ICEServer
}

// Events groups the typed callbacks of the client. All of them are optional
// and all asynchronous failures funnel into OnError; none of the underlying
// transport rejections escape as panics. Callbacks may fire while the client
// holds its internal lock, so they must not call back into the Client.
type Events struct {
	OnStateChange func(state domain.ConnState)
	OnRemoteTrack func(track *webrtc.TrackRemote)
	OnPeerJoined  func(userID string)
	OnPeerLeft    func(userID string)
	OnError       func(err error)
}

// Client owns at most one active peer connection. It is explicitly
// constructed and explicitly torn down; nothing here is a process global.
type Client struct {
	log     *slog.Logger
	cfg     Config
	devices Devices
	events  Events

	mu          sync.Mutex
	channel     Channel
	pc          *webrtc.PeerConnection
	session     *domain.PeerSession
	localTracks []LocalTrack
	senders     map[string]*webrtc.RTPSender // track ID -> sender
}

func New(cfg Config, devices Devices, events Events, log *slog.Logger) *Client {
	return &Client{
		log:     log,
		cfg:     cfg,
		devices: devices,
		events:  events,
		session: domain.NewPeerSession(),
		senders: make(map[string]*webrtc.RTPSender),
	}
}

// Initialize opens the control channel to the relay and creates the local
// peer connection. Either failure is reported through OnError and returned.
func (c *Client) Initialize(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil && c.pc != nil {
		return nil
	}

	channel, err := DialChannel(ctx, c.cfg.RelayURL, c.handleRelayEvent, c.reportError, c.log)
	if err != nil {
		c.reportError(err)
		return err
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{ICEServers: c.cfg.ICEServers})
	if err != nil {
		channel.Close()
		err = fmt.Errorf("peer connection setup failed: %w", err)
		c.reportError(err)
		return err
	}

	pc.OnConnectionStateChange(c.observeState)
	pc.OnICECandidate(func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}
		c.sendNegotiation(relay.EventICECandidate, candidate.ToJSON())
	})
	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		c.log.Info("Remote track received", "kind", track.Kind().String())
		if c.events.OnRemoteTrack != nil {
			c.events.OnRemoteTrack(track)
		}
	})

	c.channel = channel
	c.pc = pc
	return nil
}

// StartStream acquires capture tracks matching the constraints and attaches
// them to the peer connection. A previous live stream is stopped first, so
// two local streams are never live at once.
func (c *Client) StartStream(constraints Constraints) error {
	c.mu.Lock()
	initialized := c.pc != nil
	streaming := c.session.Streaming
	c.mu.Unlock()

	if !initialized {
		c.reportError(errors.ErrNotInitialized)
		return errors.ErrNotInitialized
	}
	if streaming {
		c.StopStream()
	}

	var tracks []LocalTrack
	fail := func(err error) error {
		for _, t := range tracks {
			t.Stop()
		}
		c.reportError(err)
		return err
	}

	if constraints.Video {
		track, err := c.devices.OpenVideo(constraints.VideoDeviceID)
		if err != nil {
			return fail(fmt.Errorf("video capture failed: %w", err))
		}
		tracks = append(tracks, track)
	}
	if constraints.Audio {
		track, err := c.devices.OpenAudio(constraints.AudioDeviceID)
		if err != nil {
			return fail(fmt.Errorf("audio capture failed: %w", err))
		}
		tracks = append(tracks, track)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, track := range tracks {
		sender, err := c.pc.AddTrack(track)
		if err != nil {
			c.mu.Unlock()
			err = fail(fmt.Errorf("attaching %s track failed: %w", track.Kind().String(), err))
			c.mu.Lock()
			return err
		}
		c.senders[track.ID()] = sender
	}
	c.localTracks = tracks
	c.session.Streaming = true
	return nil
}

// StopStream stops and releases every local track. Safe to call when not
// streaming, and safe to call repeatedly.
func (c *Client) StopStream() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, track := range c.localTracks {
		if sender, ok := c.senders[track.ID()]; ok && c.pc != nil {
			if err := c.pc.RemoveTrack(sender); err != nil {
				c.log.Debug("Failed to detach track", "err", err)
			}
			delete(c.senders, track.ID())
		}
		if err := track.Stop(); err != nil {
			c.log.Debug("Failed to stop track", "err", err)
		}
	}
	c.localTracks = nil
	c.session.Streaming = false
}

// JoinRoom announces intent to join. The offer is not created here: it waits
// for the relay to report a second participant.
func (c *Client) JoinRoom(roomID, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel == nil {
		c.reportError(errors.ErrNoSignalChannel)
		return errors.ErrNoSignalChannel
	}
	err := c.channel.Send(relay.Event{Type: relay.EventJoinRoom, RoomID: roomID, UserID: userID})
	if err != nil {
		c.reportError(err)
		return err
	}
	c.session.RoomID = roomID
	c.session.UserID = userID
	return nil
}

// LeaveRoom announces departure if a room is joined, then stops streaming.
// Room state is cleared unconditionally.
func (c *Client) LeaveRoom() {
	c.mu.Lock()
	channel := c.channel
	roomID := c.session.RoomID
	userID := c.session.UserID
	c.mu.Unlock()

	if roomID != "" && channel != nil {
		err := channel.Send(relay.Event{Type: relay.EventLeaveRoom, RoomID: roomID, UserID: userID})
		if err != nil {
			c.reportError(err)
		}
	}
	c.StopStream()

	c.mu.Lock()
	c.session.RoomID = ""
	c.session.UserID = ""
	c.mu.Unlock()
}

// CreateOffer starts negotiation: local description first, then the offer
// goes to the other participant through the relay.
func (c *Client) CreateOffer() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		c.reportError(errors.ErrNotInitialized)
		return errors.ErrNotInitialized
	}
	offer, err := c.pc.CreateOffer(nil)
	if err != nil {
		err = fmt.Errorf("create offer failed: %w", err)
		c.reportError(err)
		return err
	}
	if err := c.pc.SetLocalDescription(offer); err != nil {
		err = fmt.Errorf("set local description failed: %w", err)
		c.reportError(err)
		return err
	}
	return c.sendNegotiationLocked(relay.EventOffer, offer)
}

// HandleOffer answers an incoming offer.
func (c *Client) HandleOffer(offer webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		c.reportError(errors.ErrNotInitialized)
		return errors.ErrNotInitialized
	}
	if err := c.pc.SetRemoteDescription(offer); err != nil {
		err = fmt.Errorf("set remote offer failed: %w", err)
		c.reportError(err)
		return err
	}
	answer, err := c.pc.CreateAnswer(nil)
	if err != nil {
		err = fmt.Errorf("create answer failed: %w", err)
		c.reportError(err)
		return err
	}
	if err := c.pc.SetLocalDescription(answer); err != nil {
		err = fmt.Errorf("set local description failed: %w", err)
		c.reportError(err)
		return err
	}
	return c.sendNegotiationLocked(relay.EventAnswer, answer)
}

// HandleAnswer installs the remote answer to our offer.
func (c *Client) HandleAnswer(answer webrtc.SessionDescription) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		c.reportError(errors.ErrNotInitialized)
		return errors.ErrNotInitialized
	}
	if err := c.pc.SetRemoteDescription(answer); err != nil {
		err = fmt.Errorf("set remote answer failed: %w", err)
		c.reportError(err)
		return err
	}
	return nil
}

// HandleICECandidate adds a remote candidate.
func (c *Client) HandleICECandidate(candidate webrtc.ICECandidateInit) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc == nil {
		c.reportError(errors.ErrNotInitialized)
		return errors.ErrNotInitialized
	}
	if err := c.pc.AddICECandidate(candidate); err != nil {
		err = fmt.Errorf("add ice candidate failed: %w", err)
		c.reportError(err)
		return err
	}
	return nil
}

// ToggleCamera flips the first video track's enabled flag. Returns the new
// state, or false when no video track exists.
func (c *Client) ToggleCamera() bool {
	return c.toggleTrack(webrtc.RTPCodecTypeVideo)
}

// ToggleMicrophone flips the first audio track's enabled flag. Returns the
// new state, or false when no audio track exists.
func (c *Client) ToggleMicrophone() bool {
	return c.toggleTrack(webrtc.RTPCodecTypeAudio)
}

func (c *Client) toggleTrack(kind webrtc.RTPCodecType) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, track := range c.localTracks {
		if track.Kind() != kind {
			continue
		}
		track.SetEnabled(!track.Enabled())
		return track.Enabled()
	}
	return false
}

// SwitchCamera replaces the outgoing video track with one from a different
// capture device, without renegotiation: the remote side keeps the same
// sender. Returns false when fewer than two cameras exist or no alternate
// device ID can be found.
func (c *Client) SwitchCamera() (bool, error) {
	devices, err := c.devices.Enumerate()
	if err != nil {
		c.reportError(err)
		return false, err
	}
	var cameras []DeviceInfo
	for _, d := range devices {
		if d.Kind == VideoInput {
			cameras = append(cameras, d)
		}
	}
	if len(cameras) < 2 {
		return false, nil
	}

	c.mu.Lock()
	var current LocalTrack
	currentIdx := -1
	for i, track := range c.localTracks {
		if track.Kind() == webrtc.RTPCodecTypeVideo {
			current, currentIdx = track, i
			break
		}
	}
	if current == nil {
		c.mu.Unlock()
		return false, nil
	}
	sender := c.senders[current.ID()]
	c.mu.Unlock()

	nextID := ""
	for _, cam := range cameras {
		if cam.ID != current.DeviceID() {
			nextID = cam.ID
			break
		}
	}
	if nextID == "" || sender == nil {
		return false, nil
	}

	replacement, err := c.devices.OpenVideo(nextID)
	if err != nil {
		err = fmt.Errorf("opening camera %s failed: %w", nextID, err)
		c.reportError(err)
		return false, err
	}
	if err := sender.ReplaceTrack(replacement); err != nil {
		replacement.Stop()
		err = fmt.Errorf("replacing video track failed: %w", err)
		c.reportError(err)
		return false, err
	}

	c.mu.Lock()
	current.Stop()
	delete(c.senders, current.ID())
	c.senders[replacement.ID()] = sender
	c.localTracks[currentIdx] = replacement
	c.mu.Unlock()

	c.log.Info("Camera switched", "device", nextID)
	return true, nil
}

// Cleanup is the full teardown: leave the room, close the peer connection,
// disconnect the control channel, release local tracks. Always safe to call
// more than once.
func (c *Client) Cleanup() {
	c.LeaveRoom()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pc != nil {
		if err := c.pc.Close(); err != nil {
			c.log.Debug("Peer connection close failed", "err", err)
		}
		c.pc = nil
	}
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			c.log.Debug("Channel close failed", "err", err)
		}
		c.channel = nil
	}
	for _, track := range c.localTracks {
		track.Stop()
	}
	c.localTracks = nil
	c.senders = make(map[string]*webrtc.RTPSender)
	c.session.Apply(domain.ConnClosed)
	c.session.Streaming = false
}

// State returns the last observed connection state.
func (c *Client) State() domain.ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// Streaming reports whether local capture is live.
func (c *Client) Streaming() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Streaming
}

// Room returns the joined room ID, empty when not in a room.
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.RoomID
}

// handleRelayEvent translates server events into negotiation steps. Each step
// is causally chained off the previous one's arrival, so reordering cannot
// occur within a single negotiation.
func (c *Client) handleRelayEvent(evt relay.Event) {
	switch evt.Type {
	case relay.EventRoomJoined:
		c.log.Info("Room joined", "room", evt.RoomID)

	case relay.EventUserJoined:
		c.log.Info("Peer joined, creating offer", "room", evt.RoomID, "user", evt.UserID)
		if c.events.OnPeerJoined != nil {
			c.events.OnPeerJoined(evt.UserID)
		}
		c.CreateOffer()

	case relay.EventUserLeft:
		c.log.Info("Peer left", "room", evt.RoomID, "user", evt.UserID)
		if c.events.OnPeerLeft != nil {
			c.events.OnPeerLeft(evt.UserID)
		}

	case relay.EventOffer:
		var offer webrtc.SessionDescription
		if err := json.Unmarshal(evt.Offer, &offer); err != nil {
			c.reportError(fmt.Errorf("malformed offer: %w", err))
			return
		}
		c.HandleOffer(offer)

	case relay.EventAnswer:
		var answer webrtc.SessionDescription
		if err := json.Unmarshal(evt.Answer, &answer); err != nil {
			c.reportError(fmt.Errorf("malformed answer: %w", err))
			return
		}
		c.HandleAnswer(answer)

	case relay.EventICECandidate:
		var candidate webrtc.ICECandidateInit
		if err := json.Unmarshal(evt.Candidate, &candidate); err != nil {
			c.reportError(fmt.Errorf("malformed candidate: %w", err))
			return
		}
		c.HandleICECandidate(candidate)

	case relay.EventError:
		c.reportError(fmt.Errorf("relay error: %s", evt.Error))

	default:
		c.log.Debug("Ignoring relay event", "type", evt.Type)
	}
}

// observeState republishes transport state changes. The session's transition
// table filters stale events arriving after teardown.
func (c *Client) observeState(state webrtc.PeerConnectionState) {
	to := domain.ConnState(state.String())
	c.mu.Lock()
	applied := c.session.Apply(to)
	c.mu.Unlock()
	if !applied {
		c.log.Debug("Ignoring illegal state transition", "to", string(to))
		return
	}
	c.log.Info("Connection state changed", "state", string(to))
	if c.events.OnStateChange != nil {
		c.events.OnStateChange(to)
	}
}

func (c *Client) sendNegotiation(eventType string, payload any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendNegotiationLocked(eventType, payload)
}

// sendNegotiationLocked marshals and sends a negotiation payload. Callers
// must hold c.mu.
func (c *Client) sendNegotiationLocked(eventType string, payload any) error {
	if c.channel == nil {
		c.reportError(errors.ErrNoSignalChannel)
		return errors.ErrNoSignalChannel
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		c.reportError(err)
		return err
	}
	evt := relay.Event{Type: eventType, RoomID: c.session.RoomID}
	switch eventType {
	case relay.EventOffer:
		evt.Offer = raw
	case relay.EventAnswer:
		evt.Answer = raw
	case relay.EventICECandidate:
		evt.Candidate = raw
	}
	if err := c.channel.Send(evt); err != nil {
		err = fmt.Errorf("relay send failed: %w", err)
		c.reportError(err)
		return err
	}
	return nil
}

func (c *Client) reportError(err error) {
	c.log.Error("Signaling failure", "err", err)
	if c.events.OnError != nil {
		c.events.OnError(err)
	}
}
