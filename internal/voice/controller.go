// Package voice runs the customer side of a voice-assistant session: it
// fetches a room grant, joins the room and plays whatever audio the remote
// participants publish, keyed by participant identity.
package voice

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/google/uuid"
	"github.com/pion/rtp"
)

var (
	ErrAlreadyActive = errors.New("voice session already active")
	ErrStopped       = errors.New("voice session stopped while connecting")
	// ErrDevicePermission is returned by connectors and sinks that were
	// refused access to an audio device.
	ErrDevicePermission = errors.New("audio device permission denied")
)

type TrackKind string

const (
	KindAudio TrackKind = "audio"
	KindVideo TrackKind = "video"
)

// Track is a remote media track that yields RTP packets until it ends.
type Track interface {
	ReadRTP() (*rtp.Packet, error)
}

type RemoteTrack struct {
	Kind  TrackKind
	Track Track
}

type RemoteParticipant struct {
	Identity string
	Tracks   []RemoteTrack // subscribed tracks only
}

type Room interface {
	Participants() []RemoteParticipant
	Disconnect()
}

// Events is what a Connector reports room activity to. Calls may arrive on
// any goroutine.
type Events interface {
	TrackSubscribed(participant string, kind TrackKind, track Track)
	TrackUnsubscribed(participant string, kind TrackKind)
	Disconnected()
}

type Connector interface {
	Connect(ctx context.Context, url, token string, events Events) (Room, error)
}

type TokenSource interface {
	Token(ctx context.Context, room, identity string) (string, error)
}

// Sink plays one participant's audio.
type Sink interface {
	SetMuted(muted bool)
	Close() error
}

type SinkFactory func(participant string, track Track, muted bool) (Sink, error)

type Options struct {
	URL            string
	Room           string
	ConnectTimeout time.Duration
}

type Controller struct {
	opts      Options
	tokens    TokenSource
	connector Connector
	newSink   SinkFactory
	log       *slog.Logger

	mu       sync.Mutex
	state    State
	muted    bool
	identity string
	room     Room
	sinks    map[string]Sink
	gen      uint64 // bumped per session; events from older sessions are dropped
}

func NewController(opts Options, tokens TokenSource, connector Connector, newSink SinkFactory, log *slog.Logger) *Controller {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 15 * time.Second
	}
	return &Controller{
		opts:      opts,
		tokens:    tokens,
		connector: connector,
		newSink:   newSink,
		log:       log,
		state:     StateDisconnected,
		sinks:     make(map[string]Sink),
	}
}

// Start joins the room under a fresh ephemeral identity. Audio already
// published by participants in the room is attached before Start returns.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyActive
	}
	c.transition(StateConnecting)
	c.gen++
	gen := c.gen
	identity := "customer-" + uuid.NewString()[:8]
	c.identity = identity
	c.mu.Unlock()

	log := c.log.With(logx.Room, c.opts.Room, logx.Identity, identity)

	ctx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	tok, err := c.tokens.Token(ctx, c.opts.Room, identity)
	if err != nil {
		c.abort(gen)
		log.Error("voice token fetch failed", logx.Err(err))
		return classify("could not fetch voice token", err)
	}

	room, err := c.connector.Connect(ctx, c.opts.URL, tok, &sessionEvents{c: c, gen: gen})
	if err != nil {
		c.abort(gen)
		log.Error("voice room connect failed", logx.Err(err))
		return classify("could not connect to voice room", err)
	}

	c.mu.Lock()
	if c.gen != gen || c.state != StateConnecting {
		c.mu.Unlock()
		room.Disconnect()
		return ErrStopped
	}
	c.transition(StateConnected)
	c.room = room
	c.mu.Unlock()
	log.Info("voice session connected")

	for _, p := range room.Participants() {
		for _, t := range p.Tracks {
			c.trackSubscribed(gen, p.Identity, t.Kind, t.Track)
		}
	}
	return nil
}

// Stop leaves the room and releases every sink. Stopping an idle controller
// does nothing.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	room, sinks := c.reset()
	c.mu.Unlock()

	c.release(room, sinks)
	c.log.Info("voice session stopped", logx.Room, c.opts.Room)
}

// ToggleMute flips the mute flag on every attached sink and reports the new value.
func (c *Controller) ToggleMute() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.muted = !c.muted
	for _, s := range c.sinks {
		s.SetMuted(c.muted)
	}
	return c.muted
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Speaking reports whether at least one remote audio track is attached.
func (c *Controller) Speaking() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sinks) > 0
}

// Identity is the ephemeral identity of the current or last session.
func (c *Controller) Identity() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.identity
}

// Participants lists identities with attached audio.
func (c *Controller) Participants() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.sinks))
	for id := range c.sinks {
		out = append(out, id)
	}
	return out
}

func (c *Controller) trackSubscribed(gen uint64, participant string, kind TrackKind, track Track) {
	if kind != KindAudio || track == nil {
		return
	}
	c.mu.Lock()
	if !c.live(gen) {
		c.mu.Unlock()
		return
	}
	if _, ok := c.sinks[participant]; ok {
		c.mu.Unlock()
		return
	}
	muted := c.muted
	c.mu.Unlock()

	// sink construction may touch the filesystem; keep it outside the lock
	sink, err := c.newSink(participant, track, muted)
	if err != nil {
		c.log.Error("attach audio failed", logx.Participant, participant, logx.Err(classify("could not open audio output", err)))
		return
	}

	c.mu.Lock()
	_, dup := c.sinks[participant]
	if !c.live(gen) || dup {
		c.mu.Unlock()
		_ = sink.Close()
		return
	}
	if c.muted != muted {
		sink.SetMuted(c.muted)
	}
	c.sinks[participant] = sink
	c.mu.Unlock()
	c.log.Info("remote audio attached", logx.Participant, participant)
}

func (c *Controller) trackUnsubscribed(gen uint64, participant string, kind TrackKind) {
	if kind != KindAudio {
		return
	}
	c.mu.Lock()
	if !c.live(gen) {
		c.mu.Unlock()
		return
	}
	sink, ok := c.sinks[participant]
	if !ok {
		c.mu.Unlock()
		return
	}
	delete(c.sinks, participant)
	c.mu.Unlock()

	_ = sink.Close()
	c.log.Info("remote audio detached", logx.Participant, participant)
}

// remoteDisconnected handles the room dropping us without Stop.
func (c *Controller) remoteDisconnected(gen uint64) {
	c.mu.Lock()
	if c.gen != gen || c.state == StateDisconnected {
		c.mu.Unlock()
		return
	}
	_, sinks := c.reset()
	c.mu.Unlock()

	c.release(nil, sinks)
	c.log.Warn("voice room disconnected", logx.Room, c.opts.Room)
}

// live reports whether events for gen should still be applied. Caller holds mu.
func (c *Controller) live(gen uint64) bool {
	return c.gen == gen && c.state == StateConnected
}

// abort returns a failed Start to disconnected unless Stop got there first.
func (c *Controller) abort(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen == gen && c.state == StateConnecting {
		c.transition(StateDisconnected)
	}
}

// reset moves to disconnected and hands back what must be released. Caller holds mu.
func (c *Controller) reset() (Room, map[string]Sink) {
	room, sinks := c.room, c.sinks
	c.gen++
	c.room = nil
	c.sinks = make(map[string]Sink)
	c.transition(StateDisconnected)
	return room, sinks
}

// release runs without mu: SDKs may call back into Events from Disconnect.
func (c *Controller) release(room Room, sinks map[string]Sink) {
	if room != nil {
		room.Disconnect()
	}
	for id, s := range sinks {
		if err := s.Close(); err != nil {
			c.log.Warn("close audio sink failed", logx.Participant, id, logx.Err(err))
		}
	}
}

// transition panics on an edge the state table does not allow. Caller holds mu.
func (c *Controller) transition(to State) {
	if !CanTransition(c.state, to) {
		panic(fmt.Sprintf("voice: invalid transition %s -> %s", c.state, to))
	}
	c.state = to
}

func classify(msg string, err error) error {
	var ae *apperr.Error
	switch {
	case errors.As(err, &ae):
		return err
	case errors.Is(err, ErrDevicePermission), errors.Is(err, fs.ErrPermission):
		return apperr.DevicePermissionDenied("audio device permission denied", err)
	default:
		return apperr.RemoteServiceFailure(msg, err)
	}
}

type sessionEvents struct {
	c   *Controller
	gen uint64
}

func (e *sessionEvents) TrackSubscribed(participant string, kind TrackKind, track Track) {
	e.c.trackSubscribed(e.gen, participant, kind, track)
}

func (e *sessionEvents) TrackUnsubscribed(participant string, kind TrackKind) {
	e.c.trackUnsubscribed(e.gen, participant, kind)
}

func (e *sessionEvents) Disconnected() { e.c.remoteDisconnected(e.gen) }
