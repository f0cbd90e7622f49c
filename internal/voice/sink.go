package voice

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// PacketWriter receives RTP packets; oggwriter.OggWriter is one.
type PacketWriter interface {
	WriteRTP(p *rtp.Packet) error
	Close() error
}

// RTPSink copies packets from a track to a writer until the track ends or the
// sink is closed. Packets read while muted are dropped.
type RTPSink struct {
	mu     sync.Mutex
	w      PacketWriter
	muted  bool
	closed bool
	done   chan struct{}
}

func NewRTPSink(track Track, w PacketWriter, muted bool) *RTPSink {
	s := &RTPSink{w: w, muted: muted, done: make(chan struct{})}
	go s.pump(track)
	return s
}

func (s *RTPSink) pump(track Track) {
	defer close(s.done)
	for {
		p, err := track.ReadRTP()
		if err != nil {
			s.Close()
			return
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return
		}
		if !s.muted {
			_ = s.w.WriteRTP(p)
		}
		s.mu.Unlock()
	}
}

func (s *RTPSink) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *RTPSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.w.Close()
}

// Done is closed once the pump goroutine exits.
func (s *RTPSink) Done() <-chan struct{} { return s.done }

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// OggFileSinks records each participant's Opus audio to its own file in dir.
func OggFileSinks(dir string) SinkFactory {
	return func(participant string, track Track, muted bool) (Sink, error) {
		name := fmt.Sprintf("%s-%d.ogg", unsafeName.ReplaceAllString(participant, "_"), time.Now().UnixMilli())
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
		w, err := oggwriter.New(filepath.Join(dir, name), 48000, 2)
		if err != nil {
			return nil, err
		}
		return NewRTPSink(track, w, muted), nil
	}
}
