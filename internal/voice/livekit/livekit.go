// Package livekit binds voice.Connector to the LiveKit Go SDK.
package livekit

import (
	"context"

	"github.com/ariefcatur/go-voice-storefront/internal/voice"
	lksdk "github.com/livekit/server-sdk-go/v2"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

type Connector struct{}

// Connect joins the room. The SDK call is not cancellable, so when ctx ends
// first a late connection is torn down as soon as it completes.
func (Connector) Connect(ctx context.Context, url, token string, events voice.Events) (voice.Room, error) {
	cb := &lksdk.RoomCallback{
		ParticipantCallback: lksdk.ParticipantCallback{
			OnTrackSubscribed: func(track *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				events.TrackSubscribed(rp.Identity(), kindOf(pub.Kind()), remoteTrack{track})
			},
			OnTrackUnsubscribed: func(_ *webrtc.TrackRemote, pub *lksdk.RemoteTrackPublication, rp *lksdk.RemoteParticipant) {
				events.TrackUnsubscribed(rp.Identity(), kindOf(pub.Kind()))
			},
		},
		OnDisconnected: events.Disconnected,
	}

	type result struct {
		room *lksdk.Room
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		r, err := lksdk.ConnectToRoomWithToken(url, token, cb, lksdk.WithAutoSubscribe(true))
		ch <- result{r, err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			return nil, res.err
		}
		return &room{r: res.room}, nil
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.room != nil {
				res.room.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

type room struct{ r *lksdk.Room }

func (r *room) Participants() []voice.RemoteParticipant {
	rps := r.r.GetRemoteParticipants()
	out := make([]voice.RemoteParticipant, 0, len(rps))
	for _, rp := range rps {
		p := voice.RemoteParticipant{Identity: rp.Identity()}
		for _, pub := range rp.TrackPublications() {
			rpub, ok := pub.(*lksdk.RemoteTrackPublication)
			if !ok || rpub.TrackRemote() == nil {
				continue
			}
			p.Tracks = append(p.Tracks, voice.RemoteTrack{
				Kind:  kindOf(rpub.Kind()),
				Track: remoteTrack{rpub.TrackRemote()},
			})
		}
		out = append(out, p)
	}
	return out
}

func (r *room) Disconnect() { r.r.Disconnect() }

type remoteTrack struct{ t *webrtc.TrackRemote }

func (t remoteTrack) ReadRTP() (*rtp.Packet, error) {
	p, _, err := t.t.ReadRTP()
	return p, err
}

func kindOf(k lksdk.TrackKind) voice.TrackKind {
	if k == lksdk.TrackKindAudio {
		return voice.KindAudio
	}
	return voice.KindVideo
}
