package token

import (
	"testing"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func configuredIssuer(now time.Time) *Issuer {
	return &Issuer{
		LiveKit: config.LiveKit{APIKey: "APIkey", APISecret: "s3cret-s3cret-s3cret-s3cret-s3cret", URL: "wss://lk.example.com"},
		AI:      config.AIProviders{OpenAIKey: "o", DeepgramKey: "d", CartesiaKey: "c"},
		TTL:     6 * time.Hour,
		Now:     func() time.Time { return now },
	}
}

func TestIssue_Claims(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	iss := configuredIssuer(now)

	g, err := iss.Issue("voice-assistant-room", "customer-1234")
	require.NoError(t, err)
	assert.NotEmpty(t, g.Token)
	assert.Equal(t, "customer-1234", g.Identity)
	assert.True(t, now.Add(6*time.Hour).Equal(g.Expiry))

	c, err := iss.ParseGrant(g.Token)
	require.NoError(t, err)
	assert.Equal(t, "APIkey", c.Issuer)
	assert.Equal(t, "customer-1234", c.Subject)
	assert.Equal(t, "customer-1234", c.Name)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, VideoGrant{Room: "voice-assistant-room", RoomJoin: true, CanPublish: true, CanSubscribe: true}, c.Video)
	assert.Equal(t, now.Add(6*time.Hour).Unix(), c.ExpiresAt.Unix())
	assert.Equal(t, now.Unix(), c.NotBefore.Unix())
}

func TestIssue_UniqueTokenIDs(t *testing.T) {
	iss := configuredIssuer(time.Now())
	a, err := iss.Issue("r", "u")
	require.NoError(t, err)
	b, err := iss.Issue("r", "u")
	require.NoError(t, err)

	ca, err := iss.ParseGrant(a.Token)
	require.NoError(t, err)
	cb, err := iss.ParseGrant(b.Token)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cb.ID)
}

func TestIssue_Errors(t *testing.T) {
	tests := []struct {
		name     string
		room     string
		identity string
		mutate   func(i *Issuer)
		kind     apperr.Kind
		msg      string
	}{
		{"missing room", "", "u", nil, apperr.KindInvalidRequest, MsgMissingParams},
		{"missing identity", "r", "", nil, apperr.KindInvalidRequest, MsgMissingParams},
		{"params checked before config", "", "", func(i *Issuer) { i.LiveKit = config.LiveKit{} }, apperr.KindInvalidRequest, MsgMissingParams},
		{"missing api key", "r", "u", func(i *Issuer) { i.LiveKit.APIKey = "" }, apperr.KindServiceMisconfigured, MsgLiveKitMisconfig},
		{"missing secret", "r", "u", func(i *Issuer) { i.LiveKit.APISecret = "" }, apperr.KindServiceMisconfigured, MsgLiveKitMisconfig},
		{"missing url", "r", "u", func(i *Issuer) { i.LiveKit.URL = "" }, apperr.KindServiceMisconfigured, MsgLiveKitMisconfig},
		{"missing openai", "r", "u", func(i *Issuer) { i.AI.OpenAIKey = "" }, apperr.KindServiceMisconfigured, MsgAIProvidersMisconfig},
		{"missing deepgram", "r", "u", func(i *Issuer) { i.AI.DeepgramKey = "" }, apperr.KindServiceMisconfigured, MsgAIProvidersMisconfig},
		{"missing cartesia", "r", "u", func(i *Issuer) { i.AI.CartesiaKey = "" }, apperr.KindServiceMisconfigured, MsgAIProvidersMisconfig},
		{"livekit checked before ai", "r", "u", func(i *Issuer) { i.LiveKit.URL = ""; i.AI = config.AIProviders{} }, apperr.KindServiceMisconfigured, MsgLiveKitMisconfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iss := configuredIssuer(time.Now())
			if tt.mutate != nil {
				tt.mutate(iss)
			}
			_, err := iss.Issue(tt.room, tt.identity)
			require.Error(t, err)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
			assert.Equal(t, tt.msg, apperr.Message(err))
		})
	}
}

func TestParseGrant_Rejects(t *testing.T) {
	now := time.Now()
	iss := configuredIssuer(now)
	g, err := iss.Issue("r", "u")
	require.NoError(t, err)

	other := configuredIssuer(now)
	other.LiveKit.APISecret = "another-secret-another-secret-xx"
	_, err = other.ParseGrant(g.Token)
	assert.Error(t, err, "wrong secret")

	later := configuredIssuer(now.Add(7 * time.Hour))
	_, err = later.ParseGrant(g.Token)
	assert.Error(t, err, "expired")

	_, err = iss.ParseGrant("not-a-token")
	assert.Error(t, err)
}
