// Package token mints room access grants in the LiveKit access-token format.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/ariefcatur/go-voice-storefront/internal/apperr"
	"github.com/ariefcatur/go-voice-storefront/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	MsgMissingParams        = "Missing required query parameters"
	MsgLiveKitMisconfig     = "LiveKit misconfigured"
	MsgAIProvidersMisconfig = "AI providers misconfigured"
)

// VideoGrant is the "video" claim LiveKit reads permissions from.
type VideoGrant struct {
	Room         string `json:"room"`
	RoomJoin     bool   `json:"roomJoin"`
	CanPublish   bool   `json:"canPublish"`
	CanSubscribe bool   `json:"canSubscribe"`
}

type Claims struct {
	Name  string     `json:"name,omitempty"`
	Video VideoGrant `json:"video"`
	jwt.RegisteredClaims
}

type Grant struct {
	Token    string    `json:"token"`
	Identity string    `json:"identity"`
	Room     string    `json:"room"`
	Expiry   time.Time `json:"expiry"`
}

type Issuer struct {
	LiveKit config.LiveKit
	AI      config.AIProviders
	TTL     time.Duration
	Now     func() time.Time
}

func NewIssuer(cfg config.Config) *Issuer {
	return &Issuer{LiveKit: cfg.LiveKit, AI: cfg.AI, TTL: cfg.TokenTTL}
}

// Issue signs a grant that lets identity join, publish and subscribe in room.
// Inputs are checked before configuration, LiveKit before the AI providers.
func (i *Issuer) Issue(room, identity string) (Grant, error) {
	if room == "" || identity == "" {
		return Grant{}, apperr.InvalidRequest(MsgMissingParams)
	}
	if i.LiveKit.APIKey == "" || i.LiveKit.APISecret == "" || i.LiveKit.URL == "" {
		return Grant{}, apperr.ServiceMisconfigured(MsgLiveKitMisconfig)
	}
	if i.AI.OpenAIKey == "" || i.AI.DeepgramKey == "" || i.AI.CartesiaKey == "" {
		return Grant{}, apperr.ServiceMisconfigured(MsgAIProvidersMisconfig)
	}

	now := i.now()
	ttl := i.TTL
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	exp := now.Add(ttl)
	claims := Claims{
		Name: identity,
		Video: VideoGrant{
			Room:         room,
			RoomJoin:     true,
			CanPublish:   true,
			CanSubscribe: true,
		},
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.LiveKit.APIKey,
			Subject:   identity,
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.LiveKit.APISecret))
	if err != nil {
		return Grant{}, fmt.Errorf("sign grant: %w", err)
	}
	return Grant{Token: signed, Identity: identity, Room: room, Expiry: exp.Truncate(time.Second)}, nil
}

// ParseGrant verifies a token minted by Issue and returns its claims.
func (i *Issuer) ParseGrant(tokenString string) (*Claims, error) {
	if i.LiveKit.APISecret == "" {
		return nil, errors.New("no signing secret configured")
	}
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims,
		func(*jwt.Token) (interface{}, error) { return []byte(i.LiveKit.APISecret), nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.LiveKit.APIKey),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("parse grant: %w", err)
	}
	return &claims, nil
}

func (i *Issuer) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now()
}
