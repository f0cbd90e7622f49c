// Package audit consumes order events and keeps an append-only trail of
// placed and cancelled orders in Postgres.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	kafkax "github.com/ariefcatur/go-voice-storefront/internal/kafka"
	"github.com/ariefcatur/go-voice-storefront/internal/logx"
	"github.com/ariefcatur/go-voice-storefront/internal/orders"
	"github.com/ariefcatur/go-voice-storefront/internal/redisx"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

type Service struct {
	Repo  Repo
	Redis *redis.Client
	Log   *slog.Logger
}

// HandleOrderEvent is installed as the consumer handler for the order topics.
func (s *Service) HandleOrderEvent(ctx context.Context, m kafka.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		// poison message; committing it is the only way past it
		s.Log.Warn("dropping undecodable order event", slog.String("topic", m.Topic), logx.Err(err))
		return nil
	}

	var (
		e   Entry
		err error
	)
	switch env.EventType {
	case orders.EventOrderPlaced:
		e, err = placedEntry(env)
	case orders.EventOrderCancelled:
		e, err = cancelledEntry(env)
	default:
		return nil
	}
	if err != nil {
		s.Log.Warn("dropping malformed order event", logx.EventID, env.EventID, logx.Err(err))
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "audit", env.EventID)
	first, err := redisx.Claim(ctx, s.Redis, dkey, "1", redisx.TTLDedup)
	if err != nil {
		// the table's primary key still dedups
		s.Log.Warn("audit dedup unavailable", logx.EventID, env.EventID, logx.Err(err))
		first = true
	}
	if !first {
		return nil
	}

	recorded, err := s.Repo.Record(ctx, e)
	if err != nil {
		_ = s.Redis.Del(context.WithoutCancel(ctx), dkey).Err()
		return err
	}
	s.Log.Info("order event audited",
		logx.EventID, env.EventID, logx.EventType, env.EventType,
		logx.UserID, e.UserID, logx.OrderID, e.OrderID,
		slog.Bool("new", recorded))
	return nil
}

func placedEntry(env orders.Envelope) (Entry, error) {
	p, err := kafkax.UnwrapPayload[orders.OrderPlacedPayload](env.Payload)
	if err != nil {
		return Entry{}, err
	}
	total, err := decimal.NewFromString(p.Total)
	if err != nil {
		return Entry{}, fmt.Errorf("total %q: %w", p.Total, err)
	}
	n := 0
	for _, it := range p.Items {
		n += it.Quantity
	}
	return Entry{
		EventID:    env.EventID,
		EventType:  env.EventType,
		UserID:     p.UserID,
		OrderID:    p.OrderID,
		Total:      total,
		ItemCount:  n,
		OccurredAt: env.OccurredAt,
	}, nil
}

func cancelledEntry(env orders.Envelope) (Entry, error) {
	p, err := kafkax.UnwrapPayload[orders.OrderCancelledPayload](env.Payload)
	if err != nil {
		return Entry{}, err
	}
	total, err := decimal.NewFromString(p.Total)
	if err != nil {
		return Entry{}, fmt.Errorf("total %q: %w", p.Total, err)
	}
	return Entry{
		EventID:    env.EventID,
		EventType:  env.EventType,
		UserID:     p.UserID,
		OrderID:    p.OrderID,
		Total:      total,
		ItemCount:  p.ItemCount,
		OccurredAt: env.OccurredAt,
	}, nil
}
