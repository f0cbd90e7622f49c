package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps each account as a JSONB document in the accounts table.
// The version column is authoritative; the copy inside the JSON is ignored.
type PostgresStore struct{ DB *pgxpool.Pool }

func (s *PostgresStore) Create(ctx context.Context, a *Account) error {
	d := toDocument(a)
	d.Version = 1
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	ct, err := s.DB.Exec(ctx, `
		INSERT INTO accounts(uid, document, version, created_at)
		VALUES ($1, $2, 1, $3)
		ON CONFLICT (uid) DO NOTHING`, a.UID, body, a.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAccountExists
	}
	a.Version = 1
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, uid string) (*Account, error) {
	var (
		body    []byte
		version int64
	)
	err := s.DB.QueryRow(ctx, `SELECT document, version FROM accounts WHERE uid=$1`, uid).Scan(&body, &version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("get account: %w", err)
	}
	var d document
	if err := json.Unmarshal(body, &d); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformedDocument, uid, err)
	}
	d.Version = version
	return d.toAccount()
}

func (s *PostgresStore) Replace(ctx context.Context, a *Account) error {
	d := toDocument(a)
	d.Version = a.Version + 1
	body, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode account: %w", err)
	}
	ct, err := s.DB.Exec(ctx, `
		UPDATE accounts SET document=$2, version=version+1, updated_at=now()
		WHERE uid=$1 AND version=$3`, a.UID, body, a.Version)
	if err != nil {
		return fmt.Errorf("replace account: %w", err)
	}
	if ct.RowsAffected() == 0 {
		var exists bool
		if err := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM accounts WHERE uid=$1)`, a.UID).Scan(&exists); err != nil {
			return fmt.Errorf("check account: %w", err)
		}
		if !exists {
			return ErrAccountNotFound
		}
		return ErrVersionConflict
	}
	a.Version = d.Version
	return nil
}
