package account

import (
	"context"
	"errors"
)

const maxUpdateAttempts = 5

// Update loads the account, lets fn mutate it and writes the whole document
// back in one conditional Replace. On a version conflict the cycle restarts
// from a fresh read. fn returning false means nothing changed and no write
// happens.
func Update(ctx context.Context, s Store, uid string, fn func(*Account) (bool, error)) (*Account, error) {
	for attempt := 1; ; attempt++ {
		a, err := s.Get(ctx, uid)
		if err != nil {
			return nil, err
		}
		changed, err := fn(a)
		if err != nil {
			return nil, err
		}
		if !changed {
			return a, nil
		}
		err = s.Replace(ctx, a)
		if err == nil {
			return a, nil
		}
		if !errors.Is(err, ErrVersionConflict) || attempt >= maxUpdateAttempts {
			return nil, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
}
