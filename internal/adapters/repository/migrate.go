package repository

import (
	"context"
	"fmt"

	"github.com/okian/league/internal/domain/model"
	"github.com/okian/league/pkg/metrics"
)

// Copy writes every snapshot of src into dst and returns the number copied.
// Existing keys in dst are overwritten; keys only in dst are left alone.
func Copy(ctx context.Context, src, dst Store) (int, error) {
	users, err := src.ListUsers(ctx)
	if err != nil {
		return 0, fmt.Errorf("list source users: %w", err)
	}
	copied := 0
	for _, u := range users {
		snaps, err := src.GetRange(ctx, u, model.MinDate, model.MaxDate)
		if err != nil {
			return copied, fmt.Errorf("read %s: %w", u, err)
		}
		for _, s := range snaps {
			if err := ctx.Err(); err != nil {
				return copied, err
			}
			if err := dst.Put(ctx, s); err != nil {
				return copied, fmt.Errorf("write %s: %w", Key{Username: s.Username, Date: s.Date}, err)
			}
			copied++
		}
	}
	metrics.RecordMigrationCopied(copied)
	return copied, nil
}

// Validate compares the full contents of both stores. It returns nil when
// every key of src is present in dst with equal fields and dst holds no other
// keys, and a *ValidationError otherwise.
func Validate(ctx context.Context, src, dst Store) error {
	want, err := dump(ctx, src)
	if err != nil {
		return fmt.Errorf("read source: %w", err)
	}
	got, err := dump(ctx, dst)
	if err != nil {
		return fmt.Errorf("read destination: %w", err)
	}

	verr := &ValidationError{}
	for _, k := range want.keys {
		d, ok := got.byKey[k]
		switch {
		case !ok:
			verr.Missing = append(verr.Missing, k)
		case !want.byKey[k].Equal(d):
			verr.Differing = append(verr.Differing, k)
		}
	}
	for _, k := range got.keys {
		if _, ok := want.byKey[k]; !ok {
			verr.Extra = append(verr.Extra, k)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

type contents struct {
	keys  []Key // ordered by user, then date
	byKey map[Key]model.Snapshot
}

func dump(ctx context.Context, st Store) (contents, error) {
	c := contents{byKey: make(map[Key]model.Snapshot)}
	users, err := st.ListUsers(ctx)
	if err != nil {
		return c, err
	}
	for _, u := range users {
		snaps, err := st.GetRange(ctx, u, model.MinDate, model.MaxDate)
		if err != nil {
			return c, err
		}
		for _, s := range snaps {
			k := Key{Username: u, Date: s.Date}
			c.keys = append(c.keys, k)
			c.byKey[k] = s
		}
	}
	return c, nil
}
