// Package leaselock provides expiring locks stored in the app_locks table.
//
// A lease is renewed in the background while it is held. Losing the lease
// cancels the context handed to the protected function, so long running
// jobs such as auto-merge stop at their next transaction boundary instead
// of racing a second holder.
package leaselock

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/OFFIS-RIT/storyweb/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// AutoMergeKey guards auto-merge runs across workers and the CLI.
const AutoMergeKey = "storyweb:auto-merge"

var (
	ErrBusy = errors.New("lease lock busy")
	ErrLost = errors.New("lease lock lost")
)

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Client struct {
	db DB
}

type Options struct {
	TTL        time.Duration
	RenewEvery time.Duration

	// Wait keeps polling until the lock is free or ctx ends. Without it
	// Acquire fails fast with ErrBusy.
	Wait         bool
	WaitInterval time.Duration
	WaitJitter   time.Duration

	// Owner is prepended to the random token to make holders recognisable
	// in the table, e.g. "worker-".
	Owner string
}

func (o Options) normalize() Options {
	if o.TTL <= 0 {
		o.TTL = 5 * time.Minute
	}
	if o.TTL < time.Millisecond {
		o.TTL = time.Millisecond
	}
	if o.RenewEvery <= 0 || o.RenewEvery >= o.TTL {
		o.RenewEvery = max(o.TTL/2, time.Millisecond)
	}
	if o.WaitInterval <= 0 {
		o.WaitInterval = 250 * time.Millisecond
	}
	o.WaitJitter = max(o.WaitJitter, 0)
	return o
}

type Lease struct {
	Key   string
	Token string

	ctx    context.Context
	cancel context.CancelCauseFunc
	client *Client
	ttlMs  int64

	stopOnce sync.Once
	stopped  chan struct{}
	done     chan struct{}
}

func New(db DB) *Client {
	return &Client{db: db}
}

// WithLease runs fn while holding key. The context passed to fn is cancelled
// with ErrLost if the lease cannot be renewed.
func (c *Client) WithLease(ctx context.Context, key string, opts Options, fn func(ctx context.Context) error) error {
	lease, err := c.Acquire(ctx, key, opts)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("[Lease] Failed to release lock", "key", key, "err", err)
		}
	}()
	return fn(lease.Context())
}

func (c *Client) Acquire(ctx context.Context, key string, opts Options) (*Lease, error) {
	if key == "" {
		return nil, errors.New("lease lock key is empty")
	}
	opts = opts.normalize()

	id, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create lease token: %w", err)
	}
	token := opts.Owner + id
	ttlMs := opts.TTL.Milliseconds()

	for {
		ok, err := c.tryAcquire(ctx, key, token, ttlMs)
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		if !opts.Wait {
			return nil, ErrBusy
		}
		if err := sleep(ctx, opts.WaitInterval, opts.WaitJitter); err != nil {
			return nil, err
		}
	}

	leaseCtx, cancel := context.WithCancelCause(ctx)
	l := &Lease{
		Key:     key,
		Token:   token,
		ctx:     leaseCtx,
		cancel:  cancel,
		client:  c,
		ttlMs:   ttlMs,
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go l.keepAlive(opts.RenewEvery)

	logger.Debug("[Lease] Acquired lock", "key", key, "token", token, "ttl", opts.TTL)
	return l, nil
}

func (c *Client) tryAcquire(ctx context.Context, key, token string, ttlMs int64) (bool, error) {
	var returned string
	err := c.db.QueryRow(ctx, tryAcquireSQL, key, token, ttlMs).Scan(&returned)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", key, err)
	}
	return returned != "", nil
}

// Context is cancelled when the lease is released or lost.
func (l *Lease) Context() context.Context {
	return l.ctx
}

// Release stops renewal and deletes the lock row if this lease still owns
// it. It waits for the renew goroutine to exit.
func (l *Lease) Release(ctx context.Context) error {
	l.stopOnce.Do(func() {
		close(l.stopped)
		l.cancel(context.Canceled)
	})
	<-l.done

	if _, err := l.client.db.Exec(ctx, releaseSQL, l.Key, l.Token); err != nil {
		return fmt.Errorf("failed to release lock %s: %w", l.Key, err)
	}
	return nil
}

func (l *Lease) keepAlive(every time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopped:
			return
		case <-l.ctx.Done():
			return
		case <-ticker.C:
			if err := l.renew(); err != nil {
				logger.Warn("[Lease] Lost lock", "key", l.Key, "err", err)
				l.cancel(err)
				return
			}
		}
	}
}

func (l *Lease) renew() error {
	const attempts = 3
	var err error
	for attempt := range attempts {
		renewCtx, cancel := context.WithTimeout(l.ctx, 15*time.Second)
		var returned string
		err = l.client.db.QueryRow(renewCtx, renewSQL, l.Key, l.Token, l.ttlMs).Scan(&returned)
		cancel()
		if err == nil {
			return nil
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrLost
		}
		if attempt == attempts-1 {
			break
		}
		if err := sleep(l.ctx, 200*time.Millisecond, 0); err != nil {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrLost, err)
}

func sleep(ctx context.Context, base, jitter time.Duration) error {
	d := base
	if jitter > 0 {
		d += time.Duration(rand.Int64N(int64(jitter) + 1))
	}
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

const tryAcquireSQL = `
INSERT INTO app_locks (lock_key, locked_by, expires_at)
VALUES ($1, $2, now() + ($3::bigint * interval '1 millisecond'))
ON CONFLICT (lock_key) DO UPDATE
SET locked_by  = EXCLUDED.locked_by,
    expires_at = EXCLUDED.expires_at
WHERE app_locks.expires_at < now()
   OR app_locks.locked_by = EXCLUDED.locked_by
RETURNING lock_key;
`

const renewSQL = `
UPDATE app_locks
SET expires_at = now() + ($3::bigint * interval '1 millisecond')
WHERE lock_key = $1 AND locked_by = $2
RETURNING lock_key;
`

const releaseSQL = `
DELETE FROM app_locks
WHERE lock_key = $1 AND locked_by = $2;
`
