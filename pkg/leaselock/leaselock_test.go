package leaselock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type lockRow struct {
	owner   string
	expires time.Time
}

// memLocks emulates the app_locks statements.
type memLocks struct {
	mu       sync.Mutex
	rows     map[string]lockRow
	renewErr error
	renewals int
}

func newMemLocks() *memLocks {
	return &memLocks{rows: map[string]lockRow{}}
}

type row struct {
	value string
	err   error
}

func (r row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*string)) = r.value
	return nil
}

func (m *memLocks) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, token, ttl := args[0].(string), args[1].(string), time.Duration(args[2].(int64))*time.Millisecond
	now := time.Now()

	switch sql {
	case tryAcquireSQL:
		existing, ok := m.rows[key]
		if ok && existing.expires.After(now) && existing.owner != token {
			return row{err: pgx.ErrNoRows}
		}
		m.rows[key] = lockRow{owner: token, expires: now.Add(ttl)}
		return row{value: key}
	case renewSQL:
		m.renewals++
		if m.renewErr != nil {
			return row{err: m.renewErr}
		}
		existing, ok := m.rows[key]
		if !ok || existing.owner != token {
			return row{err: pgx.ErrNoRows}
		}
		m.rows[key] = lockRow{owner: token, expires: now.Add(ttl)}
		return row{value: key}
	}
	return row{err: errors.New("unexpected query")}
}

func (m *memLocks) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if sql != releaseSQL {
		return pgconn.CommandTag{}, errors.New("unexpected statement")
	}
	key, token := args[0].(string), args[1].(string)
	if r, ok := m.rows[key]; ok && r.owner == token {
		delete(m.rows, key)
	}
	return pgconn.NewCommandTag("DELETE 1"), nil
}

func (m *memLocks) steal(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[key] = lockRow{owner: "thief", expires: time.Now().Add(time.Hour)}
}

func TestAcquire_Exclusive(t *testing.T) {
	db := newMemLocks()
	c := New(db)
	ctx := context.Background()

	lease, err := c.Acquire(ctx, AutoMergeKey, Options{TTL: time.Minute, Owner: "test-"})
	require.NoError(t, err)
	assert.Contains(t, lease.Token, "test-")

	_, err = c.Acquire(ctx, AutoMergeKey, Options{TTL: time.Minute})
	assert.ErrorIs(t, err, ErrBusy)

	require.NoError(t, lease.Release(ctx))
	assert.ErrorIs(t, lease.Context().Err(), context.Canceled)

	again, err := c.Acquire(ctx, AutoMergeKey, Options{TTL: time.Minute})
	require.NoError(t, err)
	require.NoError(t, again.Release(ctx))
}

func TestAcquire_WaitsForRelease(t *testing.T) {
	db := newMemLocks()
	c := New(db)
	ctx := context.Background()

	first, err := c.Acquire(ctx, "k", Options{TTL: time.Minute})
	require.NoError(t, err)

	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = first.Release(context.Background())
	}()

	second, err := c.Acquire(ctx, "k", Options{TTL: time.Minute, Wait: true, WaitInterval: 5 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, second.Release(ctx))
}

func TestAcquire_WaitHonoursContext(t *testing.T) {
	db := newMemLocks()
	c := New(db)

	held, err := c.Acquire(context.Background(), "k", Options{TTL: time.Minute})
	require.NoError(t, err)
	defer held.Release(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Acquire(ctx, "k", Options{TTL: time.Minute, Wait: true, WaitInterval: 5 * time.Millisecond})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLease_LostCancelsContext(t *testing.T) {
	db := newMemLocks()
	c := New(db)

	lease, err := c.Acquire(context.Background(), "k", Options{TTL: 40 * time.Millisecond, RenewEvery: 10 * time.Millisecond})
	require.NoError(t, err)
	db.steal("k")

	select {
	case <-lease.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("lease context was not cancelled")
	}
	assert.ErrorIs(t, context.Cause(lease.Context()), ErrLost)
	require.NoError(t, lease.Release(context.Background()))

	db.mu.Lock()
	assert.Equal(t, "thief", db.rows["k"].owner, "release does not delete a foreign lock")
	db.mu.Unlock()
}

func TestWithLease(t *testing.T) {
	db := newMemLocks()
	c := New(db)

	ran := false
	err := c.WithLease(context.Background(), "k", Options{TTL: time.Minute}, func(ctx context.Context) error {
		ran = true
		_, err := c.Acquire(ctx, "k", Options{TTL: time.Minute})
		assert.ErrorIs(t, err, ErrBusy)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Empty(t, db.rows)
}
