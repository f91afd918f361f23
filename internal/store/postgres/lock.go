package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/jackc/pgx/v5/pgxpool"
)

// writerLockKey identifies the indexer's session-level advisory lock ("transfer" in ASCII).
const writerLockKey int64 = 0x7472616e73666572

// writerLock holds a session advisory lock on a dedicated pool connection.
// The lock lives exactly as long as that session.
type writerLock struct {
	s     *Store
	conn  *pgxpool.Conn
	owner string
}

// AcquireWriterLock takes the advisory writer lock without waiting.
func (s *Store) AcquireWriterLock(ctx context.Context, owner string) (lock store.WriterLock, err error) {
	defer s.observe("acquire_writer_lock", time.Now(), &err)

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, store.Wrap("acquire lock connection", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", writerLockKey).Scan(&acquired); err != nil {
		conn.Release()
		return nil, store.Wrap("try advisory lock", err)
	}

	if !acquired {
		conn.Release()
		return nil, fmt.Errorf("%w: advisory lock %d is held by another session", store.ErrWriterLocked, writerLockKey)
	}

	s.log.Infow("writer lock acquired", "owner", owner)

	return &writerLock{s: s, conn: conn, owner: owner}, nil
}

// Refresh checks that the session holding the lock is still alive.
func (l *writerLock) Refresh(ctx context.Context) (err error) {
	defer l.s.observe("refresh_writer_lock", time.Now(), &err)

	if err := l.conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: lock session of %s was lost: %w", store.ErrWriterLocked, l.owner, err)
	}

	return nil
}

// Release unlocks and returns the connection to the pool.
func (l *writerLock) Release(ctx context.Context) (err error) {
	defer l.s.observe("release_writer_lock", time.Now(), &err)
	defer l.conn.Release()

	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", writerLockKey); err != nil {
		return store.Wrap("release advisory lock", err)
	}

	l.s.log.Infow("writer lock released", "owner", l.owner)
	return nil
}
