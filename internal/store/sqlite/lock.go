package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/goran-ethernal/TransferIndexor/internal/db"
	"github.com/goran-ethernal/TransferIndexor/pkg/store"
	"github.com/russross/meddler"
)

// writerLockRow is the single row of writer_lock.
type writerLockRow struct {
	ID          int64     `meddler:"id"`
	Owner       string    `meddler:"owner"`
	AcquiredAt  time.Time `meddler:"acquired_at,utctime"`
	HeartbeatAt time.Time `meddler:"heartbeat_at,utctime"`
}

// heartbeatsPerTTL is how many heartbeats fit in one lease TTL.
const heartbeatsPerTTL = 3

// writerLock is a lease on the writer_lock row. A background heartbeat keeps it alive
// for as long as the lock is held, independently of how long a tick takes.
type writerLock struct {
	s     *Store
	owner string

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// AcquireWriterLock takes the writer lease for owner. A lease whose heartbeat is older
// than the configured TTL is considered abandoned and is taken over.
func (s *Store) AcquireWriterLock(ctx context.Context, owner string) (lock store.WriterLock, err error) {
	defer s.observe("acquire_writer_lock", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, store.Wrap("begin writer lock", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Errorf("failed to rollback transaction: %v", err)
		}
	}()

	now := s.now()

	rows, err := tx.QueryContext(ctx, "SELECT * FROM writer_lock WHERE id = 1")
	if err != nil {
		return nil, store.Wrap("read writer lock", err)
	}

	var current writerLockRow
	err = meddler.ScanRow(rows, &current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return nil, store.Wrap("read writer lock", err)
	case current.Owner != owner && now.Sub(current.HeartbeatAt) < s.lockTTL:
		return nil, fmt.Errorf("%w: owner=%s last_heartbeat=%s",
			store.ErrWriterLocked, current.Owner, current.HeartbeatAt.Format(time.RFC3339))
	case current.Owner != owner:
		s.log.Warnw("taking over stale writer lock",
			"previous_owner", current.Owner,
			"last_heartbeat", current.HeartbeatAt,
		)
	}

	row := &writerLockRow{ID: 1, Owner: owner, AcquiredAt: now, HeartbeatAt: now}
	if _, err := insertRow(ctx, tx, "INSERT OR REPLACE", "writer_lock", row); err != nil {
		return nil, store.Wrap("write writer lock", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, store.Wrap("commit writer lock", err)
	}

	s.log.Infow("writer lock acquired", "owner", owner)

	l := &writerLock{
		s:     s,
		owner: owner,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	go l.heartbeatLoop(s.lockTTL / heartbeatsPerTTL)

	return l, nil
}

// heartbeatLoop refreshes the lease every interval until Release or until the lease is lost.
func (l *writerLock) heartbeatLoop(interval time.Duration) {
	defer close(l.done)

	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			err := l.Refresh(ctx)
			cancel()

			switch {
			case errors.Is(err, store.ErrWriterLocked):
				l.s.log.Errorw("writer lock heartbeat stopped", "owner", l.owner, "error", err)
				return
			case err != nil:
				l.s.log.Warnw("writer lock heartbeat failed", "owner", l.owner, "error", err)
			}
		}
	}
}

// Refresh records a heartbeat; it fails if another owner has taken the lease over.
func (l *writerLock) Refresh(ctx context.Context) (err error) {
	defer l.s.observe("refresh_writer_lock", time.Now(), &err)

	res, err := l.s.db.ExecContext(ctx,
		"UPDATE writer_lock SET heartbeat_at = ? WHERE id = 1 AND owner = ?",
		db.FormatTime(l.s.now()), l.owner)
	if err != nil {
		return store.Wrap("refresh writer lock", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return store.Wrap("refresh writer lock", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: lease of %s was lost", store.ErrWriterLocked, l.owner)
	}

	return nil
}

// Release stops the heartbeat and deletes the lease if it is still held by this owner.
func (l *writerLock) Release(ctx context.Context) (err error) {
	defer l.s.observe("release_writer_lock", time.Now(), &err)

	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done

	if _, err := l.s.db.ExecContext(ctx, "DELETE FROM writer_lock WHERE id = 1 AND owner = ?", l.owner); err != nil {
		return store.Wrap("release writer lock", err)
	}

	l.s.log.Infow("writer lock released", "owner", l.owner)
	return nil
}
