package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"finsync/internal/domain/banksync"
	"finsync/internal/shared/logger"
)

const (
	lockPollMin = 100 * time.Millisecond
	lockPollMax = 2 * time.Second
)

// lockSession is one database session able to take session advisory locks.
type lockSession interface {
	tryLock(ctx context.Context, key string) (bool, error)
	unlock(ctx context.Context, key string) error
	discard()
	close()
}

// AdvisoryLocker serializes work per key across processes with a session
// advisory lock.
//
// Only holders pin a connection. Callers in this process queue on a local
// keyed mutex, so at most one of them polls for a given key, and each poll
// returns its connection before sleeping. The number of holders is capped at
// half the pool so they can always get a connection for their own queries.
type AdvisoryLocker struct {
	local   *banksync.LocalLocker
	slots   chan struct{}
	open    func(ctx context.Context) (lockSession, error)
	pollMin time.Duration
	pollMax time.Duration
}

func NewAdvisoryLocker(db *DB) *AdvisoryLocker {
	holders := db.Stats().MaxOpenConnections / 2
	if holders < 1 {
		// Unlimited pool.
		holders = 64
	}
	return newAdvisoryLocker(holders, func(ctx context.Context) (lockSession, error) {
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, err
		}
		return &connSession{conn: conn}, nil
	})
}

func newAdvisoryLocker(holders int, open func(ctx context.Context) (lockSession, error)) *AdvisoryLocker {
	return &AdvisoryLocker{
		local:   banksync.NewLocalLocker(),
		slots:   make(chan struct{}, holders),
		open:    open,
		pollMin: lockPollMin,
		pollMax: lockPollMax,
	}
}

// Lock blocks until the lock for key is held or ctx is done.
func (l *AdvisoryLocker) Lock(ctx context.Context, key string) (unlock func(), err error) {
	ctx, span := startSpan(ctx, "db.AdvisoryLock", "SELECT pg_try_advisory_lock")
	defer func() { endSpan(span, err) }()

	unlockLocal, err := l.local.Lock(ctx, key)
	if err != nil {
		return nil, err
	}

	delay := l.pollMin
	for {
		sess, err := l.attempt(ctx, key)
		if err != nil {
			unlockLocal()
			return nil, err
		}
		if sess != nil {
			return l.releaser(ctx, key, sess, unlockLocal), nil
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			unlockLocal()
			return nil, ctx.Err()
		}
		delay = min(delay*2, l.pollMax)
	}
}

// attempt tries the lock once. It returns a nil session, and holds nothing,
// when another session owns the key.
func (l *AdvisoryLocker) attempt(ctx context.Context, key string) (lockSession, error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	sess, err := l.open(ctx)
	if err != nil {
		<-l.slots
		return nil, fmt.Errorf("failed to get connection for lock: %w", err)
	}

	ok, err := sess.tryLock(ctx, key)
	if err != nil || !ok {
		sess.close()
		<-l.slots
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %q: %w", key, err)
		}
		return nil, nil
	}
	return sess, nil
}

func (l *AdvisoryLocker) releaser(ctx context.Context, key string, sess lockSession, unlockLocal func()) func() {
	return func() {
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := sess.unlock(uctx, key); err != nil {
			logger.FromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to release advisory lock, dropping session")
			// Discarding the connection ends the session and with it the lock.
			sess.discard()
		}
		sess.close()
		<-l.slots
		unlockLocal()
	}
}

type connSession struct {
	conn *sql.Conn
}

func (s *connSession) tryLock(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtextextended($1, 0))`, key).Scan(&ok)
	return ok, err
}

func (s *connSession) unlock(ctx context.Context, key string) error {
	_, err := s.conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtextextended($1, 0))`, key)
	return err
}

func (s *connSession) discard() {
	_ = s.conn.Raw(func(any) error { return driver.ErrBadConn })
}

func (s *connSession) close() {
	_ = s.conn.Close()
}
