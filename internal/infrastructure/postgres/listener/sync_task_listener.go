package listener

import (
	"context"
	"time"

	"github.com/lib/pq"

	"finsync/internal/shared/logger"
)

const (
	reconnectInterval = 5 * time.Second
	pingInterval      = 90 * time.Second
)

// WakeFunc is called with the payload of each notification. It must not
// block.
type WakeFunc func(payload string)

// Listener wakes the task worker whenever a row is enqueued on channel.
type Listener struct {
	connStr    string
	channel    string
	wake       WakeFunc
	shutdownCh chan struct{}
	done       chan struct{}
}

func New(connStr, channel string, wake WakeFunc) *Listener {
	return &Listener{
		connStr:    connStr,
		channel:    channel,
		wake:       wake,
		shutdownCh: make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start listens in a background goroutine until Stop or ctx is done.
func (l *Listener) Start(ctx context.Context) {
	go l.listen(ctx)
	logger.FromContext(ctx).Info().Str("channel", l.channel).Msg("notification listener started")
}

func (l *Listener) Stop() {
	close(l.shutdownCh)
	<-l.done
}

func (l *Listener) listen(ctx context.Context) {
	defer close(l.done)
	log := logger.FromContext(ctx)

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		default:
			l.connectAndListen(ctx)
		}

		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(reconnectInterval):
			log.Info().Str("channel", l.channel).Msg("reconnecting notification listener")
		}
	}
}

func (l *Listener) connectAndListen(ctx context.Context) {
	log := logger.FromContext(ctx).With().Str("channel", l.channel).Logger()

	pl := pq.NewListener(l.connStr, 10*time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnected:
			log.Debug().Msg("listener connected")
		case pq.ListenerEventDisconnected:
			log.Warn().Err(err).Msg("listener disconnected")
		case pq.ListenerEventReconnected:
			log.Info().Msg("listener reconnected")
			// Notifications sent while disconnected are lost.
			l.wake("")
		case pq.ListenerEventConnectionAttemptFailed:
			log.Warn().Err(err).Msg("listener connection attempt failed")
		}
	})
	defer pl.Close()

	if err := pl.Listen(l.channel); err != nil {
		log.Error().Err(err).Msg("failed to listen")
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.shutdownCh:
			return
		case <-ctx.Done():
			return
		case n, ok := <-pl.Notify:
			if !ok {
				return
			}
			if n == nil {
				// Reconnect event; the callback already woke the worker.
				continue
			}
			log.Debug().Str("payload", n.Extra).Msg("notification received")
			l.wake(n.Extra)
		case <-ticker.C:
			go func() {
				if err := pl.Ping(); err != nil {
					log.Warn().Err(err).Msg("listener ping failed")
				}
			}()
		}
	}
}
