package database

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// NotifyListener turns postgres NOTIFY messages on one channel into wakeups.
type NotifyListener struct {
	url     string
	channel string
	logger  *zap.Logger
	wake    chan struct{}
}

// NewNotifyListener creates a listener for channel on the database at url
func NewNotifyListener(url, channel string, logger *zap.Logger) *NotifyListener {
	return &NotifyListener{
		url:     url,
		channel: channel,
		logger:  logger,
		wake:    make(chan struct{}, 1),
	}
}

// C delivers at most one pending wakeup; bursts collapse into one.
func (l *NotifyListener) C() <-chan struct{} {
	return l.wake
}

// Run listens until ctx is done, reconnecting after failures.
func (l *NotifyListener) Run(ctx context.Context) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := l.listen(ctx)
		if ctx.Err() != nil {
			return
		}
		l.logger.Warn("Notification listener disconnected",
			zap.String("channel", l.channel),
			zap.Duration("retry_in", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < time.Minute {
			backoff *= 2
		}
	}
}

func (l *NotifyListener) listen(ctx context.Context) error {
	conn, err := pgx.Connect(ctx, l.url)
	if err != nil {
		return err
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return err
	}
	l.logger.Info("Listening for outbox notifications", zap.String("channel", l.channel))

	for {
		if _, err := conn.WaitForNotification(ctx); err != nil {
			return err
		}
		select {
		case l.wake <- struct{}{}:
		default:
		}
	}
}
