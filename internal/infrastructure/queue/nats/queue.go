package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/resilience"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	workerQueueGroup    = "workers"
	publishFlushTimeout = 5 * time.Second
)

// batch is the wire format of one ingestion message.
type batch struct {
	Documents []domain.DocumentDraft `json:"documents"`
}

type Queue struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *zap.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *zap.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("permit-query-assistant"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, domain.WrapError(domain.ErrTemporary, "connect nats", err)
	}
	return &Queue{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// Ping reports whether the connection is currently usable.
func (q *Queue) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return domain.WrapError(domain.ErrCancelled, "nats ping", err)
	}
	if !q.conn.IsConnected() {
		return domain.WrapError(domain.ErrTemporary, "nats ping", nats.ErrDisconnected)
	}
	return nil
}

// PublishDocuments sends the drafts as a single message. Empty batches are a
// no-op.
func (q *Queue) PublishDocuments(ctx context.Context, drafts []domain.DocumentDraft) error {
	if len(drafts) == 0 {
		return nil
	}
	payload, err := json.Marshal(batch{Documents: drafts})
	if err != nil {
		return domain.WrapError(domain.ErrInvalidArgument, "nats publish", err)
	}

	call := func(callCtx context.Context) error {
		if err := q.conn.Publish(q.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		flushCtx, cancel := context.WithTimeout(callCtx, publishFlushTimeout)
		defer cancel()
		if err := q.conn.FlushWithContext(flushCtx); err != nil {
			return fmt.Errorf("nats flush: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		if ctx.Err() != nil {
			return domain.WrapError(domain.ErrCancelled, "nats publish", err)
		}
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeDocuments blocks until ctx is done, handing every decoded batch to
// handler. Malformed messages and handler failures are logged and skipped.
func (q *Queue) SubscribeDocuments(ctx context.Context, handler func(context.Context, []domain.DocumentDraft) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, workerQueueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		var payload batch
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			q.logger.Warn("nats_message_malformed", zap.Int("bytes", len(msg.Data)), zap.Error(err))
			return
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, payload.Documents); err != nil {
			q.logger.Error("worker_handler_failed",
				zap.Int("documents", len(payload.Documents)),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	q.logger.Info("nats_subscribed", zap.String("subject", q.subject), zap.String("queue_group", workerQueueGroup))

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
