package queue

import (
	"context"
	"strconv"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/vistoria/pkg/log"
)

// Publisher 发布端的最小接口，*mq.Client 满足它.
type Publisher interface {
	Publish(ctx context.Context, topic string, msgs ...*message.Message) error
}

// Events 报告事件发布器；disabled 或 pub 为 nil 时所有发布都是空操作.
// 发布失败只记录 warn，不影响调用方.
type Events struct {
	pub      Publisher
	enabled  bool
	producer string
	logger   zerolog.Logger
}

// NewEvents 创建事件发布器.
func NewEvents(pub Publisher, enabled bool, producer string) *Events {
	return &Events{
		pub:      pub,
		enabled:  enabled && pub != nil,
		producer: producer,
		logger:   log.Component("events"),
	}
}

// Enabled reports whether events are actually published.
func (e *Events) Enabled() bool {
	return e != nil && e.enabled
}

// PublishReport 发布状态类事件.
func (e *Events) PublishReport(ctx context.Context, topic string, payload ReportEventPayload) {
	publish(ctx, e, topic, payload.Report, payload)
}

// PublishDispatched 发布 vs.report.dispatched.
func (e *Events) PublishDispatched(ctx context.Context, payload DispatchPayload) {
	publish(ctx, e, TopicReportDispatched, payload.Report, payload)
}

func publish[T any](ctx context.Context, e *Events, topic string, ref ReportRef, payload T) {
	if !e.Enabled() {
		return
	}

	opts := []HeaderOption{WithProducer(e.producer), WithKey(strconv.FormatUint(uint64(ref.RelatorioID), 10))}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		opts = append(opts, WithTraceID(sc.TraceID().String()))
	}

	msg, err := NewWatermillMessage(topic, payload, opts...)
	if err != nil {
		e.logger.Warn().Err(err).Str("topic", topic).Msg("encode event failed")

		return
	}

	if err := e.pub.Publish(ctx, topic, msg); err != nil {
		e.logger.Warn().Err(err).Str("topic", topic).Msg("publish event failed")
	}
}
