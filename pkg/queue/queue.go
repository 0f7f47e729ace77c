// Package queue 定义报告生命周期事件的主题、负载与 watermill 消息编解码.
//
// 消息体为 JSON（bytedance/sonic）：
//
//	{
//	  "header": {
//	    "id": "2f1c…",
//	    "topic": "vs.report.approved",
//	    "key": "7",
//	    "producer": "vistoria",
//	    "occurred_at": "2025-01-02T03:04:05.123456Z",
//	    "version": "v1"
//	  },
//	  "payload": {"report": {"relatorio_id": 7, "numero": "P001-R003", "projeto_id": 1}, "from": "aguardando_aprovacao", "to": "aprovado"}
//	}
//
// header.id 与 watermill 消息 UUID 相同，可用于幂等消费；occurred_at 为 UTC；消费者应忽略未知字段.
package queue

import (
	"time"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/bytedance/sonic"
)

// PayloadVersionV1 当前负载版本.
const PayloadVersionV1 = "v1"

// HeaderOption 修改事件头.
type HeaderOption func(*EventHeader)

// WithTraceID 关联发布时的 trace.
func WithTraceID(id string) HeaderOption { return func(h *EventHeader) { h.TraceID = id } }

// WithProducer 设置发布方.
func WithProducer(p string) HeaderOption { return func(h *EventHeader) { h.Producer = p } }

// WithKey 设置分区键.
func WithKey(k string) HeaderOption { return func(h *EventHeader) { h.Key = k } }

// Encode 将消息封装为 JSON.
func Encode[T any](msg Message[T]) ([]byte, error) { return sonic.Marshal(msg) }

// Decode 从 JSON 解码消息.
func Decode[T any](b []byte) (Message[T], error) {
	var m Message[T]

	err := sonic.Unmarshal(b, &m)

	return m, err
}

// NewWatermillMessage 构造 watermill 消息；头部字段同时写入 metadata，便于不解包路由.
func NewWatermillMessage[T any](topic string, payload T, opts ...HeaderOption) (*message.Message, error) {
	header := EventHeader{
		ID:         watermill.NewUUID(),
		Topic:      topic,
		OccurredAt: time.Now().UTC(),
		Version:    PayloadVersionV1,
	}

	for _, opt := range opts {
		opt(&header)
	}

	data, err := Encode(Message[T]{Header: header, Payload: payload})
	if err != nil {
		return nil, err
	}

	msg := message.NewMessage(header.ID, data)

	for k, v := range map[string]string{
		"topic":       topic,
		"key":         header.Key,
		"trace_id":    header.TraceID,
		"producer":    header.Producer,
		"occurred_at": header.OccurredAt.Format(time.RFC3339Nano),
		"version":     header.Version,
	} {
		if v != "" {
			msg.Metadata.Set(k, v)
		}
	}

	return msg, nil
}

// ParseWatermillMessage 解出泛型负载.
func ParseWatermillMessage[T any](msg *message.Message) (Message[T], error) {
	return Decode[T](msg.Payload)
}
