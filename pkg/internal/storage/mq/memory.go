package mq

import (
	"context"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/yeisme/vistoria/pkg/configs"
)

func init() {
	RegisterFactory(configs.MQTypeMemory, memoryFactory)
}

// memoryFactory 进程内 gochannel，同一个实例同时充当 Publisher 与 Subscriber.
func memoryFactory(_ context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error) {
	ch := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.Memory.OutputChannelBuffer,
		Persistent:          cfg.Memory.Persistent,
	}, logger)

	return ch, ch, nil
}

// NewMemory 创建独立的内存客户端，测试与未配置 MQ 时使用.
func NewMemory(buffer int64) *Client {
	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: buffer}, watermill.NopLogger{})

	return NewClient(configs.MQTypeMemory, ch, ch)
}
