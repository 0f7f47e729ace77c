// Package mq 提供基于 Watermill 的统一消息队列接口，承载报告生命周期事件.
//
// 支持的 MQ 类型：
//   - memory（进程内 gochannel，默认）
//   - NATS（支持 JetStream）
//   - Redis Pub/Sub
//
// 使用示例：
//
//	client, err := mq.New(ctx, &configs.GetConfig().MQ)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"relatorio_id":1}`))
//	err = client.Publish(ctx, "vs.report.approved", msg)
package mq

import (
	"context"
	"fmt"
	"sort"

	watermill "github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/components/metrics"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/yeisme/vistoria/pkg/configs"
	nlog "github.com/yeisme/vistoria/pkg/log"
)

// Factory 定义创建 Publisher + Subscriber 的工厂函数.
type Factory func(ctx context.Context, cfg *configs.MQConfig, logger watermill.LoggerAdapter) (message.Publisher, message.Subscriber, error)

var factories = map[configs.MQType]Factory{}

// RegisterFactory 注册指定 MQType 的工厂.
func RegisterFactory(t configs.MQType, f Factory) {
	factories[t] = f
}

// GetRegisteredMQTypes 返回已注册的 MQ 类型（已排序）.
func GetRegisteredMQTypes() []configs.MQType {
	types := make([]configs.MQType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// Client 封装 watermill Publisher 与 Subscriber.
type Client struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	closeFunc  func()
	kind       configs.MQType
}

// NewClient 用已有的 Publisher/Subscriber 构造客户端.
func NewClient(kind configs.MQType, pub message.Publisher, sub message.Subscriber) *Client {
	return &Client{publisher: pub, subscriber: sub, kind: kind}
}

// Kind 返回后端类型.
func (c *Client) Kind() configs.MQType {
	return c.kind
}

// Publish 便捷发布.
func (c *Client) Publish(_ context.Context, topic string, msgs ...*message.Message) error {
	if c == nil || c.publisher == nil {
		return fmt.Errorf("mq publisher not initialized")
	}

	return c.publisher.Publish(topic, msgs...)
}

// Subscribe 便捷订阅.
func (c *Client) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	if c == nil || c.subscriber == nil {
		return nil, fmt.Errorf("mq subscriber not initialized")
	}

	return c.subscriber.Subscribe(ctx, topic)
}

// Close 关闭资源.
func (c *Client) Close() error {
	var err error

	if c.router != nil {
		if e := c.router.Close(); e != nil {
			err = e
		}
	}

	if c.publisher != nil {
		if e := c.publisher.Close(); e != nil {
			err = e
		}
	}

	if c.subscriber != nil && any(c.subscriber) != any(c.publisher) {
		if e := c.subscriber.Close(); e != nil {
			err = e
		}
	}

	if c.closeFunc != nil {
		c.closeFunc()
	}

	return err
}

// New 按配置初始化消息队列.
func New(ctx context.Context, cfg *configs.MQConfig) (*Client, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported mq type: %s", cfg.Type)
	}

	logger := NewLoggerAdapter(nlog.Logger())

	pub, sub, err := factory(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("init mq (%s): %w", cfg.Type, err)
	}

	client := &Client{publisher: pub, subscriber: sub, kind: cfg.Type}

	metricsCfg := configs.GetConfig().Metrics
	if metricsCfg.Enabled && metricsCfg.RouterEndpoint != "" {
		if err := client.instrument(ctx, metricsCfg.RouterEndpoint, logger); err != nil {
			_ = client.Close()

			return nil, err
		}
	}

	nlog.Logger().Info().Str("type", string(cfg.Type)).Msg("mq initialized")

	return client, nil
}

// instrument 启动 watermill router 与独立的指标端点，并装饰 publisher/subscriber.
func (c *Client) instrument(ctx context.Context, endpoint string, logger watermill.LoggerAdapter) error {
	registry, closeMetricsServer := metrics.CreateRegistryAndServeHTTP(endpoint)
	c.closeFunc = closeMetricsServer

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return fmt.Errorf("create router: %w", err)
	}

	c.router = router

	builder := metrics.NewPrometheusMetricsBuilder(registry, configs.AppName, "mq")
	builder.AddPrometheusRouterMetrics(router)

	if c.publisher, err = builder.DecoratePublisher(c.publisher); err != nil {
		return fmt.Errorf("decorate publisher with metrics: %w", err)
	}

	if c.subscriber, err = builder.DecorateSubscriber(c.subscriber); err != nil {
		return fmt.Errorf("decorate subscriber with metrics: %w", err)
	}

	go func() {
		if runErr := router.Run(ctx); runErr != nil {
			nlog.Logger().Error().Err(runErr).Msg("router run error")
		}
	}()

	nlog.Logger().Info().Str("endpoint", endpoint).Msg("mq metrics enabled")

	return nil
}
