//go:build !no_nats

package mq

import (
	"context"
	"strings"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	nc "github.com/nats-io/nats.go"

	"github.com/yeisme/vistoria/pkg/configs"
)

const (
	DefaultDrainTimeout   = 30 * time.Second
	DefaultFlusherTimeout = 10 * time.Second
)

func init() {
	RegisterFactory(configs.MQTypeNATS, natsFactory)
}

func buildNatsOptions(cfg *configs.MQConfig) []nc.Option {
	common := cfg.Common

	opts := []nc.Option{
		nc.Name(common.ClientID),
		nc.MaxReconnects(common.MaxReconnects),
		nc.ReconnectWait(time.Duration(common.ReconnectWait) * time.Second),
		nc.PingInterval(time.Duration(common.PingInterval) * time.Second),
		nc.MaxPingsOutstanding(common.MaxPingsOut),
		nc.ReconnectBufSize(common.BufferSize),
		nc.DrainTimeout(DefaultDrainTimeout),
		nc.FlusherTimeout(DefaultFlusherTimeout),
		nc.RetryOnFailedConnect(true),
	}

	switch {
	case cfg.NATS.JWT != "":
		opts = append(opts, nc.UserJWTAndSeed(cfg.NATS.JWT, cfg.NATS.NKey))
	case common.User != "":
		opts = append(opts, nc.UserInfo(common.User, common.Password))
	}

	return opts
}

func buildJetStreamConfig(cfg *configs.MQConfig, logger watermill.LoggerAdapter) nats.JetStreamConfig {
	js := cfg.NATS

	jsCfg := nats.JetStreamConfig{Disabled: !js.JetStreamEnabled}
	if !js.JetStreamEnabled {
		return jsCfg
	}

	jsCfg.AutoProvision = js.JetStreamAutoProvision
	jsCfg.TrackMsgId = js.JetStreamTrackMsgID
	jsCfg.AckAsync = js.JetStreamAckAsync
	jsCfg.DurablePrefix = js.JetStreamDurablePrefix

	logger.Debug("jetstream config", watermill.LogFields{
		"auto_provision": js.JetStreamAutoProvision,
		"track_msg_id":   js.JetStreamTrackMsgID,
		"ack_async":      js.JetStreamAckAsync,
		"durable_prefix": js.JetStreamDurablePrefix,
	})

	return jsCfg
}

func buildURL(cfg *configs.MQConfig) string {
	if len(cfg.NATS.ClusterURLs) > 0 {
		return strings.Join(cfg.NATS.ClusterURLs, ",")
	}

	return cfg.Common.URL
}

// natsFactory 创建 NATS Publisher & Subscriber.
func natsFactory(
	_ context.Context,
	cfg *configs.MQConfig,
	logger watermill.LoggerAdapter) (
	message.Publisher, message.Subscriber, error) {
	opts := buildNatsOptions(cfg)
	jsCfg := buildJetStreamConfig(cfg, logger)
	marshaler := &nats.JSONMarshaler{}

	var subjectCalculator nats.SubjectCalculator
	if prefix := cfg.NATS.SubjectPrefix; prefix != "" {
		subjectCalculator = func(queueGroupPrefix, topic string) *nats.SubjectDetail {
			return nats.DefaultSubjectCalculator(queueGroupPrefix, prefix+"."+topic)
		}
	}

	pub, err := nats.NewPublisher(nats.PublisherConfig{
		URL:               buildURL(cfg),
		NatsOptions:       opts,
		JetStream:         jsCfg,
		Marshaler:         marshaler,
		SubjectCalculator: subjectCalculator,
	}, logger)
	if err != nil {
		return nil, nil, err
	}

	sub, err := nats.NewSubscriber(nats.SubscriberConfig{
		URL:               buildURL(cfg),
		NatsOptions:       opts,
		JetStream:         jsCfg,
		Unmarshaler:       marshaler,
		SubjectCalculator: subjectCalculator,
	}, logger)
	if err != nil {
		_ = pub.Close()

		return nil, nil, err
	}

	return pub, sub, nil
}
