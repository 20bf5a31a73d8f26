package outputs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/metrics"
	"github.com/sentinelhq/sentinel/pkg/types"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaOutput publishes every event, keyed by source address so that the
// events of one attacker stay ordered within a partition.
type KafkaOutput struct {
	topic  string
	writer messageWriter
	logger *log.Entry
}

func NewKafkaOutput(cfg *csconfig.KafkaOutputCfg, logger *log.Entry) *KafkaOutput {
	if logger == nil {
		logger = log.StandardLogger().WithField("output", "kafka")
	}

	o := &KafkaOutput{
		topic:  cfg.Topic,
		logger: logger,
	}

	o.writer = &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeoutDuration,
		WriteTimeout: cfg.WriteTimeoutDuration,
		RequiredAcks: kafka.RequireOne,
		// the dispatcher must not wait for a batch to fill
		Async:      true,
		Completion: o.completion,
	}

	return o
}

func (*KafkaOutput) Name() string { return "kafka" }

func (o *KafkaOutput) OnEvent(ctx context.Context, evt *types.AttackEvent) error {
	msg, err := eventMessage(evt)
	if err != nil {
		return err
	}

	return o.writer.WriteMessages(ctx, msg)
}

func (o *KafkaOutput) completion(msgs []kafka.Message, err error) {
	if err == nil {
		return
	}

	metrics.SubscriberFailures.WithLabelValues(o.Name()).Add(float64(len(msgs)))
	o.logger.Warningf("unable to publish %d event(s) to %s: %s", len(msgs), o.topic, err)
}

func (o *KafkaOutput) Close() error {
	return o.writer.Close()
}

func eventMessage(evt *types.AttackEvent) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal event %d: %w", evt.ID, err)
	}

	return kafka.Message{
		Key:   []byte(evt.SourceIP),
		Value: value,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(evt.Type.String())},
			{Key: "severity", Value: []byte(evt.Severity.String())},
			{Key: "target_port", Value: []byte(strconv.Itoa(evt.TargetPort))},
		},
	}, nil
}
