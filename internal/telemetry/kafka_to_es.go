package telemetry

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	cfg "github.com/salonpos/access-service/internal/config"
	"github.com/salonpos/access-service/internal/util/logger"
)

// KafkaToES bridges the access audit topic into Elasticsearch. It runs
// in-process only for single-box deployments; larger installs run the same
// bridge as a separate consumer so indexing never competes with the door
// pipeline.
type KafkaToES struct {
	kcfg cfg.KafkaAuditConfig
	es   *ESAuditShipper
}

func NewKafkaToES(kcfg cfg.KafkaAuditConfig, esCfg cfg.ElasticAuditConfig) *KafkaToES {
	return &KafkaToES{
		kcfg: kcfg,
		es:   NewESAuditShipper(esCfg),
	}
}

func (k *KafkaToES) Start(ctx context.Context) {
	if !k.kcfg.Enabled || !k.es.cfg.Enabled || k.kcfg.TopicAccess == "" {
		return
	}
	k.es.Start()
	go k.consume(ctx, k.kcfg.TopicAccess)
}

// Stop flushes the indexer; the kafka reader exits when the context passed
// to Start is cancelled.
func (k *KafkaToES) Stop(ctx context.Context) {
	k.es.Stop(ctx)
}

func (k *KafkaToES) consume(ctx context.Context, topic string) {
	reader := kafka.NewReader(k.readerConfig(topic))
	defer func() { _ = reader.Close() }()

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("Audit bridge read error topic=%s: %v", topic, err)
			select {
			case <-time.After(500 * time.Millisecond):
			case <-ctx.Done():
				return
			}
			continue
		}

		var ev map[string]any
		if err := json.Unmarshal(m.Value, &ev); err != nil {
			logger.Warn("Audit bridge dropped bad event topic=%s offset=%d: %v", topic, m.Offset, err)
			continue
		}
		if _, ok := ev["@timestamp"]; !ok {
			ev["@timestamp"] = time.Now().UTC()
		}
		k.es.Publish(ev)
	}
}

func (k *KafkaToES) readerConfig(topic string) kafka.ReaderConfig {
	minBytes := k.kcfg.MinBytes
	if minBytes <= 0 {
		minBytes = 10_000
	}
	maxBytes := k.kcfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 10_000_000
	}
	maxWait := k.kcfg.FlushEvery
	if maxWait <= 0 {
		maxWait = time.Second
	}
	group := k.kcfg.GroupID
	if group == "" {
		group = "door-audit-indexer"
	}
	return kafka.ReaderConfig{
		Brokers:  k.kcfg.Brokers,
		GroupID:  group,
		Topic:    topic,
		MinBytes: minBytes,
		MaxBytes: maxBytes,
		MaxWait:  maxWait,
	}
}
