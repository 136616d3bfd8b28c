package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	cfg "github.com/salonpos/access-service/internal/config"
	"github.com/salonpos/access-service/internal/util/logger"
)

// ESAuditShipper bulk-indexes access audit events into daily Elasticsearch
// indices (door-audit-YYYY.MM.DD). It batches in memory and drops on
// backpressure; the database remains the source of truth.
type ESAuditShipper struct {
	cfg   cfg.ElasticAuditConfig
	http  *http.Client
	ch    chan any
	wg    sync.WaitGroup
	stop  chan struct{}
	index func(time.Time) string
}

func NewESAuditShipper(cfgIn cfg.ElasticAuditConfig) *ESAuditShipper {
	c := cfgIn
	if c.IndexPrefix == "" {
		c.IndexPrefix = "door-audit"
	}
	if c.FlushSize <= 0 {
		c.FlushSize = 500
	}
	if c.FlushEvery <= 0 {
		c.FlushEvery = 2 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 5 * time.Second
	}
	return &ESAuditShipper{
		cfg:  c,
		http: &http.Client{Timeout: c.Timeout},
		ch:   make(chan any, c.FlushSize*4),
		stop: make(chan struct{}),
		index: func(t time.Time) string {
			return fmt.Sprintf("%s-%04d.%02d.%02d", c.IndexPrefix, t.Year(), int(t.Month()), t.Day())
		},
	}
}

func (s *ESAuditShipper) Start() {
	if !s.cfg.Enabled {
		return
	}
	s.wg.Add(1)
	go s.loop()
}

func (s *ESAuditShipper) Stop(ctx context.Context) {
	if !s.cfg.Enabled {
		return
	}
	close(s.stop)
	done := make(chan struct{})
	go func() { s.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

func (s *ESAuditShipper) Publish(ev any) {
	if !s.cfg.Enabled {
		return
	}
	select {
	case s.ch <- ev:
	default:
		// drop on backpressure
	}
}

func (s *ESAuditShipper) loop() {
	defer s.wg.Done()
	ticker := time.NewTicker(s.cfg.FlushEvery)
	defer ticker.Stop()

	batch := make([]any, 0, s.cfg.FlushSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.bulkIndex(batch); err != nil {
			logger.Error("Elastic audit bulk index failed (%d events): %v", len(batch), err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev := <-s.ch:
			batch = append(batch, ev)
			if len(batch) >= s.cfg.FlushSize {
				flush()
			}
		case <-ticker.C:
			flush()
		case <-s.stop:
			flush()
			return
		}
	}
}

func (s *ESAuditShipper) bulkIndex(batch []any) error {
	var buf bytes.Buffer
	now := time.Now().UTC()
	for _, ev := range batch {
		doc := map[string]any{}
		b, err := json.Marshal(ev)
		if err != nil {
			continue
		}
		_ = json.Unmarshal(b, &doc)
		if _, ok := doc["@timestamp"]; !ok {
			doc["@timestamp"] = now
		}

		meta, _ := json.Marshal(map[string]any{"index": map[string]any{"_index": s.index(now)}})
		buf.Write(meta)
		buf.WriteByte('\n')
		db, _ := json.Marshal(doc)
		buf.Write(db)
		buf.WriteByte('\n')
	}

	req, err := http.NewRequest(http.MethodPost, s.cfg.Endpoint+"/_bulk", &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if s.cfg.APIKey != "" {
		req.Header.Set("Authorization", "ApiKey "+s.cfg.APIKey)
	} else if s.cfg.Username != "" || s.cfg.Password != "" {
		req.SetBasicAuth(s.cfg.Username, s.cfg.Password)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("bulk index: status %d", resp.StatusCode)
	}
	return nil
}
