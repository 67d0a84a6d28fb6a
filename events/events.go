// Package events publishes pipeline stage events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/studieren/dualstore/gormtool"
)

const (
	StatusStarted   = "started"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Event 以 stage 作为消息 key，同一阶段的事件落在同一分区
type Event struct {
	RunID  string         `json:"run_id"`
	Stage  string         `json:"stage"`
	Status string         `json:"status"`
	Counts map[string]int `json:"counts,omitempty"`
	Error  string         `json:"error,omitempty"`
	At     time.Time      `json:"at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop 未配置 broker 时使用
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	writer messageWriter
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	}}
}

// NewPublisher 返回 Kafka 发布者；brokers 为空时返回 Nop
func NewPublisher(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(brokers, topic)
}

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(e.Stage),
		Value: value,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s/%s: %w", e.Stage, e.Status, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Run 一次命令执行，事件共享同一个 run_id。
// 发布失败只记录警告，不影响阶段本身。
type Run struct {
	ID        string
	publisher Publisher
	logger    gormtool.Logger
	now       func() time.Time
}

func NewRun(publisher Publisher, logger gormtool.Logger) *Run {
	if logger == nil {
		logger = gormtool.NopLogger{}
	}
	return &Run{
		ID:        uuid.NewString(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (r *Run) emit(ctx context.Context, e Event) {
	e.RunID = r.ID
	e.At = r.now().UTC()
	if err := r.publisher.Publish(ctx, e); err != nil {
		r.logger.Warn(ctx, "事件发布失败", map[string]interface{}{
			"run_id": r.ID,
			"stage":  e.Stage,
			"error":  err.Error(),
		})
	}
}

func (r *Run) Started(ctx context.Context, stage string) {
	r.emit(ctx, Event{Stage: stage, Status: StatusStarted})
}

// Finished err 为 nil 时记为成功
func (r *Run) Finished(ctx context.Context, stage string, counts map[string]int, err error) {
	e := Event{Stage: stage, Status: StatusSucceeded, Counts: counts}
	if err != nil {
		e.Status = StatusFailed
		e.Error = err.Error()
	}
	r.emit(ctx, e)
}
