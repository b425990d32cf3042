package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"

	"github.com/banshee-data/ride.report/internal/timeutil"
)

// producer is the subset of *kafka.Producer the publisher needs.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// Metrics counts publisher outcomes.
type Metrics struct {
	Sent   int64 `json:"sent"`
	Acked  int64 `json:"acked"`
	Failed int64 `json:"failed"`
}

// KafkaPublisher produces critical events to a single topic.
type KafkaPublisher struct {
	producer     producer
	topic        string
	deliveryChan chan kafka.Event
	clock        timeutil.Clock

	sent   atomic.Int64
	acked  atomic.Int64
	failed atomic.Int64

	wg          sync.WaitGroup
	closeOnce   sync.Once
	maxRetries  int
	baseBackoff time.Duration
	flushTime   time.Duration
}

// NewKafkaPublisher connects a producer to brokers (comma separated).
func NewKafkaPublisher(brokers, topic string) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":   brokers,
		"acks":                "all",
		"enable.idempotence":  true,
		"compression.type":    "lz4",
		"linger.ms":           20,
		"request.timeout.ms":  30000,
		"delivery.timeout.ms": 120000,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}
	diagf("kafka producer ready: topic=%s brokers=%s", topic, brokers)
	return newPublisher(p, topic, timeutil.RealClock{}), nil
}

func newPublisher(p producer, topic string, clock timeutil.Clock) *KafkaPublisher {
	kp := &KafkaPublisher{
		producer:     p,
		topic:        topic,
		deliveryChan: make(chan kafka.Event, 1024),
		clock:        clock,
		maxRetries:   5,
		baseBackoff:  100 * time.Millisecond,
		flushTime:    10 * time.Second,
	}
	kp.wg.Add(1)
	go kp.handleDeliveryReports()
	return kp
}

func (kp *KafkaPublisher) handleDeliveryReports() {
	defer kp.wg.Done()
	for e := range kp.deliveryChan {
		m, ok := e.(*kafka.Message)
		if !ok {
			continue
		}
		if m.TopicPartition.Error != nil {
			kp.failed.Add(1)
			opsf("delivery failed for ride %s: %v", m.Key, m.TopicPartition.Error)
			continue
		}
		kp.acked.Add(1)
	}
}

// Publish queues every event, retrying transient producer errors with
// exponential backoff. It stops at the first event that cannot be queued.
func (kp *KafkaPublisher) Publish(ctx context.Context, evs []CriticalEvent) error {
	for _, ev := range evs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := kp.send(ev); err != nil {
			return err
		}
	}
	if len(evs) > 0 {
		diagf("queued %d critical events for ride %s", len(evs), evs[0].RideID)
	}
	return nil
}

func (kp *KafkaPublisher) send(ev CriticalEvent) error {
	payload, err := ev.Payload()
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	msg := &kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &kp.topic, Partition: kafka.PartitionAny},
		Key:            ev.Key(),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "tier", Value: []byte(ev.Tier)},
			{Key: "verdict", Value: []byte(ev.Verdict)},
		},
	}

	var lastErr error
	for attempt := 0; attempt <= kp.maxRetries; attempt++ {
		if attempt > 0 {
			kp.clock.Sleep(kp.baseBackoff * time.Duration(1<<uint(attempt-1)))
		}
		err := kp.producer.Produce(msg, kp.deliveryChan)
		if err == nil {
			kp.sent.Add(1)
			return nil
		}
		lastErr = err
		var kerr kafka.Error
		if errors.As(err, &kerr) && kerr.Code() != kafka.ErrQueueFull && !kerr.IsRetriable() {
			kp.failed.Add(1)
			return fmt.Errorf("non-retriable produce error: %w", err)
		}
		opsf("produce attempt %d for frame %d failed: %v", attempt+1, ev.FrameID, err)
	}
	kp.failed.Add(1)
	return fmt.Errorf("failed after %d retries: %w", kp.maxRetries, lastErr)
}

// Metrics returns a snapshot of the counters.
func (kp *KafkaPublisher) Metrics() Metrics {
	return Metrics{Sent: kp.sent.Load(), Acked: kp.acked.Load(), Failed: kp.failed.Load()}
}

// Close flushes queued messages, closes the producer and waits for the
// remaining delivery reports.
func (kp *KafkaPublisher) Close() error {
	var remaining int
	kp.closeOnce.Do(func() {
		remaining = kp.producer.Flush(int(kp.flushTime.Milliseconds()))
		kp.producer.Close()
		close(kp.deliveryChan)
		kp.wg.Wait()
		m := kp.Metrics()
		diagf("kafka producer closed: sent=%d acked=%d failed=%d", m.Sent, m.Acked, m.Failed)
	})
	if remaining > 0 {
		return fmt.Errorf("%d messages still queued after flush", remaining)
	}
	return nil
}
