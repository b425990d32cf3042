package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/ride.report/internal/ride/pipeline"
	"github.com/banshee-data/ride.report/internal/ride/verdict"
	"github.com/banshee-data/ride.report/internal/timeutil"
)

type fakeProducer struct {
	mu       sync.Mutex
	failures []error
	nack     bool
	messages []*kafka.Message
	flushed  bool
	closed   bool
	queued   int
}

func (f *fakeProducer) Produce(msg *kafka.Message, ch chan kafka.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.failures) > 0 {
		err := f.failures[0]
		f.failures = f.failures[1:]
		return err
	}
	f.messages = append(f.messages, msg)
	report := *msg
	if f.nack {
		report.TopicPartition.Error = errors.New("broker down")
	}
	ch <- &report
	return nil
}

func (f *fakeProducer) Flush(int) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushed = true
	return f.queued
}

func (f *fakeProducer) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

var at = time.Date(2026, 5, 6, 7, 8, 9, 0, time.UTC)

func sampleEvents() []CriticalEvent {
	res := &pipeline.Result{Summary: verdict.Summary{
		Verdict: verdict.Unsafe,
		CriticalEvents: []verdict.CriticalEvent{
			{FrameID: 15, TierLabel: "DANGER", Description: "distracted_riding"},
			{FrameID: 45, TierLabel: "DANGER", Description: "reactive_swerve heavy_vehicle_conflict"},
		},
	}}
	return FromResult("ride-1", "/v/a.mp4", res, at)
}

func TestFromResult(t *testing.T) {
	evs := sampleEvents()
	require.Len(t, evs, 2)
	assert.Equal(t, CriticalEvent{
		RideID: "ride-1", VideoPath: "/v/a.mp4", FrameID: 15, Tier: "DANGER",
		Description: "distracted_riding", Verdict: "UNSAFE", EmittedAt: at,
	}, evs[0])
	assert.Nil(t, FromResult("x", "y", nil, at))
}

func TestPublishAndClose(t *testing.T) {
	fp := &fakeProducer{}
	kp := newPublisher(fp, "ride.critical-events", timeutil.NewMockClock(at))

	require.NoError(t, kp.Publish(context.Background(), sampleEvents()))
	require.NoError(t, kp.Close())

	assert.True(t, fp.flushed)
	assert.True(t, fp.closed)
	require.Len(t, fp.messages, 2)
	msg := fp.messages[1]
	assert.Equal(t, "ride.critical-events", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte("ride-1"), msg.Key)
	assert.Equal(t, kafka.Header{Key: "tier", Value: []byte("DANGER")}, msg.Headers[0])

	var got CriticalEvent
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 45, got.FrameID)

	assert.Equal(t, Metrics{Sent: 2, Acked: 2}, kp.Metrics())
	assert.NoError(t, kp.Close(), "second close is a no-op")
}

func TestPublishRetriesQueueFull(t *testing.T) {
	full := kafka.NewError(kafka.ErrQueueFull, "queue full", false)
	fp := &fakeProducer{failures: []error{full, full}}
	clock := timeutil.NewMockClock(at)
	kp := newPublisher(fp, "t", clock)

	require.NoError(t, kp.Publish(context.Background(), sampleEvents()[:1]))
	require.NoError(t, kp.Close())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, clock.Sleeps())
	assert.Equal(t, int64(1), kp.Metrics().Sent)
}

func TestPublishNonRetriable(t *testing.T) {
	fp := &fakeProducer{failures: []error{kafka.NewError(kafka.ErrMsgSizeTooLarge, "too large", false)}}
	clock := timeutil.NewMockClock(at)
	kp := newPublisher(fp, "t", clock)

	err := kp.Publish(context.Background(), sampleEvents())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-retriable")
	assert.Empty(t, clock.Sleeps())
	assert.Empty(t, fp.messages, "publishing stops at the first failure")
	require.NoError(t, kp.Close())
	assert.Equal(t, Metrics{Failed: 1}, kp.Metrics())
}

func TestPublishGivesUp(t *testing.T) {
	boom := errors.New("local queue wedged")
	fp := &fakeProducer{failures: []error{boom, boom, boom, boom, boom, boom}}
	kp := newPublisher(fp, "t", timeutil.NewMockClock(at))

	err := kp.Publish(context.Background(), sampleEvents()[:1])
	assert.ErrorIs(t, err, boom)
	require.NoError(t, kp.Close())
	assert.Equal(t, int64(1), kp.Metrics().Failed)
}

func TestDeliveryFailuresCounted(t *testing.T) {
	fp := &fakeProducer{nack: true}
	kp := newPublisher(fp, "t", timeutil.NewMockClock(at))
	require.NoError(t, kp.Publish(context.Background(), sampleEvents()))
	require.NoError(t, kp.Close())
	assert.Equal(t, Metrics{Sent: 2, Failed: 2}, kp.Metrics())
}

func TestCloseReportsUnflushed(t *testing.T) {
	fp := &fakeProducer{queued: 3}
	kp := newPublisher(fp, "t", timeutil.NewMockClock(at))
	assert.Error(t, kp.Close())
}

func TestPublishCancelled(t *testing.T) {
	fp := &fakeProducer{}
	kp := newPublisher(fp, "t", timeutil.NewMockClock(at))
	defer kp.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, kp.Publish(ctx, sampleEvents()), context.Canceled)
	assert.Empty(t, fp.messages)
}

func TestNop(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), sampleEvents()))
	assert.NoError(t, p.Close())
}
