package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Domenick1991/courtbooking/internal/domain"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockWriter struct {
	mock.Mock
}

func (m *MockWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	args := m.Called(ctx, msgs)
	return args.Error(0)
}

func (m *MockWriter) Close() error {
	return m.Called().Error(0)
}

type stubReader struct {
	messages []kafka.Message
	closed   bool
}

func (r *stubReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		return kafka.Message{}, context.Canceled
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *stubReader) Close() error {
	r.closed = true
	return nil
}

func TestProducer_Publish(t *testing.T) {
	writer := &MockWriter{}
	producer := newProducer(writer, nil)
	ctx := context.Background()

	writer.On("WriteMessages", ctx, mock.MatchedBy(func(msgs []kafka.Message) bool {
		return len(msgs) == 1 && msgs[0].Topic == "availability" && string(msgs[0].Key) == "v1/2025-06-02"
	})).Return(nil).Once()

	err := producer.Publish(ctx, "availability", AvailabilityKey("v1", "2025-06-02"), domain.SlotChange{VenueID: "v1", Date: "2025-06-02", Time: "10:00"})
	assert.NoError(t, err)
	writer.AssertExpectations(t)
}

func TestProducer_PublishErrors(t *testing.T) {
	writer := &MockWriter{}
	producer := newProducer(writer, nil)
	ctx := context.Background()

	err := producer.Publish(ctx, "t", "k", func() {})
	assert.ErrorContains(t, err, "marshal")

	writer.On("WriteMessages", ctx, mock.Anything).Return(errors.New("broker down"))
	err = producer.PublishWithRetry(ctx, "t", "k", map[string]string{"a": "b"}, 1)
	assert.ErrorContains(t, err, "failed after 1 retries")
}

func TestProducer_Close(t *testing.T) {
	writer := &MockWriter{}
	writer.On("Close").Return(nil).Once()
	assert.NoError(t, newProducer(writer, nil).Close())
	writer.AssertExpectations(t)
}

func TestConsumer_SkipsFailedMessages(t *testing.T) {
	reader := &stubReader{messages: []kafka.Message{{Value: []byte("bad")}, {Value: []byte("good")}}}
	consumer := newConsumer(reader, nil)

	var handled []string
	err := consumer.Consume(context.Background(), func(_ context.Context, msg kafka.Message) error {
		handled = append(handled, string(msg.Value))
		if string(msg.Value) == "bad" {
			return errors.New("cannot decode")
		}
		return nil
	})

	assert.NoError(t, err)
	assert.Equal(t, []string{"bad", "good"}, handled)

	require.NoError(t, consumer.Close())
	assert.True(t, reader.closed)
}

func TestNewBookingEvent(t *testing.T) {
	attempt := &domain.BookingAttempt{
		ID:        "a1",
		VenueID:   "v1",
		Date:      "2025-06-02",
		StartTime: "10:00",
		CourtName: "Court 1",
		Email:     "u1@example.com",
		Status:    domain.AttemptStatusConflicted,
		Conflict:  &domain.BookingConflict{Type: domain.ConflictDoubleBooking},
	}

	event := NewBookingEvent(EventBookingConflicted, attempt)
	assert.Equal(t, "CONFLICTED", event.Status)
	assert.Equal(t, "double-booking", event.ConflictType)
	assert.False(t, event.At.IsZero())

	data, err := json.Marshal(event)
	require.NoError(t, err)
	decoded, err := DecodeBookingEvent(kafka.Message{Value: data})
	require.NoError(t, err)
	assert.Equal(t, event.AttemptID, decoded.AttemptID)
}

func TestDecodeSlotChange(t *testing.T) {
	_, err := DecodeSlotChange(kafka.Message{Value: []byte(`{"time":"10:00"}`)})
	assert.Error(t, err)

	_, err = DecodeSlotChange(kafka.Message{Value: []byte(`not json`)})
	assert.Error(t, err)

	change, err := DecodeSlotChange(kafka.Message{Value: []byte(`{"venue_id":"v1","date":"2025-06-02","time":"10:00","available":false,"booked_by":["u1"]}`)})
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, change.BookedBy)
}
