package kafka

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBookingEvent(t *testing.T) {
	start := time.Date(2026, 10, 20, 14, 0, 0, 0, time.UTC)
	prev := start.Add(-24 * time.Hour)
	payload, err := json.Marshal(BookingEvent{
		Type:          EventBookingRescheduled,
		Code:          "VCP-ABCD1234",
		Start:         start,
		End:           start.Add(time.Hour),
		PreviousStart: &prev,
	})
	require.NoError(t, err)

	ev, err := DecodeBookingEvent(kafka.Message{Value: payload})
	require.NoError(t, err)
	assert.Equal(t, EventBookingRescheduled, ev.Type)
	assert.Equal(t, "VCP-ABCD1234", ev.Code)
	assert.True(t, ev.Start.Equal(start))
	require.NotNil(t, ev.PreviousStart)
	assert.True(t, ev.PreviousStart.Equal(prev))
}

func TestDecodeBookingEvent_Malformed(t *testing.T) {
	_, err := DecodeBookingEvent(kafka.Message{Value: []byte("{"), Offset: 42})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "offset 42")
}
