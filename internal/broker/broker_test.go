package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmslzr/kafka-gateway/internal/testutil"
)

func TestUserTopicName(t *testing.T) {
	assert.Equal(t, "user_abc-123_events", UserTopicName("abc-123"))
}

func TestProjectTopicName(t *testing.T) {
	assert.Equal(t, "project_abc-123_events", ProjectTopicName("abc-123"))
}

// TestBrokerTopicLifecycleRoundTrip exercises Dial, CreateTopic (including
// the already-exists path), ProduceBatch and DeleteTopic against a real
// broker, skipped unless TEST_KAFKA_BOOTSTRAP_SERVERS is set.
func TestBrokerTopicLifecycleRoundTrip(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	b := testutil.OpenTestBroker(t)

	topic := "broker_test_roundtrip"
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	err := b.CreateTopic(ctx, topic)
	if err != nil {
		require.ErrorIs(t, err, ErrTopicAlreadyExists)
	}

	// Creating it again must report the already-exists sentinel rather
	// than a generic admin error.
	err = b.CreateTopic(ctx, topic)
	require.ErrorIs(t, err, ErrTopicAlreadyExists)

	require.NoError(t, b.ProduceBatch(ctx, topic, [][]byte{[]byte(`{"hello":"world"}`)}))

	require.NoError(t, b.DeleteTopic(ctx, topic))
}
