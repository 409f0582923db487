package natsbridge

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"casinometrics/events"
	"casinometrics/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	args := m.Called(ctx, subject, data)
	return args.Error(0)
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	done     chan struct{}
}

func (r *recordingPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	r.mu.Lock()
	r.subjects = append(r.subjects, subject)
	r.mu.Unlock()
	r.done <- struct{}{}
	return nil
}

func TestForwardEncodesEnvelope(t *testing.T) {
	pub := new(mockPublisher)
	f := NewForwarder(pub)
	fixed := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.now = func() time.Time { return fixed }

	userID := uuid.New()
	event := events.BalanceChangeEvent{
		UserID:          userID,
		OldBalance:      decimal.RequireFromString("10.00"),
		NewBalance:      decimal.RequireFromString("5.00"),
		TransactionType: models.TransactionTypeBet,
		ChangeAmount:    decimal.RequireFromString("-5.00"),
	}

	var payload []byte
	pub.On("Publish", mock.Anything, "casino.ledger.balance_change", mock.Anything).
		Run(func(args mock.Arguments) { payload = args.Get(2).([]byte) }).
		Return(nil)

	require.NoError(t, f.Forward(context.Background(), event))
	pub.AssertExpectations(t)

	var decoded struct {
		Type       string          `json:"type"`
		OccurredAt time.Time       `json:"occurredAt"`
		Payload    json.RawMessage `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, "balance_change", decoded.Type)
	assert.True(t, fixed.Equal(decoded.OccurredAt))

	var body events.BalanceChangeEvent
	require.NoError(t, json.Unmarshal(decoded.Payload, &body))
	assert.Equal(t, userID, body.UserID)
	assert.True(t, body.NewBalance.Equal(decimal.RequireFromString("5")))
}

func TestForwardReturnsPublishError(t *testing.T) {
	pub := new(mockPublisher)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("no responders"))

	err := NewForwarder(pub).Forward(context.Background(), events.UserCreatedEvent{UserID: uuid.New()})
	assert.EqualError(t, err, "no responders")
}

func TestAttachForwardsBusEvents(t *testing.T) {
	bus := events.NewBus()
	pub := &recordingPublisher{done: make(chan struct{}, 2)}
	NewForwarder(pub).Attach(bus)

	bus.Emit(context.Background(), events.UserCreatedEvent{UserID: uuid.New()})
	bus.Emit(context.Background(), events.RiskLevelChangedEvent{UserID: uuid.New()})

	for i := 0; i < 2; i++ {
		select {
		case <-pub.done:
		case <-time.After(2 * time.Second):
			t.Fatal("event was not forwarded")
		}
	}

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.ElementsMatch(t, []string{"casino.ledger.user_created", "casino.ledger.risk_level_changed"}, pub.subjects)
}

func TestPublishRequiresConnection(t *testing.T) {
	c := NewClient("nats://localhost:4222", "")

	err := c.Publish(context.Background(), Subject(events.EventTypeUserCreated), []byte("{}"))
	assert.Error(t, err)
	assert.False(t, c.IsConnected())
	assert.NoError(t, c.Close())
}
