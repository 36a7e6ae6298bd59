package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// fakeTx only implements the parts of pgx.Tx the relay touches
type fakeTx struct {
	pgx.Tx
	committed bool
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	return nil
}

type fakeTxManager struct {
	tx *fakeTx
}

func (m *fakeTxManager) BeginTx(ctx context.Context) (pgx.Tx, error) {
	return m.tx, nil
}

type MockOutboxRepository struct {
	mock.Mock
}

func (m *MockOutboxRepository) GetPendingEvents(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEvent, error) {
	args := m.Called(ctx, tx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*OutboxEvent), args.Error(1)
}

func (m *MockOutboxRepository) UpdateEventStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status OutboxStatus) error {
	args := m.Called(ctx, tx, id, status)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, exchange, routingKey string, body []byte) error {
	args := m.Called(ctx, exchange, routingKey, body)
	return args.Error(0)
}

func newTestRelay(repo OutboxRepository, pub EventPublisher, tx *fakeTx) *OutboxRelay {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewOutboxRelay(repo, pub, &fakeTxManager{tx: tx}, 10, time.Second, ExchangeAuctionEvents, logger)
}

func TestOutboxRelay_ProcessBatch_PublishesAndMarks(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{}
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)

	first := NewOutboxEvent(uuid.New(), uuid.New(), "bid.placed", []byte("a"), time.Now())
	second := NewOutboxEvent(uuid.New(), uuid.New(), "auction.closed", []byte("b"), time.Now())

	repo.On("GetPendingEvents", ctx, tx, 10).Return([]*OutboxEvent{first, second}, nil)
	pub.On("Publish", ctx, ExchangeAuctionEvents, "bid.placed", []byte("a")).Return(nil)
	pub.On("Publish", ctx, ExchangeAuctionEvents, "auction.closed", []byte("b")).Return(nil)
	repo.On("UpdateEventStatus", ctx, tx, first.ID, OutboxStatusPublished).Return(nil)
	repo.On("UpdateEventStatus", ctx, tx, second.ID, OutboxStatusPublished).Return(nil)

	published, err := newTestRelay(repo, pub, tx).ProcessBatch(ctx)

	require.NoError(t, err)
	assert.Equal(t, 2, published)
	assert.True(t, tx.committed)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestOutboxRelay_ProcessBatch_KeepsProgressOnBrokerFailure(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{}
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)

	first := NewOutboxEvent(uuid.New(), uuid.New(), "bid.placed", []byte("a"), time.Now())
	second := NewOutboxEvent(uuid.New(), uuid.New(), "bid.placed", []byte("b"), time.Now())
	brokerDown := errors.New("connection reset")

	repo.On("GetPendingEvents", ctx, tx, 10).Return([]*OutboxEvent{first, second}, nil)
	pub.On("Publish", ctx, ExchangeAuctionEvents, "bid.placed", []byte("a")).Return(nil)
	pub.On("Publish", ctx, ExchangeAuctionEvents, "bid.placed", []byte("b")).Return(brokerDown)
	repo.On("UpdateEventStatus", ctx, tx, first.ID, OutboxStatusPublished).Return(nil)

	published, err := newTestRelay(repo, pub, tx).ProcessBatch(ctx)

	require.ErrorIs(t, err, brokerDown)
	assert.Equal(t, 1, published)
	assert.True(t, tx.committed, "the first event should stay published")
	repo.AssertNotCalled(t, "UpdateEventStatus", ctx, tx, second.ID, OutboxStatusPublished)
}

func TestOutboxRelay_ProcessBatch_Empty(t *testing.T) {
	ctx := context.Background()
	tx := &fakeTx{}
	repo := new(MockOutboxRepository)
	pub := new(MockPublisher)

	repo.On("GetPendingEvents", ctx, tx, 10).Return([]*OutboxEvent{}, nil)

	published, err := newTestRelay(repo, pub, tx).ProcessBatch(ctx)

	require.NoError(t, err)
	assert.Zero(t, published)
	assert.False(t, tx.committed)
	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
