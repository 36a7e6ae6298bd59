package events_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/floroz/livebid/internal/adapters/events"
	"github.com/floroz/livebid/internal/payloads"
)

type MockStatsProcessor struct {
	mock.Mock
}

func (m *MockStatsProcessor) ProcessBidPlaced(ctx context.Context, event *payloads.BidPlaced) error {
	return m.Called(ctx, event).Error(0)
}

func (m *MockStatsProcessor) ProcessAuctionClosed(ctx context.Context, event *payloads.AuctionClosed) error {
	return m.Called(ctx, event).Error(0)
}

func newConsumer(processor events.StatsProcessor) *events.BidderStatsConsumer {
	// Handle never touches the connection
	return events.NewBidderStatsConsumer(nil, processor, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestBidderStatsConsumer_Handle(t *testing.T) {
	ctx := context.Background()
	bidTime := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("bid placed", func(t *testing.T) {
		processor := new(MockStatsProcessor)
		event := &payloads.BidPlaced{
			EventID:   uuid.New(),
			BidID:     uuid.New(),
			AuctionID: uuid.New(),
			BidderID:  uuid.New(),
			Amount:    decimal.RequireFromString("150.00"),
			BidTime:   bidTime,
			Version:   1,
		}
		body, err := event.Marshal()
		require.NoError(t, err)

		processor.On("ProcessBidPlaced", ctx, mock.MatchedBy(func(got *payloads.BidPlaced) bool {
			return got.EventID == event.EventID && got.BidderID == event.BidderID && got.Amount.Equal(event.Amount)
		})).Return(nil)

		require.NoError(t, newConsumer(processor).Handle(ctx, payloads.EventBidPlaced, body))
		processor.AssertExpectations(t)
	})

	t.Run("auction closed", func(t *testing.T) {
		processor := new(MockStatsProcessor)
		winner := uuid.New()
		event := &payloads.AuctionClosed{
			EventID:    uuid.New(),
			AuctionID:  uuid.New(),
			SellerID:   uuid.New(),
			WinnerID:   &winner,
			FinalPrice: decimal.RequireFromString("160.00"),
			ClosedAt:   bidTime,
		}
		body, err := event.Marshal()
		require.NoError(t, err)

		processor.On("ProcessAuctionClosed", ctx, mock.MatchedBy(func(got *payloads.AuctionClosed) bool {
			return got.EventID == event.EventID && got.WinnerID != nil && *got.WinnerID == winner
		})).Return(nil)

		require.NoError(t, newConsumer(processor).Handle(ctx, payloads.EventAuctionClosed, body))
		processor.AssertExpectations(t)
	})

	t.Run("malformed body is not retried", func(t *testing.T) {
		processor := new(MockStatsProcessor)

		err := newConsumer(processor).Handle(ctx, payloads.EventBidPlaced, []byte("garbage"))
		assert.ErrorIs(t, err, payloads.ErrMalformedPayload)
		processor.AssertNotCalled(t, "ProcessBidPlaced", mock.Anything, mock.Anything)
	})

	t.Run("unknown routing key", func(t *testing.T) {
		err := newConsumer(new(MockStatsProcessor)).Handle(ctx, "auction.renamed", nil)
		assert.ErrorIs(t, err, events.ErrUnknownEvent)
	})

	t.Run("processing failure surfaces", func(t *testing.T) {
		processor := new(MockStatsProcessor)
		event := &payloads.BidPlaced{
			EventID:   uuid.New(),
			BidID:     uuid.New(),
			AuctionID: uuid.New(),
			BidderID:  uuid.New(),
			Amount:    decimal.RequireFromString("1.00"),
			BidTime:   bidTime,
		}
		body, err := event.Marshal()
		require.NoError(t, err)

		dbDown := errors.New("connection refused")
		processor.On("ProcessBidPlaced", ctx, mock.Anything).Return(dbDown)

		err = newConsumer(processor).Handle(ctx, payloads.EventBidPlaced, body)
		assert.ErrorIs(t, err, dbDown)
		assert.NotErrorIs(t, err, payloads.ErrMalformedPayload)
	})
}
