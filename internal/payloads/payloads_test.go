package payloads

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestBidPlaced_KeepsMoneyExact(t *testing.T) {
	in := &BidPlaced{
		EventID:   uuid.New(),
		BidID:     uuid.New(),
		AuctionID: uuid.New(),
		BidderID:  uuid.New(),
		Amount:    decimal.RequireFromString("1234567890.10"),
		BidTime:   time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC),
		Version:   42,
	}

	body, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalBidPlaced(body)
	require.NoError(t, err)

	assert.True(t, in.Amount.Equal(out.Amount), "got %s", out.Amount)
	assert.True(t, in.BidTime.Equal(out.BidTime))
	assert.Equal(t, in.EventID, out.EventID)
	assert.Equal(t, int64(42), out.Version)
}

func TestAuctionClosed_WithoutWinner(t *testing.T) {
	in := &AuctionClosed{
		EventID:    uuid.New(),
		AuctionID:  uuid.New(),
		SellerID:   uuid.New(),
		FinalPrice: decimal.NewFromInt(100),
		ClosedAt:   time.Now().UTC(),
	}

	body, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalAuctionClosed(body)
	require.NoError(t, err)
	assert.Nil(t, out.WinnerID)
	assert.Equal(t, "100", out.FinalPrice.String())
}

func TestAuctionClosed_WithWinner(t *testing.T) {
	winner := uuid.New()
	in := &AuctionClosed{
		EventID:    uuid.New(),
		AuctionID:  uuid.New(),
		SellerID:   uuid.New(),
		WinnerID:   &winner,
		FinalPrice: decimal.RequireFromString("165.00"),
		ClosedAt:   time.Now().UTC(),
	}

	body, err := in.Marshal()
	require.NoError(t, err)

	out, err := UnmarshalAuctionClosed(body)
	require.NoError(t, err)
	require.NotNil(t, out.WinnerID)
	assert.Equal(t, winner, *out.WinnerID)
}

func TestUnmarshal_Malformed(t *testing.T) {
	t.Run("not protobuf", func(t *testing.T) {
		_, err := UnmarshalBidPlaced([]byte{0xff, 0xff, 0xff})
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("missing field", func(t *testing.T) {
		s, err := structpb.NewStruct(map[string]any{"event_id": uuid.NewString()})
		require.NoError(t, err)
		body, err := proto.Marshal(s)
		require.NoError(t, err)

		_, err = UnmarshalBidPlaced(body)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})

	t.Run("bad amount", func(t *testing.T) {
		s, err := structpb.NewStruct(map[string]any{
			"event_id":   uuid.NewString(),
			"bid_id":     uuid.NewString(),
			"auction_id": uuid.NewString(),
			"bidder_id":  uuid.NewString(),
			"amount":     "lots",
			"bid_time":   time.Now().Format(time.RFC3339Nano),
			"version":    1,
		})
		require.NoError(t, err)
		body, err := proto.Marshal(s)
		require.NoError(t, err)

		_, err = UnmarshalBidPlaced(body)
		assert.ErrorIs(t, err, ErrMalformedPayload)
	})
}
