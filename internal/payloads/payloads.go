// Package payloads encodes the auction domain events that travel through the
// outbox and RabbitMQ. Bodies are protobuf-encoded google.protobuf.Struct
// messages so consumers in any language can decode them without generated code.
package payloads

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

// Routing keys on the auction.events exchange
const (
	EventBidPlaced     = "bid.placed"
	EventAuctionClosed = "auction.closed"
)

var ErrMalformedPayload = errors.New("malformed event payload")

// BidPlaced is emitted once per accepted bid
type BidPlaced struct {
	EventID   uuid.UUID
	BidID     uuid.UUID
	AuctionID uuid.UUID
	BidderID  uuid.UUID
	Amount    decimal.Decimal
	BidTime   time.Time
	// Version is the auction version the bid produced
	Version int64
}

// AuctionClosed is emitted by the first close of an auction
type AuctionClosed struct {
	EventID    uuid.UUID
	AuctionID  uuid.UUID
	SellerID   uuid.UUID
	WinnerID   *uuid.UUID
	FinalPrice decimal.Decimal
	ClosedAt   time.Time
}

func (e *BidPlaced) Marshal() ([]byte, error) {
	return marshal(map[string]any{
		"event_id":   e.EventID.String(),
		"bid_id":     e.BidID.String(),
		"auction_id": e.AuctionID.String(),
		"bidder_id":  e.BidderID.String(),
		"amount":     e.Amount.StringFixed(2),
		"bid_time":   e.BidTime.UTC().Format(time.RFC3339Nano),
		"version":    float64(e.Version),
	})
}

func UnmarshalBidPlaced(body []byte) (*BidPlaced, error) {
	f, err := unmarshal(body)
	if err != nil {
		return nil, err
	}

	e := &BidPlaced{
		EventID:   f.id("event_id"),
		BidID:     f.id("bid_id"),
		AuctionID: f.id("auction_id"),
		BidderID:  f.id("bidder_id"),
		Amount:    f.dec("amount"),
		BidTime:   f.timestamp("bid_time"),
		Version:   int64(f.num("version")),
	}
	if f.err != nil {
		return nil, f.err
	}
	return e, nil
}

func (e *AuctionClosed) Marshal() ([]byte, error) {
	fields := map[string]any{
		"event_id":    e.EventID.String(),
		"auction_id":  e.AuctionID.String(),
		"seller_id":   e.SellerID.String(),
		"final_price": e.FinalPrice.StringFixed(2),
		"closed_at":   e.ClosedAt.UTC().Format(time.RFC3339Nano),
		"winner_id":   nil,
	}
	if e.WinnerID != nil {
		fields["winner_id"] = e.WinnerID.String()
	}
	return marshal(fields)
}

func UnmarshalAuctionClosed(body []byte) (*AuctionClosed, error) {
	f, err := unmarshal(body)
	if err != nil {
		return nil, err
	}

	e := &AuctionClosed{
		EventID:    f.id("event_id"),
		AuctionID:  f.id("auction_id"),
		SellerID:   f.id("seller_id"),
		FinalPrice: f.dec("final_price"),
		ClosedAt:   f.timestamp("closed_at"),
	}
	if v, ok := f.fields["winner_id"]; ok {
		if _, isNull := v.GetKind().(*structpb.Value_NullValue); !isNull {
			winner := f.id("winner_id")
			e.WinnerID = &winner
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return e, nil
}

func marshal(fields map[string]any) ([]byte, error) {
	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to build event payload: %w", err)
	}
	body, err := proto.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event payload: %w", err)
	}
	return body, nil
}

func unmarshal(body []byte) (*fieldReader, error) {
	var s structpb.Struct
	if err := proto.Unmarshal(body, &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return &fieldReader{fields: s.GetFields()}, nil
}

// fieldReader keeps the first decoding error so callers can read every field
// and check once.
type fieldReader struct {
	fields map[string]*structpb.Value
	err    error
}

func (r *fieldReader) fail(key string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: field %s: %v", ErrMalformedPayload, key, err)
	}
}

func (r *fieldReader) str(key string) string {
	v, ok := r.fields[key]
	if !ok {
		r.fail(key, errors.New("missing"))
		return ""
	}
	sv, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		r.fail(key, errors.New("not a string"))
		return ""
	}
	return sv.StringValue
}

func (r *fieldReader) num(key string) float64 {
	v, ok := r.fields[key]
	if !ok {
		r.fail(key, errors.New("missing"))
		return 0
	}
	nv, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		r.fail(key, errors.New("not a number"))
		return 0
	}
	return nv.NumberValue
}

func (r *fieldReader) id(key string) uuid.UUID {
	id, err := uuid.Parse(r.str(key))
	if err != nil && r.err == nil {
		r.fail(key, err)
	}
	return id
}

func (r *fieldReader) dec(key string) decimal.Decimal {
	d, err := decimal.NewFromString(r.str(key))
	if err != nil && r.err == nil {
		r.fail(key, err)
	}
	return d
}

func (r *fieldReader) timestamp(key string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, r.str(key))
	if err != nil && r.err == nil {
		r.fail(key, err)
	}
	return t
}
