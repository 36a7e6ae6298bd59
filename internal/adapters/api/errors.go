package api

import (
	"context"
	"errors"

	"connectrpc.com/connect"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bids"
)

// Metadata keys sent with bid rejections
const (
	HeaderRejectReason = "Bid-Reject-Reason"
	HeaderCurrentPrice = "Bid-Current-Price"
	HeaderMinimumBid   = "Bid-Minimum"
)

var errInternal = errors.New("internal error")

var rejectionReasons = map[error]string{
	bids.ErrAuctionNotFound: "AUCTION_NOT_FOUND",
	bids.ErrAuctionInactive: "AUCTION_INACTIVE",
	bids.ErrAuctionExpired:  "AUCTION_EXPIRED",
	bids.ErrBidTooLow:       "BID_TOO_LOW",
	bids.ErrInvalidAmount:   "INVALID_AMOUNT",
}

// toConnectError maps domain errors to connect codes. Faults are logged here
// and reach the client without their message.
func (h *AuctionServiceHandler) toConnectError(procedure string, err error) error {
	var rejection *bids.RejectionError
	if errors.As(err, &rejection) {
		return rejectionError(rejection)
	}

	switch {
	case errors.Is(err, auctions.ErrAuctionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, auctions.ErrInvalidTitle),
		errors.Is(err, auctions.ErrInvalidDescription),
		errors.Is(err, auctions.ErrInvalidStartPrice),
		errors.Is(err, auctions.ErrInvalidEndTime):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auctions.ErrUnauthorized):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, bids.ErrContention):
		return connect.NewError(connect.CodeUnavailable, bids.ErrContention)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	}

	h.logger.Error("Request failed", "procedure", procedure, "error", err)
	return connect.NewError(connect.CodeInternal, errInternal)
}

func rejectionError(rejection *bids.RejectionError) error {
	code := connect.CodeFailedPrecondition
	switch {
	case errors.Is(rejection, bids.ErrAuctionNotFound):
		return connect.NewError(connect.CodeNotFound, rejection)
	case errors.Is(rejection, bids.ErrInvalidAmount):
		code = connect.CodeInvalidArgument
	}

	reason := rejectionReasons[rejection.Reason]
	currentPrice := rejection.CurrentPrice.StringFixed(2)
	minimumBid := rejection.MinimumBid.StringFixed(2)

	connectErr := connect.NewError(code, rejection)
	connectErr.Meta().Set(HeaderRejectReason, reason)
	connectErr.Meta().Set(HeaderCurrentPrice, currentPrice)
	connectErr.Meta().Set(HeaderMinimumBid, minimumBid)

	details, err := structpb.NewStruct(map[string]any{
		"reason":        reason,
		"auction_id":    rejection.AuctionID.String(),
		"current_price": currentPrice,
		"minimum_bid":   minimumBid,
	})
	if err == nil {
		if detail, detailErr := connect.NewErrorDetail(details); detailErr == nil {
			connectErr.AddDetail(detail)
		}
	}
	return connectErr
}
