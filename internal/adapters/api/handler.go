package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bidderstats"
	"github.com/floroz/livebid/internal/domain/bids"
	"github.com/floroz/livebid/pkg/auth"
)

const ServiceName = "livebid.v1.AuctionService"

const (
	PlaceBidProcedure       = "/" + ServiceName + "/PlaceBid"
	GetBidsProcedure        = "/" + ServiceName + "/GetBids"
	GetHighestBidProcedure  = "/" + ServiceName + "/GetHighestBid"
	CreateAuctionProcedure  = "/" + ServiceName + "/CreateAuction"
	GetAuctionProcedure     = "/" + ServiceName + "/GetAuction"
	ListAuctionsProcedure   = "/" + ServiceName + "/ListAuctions"
	DeleteAuctionProcedure  = "/" + ServiceName + "/DeleteAuction"
	CloseAuctionProcedure   = "/" + ServiceName + "/CloseAuction"
	GetBidderStatsProcedure = "/" + ServiceName + "/GetBidderStats"
)

// PublicProcedures can be called without a bearer token
var PublicProcedures = []string{
	GetBidsProcedure,
	GetHighestBidProcedure,
	GetAuctionProcedure,
	ListAuctionsProcedure,
	GetBidderStatsProcedure,
}

// BidderStatsReader is satisfied by *bidderstats.Service
type BidderStatsReader interface {
	GetStats(ctx context.Context, bidderID uuid.UUID) (*bidderstats.BidderStats, error)
}

type AuctionServiceHandler struct {
	engine     *bids.Engine
	queries    *bids.QueryService
	auctions   *auctions.Service
	stats      BidderStatsReader
	bidTimeout time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

func NewAuctionServiceHandler(
	engine *bids.Engine,
	queries *bids.QueryService,
	auctionService *auctions.Service,
	stats BidderStatsReader,
	bidTimeout time.Duration,
	logger *slog.Logger,
) *AuctionServiceHandler {
	return &AuctionServiceHandler{
		engine:     engine,
		queries:    queries,
		auctions:   auctionService,
		stats:      stats,
		bidTimeout: bidTimeout,
		logger:     logger,
		now:        time.Now,
	}
}

// Routes returns the path prefix and handler to mount on a mux
func (h *AuctionServiceHandler) Routes(opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{Codec()}, opts...)

	mux := http.NewServeMux()
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, opts...))
	mux.Handle(GetBidsProcedure, connect.NewUnaryHandler(GetBidsProcedure, h.GetBids, opts...))
	mux.Handle(GetHighestBidProcedure, connect.NewUnaryHandler(GetHighestBidProcedure, h.GetHighestBid, opts...))
	mux.Handle(CreateAuctionProcedure, connect.NewUnaryHandler(CreateAuctionProcedure, h.CreateAuction, opts...))
	mux.Handle(GetAuctionProcedure, connect.NewUnaryHandler(GetAuctionProcedure, h.GetAuction, opts...))
	mux.Handle(ListAuctionsProcedure, connect.NewUnaryHandler(ListAuctionsProcedure, h.ListAuctions, opts...))
	mux.Handle(DeleteAuctionProcedure, connect.NewUnaryHandler(DeleteAuctionProcedure, h.DeleteAuction, opts...))
	mux.Handle(CloseAuctionProcedure, connect.NewUnaryHandler(CloseAuctionProcedure, h.CloseAuction, opts...))
	mux.Handle(GetBidderStatsProcedure, connect.NewUnaryHandler(GetBidderStatsProcedure, h.GetBidderStats, opts...))
	return "/" + ServiceName + "/", mux
}

func (h *AuctionServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	bidderID, err := auth.MustGetUserID(ctx)
	if err != nil {
		return nil, err
	}

	auctionID, err := parseID("auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	amount, err := parseAmount("amount", req.Msg.Amount)
	if err != nil {
		return nil, err
	}

	if h.bidTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.bidTimeout)
		defer cancel()
	}

	outcome, err := h.engine.PlaceBid(ctx, bids.PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  bidderID,
		Amount:    amount,
		Now:       h.now(),
	})
	if err != nil {
		return nil, h.toConnectError(PlaceBidProcedure, err)
	}

	return connect.NewResponse(&PlaceBidResponse{
		Bid:        mapBid(outcome.Bid),
		NewMinimum: outcome.NewMinimum.StringFixed(2),
	}), nil
}

func (h *AuctionServiceHandler) GetBids(
	ctx context.Context,
	req *connect.Request[GetBidsRequest],
) (*connect.Response[GetBidsResponse], error) {
	auctionID, err := parseID("auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	list, err := h.queries.GetBids(ctx, auctionID)
	if err != nil {
		return nil, h.toConnectError(GetBidsProcedure, err)
	}

	return connect.NewResponse(&GetBidsResponse{Bids: mapBids(list)}), nil
}

func (h *AuctionServiceHandler) GetHighestBid(
	ctx context.Context,
	req *connect.Request[GetHighestBidRequest],
) (*connect.Response[GetHighestBidResponse], error) {
	auctionID, err := parseID("auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	bid, err := h.queries.GetHighestBid(ctx, auctionID)
	if err != nil {
		return nil, h.toConnectError(GetHighestBidProcedure, err)
	}

	res := &GetHighestBidResponse{}
	if bid != nil {
		res.Bid = mapBid(bid)
	}
	return connect.NewResponse(res), nil
}

func (h *AuctionServiceHandler) CreateAuction(
	ctx context.Context,
	req *connect.Request[CreateAuctionRequest],
) (*connect.Response[CreateAuctionResponse], error) {
	sellerID, err := auth.MustGetUserID(ctx)
	if err != nil {
		return nil, err
	}

	startPrice, err := parseAmount("start_price", req.Msg.StartPrice)
	if err != nil {
		return nil, err
	}

	endsAt, err := time.Parse(time.RFC3339, req.Msg.EndsAt)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid ends_at format"))
	}

	auction, err := h.auctions.CreateAuction(ctx, auctions.CreateAuctionCommand{
		SellerID:    sellerID,
		Title:       req.Msg.Title,
		Description: req.Msg.Description,
		StartPrice:  startPrice,
		EndsAt:      endsAt,
	})
	if err != nil {
		return nil, h.toConnectError(CreateAuctionProcedure, err)
	}

	return connect.NewResponse(&CreateAuctionResponse{Auction: h.mapAuction(auction, h.now())}), nil
}

func (h *AuctionServiceHandler) GetAuction(
	ctx context.Context,
	req *connect.Request[GetAuctionRequest],
) (*connect.Response[GetAuctionResponse], error) {
	auctionID, err := parseID("auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	auction, err := h.auctions.GetAuction(ctx, auctionID)
	if err != nil {
		return nil, h.toConnectError(GetAuctionProcedure, err)
	}

	return connect.NewResponse(&GetAuctionResponse{Auction: h.mapAuction(auction, h.now())}), nil
}

func (h *AuctionServiceHandler) ListAuctions(
	ctx context.Context,
	req *connect.Request[ListAuctionsRequest],
) (*connect.Response[ListAuctionsResponse], error) {
	list, err := h.auctions.ListAuctions(ctx, auctions.ListAuctionsQuery{
		Limit:  req.Msg.Limit,
		Offset: req.Msg.Offset,
	})
	if err != nil {
		return nil, h.toConnectError(ListAuctionsProcedure, err)
	}

	now := h.now()
	out := make([]*Auction, len(list))
	for i, auction := range list {
		out[i] = h.mapAuction(auction, now)
	}
	return connect.NewResponse(&ListAuctionsResponse{Auctions: out}), nil
}

func (h *AuctionServiceHandler) DeleteAuction(
	ctx context.Context,
	req *connect.Request[DeleteAuctionRequest],
) (*connect.Response[DeleteAuctionResponse], error) {
	userID, err := auth.MustGetUserID(ctx)
	if err != nil {
		return nil, err
	}

	auctionID, err := parseID("auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	if err := h.auctions.DeleteAuction(ctx, auctions.DeleteAuctionCommand{AuctionID: auctionID, UserID: userID}); err != nil {
		return nil, h.toConnectError(DeleteAuctionProcedure, err)
	}
	return connect.NewResponse(&DeleteAuctionResponse{}), nil
}

func (h *AuctionServiceHandler) CloseAuction(
	ctx context.Context,
	req *connect.Request[CloseAuctionRequest],
) (*connect.Response[CloseAuctionResponse], error) {
	userID, err := auth.MustGetUserID(ctx)
	if err != nil {
		return nil, err
	}

	auctionID, err := parseID("auction_id", req.Msg.AuctionID)
	if err != nil {
		return nil, err
	}

	auction, err := h.auctions.CloseAuction(ctx, auctions.CloseAuctionCommand{AuctionID: auctionID, UserID: userID})
	if err != nil {
		return nil, h.toConnectError(CloseAuctionProcedure, err)
	}

	return connect.NewResponse(&CloseAuctionResponse{Auction: h.mapAuction(auction, h.now())}), nil
}

func (h *AuctionServiceHandler) GetBidderStats(
	ctx context.Context,
	req *connect.Request[GetBidderStatsRequest],
) (*connect.Response[GetBidderStatsResponse], error) {
	var bidderID uuid.UUID
	if req.Msg.BidderID == "" {
		id, err := auth.MustGetUserID(ctx)
		if err != nil {
			return nil, err
		}
		bidderID = id
	} else {
		id, err := parseID("bidder_id", req.Msg.BidderID)
		if err != nil {
			return nil, err
		}
		bidderID = id
	}

	stats, err := h.stats.GetStats(ctx, bidderID)
	if err != nil {
		return nil, h.toConnectError(GetBidderStatsProcedure, err)
	}
	return connect.NewResponse(&GetBidderStatsResponse{Stats: mapStats(stats)}), nil
}

func parseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s", field))
	}
	return id, nil
}

// parseAmount accepts at most two decimal places. Zero and negative values
// pass through so the domain can reject them in its own order.
func parseAmount(field, raw string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("invalid %s", field))
	}
	if !amount.Equal(amount.Truncate(2)) {
		return decimal.Zero, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%s has more than two decimal places", field))
	}
	return amount, nil
}
