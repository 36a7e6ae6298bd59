package api

import (
	"time"

	"github.com/floroz/livebid/internal/domain/auctions"
	"github.com/floroz/livebid/internal/domain/bidderstats"
	"github.com/floroz/livebid/internal/domain/bids"
)

// Amounts travel as decimal strings ("150.00") so no client ever rounds
// through a float.

type PlaceBidRequest struct {
	AuctionID string `json:"auction_id"`
	Amount    string `json:"amount"`
}

type PlaceBidResponse struct {
	Bid        *Bid   `json:"bid"`
	NewMinimum string `json:"new_minimum"`
}

type GetBidsRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetBidsResponse struct {
	Bids []*Bid `json:"bids"`
}

type GetHighestBidRequest struct {
	AuctionID string `json:"auction_id"`
}

// GetHighestBidResponse has a nil Bid when nobody has bid yet
type GetHighestBidResponse struct {
	Bid *Bid `json:"bid"`
}

type CreateAuctionRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartPrice  string `json:"start_price"`
	EndsAt      string `json:"ends_at"`
}

type CreateAuctionResponse struct {
	Auction *Auction `json:"auction"`
}

type GetAuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type GetAuctionResponse struct {
	Auction *Auction `json:"auction"`
}

type ListAuctionsRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

type ListAuctionsResponse struct {
	Auctions []*Auction `json:"auctions"`
}

type DeleteAuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type DeleteAuctionResponse struct{}

type CloseAuctionRequest struct {
	AuctionID string `json:"auction_id"`
}

type CloseAuctionResponse struct {
	Auction *Auction `json:"auction"`
}

// GetBidderStatsRequest defaults to the caller when BidderID is empty
type GetBidderStatsRequest struct {
	BidderID string `json:"bidder_id"`
}

type GetBidderStatsResponse struct {
	Stats *BidderStats `json:"stats"`
}

type Bid struct {
	ID        string `json:"id"`
	AuctionID string `json:"auction_id"`
	BidderID  string `json:"bidder_id"`
	Amount    string `json:"amount"`
	BidTime   string `json:"bid_time"`
}

type Auction struct {
	ID           string  `json:"id"`
	SellerID     string  `json:"seller_id"`
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	StartPrice   string  `json:"start_price"`
	CurrentPrice string  `json:"current_price"`
	MinimumBid   string  `json:"minimum_bid"`
	WinnerID     *string `json:"winner_id"`
	State        string  `json:"state"`
	EndsAt       string  `json:"ends_at"`
	Version      int64   `json:"version"`
	CreatedAt    string  `json:"created_at"`
	UpdatedAt    string  `json:"updated_at"`
}

type BidderStats struct {
	BidderID       string  `json:"bidder_id"`
	BidsPlaced     int64   `json:"bids_placed"`
	AuctionsWon    int64   `json:"auctions_won"`
	TotalBidAmount string  `json:"total_bid_amount"`
	LastBidAt      *string `json:"last_bid_at"`
}

func mapBid(bid *bids.Bid) *Bid {
	return &Bid{
		ID:        bid.ID.String(),
		AuctionID: bid.AuctionID.String(),
		BidderID:  bid.BidderID.String(),
		Amount:    bid.Amount.StringFixed(2),
		BidTime:   bid.BidTime.Format(time.RFC3339Nano),
	}
}

func mapBids(list []*bids.Bid) []*Bid {
	out := make([]*Bid, len(list))
	for i, bid := range list {
		out[i] = mapBid(bid)
	}
	return out
}

func (h *AuctionServiceHandler) mapAuction(a *auctions.Auction, now time.Time) *Auction {
	out := &Auction{
		ID:           a.ID.String(),
		SellerID:     a.SellerID.String(),
		Title:        a.Title,
		Description:  a.Description,
		StartPrice:   a.StartPrice.StringFixed(2),
		CurrentPrice: a.CurrentPrice.StringFixed(2),
		MinimumBid:   h.engine.MinimumBid(a).StringFixed(2),
		State:        string(a.State(now)),
		EndsAt:       a.EndsAt.Format(time.RFC3339),
		Version:      a.Version,
		CreatedAt:    a.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    a.UpdatedAt.Format(time.RFC3339),
	}
	if a.WinnerID != nil {
		winner := a.WinnerID.String()
		out.WinnerID = &winner
	}
	return out
}

func mapStats(s *bidderstats.BidderStats) *BidderStats {
	out := &BidderStats{
		BidderID:       s.BidderID.String(),
		BidsPlaced:     s.BidsPlaced,
		AuctionsWon:    s.AuctionsWon,
		TotalBidAmount: s.TotalBidAmount.StringFixed(2),
	}
	if s.LastBidAt != nil {
		last := s.LastBidAt.Format(time.RFC3339Nano)
		out.LastBidAt = &last
	}
	return out
}
