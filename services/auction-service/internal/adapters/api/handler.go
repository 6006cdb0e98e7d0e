// Package api exposes the auction service over ConnectRPC with JSON bodies.
package api

import (
	"context"
	"errors"
	"net/http"

	"connectrpc.com/connect"
	"github.com/google/uuid"

	"github.com/floroz/auction-live/pkg/auth"
	"github.com/floroz/auction-live/pkg/money"
	"github.com/floroz/auction-live/pkg/rpc"
	"github.com/floroz/auction-live/services/auction-service/internal/domain/auctions"
)

// AuctionServiceHandler implements auction.v1.AuctionService
type AuctionServiceHandler struct {
	service *auctions.AuctionService
}

func NewAuctionServiceHandler(service *auctions.AuctionService) *AuctionServiceHandler {
	return &AuctionServiceHandler{service: service}
}

// NewHandler mounts every procedure behind one path prefix. Reads are
// public; PlaceBid and ListBidsByBidder need a bearer token.
func NewHandler(h *AuctionServiceHandler, signer *auth.Signer, opts ...connect.HandlerOption) (string, http.Handler) {
	interceptor := auth.NewAuthInterceptor(signer, auth.WithPublicProcedures(
		GetLeaderSnapshotProcedure,
		ListBidsProcedure,
		GetAuctionEndTimeProcedure,
	))
	opts = append([]connect.HandlerOption{rpc.WithJSON(), connect.WithInterceptors(interceptor)}, opts...)

	mux := http.NewServeMux()
	mux.Handle(PlaceBidProcedure, connect.NewUnaryHandler(PlaceBidProcedure, h.PlaceBid, opts...))
	mux.Handle(GetLeaderSnapshotProcedure, connect.NewUnaryHandler(GetLeaderSnapshotProcedure, h.GetLeaderSnapshot, opts...))
	mux.Handle(ListBidsProcedure, connect.NewUnaryHandler(ListBidsProcedure, h.ListBids, opts...))
	mux.Handle(ListBidsByBidderProcedure, connect.NewUnaryHandler(ListBidsByBidderProcedure, h.ListBidsByBidder, opts...))
	mux.Handle(GetAuctionEndTimeProcedure, connect.NewUnaryHandler(GetAuctionEndTimeProcedure, h.GetAuctionEndTime, opts...))

	return "/" + AuctionServiceName + "/", mux
}

func (h *AuctionServiceHandler) PlaceBid(
	ctx context.Context,
	req *connect.Request[PlaceBidRequest],
) (*connect.Response[PlaceBidResponse], error) {
	// 1. Caller identity (set by the auth interceptor)
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}

	// 2. Validation / Mapping
	auctionID, err := uuid.Parse(req.Msg.AuctionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid auction_id"))
	}
	amount, err := money.ToMinor(req.Msg.Amount)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, auctions.ErrInvalidAmount)
	}

	// 3. Execution
	bid, err := h.service.PlaceBid(ctx, auctions.PlaceBidCommand{
		AuctionID: auctionID,
		BidderID:  userID,
		Amount:    amount,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	// 4. Response Mapping
	return connect.NewResponse(&PlaceBidResponse{Bid: mapBid(bid)}), nil
}

func (h *AuctionServiceHandler) GetLeaderSnapshot(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[GetLeaderSnapshotResponse], error) {
	auctionID, err := uuid.Parse(req.Msg.AuctionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid auction_id"))
	}

	snapshot, err := h.service.GetLeaderSnapshot(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}

	res := &GetLeaderSnapshotResponse{
		AuctionID:  snapshot.AuctionID.String(),
		FloorPrice: money.Format(snapshot.FloorPrice),
		LeaderName: snapshot.LeaderName,
		EndTime:    formatTime(snapshot.EndAt),
		HasEnded:   snapshot.HasEnded,
	}
	if snapshot.LeaderID != nil {
		id := snapshot.LeaderID.String()
		res.LeaderID = &id
	}
	if snapshot.BidTime != nil {
		at := formatTime(*snapshot.BidTime)
		res.BidTime = &at
	}
	return connect.NewResponse(res), nil
}

// ListBids returns an auction's bids, highest first
func (h *AuctionServiceHandler) ListBids(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[ListBidsResponse], error) {
	auctionID, err := uuid.Parse(req.Msg.AuctionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid auction_id"))
	}

	bids, err := h.service.ListBids(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListBidsResponse{Bids: mapBids(bids)}), nil
}

// ListBidsByBidder returns a bidder's bids, newest first. Without a
// bidder_id it lists the caller's own bids.
func (h *AuctionServiceHandler) ListBidsByBidder(
	ctx context.Context,
	req *connect.Request[ListBidsByBidderRequest],
) (*connect.Response[ListBidsResponse], error) {
	bidderID, ok := auth.UserIDFromContext(ctx)
	if !ok {
		return nil, connect.NewError(connect.CodeUnauthenticated, errors.New("missing user"))
	}
	if req.Msg.BidderID != "" {
		parsed, err := uuid.Parse(req.Msg.BidderID)
		if err != nil {
			return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid bidder_id"))
		}
		bidderID = parsed
	}

	bids, err := h.service.ListBidsByBidder(ctx, bidderID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ListBidsResponse{Bids: mapBids(bids)}), nil
}

func (h *AuctionServiceHandler) GetAuctionEndTime(
	ctx context.Context,
	req *connect.Request[AuctionRequest],
) (*connect.Response[GetAuctionEndTimeResponse], error) {
	auctionID, err := uuid.Parse(req.Msg.AuctionID)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("invalid auction_id"))
	}

	end, err := h.service.GetAuctionEndTime(ctx, auctionID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetAuctionEndTimeResponse{
		AuctionID:        end.AuctionID.String(),
		EndTime:          formatTime(end.EndAt),
		HasEnded:         end.HasEnded,
		FormattedEndTime: end.EndAt.UTC().Format(isoMillis),
	}), nil
}

// toConnectError maps domain errors onto Connect codes
func toConnectError(err error) error {
	switch {
	case errors.Is(err, auctions.ErrAuctionNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, auctions.ErrNotAnAuction),
		errors.Is(err, auctions.ErrAuctionClosed),
		errors.Is(err, auctions.ErrAuctionInactive),
		errors.Is(err, auctions.ErrBidTooLow):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	case errors.Is(err, auctions.ErrSelfBid):
		return connect.NewError(connect.CodePermissionDenied, err)
	case errors.Is(err, auctions.ErrInvalidAmount):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, auctions.ErrBusy):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}

func mapBid(bid *auctions.Bid) *Bid {
	return &Bid{
		ID:        bid.ID.String(),
		AuctionID: bid.AuctionID.String(),
		BidderID:  bid.BidderID.String(),
		Amount:    money.Format(bid.Amount),
		CreatedAt: formatTime(bid.CreatedAt),
	}
}

func mapBids(bids []*auctions.Bid) []*Bid {
	out := make([]*Bid, len(bids))
	for i, bid := range bids {
		out[i] = mapBid(bid)
	}
	return out
}
