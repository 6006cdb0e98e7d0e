package api

import (
	"context"

	"connectrpc.com/connect"

	"github.com/floroz/auction-live/pkg/rpc"
)

// Client calls auction.v1.AuctionService
type Client struct {
	placeBid          *connect.Client[PlaceBidRequest, PlaceBidResponse]
	getLeaderSnapshot *connect.Client[AuctionRequest, GetLeaderSnapshotResponse]
	listBids          *connect.Client[AuctionRequest, ListBidsResponse]
	listBidsByBidder  *connect.Client[ListBidsByBidderRequest, ListBidsResponse]
	getAuctionEndTime *connect.Client[AuctionRequest, GetAuctionEndTimeResponse]
}

func NewClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *Client {
	opts = append([]connect.ClientOption{rpc.WithJSON()}, opts...)
	return &Client{
		placeBid:          connect.NewClient[PlaceBidRequest, PlaceBidResponse](httpClient, baseURL+PlaceBidProcedure, opts...),
		getLeaderSnapshot: connect.NewClient[AuctionRequest, GetLeaderSnapshotResponse](httpClient, baseURL+GetLeaderSnapshotProcedure, opts...),
		listBids:          connect.NewClient[AuctionRequest, ListBidsResponse](httpClient, baseURL+ListBidsProcedure, opts...),
		listBidsByBidder:  connect.NewClient[ListBidsByBidderRequest, ListBidsResponse](httpClient, baseURL+ListBidsByBidderProcedure, opts...),
		getAuctionEndTime: connect.NewClient[AuctionRequest, GetAuctionEndTimeResponse](httpClient, baseURL+GetAuctionEndTimeProcedure, opts...),
	}
}

func (c *Client) PlaceBid(ctx context.Context, req *connect.Request[PlaceBidRequest]) (*connect.Response[PlaceBidResponse], error) {
	return c.placeBid.CallUnary(ctx, req)
}

func (c *Client) GetLeaderSnapshot(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[GetLeaderSnapshotResponse], error) {
	return c.getLeaderSnapshot.CallUnary(ctx, req)
}

func (c *Client) ListBids(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[ListBidsResponse], error) {
	return c.listBids.CallUnary(ctx, req)
}

func (c *Client) ListBidsByBidder(ctx context.Context, req *connect.Request[ListBidsByBidderRequest]) (*connect.Response[ListBidsResponse], error) {
	return c.listBidsByBidder.CallUnary(ctx, req)
}

func (c *Client) GetAuctionEndTime(ctx context.Context, req *connect.Request[AuctionRequest]) (*connect.Response[GetAuctionEndTimeResponse], error) {
	return c.getAuctionEndTime.CallUnary(ctx, req)
}
