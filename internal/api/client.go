package api

import (
	"context"

	"connectrpc.com/connect"
)

// BillingClient calls a BillingService over Connect with JSON messages.
type BillingClient struct {
	getTotalAmount   *connect.Client[GetTotalAmountRequest, GetTotalAmountResponse]
	getUser          *connect.Client[GetUserRequest, GetUserResponse]
	listUsers        *connect.Client[ListUsersRequest, ListUsersResponse]
	addBill          *connect.Client[AddBillRequest, AddBillResponse]
	addUsers         *connect.Client[AddUsersRequest, AddUsersResponse]
	addBills         *connect.Client[AddBillsRequest, AddBillsResponse]
	addBillsThenFail *connect.Client[AddBillsThenFailRequest, AddBillsThenFailResponse]
	createBill       *connect.Client[CreateBillRequest, CreateBillResponse]
}

// NewBillingServiceClient creates a client for the service at baseURL.
func NewBillingServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *BillingClient {
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &BillingClient{
		getTotalAmount:   connect.NewClient[GetTotalAmountRequest, GetTotalAmountResponse](httpClient, baseURL+GetTotalAmountProcedure, opts...),
		getUser:          connect.NewClient[GetUserRequest, GetUserResponse](httpClient, baseURL+GetUserProcedure, opts...),
		listUsers:        connect.NewClient[ListUsersRequest, ListUsersResponse](httpClient, baseURL+ListUsersProcedure, opts...),
		addBill:          connect.NewClient[AddBillRequest, AddBillResponse](httpClient, baseURL+AddBillProcedure, opts...),
		addUsers:         connect.NewClient[AddUsersRequest, AddUsersResponse](httpClient, baseURL+AddUsersProcedure, opts...),
		addBills:         connect.NewClient[AddBillsRequest, AddBillsResponse](httpClient, baseURL+AddBillsProcedure, opts...),
		addBillsThenFail: connect.NewClient[AddBillsThenFailRequest, AddBillsThenFailResponse](httpClient, baseURL+AddBillsThenFailProcedure, opts...),
		createBill:       connect.NewClient[CreateBillRequest, CreateBillResponse](httpClient, baseURL+CreateBillProcedure, opts...),
	}
}

func (c *BillingClient) GetTotalAmount(ctx context.Context, req *connect.Request[GetTotalAmountRequest]) (*connect.Response[GetTotalAmountResponse], error) {
	return c.getTotalAmount.CallUnary(ctx, req)
}

func (c *BillingClient) GetUser(ctx context.Context, req *connect.Request[GetUserRequest]) (*connect.Response[GetUserResponse], error) {
	return c.getUser.CallUnary(ctx, req)
}

func (c *BillingClient) ListUsers(ctx context.Context, req *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error) {
	return c.listUsers.CallUnary(ctx, req)
}

func (c *BillingClient) AddBill(ctx context.Context, req *connect.Request[AddBillRequest]) (*connect.Response[AddBillResponse], error) {
	return c.addBill.CallUnary(ctx, req)
}

func (c *BillingClient) AddUsers(ctx context.Context, req *connect.Request[AddUsersRequest]) (*connect.Response[AddUsersResponse], error) {
	return c.addUsers.CallUnary(ctx, req)
}

func (c *BillingClient) AddBills(ctx context.Context, req *connect.Request[AddBillsRequest]) (*connect.Response[AddBillsResponse], error) {
	return c.addBills.CallUnary(ctx, req)
}

func (c *BillingClient) AddBillsThenFail(ctx context.Context, req *connect.Request[AddBillsThenFailRequest]) (*connect.Response[AddBillsThenFailResponse], error) {
	return c.addBillsThenFail.CallUnary(ctx, req)
}

func (c *BillingClient) CreateBill(ctx context.Context, req *connect.Request[CreateBillRequest]) (*connect.Response[CreateBillResponse], error) {
	return c.createBill.CallUnary(ctx, req)
}
