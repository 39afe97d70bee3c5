package api

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/billtx/internal/service"
	"github.com/mmynk/billtx/internal/storage"
	"github.com/mmynk/billtx/internal/storage/sqlite"
	"github.com/mmynk/billtx/internal/txn"
	"github.com/mmynk/billtx/internal/validation"
)

var fixedNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

type staticName string

func (n staticName) Name() string { return string(n) }

// setupTestServer serves a BillingHandler backed by a temp-file SQLite database.
func setupTestServer(t *testing.T) *BillingClient {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.NewUserService(
		store,
		txn.NewManager(store, logger),
		validation.New(func() time.Time { return fixedNow }),
		logger,
		service.WithNameGenerator(staticName("Maria")),
	)

	path, handler := NewBillingServiceHandler(NewBillingHandler(svc, logger))
	mux := http.NewServeMux()
	mux.Handle(path, handler)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return NewBillingServiceClient(http.DefaultClient, server.URL)
}

func addUser(t *testing.T, client *BillingClient) User {
	t.Helper()
	resp, err := client.AddUsers(context.Background(), connect.NewRequest(&AddUsersRequest{Documents: []string{"12345678900"}}))
	require.NoError(t, err)
	require.Len(t, resp.Msg.Users, 1)
	return resp.Msg.Users[0]
}

func total(t *testing.T, client *BillingClient) string {
	t.Helper()
	resp, err := client.GetTotalAmount(context.Background(), connect.NewRequest(&GetTotalAmountRequest{}))
	require.NoError(t, err)
	return resp.Msg.Total
}

func TestAddUsersAndGetUser(t *testing.T) {
	client := setupTestServer(t)
	user := addUser(t, client)
	assert.Equal(t, "Maria", user.Name)

	resp, err := client.GetUser(context.Background(), connect.NewRequest(&GetUserRequest{UserID: user.ID}))
	require.NoError(t, err)
	assert.Equal(t, "Sr(a). Maria", resp.Msg.User.Name)
	assert.Equal(t, "12345678900", resp.Msg.User.Document)

	list, err := client.ListUsers(context.Background(), connect.NewRequest(&ListUsersRequest{}))
	require.NoError(t, err)
	require.Len(t, list.Msg.Users, 1)
	assert.Equal(t, "Maria", list.Msg.Users[0].Name)
}

func TestGetUser_NotFound(t *testing.T) {
	client := setupTestServer(t)

	_, err := client.GetUser(context.Background(), connect.NewRequest(&GetUserRequest{UserID: 42}))
	require.Error(t, err)
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestAddUsers_RequiresDocuments(t *testing.T) {
	client := setupTestServer(t)

	_, err := client.AddUsers(context.Background(), connect.NewRequest(&AddUsersRequest{}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAddBill(t *testing.T) {
	client := setupTestServer(t)
	user := addUser(t, client)

	resp, err := client.AddBill(context.Background(), connect.NewRequest(&AddBillRequest{
		UserID: user.ID,
		Type:   "rent",
		Value:  "1000",
	}))
	require.NoError(t, err)
	assert.Equal(t, "RENT", resp.Msg.Bill.Type)
	assert.Equal(t, "1000.00", resp.Msg.Bill.Value)
	assert.Equal(t, "2024-06-15", resp.Msg.Bill.Date)
	assert.Equal(t, "1000.00", total(t, client))
}

func TestAddBill_BadInput(t *testing.T) {
	client := setupTestServer(t)
	user := addUser(t, client)

	tests := []struct {
		name string
		req  *AddBillRequest
	}{
		{"unknown type", &AddBillRequest{UserID: user.ID, Type: "GROCERIES", Value: "10"}},
		{"bad value", &AddBillRequest{UserID: user.ID, Type: "FOOD", Value: "ten"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.AddBill(context.Background(), connect.NewRequest(tt.req))
			assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
		})
	}
	assert.Equal(t, "0.00", total(t, client))
}

func mixedBills() []BillInput {
	return []BillInput{
		{Type: "FOOD", Value: "10", Date: "2024-06-14"},
		{Type: "FOOD", Value: "20", Date: "2024-06-16"},
	}
}

func TestAddBills_Modes(t *testing.T) {
	tests := []struct {
		mode      string
		wantCode  connect.Code
		wantTotal string
	}{
		{"propagate", connect.CodeInvalidArgument, "0.00"},
		{"propagate_rollback_any", connect.CodeInvalidArgument, "0.00"},
		{"panic", connect.CodeInvalidArgument, "0.00"},
		{"catch", 0, "10.00"},
		{"catch_remote", 0, "10.00"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			client := setupTestServer(t)
			user := addUser(t, client)

			_, err := client.AddBills(context.Background(), connect.NewRequest(&AddBillsRequest{
				UserID: user.ID,
				Bills:  mixedBills(),
				Mode:   tt.mode,
			}))
			if tt.wantCode == 0 {
				require.NoError(t, err)
			} else {
				assert.Equal(t, tt.wantCode, connect.CodeOf(err))
			}
			assert.Equal(t, tt.wantTotal, total(t, client))
		})
	}
}

func TestAddBills_UnknownMode(t *testing.T) {
	client := setupTestServer(t)
	user := addUser(t, client)

	_, err := client.AddBills(context.Background(), connect.NewRequest(&AddBillsRequest{
		UserID: user.ID,
		Bills:  mixedBills(),
		Mode:   "retry",
	}))
	assert.Equal(t, connect.CodeInvalidArgument, connect.CodeOf(err))
}

func TestAddBillsThenFail(t *testing.T) {
	tests := []struct {
		mode      string
		wantTotal string
	}{
		{"direct", "0.00"},
		{"managed", "30.00"},
	}
	for _, tt := range tests {
		t.Run(tt.mode, func(t *testing.T) {
			client := setupTestServer(t)
			user := addUser(t, client)

			_, err := client.AddBillsThenFail(context.Background(), connect.NewRequest(&AddBillsThenFailRequest{
				UserID: user.ID,
				Bills: []BillInput{
					{Type: "FOOD", Value: "10", Date: "2024-06-14"},
					{Type: "LEISURE", Value: "20", Date: "2024-06-14"},
				},
				Mode: tt.mode,
			}))
			assert.Equal(t, connect.CodeAborted, connect.CodeOf(err))
			assert.Equal(t, tt.wantTotal, total(t, client))
		})
	}
}

func TestCreateBill(t *testing.T) {
	client := setupTestServer(t)
	user := addUser(t, client)

	resp, err := client.CreateBill(context.Background(), connect.NewRequest(&CreateBillRequest{
		UserID: user.ID,
		Bill:   BillInput{Type: "health", Value: "99.90", Date: "2024-06-01"},
	}))
	require.NoError(t, err)
	assert.Equal(t, "HEALTH", resp.Msg.Bill.Type)
	assert.Equal(t, "99.90", resp.Msg.Bill.Value)
	assert.Equal(t, user.ID, resp.Msg.Bill.UserID)
	assert.Equal(t, "99.90", total(t, client))

	_, err = client.CreateBill(context.Background(), connect.NewRequest(&CreateBillRequest{
		UserID: 999,
		Bill:   BillInput{Type: "health", Value: "1", Date: "2024-06-01"},
	}))
	assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
}

func TestRecoverPanic(t *testing.T) {
	h := NewBillingHandler(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	spec := connect.Spec{Procedure: AddBillsProcedure}

	tests := []struct {
		name  string
		value any
		want  connect.Code
	}{
		{"validation error", &validation.ValidationError{Field: "Date", Tag: "notfuture", Reason: "is in the future"}, connect.CodeInvalidArgument},
		{"not found", storage.ErrNotFound, connect.CodeNotFound},
		{"plain error", errors.New("boom"), connect.CodeInternal},
		{"string", "boom", connect.CodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := h.recoverPanic(context.Background(), spec, http.Header{}, tt.value)
			assert.Equal(t, tt.want, connect.CodeOf(err))
		})
	}
}
