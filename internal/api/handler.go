// Package api serves the user service over Connect RPC with JSON messages.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/service"
	"github.com/mmynk/billtx/internal/storage"
	"github.com/mmynk/billtx/internal/validation"
)

// ServiceName is the fully qualified RPC service name.
const ServiceName = "billtx.v1.BillingService"

// Procedure paths.
const (
	GetTotalAmountProcedure   = "/" + ServiceName + "/GetTotalAmount"
	GetUserProcedure          = "/" + ServiceName + "/GetUser"
	ListUsersProcedure        = "/" + ServiceName + "/ListUsers"
	AddBillProcedure          = "/" + ServiceName + "/AddBill"
	AddUsersProcedure         = "/" + ServiceName + "/AddUsers"
	AddBillsProcedure         = "/" + ServiceName + "/AddBills"
	AddBillsThenFailProcedure = "/" + ServiceName + "/AddBillsThenFail"
	CreateBillProcedure       = "/" + ServiceName + "/CreateBill"
)

// BillingHandler adapts service.UserService to Connect.
type BillingHandler struct {
	svc    *service.UserService
	logger *slog.Logger
}

// NewBillingHandler creates a BillingHandler.
func NewBillingHandler(svc *service.UserService, logger *slog.Logger) *BillingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BillingHandler{svc: svc, logger: logger}
}

// NewBillingServiceHandler builds an http.Handler serving every procedure of
// h and returns it with the path prefix to mount it on.
// The JSON codec and panic recovery are always installed.
func NewBillingServiceHandler(h *BillingHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{
		WithJSON(),
		connect.WithRecover(h.recoverPanic),
	}, opts...)

	mux := http.NewServeMux()
	mux.Handle(GetTotalAmountProcedure, connect.NewUnaryHandler(GetTotalAmountProcedure, h.GetTotalAmount, opts...))
	mux.Handle(GetUserProcedure, connect.NewUnaryHandler(GetUserProcedure, h.GetUser, opts...))
	mux.Handle(ListUsersProcedure, connect.NewUnaryHandler(ListUsersProcedure, h.ListUsers, opts...))
	mux.Handle(AddBillProcedure, connect.NewUnaryHandler(AddBillProcedure, h.AddBill, opts...))
	mux.Handle(AddUsersProcedure, connect.NewUnaryHandler(AddUsersProcedure, h.AddUsers, opts...))
	mux.Handle(AddBillsProcedure, connect.NewUnaryHandler(AddBillsProcedure, h.AddBills, opts...))
	mux.Handle(AddBillsThenFailProcedure, connect.NewUnaryHandler(AddBillsThenFailProcedure, h.AddBillsThenFail, opts...))
	mux.Handle(CreateBillProcedure, connect.NewUnaryHandler(CreateBillProcedure, h.CreateBill, opts...))

	return "/" + ServiceName + "/", mux
}

// GetTotalAmount returns the sum of all bills.
func (h *BillingHandler) GetTotalAmount(ctx context.Context, req *connect.Request[GetTotalAmountRequest]) (*connect.Response[GetTotalAmountResponse], error) {
	total, err := h.svc.TotalAmount(ctx)
	if err != nil {
		return nil, h.toConnectError("GetTotalAmount", err)
	}
	return connect.NewResponse(&GetTotalAmountResponse{Total: total.StringFixed(2)}), nil
}

// GetUser returns one user with its title-decorated name.
func (h *BillingHandler) GetUser(ctx context.Context, req *connect.Request[GetUserRequest]) (*connect.Response[GetUserResponse], error) {
	user, err := h.svc.GetUser(ctx, req.Msg.UserID)
	if err != nil {
		return nil, h.toConnectError("GetUser", err)
	}
	return connect.NewResponse(&GetUserResponse{User: toUser(user)}), nil
}

// ListUsers returns every user.
func (h *BillingHandler) ListUsers(ctx context.Context, req *connect.Request[ListUsersRequest]) (*connect.Response[ListUsersResponse], error) {
	users, err := h.svc.ListUsers(ctx)
	if err != nil {
		return nil, h.toConnectError("ListUsers", err)
	}
	return connect.NewResponse(&ListUsersResponse{Users: toUsers(users)}), nil
}

// AddBill appends one bill dated today.
func (h *BillingHandler) AddBill(ctx context.Context, req *connect.Request[AddBillRequest]) (*connect.Response[AddBillResponse], error) {
	typ, err := models.ParseBillType(req.Msg.Type)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	value, err := parseValue(req.Msg.Value)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	bill, err := h.svc.AddBill(ctx, req.Msg.UserID, typ, value)
	if err != nil {
		return nil, h.toConnectError("AddBill", err)
	}
	return connect.NewResponse(&AddBillResponse{Bill: toBill(bill)}), nil
}

// AddUsers creates one user per document.
func (h *BillingHandler) AddUsers(ctx context.Context, req *connect.Request[AddUsersRequest]) (*connect.Response[AddUsersResponse], error) {
	if len(req.Msg.Documents) == 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("documents required"))
	}

	users, err := h.svc.AddUsers(ctx, req.Msg.Documents...)
	if err != nil {
		return nil, h.toConnectError("AddUsers", err)
	}
	return connect.NewResponse(&AddUsersResponse{Users: toUsers(users)}), nil
}

// AddBills validates and appends a batch of bills.
func (h *BillingHandler) AddBills(ctx context.Context, req *connect.Request[AddBillsRequest]) (*connect.Response[AddBillsResponse], error) {
	mode, err := service.ParseValidationMode(req.Msg.Mode)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	bills, err := fromBillInputs(req.Msg.Bills)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := h.svc.AddBills(ctx, req.Msg.UserID, bills, mode); err != nil {
		return nil, h.toConnectError("AddBills", err)
	}
	return connect.NewResponse(&AddBillsResponse{}), nil
}

// AddBillsThenFail writes a batch of bills and always fails.
func (h *BillingHandler) AddBillsThenFail(ctx context.Context, req *connect.Request[AddBillsThenFailRequest]) (*connect.Response[AddBillsThenFailResponse], error) {
	mode, err := service.ParseNestedMode(req.Msg.Mode)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}
	bills, err := fromBillInputs(req.Msg.Bills)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := h.svc.AddBillsThenFail(ctx, req.Msg.UserID, bills, mode); err != nil {
		return nil, h.toConnectError("AddBillsThenFail", err)
	}
	return connect.NewResponse(&AddBillsThenFailResponse{}), nil
}

// CreateBill saves one bill in its own transaction.
func (h *BillingHandler) CreateBill(ctx context.Context, req *connect.Request[CreateBillRequest]) (*connect.Response[CreateBillResponse], error) {
	in, err := fromBillInput(req.Msg.Bill)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	user, err := h.svc.GetUser(ctx, req.Msg.UserID)
	if err != nil {
		return nil, h.toConnectError("CreateBill", err)
	}
	bill, err := h.svc.CreateBill(ctx, in, user)
	if err != nil {
		return nil, h.toConnectError("CreateBill", err)
	}
	return connect.NewResponse(&CreateBillResponse{Bill: toBill(bill)}), nil
}

func (h *BillingHandler) toConnectError(method string, err error) error {
	code := codeOf(err)
	if code == connect.CodeInternal {
		h.logger.Error(method+" failed", "error", err)
	} else {
		h.logger.Warn(method+" failed", "code", code, "error", err)
	}
	return connect.NewError(code, err)
}

// recoverPanic maps a panic carrying an error like a returned error, so a
// validation panic becomes CodeInvalidArgument. Other panic values are
// CodeInternal.
func (h *BillingHandler) recoverPanic(ctx context.Context, spec connect.Spec, header http.Header, p any) error {
	if err, ok := p.(error); ok {
		h.logger.Warn("Recovered panic", "procedure", spec.Procedure, "error", err)
		return connect.NewError(codeOf(err), err)
	}
	h.logger.Error("Recovered panic", "procedure", spec.Procedure, "panic", p)
	return connect.NewError(connect.CodeInternal, fmt.Errorf("panic: %v", p))
}

func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, validation.ErrValidationFailed), errors.Is(err, service.ErrInvalidMode):
		return connect.CodeInvalidArgument
	case errors.Is(err, service.ErrUnexpectedFailure):
		return connect.CodeAborted
	default:
		return connect.CodeInternal
	}
}
