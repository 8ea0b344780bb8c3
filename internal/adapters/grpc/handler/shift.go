package handler

import (
	"context"

	"github.com/ogurasousui/courier-shift/internal/adapters/presenter"
	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"github.com/ogurasousui/courier-shift/internal/platform/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ShiftServiceName は ShiftService の完全修飾名です。
const ShiftServiceName = "courier.shift.v1.ShiftService"

// ShiftServiceServer は ShiftService のサーバー側インターフェースです。
// メッセージはすべて well-known type で表現します。
type ShiftServiceServer interface {
	StartShift(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	EndShift(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	GetCurrentState(ctx context.Context, req *emptypb.Empty) (*structpb.Struct, error)
	// ListHistory は取得件数を受け取ります。0 の場合は既定値を使用します。
	ListHistory(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error)
	// ListEvents はシフト ID を受け取ります。
	ListEvents(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error)
	// GetRoster は page_size と page_token を持つ Struct を受け取ります。管理者のみ呼び出せます。
	GetRoster(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// ShiftServiceDesc は ShiftService の grpc.ServiceDesc です。
var ShiftServiceDesc = grpc.ServiceDesc{
	ServiceName: ShiftServiceName,
	HandlerType: (*ShiftServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "StartShift", Handler: unary("StartShift", newEmpty, ShiftServiceServer.StartShift)},
		{MethodName: "EndShift", Handler: unary("EndShift", newEmpty, ShiftServiceServer.EndShift)},
		{MethodName: "GetCurrentState", Handler: unary("GetCurrentState", newEmpty, ShiftServiceServer.GetCurrentState)},
		{MethodName: "ListHistory", Handler: unary("ListHistory", func() *wrapperspb.Int32Value { return &wrapperspb.Int32Value{} }, ShiftServiceServer.ListHistory)},
		{MethodName: "ListEvents", Handler: unary("ListEvents", func() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }, ShiftServiceServer.ListEvents)},
		{MethodName: "GetRoster", Handler: unary("GetRoster", func() *structpb.Struct { return &structpb.Struct{} }, ShiftServiceServer.GetRoster)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "courier/shift/v1/shift.proto",
}

// RegisterShiftServiceServer は ShiftService を登録します。
func RegisterShiftServiceServer(s grpc.ServiceRegistrar, srv ShiftServiceServer) {
	s.RegisterService(&ShiftServiceDesc, srv)
}

func newEmpty() *emptypb.Empty { return &emptypb.Empty{} }

func unary[T proto.Message](method string, newReq func() T, call func(ShiftServiceServer, context.Context, T) (*structpb.Struct, error)) grpc.MethodHandler {
	fullMethod := "/" + ShiftServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ShiftServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(ShiftServiceServer), ctx, req.(T))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ShiftGrpcHandler は ShiftService の gRPC 実装です。
type ShiftGrpcHandler struct {
	shifts   shift.UseCase
	couriers courier.UseCase
}

var _ ShiftServiceServer = (*ShiftGrpcHandler)(nil)

// NewShiftGrpcHandler は ShiftGrpcHandler を生成します。
func NewShiftGrpcHandler(shifts shift.UseCase, couriers courier.UseCase) *ShiftGrpcHandler {
	return &ShiftGrpcHandler{shifts: shifts, couriers: couriers}
}

// StartShift は呼び出し元の配達員のシフトを開始します。
func (h *ShiftGrpcHandler) StartShift(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := h.shifts.StartShift(ctx, shift.StartShiftInput{CourierID: p.UserID})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toStruct(map[string]any{"message": "Shift started", "shift": presenter.Record(rec)})
}

// EndShift は呼び出し元の配達員のシフトを終了します。
func (h *ShiftGrpcHandler) EndShift(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := h.shifts.EndShift(ctx, shift.EndShiftInput{CourierID: p.UserID})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toStruct(map[string]any{"message": "Shift ended", "shift": presenter.Record(rec)})
}

// GetCurrentState は呼び出し元の配達員の現在状態を返します。
func (h *ShiftGrpcHandler) GetCurrentState(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	state, err := h.shifts.GetCurrentState(ctx, shift.GetCurrentStateInput{CourierID: p.UserID})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toStruct(presenter.CurrentState(state))
}

// ListHistory は呼び出し元の配達員のシフト履歴を返します。
func (h *ShiftGrpcHandler) ListHistory(ctx context.Context, req *wrapperspb.Int32Value) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	records, err := h.shifts.ListHistory(ctx, shift.ListHistoryInput{
		CourierID: p.UserID,
		Limit:     int(req.GetValue()),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toStruct(map[string]any{"shifts": presenter.Records(records)})
}

// ListEvents は指定シフトのイベントを返します。
func (h *ShiftGrpcHandler) ListEvents(ctx context.Context, req *wrapperspb.StringValue) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}

	events, err := h.shifts.ListEvents(ctx, shift.ListEventsInput{
		CourierID: p.UserID,
		ShiftID:   req.GetValue(),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toStruct(map[string]any{"events": presenter.Events(events)})
}

// GetRoster は配達員一覧と各配達員の現在状態を返します。
func (h *ShiftGrpcHandler) GetRoster(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	p, err := principal(ctx)
	if err != nil {
		return nil, err
	}
	if !p.IsAdmin() {
		return nil, status.Error(codes.PermissionDenied, auth.ErrForbidden.Error())
	}

	fields := req.GetFields()
	page, err := h.couriers.ListCouriers(ctx, courier.ListCouriersInput{
		PageSize:  int(fields["page_size"].GetNumberValue()),
		PageToken: fields["page_token"].GetStringValue(),
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	var entries []*shift.RosterEntry
	if len(page.Couriers) > 0 {
		roster, err := h.shifts.GetRoster(ctx, shift.GetRosterInput{CourierIDs: presenter.CourierIDs(page.Couriers)})
		if err != nil {
			return nil, toStatusError(err)
		}
		entries = roster.Entries
	}

	return toStruct(map[string]any{
		"couriers":        presenter.Couriers(page.Couriers, entries),
		"next_page_token": page.NextPageToken,
	})
}

func principal(ctx context.Context) (auth.Principal, error) {
	p, ok := auth.FromContext(ctx)
	if !ok || p.UserID == "" {
		return auth.Principal{}, status.Error(codes.Unauthenticated, auth.ErrMissingToken.Error())
	}
	return p, nil
}

func toStruct(m map[string]any) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, "encode response")
	}
	return s, nil
}
