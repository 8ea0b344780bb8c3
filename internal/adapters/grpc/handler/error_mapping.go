package handler

import (
	"errors"
	"fmt"

	"github.com/ogurasousui/courier-shift/internal/adapters/presenter"
	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/core/shift"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const errorDomain = "courier.shift.v1"

func toStatusError(err error) error {
	switch {
	case err == nil:
		return nil
	case shift.IsRejection(err):
		return rejectionStatus(err)
	case errors.Is(err, shift.ErrInvalidCourierID),
		errors.Is(err, shift.ErrInvalidShiftID),
		errors.Is(err, shift.ErrInvalidLimit),
		errors.Is(err, courier.ErrInvalidID),
		errors.Is(err, courier.ErrInvalidPageSize),
		errors.Is(err, courier.ErrInvalidPageToken):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, shift.ErrShiftNotFound), errors.Is(err, courier.ErrCourierNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, shift.ErrWriteConflict):
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, shift.ErrRosterUnavailable):
		return status.Error(codes.Unimplemented, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}

// rejectionStatus は業務ルールによる拒否を FailedPrecondition に変換し、
// 拒否コードと付加情報を ErrorInfo として添付します。
func rejectionStatus(err error) error {
	st := status.New(codes.FailedPrecondition, err.Error())

	code, details, ok := presenter.Rejection(err)
	if !ok {
		return st.Err()
	}

	info := &errdetails.ErrorInfo{
		Reason:   code,
		Domain:   errorDomain,
		Metadata: make(map[string]string, len(details)),
	}
	for k, v := range details {
		switch v.(type) {
		case string, int64, float64, bool:
			info.Metadata[k] = fmt.Sprint(v)
		}
	}

	withDetails, detailErr := st.WithDetails(info)
	if detailErr != nil {
		return st.Err()
	}
	return withDetails.Err()
}
