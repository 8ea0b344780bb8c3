package main

import (
	"context"
	"errors"

	"github.com/ogurasousui/courier-shift/internal/core/courier"
	"github.com/ogurasousui/courier-shift/internal/platform/auth"
)

type activeChecker interface {
	CheckActive(ctx context.Context, id string) error
}

// accountChecker は配達員ディレクトリの結果を認証エラーに変換します。
func accountChecker(couriers activeChecker) auth.AccountChecker {
	return auth.AccountCheckerFunc(func(ctx context.Context, userID string) error {
		err := couriers.CheckActive(ctx, userID)
		var blocked *courier.BlockedError
		switch {
		case err == nil:
			return nil
		case errors.As(err, &blocked):
			return &auth.BlockedError{Reason: blocked.Reason}
		case errors.Is(err, courier.ErrCourierNotFound), errors.Is(err, courier.ErrInvalidID):
			return auth.ErrUnknownAccount
		default:
			return err
		}
	})
}
