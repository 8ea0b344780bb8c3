package courier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

const (
	defaultListPageSize = 50
	maxListPageSize     = 200
)

// Service は配達員ディレクトリに関するユースケースをまとめます。
type Service struct {
	repo Repository
}

// UseCase は配達員ディレクトリの公開インターフェースです。
type UseCase interface {
	GetCourier(ctx context.Context, in GetCourierInput) (*Courier, error)
	ListCouriers(ctx context.Context, in ListCouriersInput) (*ListCouriersResult, error)
}

// NewService は Service を生成します。
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetCourierInput は配達員取得時の入力です。
type GetCourierInput struct {
	ID string
}

// ListCouriersInput は一覧取得時の入力です。
type ListCouriersInput struct {
	PageSize  int
	PageToken string
}

// ListCouriersResult は一覧取得結果を表します。
type ListCouriersResult struct {
	Couriers      []*Courier
	NextPageToken string
}

// GetCourier は ID で配達員を取得します。
func (s *Service) GetCourier(ctx context.Context, in GetCourierInput) (*Courier, error) {
	if strings.TrimSpace(in.ID) == "" {
		return nil, fmt.Errorf("id: %w", ErrInvalidID)
	}
	return s.repo.FindByID(ctx, strings.TrimSpace(in.ID))
}

// ListCouriers は配達員の一覧を ID 順に取得します。
func (s *Service) ListCouriers(ctx context.Context, in ListCouriersInput) (*ListCouriersResult, error) {
	limit, err := normalizePageSize(in.PageSize)
	if err != nil {
		return nil, err
	}

	offset, err := parsePageToken(in.PageToken)
	if err != nil {
		return nil, err
	}

	couriers, nextToken, err := s.repo.List(ctx, ListCouriersFilter{
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		return nil, err
	}

	return &ListCouriersResult{
		Couriers:      couriers,
		NextPageToken: nextToken,
	}, nil
}

// CheckActive は配達員アカウントが存在し、ブロックされていないことを確認します。
func (s *Service) CheckActive(ctx context.Context, id string) error {
	c, err := s.GetCourier(ctx, GetCourierInput{ID: id})
	if err != nil {
		return err
	}
	if c.IsBlocked {
		blocked := &BlockedError{}
		if c.BlockedReason != nil {
			blocked.Reason = *c.BlockedReason
		}
		return blocked
	}
	return nil
}

// ListCourierIDs は ListCouriers の結果を ID のみに絞って返します。
// shift.CourierDirectory を満たします。
func (s *Service) ListCourierIDs(ctx context.Context, pageSize int, pageToken string) ([]string, string, error) {
	result, err := s.ListCouriers(ctx, ListCouriersInput{PageSize: pageSize, PageToken: pageToken})
	if err != nil {
		return nil, "", err
	}

	ids := make([]string, 0, len(result.Couriers))
	for _, c := range result.Couriers {
		ids = append(ids, c.ID)
	}
	return ids, result.NextPageToken, nil
}

func normalizePageSize(pageSize int) (int, error) {
	if pageSize <= 0 {
		return defaultListPageSize, nil
	}
	if pageSize > maxListPageSize {
		return 0, ErrInvalidPageSize
	}
	return pageSize, nil
}

func parsePageToken(token string) (int, error) {
	if strings.TrimSpace(token) == "" {
		return 0, nil
	}

	offset, err := strconv.Atoi(token)
	if err != nil || offset < 0 {
		return 0, ErrInvalidPageToken
	}

	return offset, nil
}
