package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt"
)

const (
	RoleCourier = "courier"
	RoleAdmin   = "admin"
)

var (
	// ErrMissingToken は Authorization ヘッダーが無い、または Bearer 形式でない場合に返却されます。
	ErrMissingToken = errors.New("auth: missing bearer token")
	// ErrInvalidToken は署名・有効期限・ペイロードの検証に失敗した場合に返却されます。
	ErrInvalidToken = errors.New("auth: invalid or expired token")
	// ErrUnknownAccount はトークンの利用者が存在しない、または削除済みの場合に返却されます。
	ErrUnknownAccount = errors.New("auth: account not found")
	// ErrAccountBlocked はアカウントがブロックされている場合に返却されます。
	ErrAccountBlocked = errors.New("auth: account blocked")
	// ErrForbidden は必要なロールを持たない場合に返却されます。
	ErrForbidden = errors.New("auth: forbidden")
)

// BlockedError はブロック理由を保持する ErrAccountBlocked です。
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	if e.Reason == "" {
		return ErrAccountBlocked.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAccountBlocked, e.Reason)
}

// Is は ErrAccountBlocked との比較を可能にします。
func (e *BlockedError) Is(target error) bool {
	return target == ErrAccountBlocked
}

// Principal は認証済みの利用者です。
type Principal struct {
	UserID string
	Role   string
}

// IsAdmin は管理者ロールであれば true を返します。
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// AccountChecker は配達員アカウントの状態を確認します。
// 存在しない場合は ErrUnknownAccount、ブロック中は ErrAccountBlocked に一致するエラーを返します。
type AccountChecker interface {
	CheckActive(ctx context.Context, userID string) error
}

// AccountCheckerFunc は関数を AccountChecker として扱うためのアダプターです。
type AccountCheckerFunc func(ctx context.Context, userID string) error

// CheckActive は f を呼び出します。
func (f AccountCheckerFunc) CheckActive(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

// Verifier は認証サービスが発行した HS256 の JWT を検証します。
type Verifier struct {
	secret   []byte
	accounts AccountChecker
}

// Option は Verifier の任意設定です。
type Option func(*Verifier)

// WithAccountChecker は配達員アカウントの状態確認を有効にします。
func WithAccountChecker(c AccountChecker) Option {
	return func(v *Verifier) {
		v.accounts = c
	}
}

// NewVerifier は Verifier を生成します。
func NewVerifier(secret string, opts ...Option) *Verifier {
	v := &Verifier{secret: []byte(secret)}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Authenticate は Authorization ヘッダーの値から Principal を取り出します。
func (v *Verifier) Authenticate(ctx context.Context, header string) (Principal, error) {
	token, err := bearerToken(header)
	if err != nil {
		return Principal{}, err
	}

	p, err := v.Verify(token)
	if err != nil {
		return Principal{}, err
	}

	if v.accounts != nil && p.Role == RoleCourier {
		if err := v.accounts.CheckActive(ctx, p.UserID); err != nil {
			return Principal{}, err
		}
	}

	return p, nil
}

// Verify はトークン文字列を検証し、userId (または id / sub) と role を取り出します。
func (v *Verifier) Verify(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return Principal{}, ErrInvalidToken
	}

	userID := claimID(claims, "userId", "id", "sub")
	if userID == "" {
		return Principal{}, fmt.Errorf("%w: missing user id", ErrInvalidToken)
	}

	role, _ := claims["role"].(string)
	if role == "" {
		role = RoleCourier
	}

	return Principal{UserID: userID, Role: role}, nil
}

func bearerToken(header string) (string, error) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || scheme != "Bearer" || strings.TrimSpace(token) == "" {
		return "", ErrMissingToken
	}
	return strings.TrimSpace(token), nil
}

// claimID は数値 ID (JSON では float64) と文字列 ID の両方を受け付けます。
func claimID(claims jwt.MapClaims, keys ...string) string {
	for _, key := range keys {
		switch v := claims[key].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			if v > 0 {
				return strconv.FormatInt(int64(v), 10)
			}
		}
	}
	return ""
}

type principalContextKey struct{}

// WithPrincipal は ctx に Principal を格納します。
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// FromContext は ctx から Principal を取り出します。
func FromContext(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return Principal{}, false
	}
	p, ok := ctx.Value(principalContextKey{}).(Principal)
	return p, ok
}
