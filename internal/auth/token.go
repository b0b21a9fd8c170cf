package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/taskman/internal/model"
)

// ErrInvalidToken はトークンが不正・改ざん・期限切れ、または発行者/対象が一致しないことを表す。
var ErrInvalidToken = errors.New("auth: invalid token")

// Claims はアクセストークンに含めるクレーム。
// subjectにユーザーIDを格納する。
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username"`
	Email    string `json:"email"`
}

// UserID は検証済みトークンのユーザーIDを返す。
func (c *Claims) UserID() string {
	return c.Subject
}

// TokenIssuer はベアラートークンの発行と検証を行う。
type TokenIssuer interface {
	Issue(user *model.User) (string, time.Time, error)
	Verify(token string) (*Claims, error)
}

// JWTConfig はJWT発行の設定。
type JWTConfig struct {
	Key      []byte
	Issuer   string
	Audience string
	TTL      time.Duration
}

// JWTIssuer はHS256署名のJWTによるTokenIssuerの実装。
type JWTIssuer struct {
	config JWTConfig
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTIssuer はJWTIssuerを生成する。
func NewJWTIssuer(config JWTConfig) *JWTIssuer {
	return newJWTIssuer(config, time.Now)
}

func newJWTIssuer(config JWTConfig, now func() time.Time) *JWTIssuer {
	return &JWTIssuer{
		config: config,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(config.Issuer),
			jwt.WithAudience(config.Audience),
			jwt.WithExpirationRequired(),
			jwt.WithIssuedAt(),
			jwt.WithTimeFunc(now),
		),
	}
}

// Issue はユーザーのアクセストークンと有効期限を返す。
func (j *JWTIssuer) Issue(user *model.User) (string, time.Time, error) {
	now := j.now().UTC().Truncate(time.Second)
	expiresAt := now.Add(j.config.TTL)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    j.config.Issuer,
			Audience:  jwt.ClaimStrings{j.config.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Username: user.Username,
		Email:    user.Email,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.config.Key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify はトークンの署名・アルゴリズム・発行者・対象・有効期限を検証し、クレームを返す。
// 検証に失敗した場合は常にErrInvalidTokenを返す。
func (j *JWTIssuer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := j.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return j.config.Key, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

var _ TokenIssuer = (*JWTIssuer)(nil)
