package usecase

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/example/devtrack-api/config"
	"github.com/example/devtrack-api/internal/domain"
)

// ErrInvalidToken covers every token verification failure: bad signature,
// expiry, malformed claims, or a purpose header that does not match the
// expected token type.
var ErrInvalidToken = errors.New("invalid token")

const (
	tokenPurposeAccess  = "access"
	tokenPurposeRefresh = "refresh"
)

type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// AccessClaims travel in short-lived access tokens.
type AccessClaims struct {
	jwt.RegisteredClaims
	UserID   string `json:"userId"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// RefreshClaims bind a long-lived refresh token to one session row. The
// token is only as valid as that session: verification here is necessary
// but not sufficient.
type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
}

type TokenIssuer interface {
	SignAccessToken(userID, email, username string) (string, error)
	SignRefreshToken(userID, sessionID string) (string, error)
	VerifyAccessToken(token string) (*AccessClaims, error)
	VerifyRefreshToken(token string) (*RefreshClaims, error)
	TokenResponse(user *domain.User, sessionID string) (*Tokens, error)
}

type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenIssuer(cfg *config.Config) (TokenIssuer, error) {
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwt secret required")
	}
	return &tokenIssuer{
		secret:     []byte(cfg.JWTSecret),
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		now:        time.Now,
	}, nil
}

func (i *tokenIssuer) SignAccessToken(userID, email, username string) (string, error) {
	now := i.now().UTC()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.accessTTL)),
		},
		UserID:   userID,
		Email:    email,
		Username: username,
	}
	return i.sign(claims, tokenPurposeAccess)
}

func (i *tokenIssuer) SignRefreshToken(userID, sessionID string) (string, error) {
	now := i.now().UTC()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.refreshTTL)),
		},
		UserID:    userID,
		SessionID: sessionID,
	}
	return i.sign(claims, tokenPurposeRefresh)
}

// sign stamps the token purpose into the protected header rather than the
// payload, so an access token can never be replayed as a refresh token even
// if the claim shapes overlap.
func (i *tokenIssuer) sign(claims jwt.Claims, purpose string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token.Header["typ"] = purpose
	return token.SignedString(i.secret)
}

func (i *tokenIssuer) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := i.parse(tokenStr, claims, tokenPurposeAccess); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *tokenIssuer) VerifyRefreshToken(tokenStr string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := i.parse(tokenStr, claims, tokenPurposeRefresh); err != nil {
		return nil, err
	}
	return claims, nil
}

func (i *tokenIssuer) parse(tokenStr string, claims jwt.Claims, purpose string) error {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return i.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	if typ, _ := token.Header["typ"].(string); typ != purpose {
		return ErrInvalidToken
	}
	return nil
}

func (i *tokenIssuer) TokenResponse(user *domain.User, sessionID string) (*Tokens, error) {
	access, err := i.SignAccessToken(user.ID, user.Email, user.Username)
	if err != nil {
		return nil, err
	}
	refresh, err := i.SignRefreshToken(user.ID, sessionID)
	if err != nil {
		return nil, err
	}
	return &Tokens{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(i.accessTTL.Seconds())}, nil
}
