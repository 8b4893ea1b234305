package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// TokenService issues and verifies the access/refresh token pair. The two
// kinds are signed with distinct secrets so a refresh token can never pass
// an access check and vice versa.
type TokenService interface {
	IssueAccess(claims *JWTClaims) (string, error)
	IssueRefresh(claims *JWTClaims) (string, error)
	IssuePair(identity Identity) (TokenPair, error)
	VerifyAccess(token string) (AuthClaims, error)
	VerifyRefresh(token string) (AuthClaims, error)
	Decode(token string) (AuthClaims, error)
	AccessTokenLifetime() time.Duration
}

// TokenServiceImpl implements the TokenService interface
type TokenServiceImpl struct {
	accessKey       []byte
	refreshKey      []byte
	accessLifetime  time.Duration
	refreshLifetime time.Duration
	issuer          string
	audience        jwt.ClaimStrings
	logger          Logger
}

// NewTokenService creates a new TokenService instance
func NewTokenService(cfg Config, logger Logger) TokenService {
	if logger == nil {
		logger = defLogger{}
	}

	return &TokenServiceImpl{
		accessKey:       []byte(cfg.GetAccessSigningKey()),
		refreshKey:      []byte(cfg.GetRefreshSigningKey()),
		accessLifetime:  cfg.GetAccessTokenLifetime(),
		refreshLifetime: cfg.GetRefreshTokenLifetime(),
		issuer:          cfg.GetIssuer(),
		audience:        cfg.GetAudience(),
		logger:          logger,
	}
}

// AccessTokenLifetime exposes the configured access lifetime, used for the
// expiresIn field in issuance responses.
func (ts *TokenServiceImpl) AccessTokenLifetime() time.Duration {
	return ts.accessLifetime
}

// IssueAccess signs claims with the access secret and lifetime.
func (ts *TokenServiceImpl) IssueAccess(claims *JWTClaims) (string, error) {
	return ts.sign(claims, ts.accessKey, ts.accessLifetime)
}

// IssueRefresh signs claims with the refresh secret and lifetime.
func (ts *TokenServiceImpl) IssueRefresh(claims *JWTClaims) (string, error) {
	return ts.sign(claims, ts.refreshKey, ts.refreshLifetime)
}

// IssuePair issues a fresh access/refresh pair for the identity.
func (ts *TokenServiceImpl) IssuePair(identity Identity) (TokenPair, error) {
	access, err := ts.IssueAccess(NewClaimsFor(identity))
	if err != nil {
		return TokenPair{}, err
	}

	refresh, err := ts.IssueRefresh(NewClaimsFor(identity))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(ts.accessLifetime.Seconds()),
	}, nil
}

func (ts *TokenServiceImpl) sign(claims *JWTClaims, key []byte, lifetime time.Duration) (string, error) {
	if claims == nil {
		return "", goerrors.New("claims must not be nil", goerrors.CategoryInternal)
	}

	if len(key) == 0 {
		return "", goerrors.New("signing key is not configured", goerrors.CategoryInternal)
	}

	now := time.Now()
	claims.RegisteredClaims.Issuer = ts.issuer
	claims.RegisteredClaims.Audience = ts.audience
	claims.RegisteredClaims.Subject = claims.UID
	claims.RegisteredClaims.IssuedAt = jwt.NewNumericDate(now)
	claims.RegisteredClaims.ExpiresAt = jwt.NewNumericDate(now.Add(lifetime))

	ensureTokenID(&claims.RegisteredClaims)

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(key)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT")
	}

	return signedString, nil
}

// VerifyAccess parses and validates an access token, returning structured claims
func (ts *TokenServiceImpl) VerifyAccess(tokenString string) (AuthClaims, error) {
	return ts.verify(tokenString, ts.accessKey)
}

// VerifyRefresh parses and validates a refresh token, returning structured claims
func (ts *TokenServiceImpl) VerifyRefresh(tokenString string) (AuthClaims, error) {
	return ts.verify(tokenString, ts.refreshKey)
}

func (ts *TokenServiceImpl) verify(tokenString string, key []byte) (AuthClaims, error) {
	parserOptions := make([]jwt.ParserOption, 0, 2)
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}
	if len(ts.audience) > 0 {
		parserOptions = append(parserOptions, jwt.WithAudience(ts.audience...))
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("TokenService verify encountered unexpected signing method", "alg", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	}, parserOptions...)

	if err != nil {
		if goerrors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}

	if claims, ok := token.Claims.(*JWTClaims); ok && token.Valid {
		return claims, nil
	}

	ts.logger.Error("TokenService verify could not decode or validate claims")
	return nil, ErrUnableToDecodeSession
}

// Decode extracts claims without verifying the signature. Use it only for
// non trust-boundary inspection, never for authorization decisions.
func (ts *TokenServiceImpl) Decode(tokenString string) (AuthClaims, error) {
	claims := &JWTClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
		return nil, goerrors.Wrap(err, ErrTokenMalformed.Category, ErrTokenMalformed.Message).WithTextCode(ErrTokenMalformed.TextCode)
	}
	return claims, nil
}
