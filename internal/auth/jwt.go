package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"dormtrack/internal/model"
)

// TokenPair holds access and refresh tokens.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
}

// Claims represents JWT payload.
type Claims struct {
	UserID int64      `json:"id"`
	Role   model.Role `json:"role"`
	jwt.RegisteredClaims
}

// Issue issues signed access and refresh tokens carrying {id, role}.
func Issue(userID int64, role model.Role, issuer, key string, accessTTL, refreshTTL time.Duration) (TokenPair, error) {
	accessExp := time.Now().Add(accessTTL)
	refreshExp := time.Now().Add(refreshTTL)

	accessClaims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(accessExp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ID:        uuid.NewString(),
		},
	}

	refreshClaims := Claims{
		UserID: userID,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(refreshExp),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			// unique jti so a rotated refresh token never collides with the
			// one it replaces, even within the same second
			ID:        uuid.NewString(),
		},
	}

	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, accessClaims).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, err
	}

	refreshToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, refreshClaims).SignedString([]byte(key))
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
	}, nil
}

// Parse validates a token and returns claims.
func Parse(tokenStr, key, issuer string) (Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(key), nil
	})
	if err != nil {
		return Claims{}, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return Claims{}, errors.New("invalid token")
	}
	if issuer != "" && claims.Issuer != issuer {
		return Claims{}, errors.New("issuer mismatch")
	}
	if !claims.Role.Valid() {
		return Claims{}, errors.New("unknown role")
	}
	return *claims, nil
}
