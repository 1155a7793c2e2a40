package challenge

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tech-arch1tect/medgate/config"
	"github.com/tech-arch1tect/medgate/services/logging"
	"go.uber.org/zap"
)

var (
	ErrInvalidToken     = errors.New("invalid challenge token")
	ErrExpiredToken     = errors.New("challenge token has expired")
	ErrMalformedToken   = errors.New("malformed challenge token")
	ErrInvalidSignature = errors.New("invalid challenge token signature")
	ErrWrongTokenType   = errors.New("token is not a second factor challenge")
)

const tokenType = "second_factor_pending"

type Claims struct {
	UserID    uint   `json:"user_id"`
	TokenType string `json:"token_type"`
	JTI       string `json:"jti"`
	jwt.RegisteredClaims
}

// Service issues and validates short-lived challenge tokens handed to a
// client that has passed the first authentication factor. The token is the
// only state carried between password login and second factor verification.
type Service struct {
	config *config.Config
	logger *logging.Service
}

func NewService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	if cfg.Challenge.SecretKey == "" {
		if logger != nil {
			logger.Error("challenge service initialization failed: SECRET_KEY is required")
		}
		return nil, fmt.Errorf("MEDGATE_CHALLENGE_SECRET_KEY is required")
	}

	return &Service{
		config: cfg,
		logger: logger,
	}, nil
}

func (s *Service) Issue(userID uint) (string, error) {
	now := time.Now()
	jti := uuid.New().String()
	claims := Claims{
		UserID:    userID,
		TokenType: tokenType,
		JTI:       jti,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.config.Challenge.Issuer,
			Subject:   fmt.Sprintf("%d", userID),
			Audience:  []string{s.config.Challenge.Issuer},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.Challenge.Expiry)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(s.config.Challenge.SecretKey))
	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to sign challenge token", zap.Error(err))
		}
		return "", fmt.Errorf("failed to issue challenge token: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("challenge token issued", zap.Uint("user_id", userID))
	}
	return tokenString, nil
}

func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() == "none" {
			return nil, errors.New("'none' algorithm is not allowed")
		}

		if token.Method.Alg() != "HS256" {
			return nil, fmt.Errorf("unexpected algorithm: expected HS256, got %s", token.Method.Alg())
		}

		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("invalid algorithm family: %v", token.Header["alg"])
		}

		return []byte(s.config.Challenge.SecretKey), nil
	})

	if err != nil {
		if s.logger != nil {
			s.logger.Warn("challenge token validation failed", zap.Error(err))
		}

		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrMalformedToken
		case errors.Is(err, jwt.ErrSignatureInvalid):
			return nil, ErrInvalidSignature
		default:
			return nil, ErrInvalidToken
		}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != tokenType {
		if s.logger != nil {
			s.logger.Warn("challenge token has wrong type",
				zap.String("token_type", claims.TokenType))
		}
		return nil, ErrWrongTokenType
	}

	return claims, nil
}

func (s *Service) ExpirySeconds() int {
	return int(s.config.Challenge.Expiry.Seconds())
}
