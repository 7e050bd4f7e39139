package services

import (
	"errors"
	"time"

	"splitstream/internal/core/domain"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// AuthService verifies bearer tokens and turns them into an actor and the
// tier that decides session capacity.
type AuthService interface {
	GenerateToken(actor domain.ActorID, tier domain.Tier, trialEndsAt time.Time) (string, error)
	ValidateToken(tokenString string) (*Claims, error)
	EffectiveTier(claims *Claims) domain.Tier
}

type Claims struct {
	ActorID     domain.ActorID `json:"user_id"`
	Tier        domain.Tier    `json:"tier,omitempty"`
	TrialEndsAt int64          `json:"trial_ends_at,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret      []byte
	accessTokenTTL time.Duration
	now            func() time.Time
}

func NewAuthService(jwtSecret string, accessTokenTTL time.Duration) AuthService {
	return &authService{
		jwtSecret:      []byte(jwtSecret),
		accessTokenTTL: accessTokenTTL,
		now:            time.Now,
	}
}

func (s *authService) GenerateToken(actor domain.ActorID, tier domain.Tier, trialEndsAt time.Time) (string, error) {
	now := s.now()
	claims := &Claims{
		ActorID: actor,
		Tier:    tier,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(actor),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if !trialEndsAt.IsZero() {
		claims.TrialEndsAt = trialEndsAt.Unix()
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

func (s *authService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.ActorID.IsAnonymous() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// EffectiveTier maps the claimed tier to the one in force now. Unknown tiers
// fall back to free and lapsed trials are downgraded.
func (s *authService) EffectiveTier(claims *Claims) domain.Tier {
	if claims == nil {
		return domain.TierFree
	}

	tier, err := domain.ParseTier(string(claims.Tier))
	if err != nil {
		return domain.TierFree
	}

	var trialEndsAt time.Time
	if claims.TrialEndsAt > 0 {
		trialEndsAt = time.Unix(claims.TrialEndsAt, 0)
	}
	return domain.EffectiveTier(tier, trialEndsAt, s.now())
}
