package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	repos "github.com/yungbote/lessonbank-backend/internal/data/repos/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/ctxutil"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

// AuthService verifies bearer tokens and attaches the caller to the request context.
// Tokens are issued by the accounts service; this service only verifies them.
type AuthService interface {
	SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error)
	IssueAccessToken(userID uuid.UUID) (string, error)
	GetAccessTTL() time.Duration
}

type JWTClaims struct {
	jwt.RegisteredClaims
}

type authService struct {
	log          *logger.Logger
	roles        repos.UserRoleRepo
	jwtSecretKey string
	issuer       string
	accessTTL    time.Duration
}

func NewAuthService(log *logger.Logger, roles repos.UserRoleRepo, jwtSecretKey, issuer string, accessTTL time.Duration) AuthService {
	if accessTTL <= 0 {
		accessTTL = time.Hour
	}
	return &authService{
		log:          log.With("service", "AuthService"),
		roles:        roles,
		jwtSecretKey: jwtSecretKey,
		issuer:       strings.TrimSpace(issuer),
		accessTTL:    accessTTL,
	}
}

func (as *authService) IssueAccessToken(userID uuid.UUID) (string, error) {
	if userID == uuid.Nil {
		return "", fmt.Errorf("user id required")
	}
	now := time.Now()
	claims := JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID.String(),
			Issuer:    as.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(as.accessTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(as.jwtSecretKey))
}

// SetContextFromToken parses tokenString and attaches the caller with the role
// currently stored for them. A caller without a role is attached with an empty role.
func (as *authService) SetContextFromToken(ctx context.Context, tokenString string) (context.Context, error) {
	if tokenString == "" {
		return ctx, fmt.Errorf("missing token")
	}
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if as.issuer != "" {
		opts = append(opts, jwt.WithIssuer(as.issuer))
	}
	parsedToken, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(as.jwtSecretKey), nil
	}, opts...)
	if err != nil {
		return ctx, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := parsedToken.Claims.(*JWTClaims)
	if !ok || !parsedToken.Valid {
		return ctx, fmt.Errorf("invalid or expired token")
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return ctx, fmt.Errorf("invalid user id in token: %w", err)
	}

	actor := ctxutil.Actor{UserID: userID.String()}
	if as.roles != nil {
		role, err := as.roles.Get(dbctx.Context{Ctx: ctx}, userID)
		if err != nil {
			as.log.Warn("role lookup failed", "user_id", userID, "error", err)
			return ctx, fmt.Errorf("role lookup: %w", err)
		}
		if role != nil && role.IsActive {
			actor.Role = role.Role
		}
	}
	return ctxutil.WithActor(ctx, actor), nil
}

func (as *authService) GetAccessTTL() time.Duration {
	return as.accessTTL
}

// ActorID returns the authenticated caller's id from ctx.
func ActorID(ctx context.Context) (uuid.UUID, bool) {
	a, ok := ctxutil.GetActor(ctx)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(a.UserID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
