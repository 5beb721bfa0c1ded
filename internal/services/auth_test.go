package services

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	types "github.com/yungbote/lessonbank-backend/internal/domain/lessons"
	"github.com/yungbote/lessonbank-backend/internal/platform/ctxutil"
	"github.com/yungbote/lessonbank-backend/internal/platform/dbctx"
	"github.com/yungbote/lessonbank-backend/internal/platform/logger"
)

type fakeRoles map[uuid.UUID]*types.UserRole

func (f fakeRoles) Get(_ dbctx.Context, id uuid.UUID) (*types.UserRole, error) { return f[id], nil }
func (f fakeRoles) Upsert(_ dbctx.Context, row *types.UserRole) error {
	f[row.UserID] = row
	return nil
}

func TestAuthRoundTripAttachesActiveRole(t *testing.T) {
	uid := uuid.New()
	roles := fakeRoles{uid: {UserID: uid, Role: "reviewer", IsActive: true}}
	svc := NewAuthService(logger.Nop(), roles, "secret", "lessonbank", time.Minute)

	tok, err := svc.IssueAccessToken(uid)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	a, ok := ctxutil.GetActor(ctx)
	if !ok || a.UserID != uid.String() || a.Role != "reviewer" {
		t.Fatalf("actor=%+v ok=%v", a, ok)
	}
	if got, ok := ActorID(ctx); !ok || got != uid {
		t.Fatalf("ActorID=%v ok=%v", got, ok)
	}
}

func TestAuthInactiveRoleIsDropped(t *testing.T) {
	uid := uuid.New()
	roles := fakeRoles{uid: {UserID: uid, Role: "admin", IsActive: false}}
	svc := NewAuthService(logger.Nop(), roles, "secret", "", time.Minute)
	tok, _ := svc.IssueAccessToken(uid)
	ctx, err := svc.SetContextFromToken(context.Background(), tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if a, _ := ctxutil.GetActor(ctx); a.Role != "" {
		t.Fatalf("inactive role attached: %q", a.Role)
	}
}

func TestAuthRejectsBadTokens(t *testing.T) {
	uid := uuid.New()
	svc := NewAuthService(logger.Nop(), fakeRoles{}, "secret", "lessonbank", time.Minute)

	other := NewAuthService(logger.Nop(), fakeRoles{}, "other-secret", "lessonbank", time.Minute)
	wrongKey, _ := other.IssueAccessToken(uid)

	wrongIssuer, _ := NewAuthService(logger.Nop(), fakeRoles{}, "secret", "elsewhere", time.Minute).IssueAccessToken(uid)

	expired, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   uid.String(),
		Issuer:    "lessonbank",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}}).SignedString([]byte("secret"))

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: uid.String(),
		Issuer:  "lessonbank",
	}}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	badSubject, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, JWTClaims{RegisteredClaims: jwt.RegisteredClaims{
		Subject: "not-a-uuid",
		Issuer:  "lessonbank",
	}}).SignedString([]byte("secret"))

	cases := map[string]string{
		"empty":        "",
		"garbage":      "abc.def.ghi",
		"wrong key":    wrongKey,
		"wrong issuer": wrongIssuer,
		"expired":      expired,
		"alg none":     none,
		"bad subject":  badSubject,
	}
	for name, tok := range cases {
		if _, err := svc.SetContextFromToken(context.Background(), tok); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}
