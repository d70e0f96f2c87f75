package auth

import (
	"context"
	"testing"
	"time"
)

func TestCheckerAllow(t *testing.T) {
	c := NewChecker(map[string][]string{
		PermGlobalBan: {"r-staff", "r-admin"},
		PermOwnership: {"r-owner"},
	})

	staff := Actor{ID: "u1", Tag: "staff#1", RoleIDs: []string{"r-member", "r-staff"}}
	if !c.Allow(staff, PermGlobalBan) {
		t.Fatal("staff role should grant globalban.execute")
	}
	if c.Allow(staff, PermOwnership) {
		t.Fatal("staff role must not grant ownership")
	}
	if err := c.Require(staff, PermOwnership); err != ErrUnauthorized {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestCheckerEmptyListDeniesEveryone(t *testing.T) {
	c := NewChecker(map[string][]string{PermBlacklist: nil})
	owner := Actor{ID: "u2", RoleIDs: []string{"r-owner"}}
	if c.Allow(owner, PermBlacklist) {
		t.Fatal("empty role list must deny")
	}
	if c.Allow(owner, "unknown.permission") {
		t.Fatal("unknown permission must deny")
	}
}

func TestGenerateAndValidateToken(t *testing.T) {
	t.Setenv("COREBOT_OPS_SECRET", "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	token, err := GenerateToken("ops-user", []string{"Ops", "ops", ""}, time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	claims, err := ParseAndValidate(token)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if claims.Subject != "ops-user" {
		t.Fatalf("unexpected subject %q", claims.Subject)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "ops" {
		t.Fatalf("roles not deduplicated: %v", claims.Roles)
	}
	if !claims.HasOpsRole("OPS") {
		t.Fatal("HasOpsRole should be case-insensitive")
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	t.Setenv("COREBOT_OPS_SECRET", "test-secret")
	ResetSecretForTests()
	defer ResetSecretForTests()

	if _, err := ParseAndValidate("not-a-token"); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestActorContextRoundTrip(t *testing.T) {
	actor := Actor{ID: "u3", Tag: "mod#3", RoleIDs: []string{"r1"}}
	ctx := ContextWithActor(context.Background(), actor)
	got, ok := ActorFromContext(ctx)
	if !ok || got.ID != "u3" || got.Tag != "mod#3" {
		t.Fatalf("actor not round-tripped: %+v ok=%v", got, ok)
	}
	if _, ok := ActorFromContext(context.Background()); ok {
		t.Fatal("empty context should carry no actor")
	}
}
