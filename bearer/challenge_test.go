package bearer

import (
	"context"
	"testing"
)

func TestChallenge(t *testing.T) {
	cases := []struct {
		name string
		res  Result
		want string
	}{
		{"no token", Result{Reason: ReasonNoToken}, "Bearer"},
		{"rejected", Result{Reason: "token expired"}, `Bearer error="invalid_token"`},
		{"details", Result{Reason: "token expired", Detail: `exp "now"`}, `Bearer error="invalid_token", error_description="exp \"now\""`},
	}
	for _, tc := range cases {
		if got := Challenge(tc.res); got != tc.want {
			t.Errorf("%s: Challenge() = %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestTokenFromHeader(t *testing.T) {
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for in, want := range cases {
		if got := TokenFromHeader(in); got != want {
			t.Errorf("TokenFromHeader(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIdentityContext(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Fatalf("empty context should have no identity")
	}
	ctx := WithIdentity(context.Background(), &Identity{Subject: "u1"})
	id, ok := IdentityFromContext(ctx)
	if !ok || id.Subject != "u1" {
		t.Fatalf("identity = %+v, %v", id, ok)
	}
}
