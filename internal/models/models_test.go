package models_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/persistorai/screener/internal/models"
)

func ptr[T any](v T) *T { return &v }

func assertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func assertErrorContains(t *testing.T, err error, want string) {
	t.Helper()

	if err == nil {
		t.Fatalf("expected error containing %q, got nil", want)
	}

	if !strings.Contains(err.Error(), want) {
		t.Errorf("expected error containing %q, got %q", want, err.Error())
	}

	if !errors.Is(err, models.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAddress_Validate(t *testing.T) {
	tests := []struct {
		name    string
		addr    models.Address
		wantErr string
	}{
		{name: "hex address", addr: "0xfbf4cfe1669a402c63ba0d0a2ce936949868931a"},
		{name: "opaque id", addr: "wallet-42"},
		{name: "empty", addr: "", wantErr: "address is required"},
		{name: "too long", addr: models.Address(strings.Repeat("a", 256)), wantErr: "exceeds maximum length"},
		{name: "inner space", addr: "0xabc def", wantErr: "whitespace"},
		{name: "newline", addr: "0xabc\n", wantErr: "whitespace"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.addr.Validate()
			if tc.wantErr != "" {
				assertErrorContains(t, err, tc.wantErr)
				return
			}
			assertNoError(t, err)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	got := models.NormalizeAddress("  0x098B716B8Aaf21512996dC57EB0615e2383E2f96 ")
	if got != "0x098b716b8aaf21512996dc57eb0615e2383e2f96" {
		t.Errorf("NormalizeAddress = %q", got)
	}
}

func TestScreenRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		req     models.ScreenRequest
		wantErr string
	}{
		{name: "valid", req: models.ScreenRequest{Client: "a", Sanctioned: "b"}},
		{name: "valid with overrides", req: models.ScreenRequest{Client: "a", Sanctioned: "b", RiskLimit: ptr(0.5), MaxIters: ptr(3)}},
		{name: "missing client", req: models.ScreenRequest{Sanctioned: "b"}, wantErr: "address is required"},
		{name: "same addresses", req: models.ScreenRequest{Client: "a", Sanctioned: "a"}, wantErr: "must differ"},
		{name: "zero risk limit", req: models.ScreenRequest{Client: "a", Sanctioned: "b", RiskLimit: ptr(0.0)}, wantErr: "risk_limit must be positive"},
		{name: "negative risk limit", req: models.ScreenRequest{Client: "a", Sanctioned: "b", RiskLimit: ptr(-1.0)}, wantErr: "risk_limit must be positive"},
		{name: "zero max iters", req: models.ScreenRequest{Client: "a", Sanctioned: "b", MaxIters: ptr(0)}, wantErr: "max_iters"},
		{name: "huge max iters", req: models.ScreenRequest{Client: "a", Sanctioned: "b", MaxIters: ptr(101)}, wantErr: "max_iters"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.req.Validate()
			if tc.wantErr != "" {
				assertErrorContains(t, err, tc.wantErr)
				return
			}
			assertNoError(t, err)
		})
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{models.ErrRateLimited, true},
		{fmt.Errorf("fetch 0xabc: %w", models.ErrNetwork), true},
		{models.ErrAddressNotFound, false},
		{errors.New("boom"), false},
		{nil, false},
	}

	for _, tc := range tests {
		if got := models.IsTransient(tc.err); got != tc.want {
			t.Errorf("IsTransient(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestNodeMeta_HasScore(t *testing.T) {
	var m models.NodeMeta
	if m.HasScore() {
		t.Error("zero NodeMeta should have no score")
	}

	m.Score = ptr(0.0)
	if !m.HasScore() {
		t.Error("explicit zero score should count as set")
	}
}
