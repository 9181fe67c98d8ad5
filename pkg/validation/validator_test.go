package validation

import (
	"errors"
	"strings"
	"testing"

	"github.com/securely/surfacemap/pkg/model"
)

func TestValidateLookupRequest(t *testing.T) {
	tests := []struct {
		name    string
		req     *LookupRequest
		wantErr string
	}{
		{"valid", &LookupRequest{Email: "alice@example.com"}, ""},
		{"trimmed", &LookupRequest{Email: "  bob@example.com  "}, ""},
		{"empty", &LookupRequest{Email: ""}, "Email: field is required"},
		{"blank", &LookupRequest{Email: "   "}, "Email: field is required"},
		{"too long", &LookupRequest{Email: strings.Repeat("a", 255)}, "Email: must not exceed 254"},
		{"negative relax", &LookupRequest{Email: "a@b.c", Relax: -1}, "Relax: must be at least 0"},
		{"nil", nil, "cannot be nil"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateLookupRequest(tt.req)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected no error, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected error containing %q, got nil", tt.wantErr)
			}
			if !errors.Is(err, model.ErrInvalidInput) {
				t.Errorf("Expected ErrInvalidInput, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got %q", tt.wantErr, err.Error())
			}
		})
	}
}

func TestValidateLookupRequest_TrimsEmail(t *testing.T) {
	req := &LookupRequest{Email: "  bob@example.com  "}
	if err := ValidateLookupRequest(req); err != nil {
		t.Fatal(err)
	}
	if req.Email != "bob@example.com" {
		t.Errorf("Expected trimmed email, got %q", req.Email)
	}
}

func TestPointRequest(t *testing.T) {
	x, y := 10.0, 0.0
	if err := Struct(&PointRequest{X: &x, Y: &y}); err != nil {
		t.Errorf("Expected zero coordinate to be accepted, got %v", err)
	}
	if err := Struct(&PointRequest{X: &x}); err == nil {
		t.Error("Expected missing y to be rejected")
	}
}

func TestValidateRecords(t *testing.T) {
	if err := ValidateRecords(make([]model.BreachRecord, MaxRecords)); err != nil {
		t.Errorf("Expected %d records to be accepted, got %v", MaxRecords, err)
	}
	err := ValidateRecords(make([]model.BreachRecord, MaxRecords+1))
	if !errors.Is(err, model.ErrInvalidInput) {
		t.Errorf("Expected ErrInvalidInput for too many records, got %v", err)
	}
}
