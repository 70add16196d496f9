package tenant

import (
	"strings"
	"testing"
)

func TestValidateSlug(t *testing.T) {
	tests := []struct {
		name    string
		slug    string
		wantErr bool
	}{
		{name: "simple", slug: "acme"},
		{name: "single character", slug: "x"},
		{name: "digits and hyphens", slug: "acme-2"},
		{name: "empty", slug: "", wantErr: true},
		{name: "uppercase", slug: "Acme", wantErr: true},
		{name: "underscore", slug: "acme_co", wantErr: true},
		{name: "too long", slug: strings.Repeat("a", 64), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSlug(tt.slug)
			if tt.wantErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestStatusCanAuthenticate(t *testing.T) {
	for status, want := range map[Status]bool{
		StatusActive:    true,
		StatusTrial:     true,
		StatusSuspended: false,
		StatusCancelled: false,
	} {
		if got := status.CanAuthenticate(); got != want {
			t.Errorf("%s.CanAuthenticate() = %v, want %v", status, got, want)
		}
	}
}
