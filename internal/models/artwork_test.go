// ABOUTME: Tests for Artwork and SaleStatus helpers
// ABOUTME: Verifies label selection and status validation
package models

import "testing"

func TestSaleStatus_IsValid(t *testing.T) {
	tests := []struct {
		status SaleStatus
		want   bool
	}{
		{SaleAvailable, true},
		{SaleSold, true},
		{SaleReserved, true},
		{SaleUnknown, true},
		{SaleStatus(""), false},
		{SaleStatus("for sale"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsValid(); got != tt.want {
				t.Errorf("IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestArtwork_Label(t *testing.T) {
	a := &Artwork{Title: "Sunrise", Slug: "sunrise-1"}
	if got := a.Label(); got != "sunrise-1" {
		t.Errorf("Label() = %q, want slug", got)
	}

	a.Slug = ""
	if got := a.Label(); got != "Sunrise" {
		t.Errorf("Label() = %q, want title fallback", got)
	}
}

func TestArtwork_Has3DModel(t *testing.T) {
	a := &Artwork{}
	if a.Has3DModel() {
		t.Error("Has3DModel() = true for empty URL")
	}
	a.Model3DURL = "https://example.com/model.glb"
	if !a.Has3DModel() {
		t.Error("Has3DModel() = false with URL set")
	}
}
