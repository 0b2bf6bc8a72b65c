package units

import (
	"testing"
	"time"
)

func TestIsTimezoneValid(t *testing.T) {
	tests := []struct {
		name     string
		timezone string
		expected bool
	}{
		{"valid UTC", "UTC", true},
		{"valid Europe/London", "Europe/London", true},
		{"invalid", "Invalid/Timezone", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := IsTimezoneValid(tt.timezone)
			if res != tt.expected {
				t.Errorf("IsTimezoneValid(%s) = %v, want %v", tt.timezone, res, tt.expected)
			}
		})
	}
}

func TestLocation(t *testing.T) {
	loc, err := Location("")
	if err != nil || loc != time.UTC {
		t.Fatalf("Location(\"\") = %v, %v; want UTC", loc, err)
	}
	if _, err := Location("Invalid/Timezone"); err == nil {
		t.Fatal("expected error for invalid timezone")
	}
	loc, err = Location("Europe/Berlin")
	if err != nil {
		t.Fatalf("Location error: %v", err)
	}
	if loc.String() != "Europe/Berlin" {
		t.Fatalf("Location returned %s", loc)
	}
}

func TestConvertTime(t *testing.T) {
	utcTime := time.Date(2025, 9, 13, 12, 0, 0, 0, time.UTC)
	t.Run("UTC to UTC", func(t *testing.T) {
		out, err := ConvertTime(utcTime, "UTC")
		if err != nil {
			t.Fatalf("ConvertTime error: %v", err)
		}
		if !out.Equal(utcTime) {
			t.Fatalf("ConvertTime returned %v, want %v", out, utcTime)
		}
	})
	t.Run("UTC to Berlin keeps instant", func(t *testing.T) {
		out, err := ConvertTime(utcTime, "Europe/Berlin")
		if err != nil {
			t.Fatalf("ConvertTime error: %v", err)
		}
		if !out.Equal(utcTime) || out.Hour() != 14 {
			t.Fatalf("ConvertTime returned %v", out)
		}
	})
	t.Run("invalid zone", func(t *testing.T) {
		out, err := ConvertTime(utcTime, "Nowhere/Special")
		if err == nil {
			t.Fatal("expected error")
		}
		if !out.Equal(utcTime) {
			t.Fatalf("ConvertTime should return input on error, got %v", out)
		}
	})
}
