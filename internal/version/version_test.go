package version

import "testing"

func TestString(t *testing.T) {
	got := String("disaggregate")
	want := "disaggregate dev (git unknown, built unknown)"
	if got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
