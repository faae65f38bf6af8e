package env

import "testing"

func TestGet(t *testing.T) {
	t.Setenv("RADAR_TEST_VALUE", "  console ")
	if got := Get("RADAR_TEST_VALUE", "json"); got != "console" {
		t.Fatalf("expected trimmed value, got %q", got)
	}

	t.Setenv("RADAR_TEST_VALUE", "   ")
	if got := Get("RADAR_TEST_VALUE", "json"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
}

func TestBool(t *testing.T) {
	t.Setenv("RADAR_TEST_FLAG", "true")
	if !Bool("RADAR_TEST_FLAG", false) {
		t.Fatal("expected true")
	}

	t.Setenv("RADAR_TEST_FLAG", "maybe")
	if Bool("RADAR_TEST_FLAG", false) {
		t.Fatal("expected fallback for unparsable value")
	}
}
