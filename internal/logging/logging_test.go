package logging

import "testing"

func TestNew(t *testing.T) {
	for _, format := range []string{"", "json", "console"} {
		lg, err := New("debug", format)
		if err != nil {
			t.Fatalf("New(debug, %q): %v", format, err)
		}
		if !lg.Core().Enabled(-1) {
			t.Fatalf("format %q: debug should be enabled", format)
		}
	}
	if lg, err := New("WARN", "json"); err != nil || lg.Core().Enabled(0) {
		t.Fatalf("warn logger should drop info: %v", err)
	}
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected invalid level to fail")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected unknown format to fail")
	}
}

func TestMaskEmail(t *testing.T) {
	tests := map[string]string{
		"ana.lima@example.com": "a***@example.com",
		" b@x.io ":             "b***@x.io",
		"":                     "",
		"nodomain":             "***",
		"@example.com":         "***",
	}
	for in, want := range tests {
		if got := MaskEmail(in); got != want {
			t.Fatalf("MaskEmail(%q) = %q, want %q", in, got, want)
		}
	}
}
