package validator

import "testing"

func TestHTTPURL(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr bool
	}{
		{"https://example.com/hooks", false},
		{"http://localhost:9000", false},
		{"", true},
		{"ftp://example.com", true},
		{"example.com/hooks", true},
		{"https://", true},
		{"http://[::1", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := HTTPURL("url", tt.raw)
			if (err != nil) != tt.wantErr {
				t.Errorf("HTTPURL(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			}
		})
	}
}

func TestRequired(t *testing.T) {
	if err := Required("a", "1", "b", "2"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	err := Required("cycle_id", "c", "title", "", "severity", "")
	if err == nil || err.Error() != "title is required" {
		t.Errorf("Required() = %v, want title is required", err)
	}
}
