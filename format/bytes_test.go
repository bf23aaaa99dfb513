// bytes_test.go - Unit Tests fuer Byte-Formatierung
package format

import "testing"

func TestHumanBytes(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{0, "0 B"},
		{999, "999 B"},
		{1000, "1 KB"},
		{1024, "1 KB"},
		{1000000, "1 MB"},
		{2000000000, "2.0 GB"},
	}
	for _, tt := range tests {
		if got := HumanBytes(tt.in); got != tt.want {
			t.Errorf("HumanBytes(%d): got %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestHumanBytes2(t *testing.T) {
	tests := []struct {
		in   int64
		want string
	}{
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{2097152, "2.0 MiB"},
		{2147483648, "2.0 GiB"},
	}
	for _, tt := range tests {
		if got := HumanBytes2(tt.in); got != tt.want {
			t.Errorf("HumanBytes2(%d): got %q, want %q", tt.in, got, tt.want)
		}
	}
}
