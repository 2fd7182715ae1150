package main

import "testing"

func TestResolveStorePath(t *testing.T) {
	tests := []struct {
		name      string
		workspace string
		path      string
		want      string
	}{
		{"relative joins workspace", "/ws", ".requisite/archive.db", "/ws/.requisite/archive.db"},
		{"absolute untouched", "/ws", "/var/lib/archive.db", "/var/lib/archive.db"},
		{"empty stays empty", "/ws", "", ""},
	}
	for _, tt := range tests {
		if got := resolveStorePath(tt.workspace, tt.path); got != tt.want {
			t.Errorf("%s: resolveStorePath(%q, %q) = %q, want %q",
				tt.name, tt.workspace, tt.path, got, tt.want)
		}
	}
}
