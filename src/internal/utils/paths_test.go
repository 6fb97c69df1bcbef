package utils

import (
	"runtime"
	"testing"
)

func TestGetAbsolutePath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("unix paths")
	}

	tests := []struct {
		name    string
		path    string
		baseDir string
		want    string
	}{
		{"absolute", "/opt/etc/rules.conf", "/base", "/opt/etc/rules.conf"},
		{"relative", "rules.conf", "/opt/etc/keen-dnsset", "/opt/etc/keen-dnsset/rules.conf"},
		{"dot", "./rules.conf", "/base/dir", "/base/dir/rules.conf"},
		{"parent", "../rules.conf", "/base/dir", "/base/rules.conf"},
		{"nested", "rules/local.conf", "/base", "/base/rules/local.conf"},
		{"empty", "", "/base", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetAbsolutePath(tt.path, tt.baseDir); got != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}
