package update

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCanReplaceIn(t *testing.T) {
	tests := []struct {
		name string
		dir  func(t *testing.T) string
		want bool
	}{
		{
			name: "temp dir",
			dir:  func(t *testing.T) string { return t.TempDir() },
			want: true,
		},
		{
			name: "missing dir",
			dir:  func(t *testing.T) string { return filepath.Join(t.TempDir(), "gone") },
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := tt.dir(t)

			if got := canReplaceIn(dir); got != tt.want {
				t.Fatalf("canReplaceIn(%q) = %v, want %v", dir, got, tt.want)
			}

			if !tt.want {
				return
			}

			entries, err := os.ReadDir(dir)
			if err != nil {
				t.Fatal(err)
			}

			if len(entries) != 0 {
				t.Errorf("scratch file left behind: %v", entries)
			}
		})
	}
}
