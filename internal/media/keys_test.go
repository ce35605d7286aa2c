package media

import (
	"strconv"
	"strings"
	"testing"
	"time"
)

func TestBuildObjectKey(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000)
	key := buildObjectKey(now, "my summer clip.mp4")
	if key != "1700000000000-my-summer-clip.mp4" {
		t.Fatalf("unexpected key %q", key)
	}
}

func TestBuildObjectKeyFallsBackForEmptyName(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000)
	key := buildObjectKey(now, "   ")
	prefix, rest, found := strings.Cut(key, "-")
	if !found || rest == "" {
		t.Fatalf("expected generated suffix, got %q", key)
	}
	if _, err := strconv.ParseInt(prefix, 10, 64); err != nil {
		t.Fatalf("expected millisecond prefix, got %q", key)
	}
}

func TestSanitizeFileName(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{"clip.mp4", "clip.mp4"},
		{"my clip.mp4", "my-clip.mp4"},
		{"/tmp/uploads/clip.mp4", "clip.mp4"},
		{"  spaced  name.mov ", "spaced--name.mov"},
		{"...", ""},
	}
	for _, tc := range cases {
		if got := sanitizeFileName(tc.in); got != tc.want {
			t.Fatalf("sanitizeFileName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
