package version

import (
	"strings"
	"testing"
)

func TestResolveNeverEmpty(t *testing.T) {
	info := Resolve()
	if info.Version == "" {
		t.Fatal("Resolve returned an empty version")
	}
	if !strings.HasPrefix(info.GoVersion, "go") {
		t.Fatalf("unexpected go version %q", info.GoVersion)
	}
}

func TestShortCommit(t *testing.T) {
	t.Parallel()

	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("shortCommit: got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("shortCommit: got %q", got)
	}
}
