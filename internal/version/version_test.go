package version

import "testing"

func TestString(t *testing.T) {
	oldV, oldSHA, oldTime := Version, GitSHA, BuildTime
	t.Cleanup(func() { Version, GitSHA, BuildTime = oldV, oldSHA, oldTime })

	Version, GitSHA, BuildTime = "1.2.0", "abc123", "2026-01-02T03:04:05Z"
	want := "deltat 1.2.0 (git abc123, built 2026-01-02T03:04:05Z)"
	if got := String("deltat"); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
