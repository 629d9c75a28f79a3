package deploy

import (
	"errors"
	"strings"
	"testing"
)

func TestTailBufferKeepsRecentLines(t *testing.T) {
	b := newTailBuffer(3)
	for _, line := range []string{"one", "", "two", "three", "four"} {
		b.Append(line)
	}
	got := b.Snapshot()
	want := []string{"two", "three", "four"}
	if len(got) != len(want) {
		t.Fatalf("snapshot %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("snapshot %+v, want %+v", got, want)
		}
	}
	// Snapshots are copies, later appends must not leak into them.
	b.Append("five")
	if got[2] != "four" {
		t.Fatalf("snapshot mutated by later append: %+v", got)
	}
}

func TestBuildErrorMessage(t *testing.T) {
	err := &BuildError{
		Image: "deploy-abc123def456",
		Tail:  []string{"Step 4/9 : RUN npm run build", "error TS2304"},
		Err:   errors.New("build exited 1"),
	}
	msg := err.Error()
	for _, part := range []string{"deploy-abc123def456", "build exited 1", "error TS2304"} {
		if !strings.Contains(msg, part) {
			t.Fatalf("message missing %q: %s", part, msg)
		}
	}
	if !errors.Is(err, err.Err) {
		t.Fatalf("BuildError must unwrap to its cause")
	}
}
