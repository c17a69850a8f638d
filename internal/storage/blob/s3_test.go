package blob

import (
	"io"
	"strings"
	"testing"
)

func TestCountingReaderTracksConsumedBytes(t *testing.T) {
	payload := strings.Repeat("frame", 100)
	counted := &countingReader{r: strings.NewReader(payload)}

	data, err := io.ReadAll(counted)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(data) != len(payload) {
		t.Fatalf("short read: %d != %d", len(data), len(payload))
	}
	if counted.n != int64(len(payload)) {
		t.Fatalf("expected %d counted bytes, got %d", len(payload), counted.n)
	}
}
