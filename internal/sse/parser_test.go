package sse

import (
	"reflect"
	"testing"
)

func TestFeedSingleFrame(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: status\ndata: {\"type\":\"status\"}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].EventName != "status" {
		t.Errorf("expected event name 'status', got %q", frames[0].EventName)
	}
	if frames[0].Data != `{"type":"status"}` {
		t.Errorf("unexpected data: %q", frames[0].Data)
	}
}

func TestFeedPartialThenComplete(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: status\ndata: {\"type\":\"status\"")
	if len(frames) != 0 {
		t.Fatalf("expected no frames from partial chunk, got %d", len(frames))
	}

	frames = p.Feed(",\"step\":\"cloning\",\"message\":\"go\"}\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame after completion, got %d", len(frames))
	}
	if frames[0].EventName != "status" {
		t.Errorf("expected event name 'status', got %q", frames[0].EventName)
	}
	want := `{"type":"status","step":"cloning","message":"go"}`
	if frames[0].Data != want {
		t.Errorf("data = %q, want %q", frames[0].Data, want)
	}
}

func TestFeedMultipleFramesInOneChunk(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: a\ndata: 1\n\nevent: b\ndata: 2\n\nevent: c\ndata: 3\n\n")
	if len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(frames))
	}
	for i, want := range []string{"a", "b", "c"} {
		if frames[i].EventName != want {
			t.Errorf("frame %d event = %q, want %q", i, frames[i].EventName, want)
		}
	}
}

func TestFeedNormalizesCRLF(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: status\r\ndata: payload\r\n\r\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].Data != "payload" {
		t.Errorf("data = %q, want %q", frames[0].Data, "payload")
	}
}

func TestFeedCRLFSplitAcrossChunks(t *testing.T) {
	p := NewParser()

	// First chunk ends mid-CRLF-pair; the \n arrives in the next chunk.
	if frames := p.Feed("data: x\r\n\r"); len(frames) != 0 {
		t.Fatalf("expected no frames, got %d", len(frames))
	}
	frames := p.Feed("\ndata: y\r\n\r\n")
	if len(frames) != 2 {
		t.Fatalf("expected 2 frames, got %d", len(frames))
	}
	if frames[0].Data != "x" || frames[1].Data != "y" {
		t.Errorf("got %q, %q; want x, y", frames[0].Data, frames[1].Data)
	}
}

func TestFeedLastOccurrenceWins(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: first\nevent: second\ndata: one\ndata: two\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].EventName != "second" {
		t.Errorf("event = %q, want %q", frames[0].EventName, "second")
	}
	if frames[0].Data != "two" {
		t.Errorf("data = %q, want %q", frames[0].Data, "two")
	}
}

func TestFeedIgnoresUnknownLines(t *testing.T) {
	p := NewParser()

	frames := p.Feed(": keep-alive comment\nretry: 3000\nevent: e\ndata: d\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if frames[0].EventName != "e" || frames[0].Data != "d" {
		t.Errorf("got frame %+v", frames[0])
	}
}

func TestFeedDropsEmptyData(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: ping\n\nevent: real\ndata: body\n\n")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame (data-less frame dropped), got %d", len(frames))
	}
	if frames[0].EventName != "real" {
		t.Errorf("event = %q, want %q", frames[0].EventName, "real")
	}
}

// Feeding a stream one byte at a time must produce the same frames as
// feeding it whole.
func TestFeedChunkBoundaryIndependence(t *testing.T) {
	stream := "event: status\r\ndata: {\"type\":\"status\",\"step\":\"cloning\"}\r\n\r\n" +
		": padding\n" +
		"event: thinking\ndata: {\"type\":\"thinking\",\"content\":\"hm\"}\n\n" +
		"data: {\"type\":\"done\"}\n\n"

	whole := NewParser().Feed(stream)

	for _, size := range []int{1, 2, 3, 5, 7, 16, len(stream)} {
		p := NewParser()
		var got []Frame
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, p.Feed(stream[i:end])...)
		}
		if !reflect.DeepEqual(got, whole) {
			t.Errorf("chunk size %d: frames diverge\ngot  %+v\nwant %+v", size, got, whole)
		}
	}
}

func TestTrailingDataIsNeverEmitted(t *testing.T) {
	p := NewParser()

	frames := p.Feed("event: a\ndata: 1\n\nevent: b\ndata: unterminated")
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	// No further feed: the unterminated tail is simply dropped with the
	// parser. There is no flush API.
}
