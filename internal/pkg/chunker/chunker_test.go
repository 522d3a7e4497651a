package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func TestSplit_Empty(t *testing.T) {
	if got := New(1000, 0).Split(""); len(got) != 0 {
		t.Fatalf("expected no chunks for empty input, got %d", len(got))
	}
}

func TestSplit_FixedSize(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		size      int
		wantCount int
		wantLast  int
	}{
		{name: "shorter than size", input: strings.Repeat("a", 10), size: 1000, wantCount: 1, wantLast: 10},
		{name: "exact multiple", input: strings.Repeat("b", 3000), size: 1000, wantCount: 3, wantLast: 1000},
		{name: "remainder", input: strings.Repeat("c", 2500), size: 1000, wantCount: 3, wantLast: 500},
		{name: "single rune", input: "x", size: 1000, wantCount: 1, wantLast: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.size, 0).Split(tt.input)
			if len(got) != tt.wantCount {
				t.Fatalf("chunk count = %d, want %d", len(got), tt.wantCount)
			}
			if last := utf8.RuneCountInString(got[len(got)-1]); last != tt.wantLast {
				t.Errorf("last chunk length = %d, want %d", last, tt.wantLast)
			}
			if joined := strings.Join(got, ""); joined != tt.input {
				t.Error("chunks do not reassemble to the input")
			}
		})
	}
}

func TestSplit_CountsRunesNotBytes(t *testing.T) {
	input := strings.Repeat("é", 5) // 2 bytes each
	got := New(2, 0).Split(input)
	if len(got) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(got))
	}
	for i, c := range got {
		if !utf8.ValidString(c) {
			t.Errorf("chunk %d is not valid UTF-8", i)
		}
	}
}

func TestSplit_Overlap(t *testing.T) {
	got := New(4, 2).Split("abcdefgh")
	want := []string{"abcd", "cdef", "efgh"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("chunk %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestNew_ClampsOverlap(t *testing.T) {
	c := New(10, 10)
	if c.Overlap != 5 {
		t.Errorf("overlap = %d, want 5", c.Overlap)
	}
	if d := New(0, 0); d.Size != DefaultSize {
		t.Errorf("size = %d, want %d", d.Size, DefaultSize)
	}
}

func TestSplit_LiteralChunkerClampsLikeNew(t *testing.T) {
	for _, overlap := range []int{4, 9, -1} {
		literal := Chunker{Size: 4, Overlap: overlap}.Split("abcdefgh")
		built := New(4, overlap).Split("abcdefgh")
		if strings.Join(literal, ",") != strings.Join(built, ",") {
			t.Errorf("overlap %d: literal %v, New %v", overlap, literal, built)
		}
	}
	got := Chunker{Size: 4, Overlap: 4}.Split("abcdefgh")
	if strings.Join(got, ",") != "abcd,cdef,efgh" {
		t.Errorf("got %v, want [abcd cdef efgh]", got)
	}
}
