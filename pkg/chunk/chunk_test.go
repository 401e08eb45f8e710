package chunk

import (
	"fmt"
	"strings"
	"testing"
)

func TestSplitValidation(t *testing.T) {
	tests := []struct {
		name          string
		wordsPerChunk int
		overlap       int
	}{
		{"zero window", 0, 0},
		{"negative window", -5, 0},
		{"negative overlap", 5, -1},
		{"overlap equals window", 5, 5},
		{"overlap exceeds window", 5, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Split("some text here", tt.wordsPerChunk, tt.overlap); err == nil {
				t.Errorf("Split(%d, %d) expected error", tt.wordsPerChunk, tt.overlap)
			}
		})
	}
}

func TestSplitBlankInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		chunks, err := Split(text, 300, 100)
		if err != nil {
			t.Fatalf("Split(%q) error = %v", text, err)
		}
		if len(chunks) != 0 {
			t.Errorf("Split(%q) = %v, want empty", text, chunks)
		}
	}
}

func TestSplitShortInput(t *testing.T) {
	chunks, err := Split("a b c", 300, 100)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0] != "a b c" {
		t.Errorf("Split() = %v, want [\"a b c\"]", chunks)
	}
}

func TestSplitWindows(t *testing.T) {
	words := make([]string, 10)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	text := strings.Join(words, " ")

	chunks, err := Split(text, 4, 1)
	if err != nil {
		t.Fatalf("Split() error = %v", err)
	}

	want := []string{
		"w0 w1 w2 w3",
		"w3 w4 w5 w6",
		"w6 w7 w8 w9",
	}
	if len(chunks) != len(want) {
		t.Fatalf("Split() returned %d chunks, want %d: %v", len(chunks), len(want), chunks)
	}
	for i := range want {
		if chunks[i] != want[i] {
			t.Errorf("chunk[%d] = %q, want %q", i, chunks[i], want[i])
		}
	}
}

// The last chunk must end exactly at the input word count: no trailing words
// lost, no duplicate trailing window emitted.
func TestSplitCoversAllWords(t *testing.T) {
	tests := []struct {
		wordCount     int
		wordsPerChunk int
		overlap       int
	}{
		{1, 4, 1},
		{4, 4, 1},
		{5, 4, 1},
		{100, 30, 10},
		{301, 300, 100},
		{600, 300, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%dw_%d_%d", tt.wordCount, tt.wordsPerChunk, tt.overlap), func(t *testing.T) {
			words := make([]string, tt.wordCount)
			for i := range words {
				words[i] = fmt.Sprintf("w%d", i)
			}

			chunks, err := Split(strings.Join(words, " "), tt.wordsPerChunk, tt.overlap)
			if err != nil {
				t.Fatalf("Split() error = %v", err)
			}
			if len(chunks) == 0 {
				t.Fatal("Split() returned no chunks")
			}

			last := strings.Fields(chunks[len(chunks)-1])
			if got := last[len(last)-1]; got != words[len(words)-1] {
				t.Errorf("last chunk ends with %q, want %q", got, words[len(words)-1])
			}

			// Dropping each window's leading overlap reconstructs the input.
			var rebuilt []string
			for i, c := range chunks {
				cw := strings.Fields(c)
				if i > 0 {
					if len(cw) <= tt.overlap {
						// Final window shorter than the overlap contributes
						// nothing new.
						continue
					}
					cw = cw[tt.overlap:]
				}
				rebuilt = append(rebuilt, cw...)
			}
			if strings.Join(rebuilt, " ") != strings.Join(words, " ") {
				t.Errorf("non-overlapping regions do not reconstruct input (%d words rebuilt of %d)",
					len(rebuilt), len(words))
			}
		})
	}
}

func TestSplitRestartable(t *testing.T) {
	text := strings.Repeat("alpha beta gamma delta ", 50)
	a, err := Split(text, 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Split(text, 20, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != len(b) {
		t.Fatalf("repeated Split() lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("chunk[%d] differs between runs", i)
		}
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapses whitespace", "a  b\t\nc", "a b c"},
		{"keeps basic punctuation", "Hello, world! Is this fine? y-e-s.", "Hello, world! Is this fine? y-e-s."},
		{"strips specials", "price: $5 (approx) #tag", "price 5 approx tag"},
		{"trims", "  padded  ", "padded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clean(tt.in); got != tt.want {
				t.Errorf("Clean(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
