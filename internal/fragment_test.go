package internal

import (
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

func TestDecodeFragment(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind FragmentKind
		wantText string
		wantOK   bool
		wantErr  bool
	}{
		{
			name:     "content",
			line:     `{"content":"hello"}`,
			wantKind: FragmentContent,
			wantText: "hello",
			wantOK:   true,
		},
		{
			name:     "boundary",
			line:     `{"content":"\n\n--- Response from Model B ---\n\n"}`,
			wantKind: FragmentBoundary,
			wantText: "Model B",
			wantOK:   true,
		},
		{
			name:     "boundary embedded in text",
			line:     `{"content":"tail--- Response from x ---head"}`,
			wantKind: FragmentBoundary,
			wantText: "x",
			wantOK:   true,
		},
		{
			name:     "error",
			line:     `{"error":"rate limited"}`,
			wantKind: FragmentError,
			wantText: "rate limited",
			wantOK:   true,
		},
		{
			name:     "error wins over content",
			line:     `{"content":"x","error":"boom"}`,
			wantKind: FragmentError,
			wantText: "boom",
			wantOK:   true,
		},
		{
			name:   "empty content dropped",
			line:   `{"content":""}`,
			wantOK: false,
		},
		{
			name:   "no fields dropped",
			line:   `{"other":1}`,
			wantOK: false,
		},
		{
			name:     "partial separator is content",
			line:     `{"content":"--- Response from"}`,
			wantKind: FragmentContent,
			wantText: "--- Response from",
			wantOK:   true,
		},
		{
			name:    "malformed",
			line:    `{"content":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frag, ok, err := DecodeFragment([]byte(tt.line))
			if (err != nil) != tt.wantErr {
				t.Fatalf("DecodeFragment() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				var perr *ParseError
				if !errors.As(err, &perr) {
					t.Errorf("DecodeFragment() error type = %T, want *ParseError", err)
				}
				return
			}
			if ok != tt.wantOK {
				t.Fatalf("DecodeFragment() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if frag.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", frag.Kind, tt.wantKind)
			}
			if frag.Text != tt.wantText {
				t.Errorf("Text = %q, want %q", frag.Text, tt.wantText)
			}
		})
	}
}

func readAll(t *testing.T, r io.Reader) []Fragment {
	t.Helper()
	fr := NewFragmentReader(r)
	var out []Fragment
	for {
		f, err := fr.Next()
		if errors.Is(err, io.EOF) {
			return out
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		out = append(out, f)
	}
}

func TestFragmentReader_SkipsMalformedAndBlankLines(t *testing.T) {
	SetLogOutput(io.Discard)
	defer SetLogOutput(nil)

	body := "{\"content\":\"a\"}\n\nnot json\n{\"content\":\"\"}\n{\"content\":\"b\"}\n"
	got := readAll(t, strings.NewReader(body))
	if len(got) != 2 {
		t.Fatalf("got %d fragments, want 2", len(got))
	}
	if got[0].Text != "a" || got[1].Text != "b" {
		t.Errorf("got %q, %q", got[0].Text, got[1].Text)
	}
}

func TestFragmentReader_OneByteReads(t *testing.T) {
	body := StreamBody("héllo ", "wörld", BoundaryText("B"), "✓")
	got := readAll(t, iotest.OneByteReader(strings.NewReader(body)))

	if len(got) != 4 {
		t.Fatalf("got %d fragments, want 4", len(got))
	}
	if got[0].Text+got[1].Text != "héllo wörld" {
		t.Errorf("content = %q", got[0].Text+got[1].Text)
	}
	if got[2].Kind != FragmentBoundary || got[2].Text != "B" {
		t.Errorf("boundary = %+v", got[2])
	}
	if got[3].Text != "✓" {
		t.Errorf("last = %q", got[3].Text)
	}
}

func TestFragmentReader_FinalLineWithoutNewline(t *testing.T) {
	got := readAll(t, strings.NewReader(`{"content":"x"}`+"\n"+`{"content":"y"}`))
	if len(got) != 2 || got[1].Text != "y" {
		t.Fatalf("got %+v", got)
	}
}

func TestFragmentReader_InvalidUTF8Replaced(t *testing.T) {
	body := "{\"content\":\"a\xffb\"}\n"
	got := readAll(t, strings.NewReader(body))
	if len(got) != 1 {
		t.Fatalf("got %d fragments, want 1", len(got))
	}
	if got[0].Text != "a�b" {
		t.Errorf("Text = %q, want replacement character", got[0].Text)
	}
}

func TestFragmentReader_PropagatesReadError(t *testing.T) {
	fr := NewFragmentReader(iotest.ErrReader(errors.New("reset")))
	_, err := fr.Next()
	if err == nil || errors.Is(err, io.EOF) {
		t.Fatalf("Next() error = %v, want read error", err)
	}
}

func TestFragmentKindString(t *testing.T) {
	if FragmentBoundary.String() != "boundary" {
		t.Errorf("String() = %q", FragmentBoundary.String())
	}
	if FragmentKind(42).String() != "unknown" {
		t.Errorf("String() = %q", FragmentKind(42).String())
	}
}
