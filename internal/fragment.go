package internal

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FragmentKind tags a decoded stream line
type FragmentKind int

const (
	// FragmentContent carries model output text.
	FragmentContent FragmentKind = iota
	// FragmentBoundary marks the switch from one model's output to the next.
	FragmentBoundary
	// FragmentError carries a backend-reported error.
	FragmentError
)

func (k FragmentKind) String() string {
	switch k {
	case FragmentContent:
		return "content"
	case FragmentBoundary:
		return "boundary"
	case FragmentError:
		return "error"
	default:
		return "unknown"
	}
}

// Fragment is one decoded line of the chat stream. Text holds the content,
// the boundary label, or the error message depending on Kind.
type Fragment struct {
	Kind FragmentKind
	Text string
}

// boundaryPattern matches the in-band separator the inference backend emits
// between two models' outputs.
var boundaryPattern = regexp.MustCompile(`(?s)--- Response from (.*?) ---`)

type wireFragment struct {
	Content *string `json:"content"`
	Error   *string `json:"error"`
}

// DecodeFragment parses a single stream line. ok is false for lines that
// carry nothing to act on (empty content, objects with neither field).
func DecodeFragment(line []byte) (Fragment, bool, error) {
	var w wireFragment
	if err := json.Unmarshal(line, &w); err != nil {
		return Fragment{}, false, &ParseError{Source: "stream", Key: truncate(string(line), 80), Err: err}
	}

	if w.Error != nil && *w.Error != "" {
		return Fragment{Kind: FragmentError, Text: *w.Error}, true, nil
	}
	if w.Content == nil || *w.Content == "" {
		return Fragment{}, false, nil
	}
	if m := boundaryPattern.FindStringSubmatch(*w.Content); m != nil {
		return Fragment{Kind: FragmentBoundary, Text: m[1]}, true, nil
	}
	return Fragment{Kind: FragmentContent, Text: *w.Content}, true, nil
}

// FragmentReader splits a newline-delimited JSON body into fragments.
// Lines may arrive split across any number of reads.
type FragmentReader struct {
	r *bufio.Reader
}

// NewFragmentReader wraps a response body
func NewFragmentReader(r io.Reader) *FragmentReader {
	return &FragmentReader{r: bufio.NewReaderSize(r, 32*1024)}
}

// Next returns the next actionable fragment. Malformed lines are logged and
// skipped. It returns io.EOF once the body is exhausted.
func (fr *FragmentReader) Next() (Fragment, error) {
	for {
		line, readErr := fr.r.ReadBytes('\n')
		if len(line) > 0 {
			line = bytes.TrimSpace(line)
			if len(line) > 0 {
				if !utf8.Valid(line) {
					line = []byte(strings.ToValidUTF8(string(line), "�"))
				}
				frag, ok, err := DecodeFragment(line)
				if err != nil {
					LogWarn("Skipping malformed stream line: %v", err)
				} else if ok {
					return frag, nil
				}
			}
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return Fragment{}, io.EOF
			}
			return Fragment{}, readErr
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
