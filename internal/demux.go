package internal

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StreamErrorPrefix is prepended to a backend error before it is shown in the
// failing model's message.
const StreamErrorPrefix = "Sorry, an error occurred: "

// Buffer is one model's accumulated output for a single turn
type Buffer struct {
	Index     int
	ModelID   int
	ModelName string
	MessageID string
	Text      string
	// Reached is true once the stream got to this model and a message was
	// created for it.
	Reached bool
	// Failed is true when an error fragment terminated this model's output.
	Failed bool
}

type accumulator struct {
	Buffer
	sb        strings.Builder
	streaming bool
}

// Demultiplexer splits one multi-model response stream into per-model
// messages. It is single use.
type Demultiplexer struct {
	sink    MessageSink
	buffers []*accumulator
	current int
	halted  bool
	started bool
	newID   func() string
	now     func() time.Time
}

// NewDemultiplexer prepares one buffer per model, each seeded with its header.
func NewDemultiplexer(models []ModelConfiguration, sink MessageSink) *Demultiplexer {
	d := &Demultiplexer{
		sink:    sink,
		buffers: make([]*accumulator, len(models)),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for i, m := range models {
		b := &accumulator{Buffer: Buffer{Index: i, ModelID: m.ID, ModelName: m.DisplayName(i)}}
		b.sb.WriteString(m.Header(i))
		d.buffers[i] = b
	}
	return d
}

// Start creates the first model's message. Run calls it; it is exported so
// callers that feed fragments by hand can show the first header early.
func (d *Demultiplexer) Start() {
	if d.started || len(d.buffers) == 0 {
		return
	}
	d.started = true
	d.open(0)
}

func (d *Demultiplexer) open(i int) {
	b := d.buffers[i]
	b.MessageID = d.newID()
	b.Reached = true
	b.streaming = true
	id := b.ModelID
	d.sink.AddMessage(Message{
		ID:        b.MessageID,
		Role:      RoleAssistant,
		Content:   b.sb.String(),
		Streaming: true,
		ModelID:   &id,
		CreatedAt: d.now(),
	})
}

func (d *Demultiplexer) finalize(i int) {
	b := d.buffers[i]
	if !b.Reached || !b.streaming {
		return
	}
	b.streaming = false
	d.sink.UpdateMessage(b.MessageID, b.sb.String(), false)
}

// Handle applies one fragment. It reports false once the demultiplexer has
// halted and no further fragments will be applied.
func (d *Demultiplexer) Handle(frag Fragment) bool {
	if d.halted {
		return false
	}
	d.Start()

	switch frag.Kind {
	case FragmentBoundary:
		if d.current >= len(d.buffers) {
			LogDebug("Ignoring extra boundary for %q", frag.Text)
			return true
		}
		d.finalize(d.current)
		d.current++
		if d.current < len(d.buffers) {
			d.open(d.current)
		}

	case FragmentContent:
		if d.current >= len(d.buffers) {
			LogDebug("Dropping content after the last model: %d bytes", len(frag.Text))
			return true
		}
		b := d.buffers[d.current]
		b.sb.WriteString(frag.Text)
		d.sink.UpdateMessage(b.MessageID, b.sb.String(), true)

	case FragmentError:
		LogWarn("Inference backend reported an error: %s", frag.Text)
		d.halted = true
		i := d.current
		if i >= len(d.buffers) {
			// every model has already been finalized
			return false
		}
		b := d.buffers[i]
		b.sb.WriteString(StreamErrorPrefix + frag.Text)
		b.Failed = true
		b.streaming = true
		d.finalize(i)
		return false
	}
	return true
}

// Finish finalizes every buffer still streaming and returns the results.
func (d *Demultiplexer) Finish() []Buffer {
	d.Start()
	out := make([]Buffer, len(d.buffers))
	for i, b := range d.buffers {
		d.finalize(i)
		out[i] = b.Buffer
		out[i].Text = b.sb.String()
	}
	return out
}

// Halted reports whether an error fragment stopped the stream.
func (d *Demultiplexer) Halted() bool {
	return d.halted
}

// Run reads body to the end, routing each fragment to its model. The
// returned buffers are always complete, even when err is non-nil.
func (d *Demultiplexer) Run(ctx context.Context, body io.Reader) ([]Buffer, error) {
	d.Start()
	fr := NewFragmentReader(body)

	for {
		if err := ctx.Err(); err != nil {
			return d.Finish(), err
		}
		frag, err := fr.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return d.Finish(), nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return d.Finish(), ctxErr
			}
			buffers := d.Finish()
			return buffers, &StreamError{Partial: partialText(buffers), Err: err}
		}
		if !d.Handle(frag) {
			LogDebug("Stream halted after error; discarding remaining fragments")
			return d.Finish(), nil
		}
	}
}

func partialText(buffers []Buffer) string {
	var parts []string
	for _, b := range buffers {
		if b.Reached {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n\n")
}

// ReachedBuffers filters the buffers that produced a message.
func ReachedBuffers(buffers []Buffer) []Buffer {
	var out []Buffer
	for _, b := range buffers {
		if b.Reached {
			out = append(out, b)
		}
	}
	return out
}
