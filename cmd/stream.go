package cmd

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/iksnae/multichat/internal"
)

// streamPrinter writes assistant replies to out as they stream into the
// Store. It prints only the text added since the last event.
type streamPrinter struct {
	out io.Writer

	mu      sync.Mutex
	printed map[string]string
	open    string
}

func newStreamPrinter(out io.Writer) *streamPrinter {
	return &streamPrinter{out: out, printed: make(map[string]string)}
}

// attach subscribes to store and returns the unsubscribe function.
func (p *streamPrinter) attach(store *internal.Store) func() {
	return store.Subscribe(p.handle)
}

func (p *streamPrinter) handle(ev internal.StoreEvent) {
	if ev.Kind != internal.EventMessageAdded && ev.Kind != internal.EventMessageUpdated {
		return
	}
	msg := ev.Message
	if msg.Role != internal.RoleAssistant {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.open != "" && p.open != msg.ID {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out)
	}
	if p.open != msg.ID {
		fmt.Fprintln(p.out, roleLabel(msg))
		p.open = msg.ID
	}

	prev := p.printed[msg.ID]
	if strings.HasPrefix(msg.Content, prev) {
		fmt.Fprint(p.out, msg.Content[len(prev):])
	} else {
		fmt.Fprint(p.out, "\n"+msg.Content)
	}
	p.printed[msg.ID] = msg.Content
}

// finish ends the line of the last streamed message.
func (p *streamPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.open != "" {
		fmt.Fprintln(p.out)
		fmt.Fprintln(p.out)
		p.open = ""
	}
}
