package fake

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/upload"
)

var (
	_ core.Notifier         = (*Notifier)(nil)
	_ core.ChatDirectory    = (*Directory)(nil)
	_ core.AttachmentSource = (*Source)(nil)
)

// Push is one message delivered through Notifier.
type Push struct {
	To   string
	Text string
}

// Notifier records pushed messages.
type Notifier struct {
	// Err, when set, is returned from every Push after recording it.
	Err error

	mu     sync.Mutex
	pushes []Push
}

// Push implements core.Notifier.
func (n *Notifier) Push(_ context.Context, to, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pushes = append(n.pushes, Push{To: to, Text: text})
	return n.Err
}

// Pushes returns a copy of the recorded messages.
func (n *Notifier) Pushes() []Push {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Push(nil), n.pushes...)
}

// To returns the messages sent to one target.
func (n *Notifier) To(target string) []string {
	var out []string
	for _, p := range n.Pushes() {
		if p.To == target {
			out = append(out, p.Text)
		}
	}
	return out
}

// Directory serves display names from maps. Unknown ids return an error.
type Directory struct {
	Groups map[string]string
	Users  map[string]string

	mu    sync.Mutex
	calls int
}

// GroupName implements core.ChatDirectory.
func (d *Directory) GroupName(_ context.Context, groupID string) (string, error) {
	return d.lookup(d.Groups, groupID)
}

// UserName implements core.ChatDirectory.
func (d *Directory) UserName(_ context.Context, userID string) (string, error) {
	return d.lookup(d.Users, userID)
}

func (d *Directory) lookup(names map[string]string, id string) (string, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()
	if name, ok := names[id]; ok {
		return name, nil
	}
	return "", fmt.Errorf("unknown chat id %s", id)
}

// Calls returns how many lookups were made.
func (d *Directory) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// Source serves attachment bytes by message id. Queued errors are returned
// first; unknown ids yield upload.ErrAttachmentNotFound.
type Source struct {
	mu       sync.Mutex
	content  map[string][]byte
	errs     []error
	requests int
}

// NewSource returns an empty Source.
func NewSource() *Source {
	return &Source{content: make(map[string][]byte)}
}

// Add registers the content of a message.
func (s *Source) Add(messageID string, content []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content[messageID] = content
}

// FailNext queues errors for the next downloads, in order.
func (s *Source) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, errs...)
}

// Download implements core.AttachmentSource.
func (s *Source) Download(_ context.Context, messageID string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	content, ok := s.content[messageID]
	if !ok {
		return nil, fmt.Errorf("message %s: %w", messageID, upload.ErrAttachmentNotFound)
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

// Requests returns how many downloads were attempted.
func (s *Source) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}
