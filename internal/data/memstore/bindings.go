package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/driveline/driveline/internal/core"
	"github.com/driveline/driveline/internal/domain/upload"
)

// Bindings is an in-memory core.BindingStore.
type Bindings struct {
	mu   sync.RWMutex
	sets map[string]map[string]struct{}
}

var _ core.BindingStore = (*Bindings)(nil)

// NewBindings creates an empty binding store.
func NewBindings() *Bindings {
	return &Bindings{sets: make(map[string]map[string]struct{})}
}

// Bind adds recipients to a shared context.
func (b *Bindings) Bind(contextID string, recipientIDs ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.sets[contextID]
	if !ok {
		set = make(map[string]struct{})
		b.sets[contextID] = set
	}
	for _, id := range recipientIDs {
		set[id] = struct{}{}
	}
}

// ListRecipients implements core.BindingStore.
func (b *Bindings) ListRecipients(_ context.Context, contextID string) ([]string, error) {
	b.mu.RLock()
	out := make([]string, 0, len(b.sets[contextID]))
	for id := range b.sets[contextID] {
		out = append(out, id)
	}
	b.mu.RUnlock()
	sort.Strings(out)
	return out, nil
}

// Credentials is an in-memory core.CredentialStore holding static tokens.
type Credentials struct {
	mu     sync.RWMutex
	tokens map[string]*oauth2.Token
	now    func() time.Time
}

var _ core.CredentialStore = (*Credentials)(nil)

// NewCredentials creates an empty credential store.
func NewCredentials() *Credentials {
	return &Credentials{
		tokens: make(map[string]*oauth2.Token),
		now:    time.Now,
	}
}

// Put stores the token of a recipient.
func (c *Credentials) Put(recipientID string, tok *oauth2.Token) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokens[recipientID] = tok
}

// TokenSource implements core.CredentialStore. Stored tokens are never
// refreshed; an expired one is reported as upload.ErrCredentialExpired.
func (c *Credentials) TokenSource(_ context.Context, recipientID string) (oauth2.TokenSource, error) {
	c.mu.RLock()
	tok, ok := c.tokens[recipientID]
	c.mu.RUnlock()
	if !ok || tok == nil {
		return nil, fmt.Errorf("recipient %s: %w", recipientID, upload.ErrCredentialNotFound)
	}
	if !tok.Expiry.IsZero() && !tok.Expiry.After(c.now()) {
		return nil, fmt.Errorf("recipient %s: %w", recipientID, upload.ErrCredentialExpired)
	}
	return oauth2.StaticTokenSource(tok), nil
}
