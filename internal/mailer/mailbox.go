// Package mailer is a development mail sink.
package mailer

import (
	"strings"
	"sync"
	"time"

	"github.com/joao-fontenele/storefront/internal/notify"
)

type Envelope struct {
	notify.Message
	ReceivedAt time.Time `json:"receivedAt"`
}

// Mailbox holds up to capacity messages, dropping the oldest first.
type Mailbox struct {
	mu       sync.Mutex
	capacity int
	messages []Envelope
}

func NewMailbox(capacity int) *Mailbox {
	if capacity <= 0 {
		capacity = 1
	}
	return &Mailbox{capacity: capacity}
}

func (m *Mailbox) Deliver(env Envelope) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == m.capacity {
		m.messages = m.messages[1:]
	}
	m.messages = append(m.messages, env)
}

func (m *Mailbox) List(to string) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Envelope, 0, len(m.messages))
	for _, env := range m.messages {
		if to == "" || strings.EqualFold(env.To, to) {
			out = append(out, env)
		}
	}
	return out
}
