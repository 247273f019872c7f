package memory

import (
	"regexp"
	"sync"

	"github.com/hupe1980/agentrt/model"
)

// DefaultWindow is the number of exchanges kept when no window is configured.
const DefaultWindow = 4

// WindowMemory is a process-local conversation buffer holding the last k
// exchanges (user message plus assistant answer). It is safe for concurrent
// use.
type WindowMemory struct {
	mu       sync.RWMutex
	k        int
	messages []model.Message
}

// NewWindowMemory creates a memory keeping the last k exchanges. A k below one
// selects DefaultWindow.
func NewWindowMemory(k int) *WindowMemory {
	if k < 1 {
		k = DefaultWindow
	}
	return &WindowMemory{k: k}
}

// Window returns the configured number of exchanges.
func (m *WindowMemory) Window() int { return m.k }

// SaveExchange appends one user input and the assistant output.
func (m *WindowMemory) SaveExchange(input, output string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages,
		model.Message{Role: model.RoleUser, Content: input},
		model.Message{Role: model.RoleAssistant, Content: output},
	)
	if limit := 2 * m.k; len(m.messages) > limit {
		m.messages = append([]model.Message(nil), m.messages[len(m.messages)-limit:]...)
	}
}

// Messages returns a copy of the buffered messages, oldest first.
func (m *WindowMemory) Messages() []model.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]model.Message(nil), m.messages...)
}

// Len returns the number of buffered messages.
func (m *WindowMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// Forget removes every message whose content matches term as a case
// insensitive regular expression. Terms that do not compile are matched
// literally. It returns the number of removed messages.
func (m *WindowMemory) Forget(term string) int {
	if term == "" {
		return 0
	}
	re, err := regexp.Compile("(?i)" + term)
	if err != nil {
		re = regexp.MustCompile("(?i)" + regexp.QuoteMeta(term))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.messages[:0]
	removed := 0
	for _, msg := range m.messages {
		if re.MatchString(msg.Content) {
			removed++
			continue
		}
		kept = append(kept, msg)
	}
	m.messages = kept
	return removed
}

// Clear drops all buffered messages.
func (m *WindowMemory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = nil
}
