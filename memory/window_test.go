package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentrt/model"
)

func TestWindowMemory_KeepsLastExchanges(t *testing.T) {
	m := NewWindowMemory(2)
	for i := 0; i < 5; i++ {
		m.SaveExchange(fmt.Sprintf("q%d", i), fmt.Sprintf("a%d", i))
	}

	msgs := m.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, model.Message{Role: model.RoleUser, Content: "q3"}, msgs[0])
	assert.Equal(t, model.Message{Role: model.RoleAssistant, Content: "a4"}, msgs[3])
}

func TestWindowMemory_DefaultWindow(t *testing.T) {
	assert.Equal(t, DefaultWindow, NewWindowMemory(0).Window())
	assert.Equal(t, 7, NewWindowMemory(7).Window())
}

func TestWindowMemory_MessagesIsCopy(t *testing.T) {
	m := NewWindowMemory(4)
	m.SaveExchange("hello", "world")

	msgs := m.Messages()
	msgs[0].Content = "changed"
	assert.Equal(t, "hello", m.Messages()[0].Content)
}

func TestWindowMemory_Forget(t *testing.T) {
	tests := []struct {
		name    string
		term    string
		removed int
		left    int
	}{
		{name: "case insensitive", term: "WIKIPEDIA", removed: 2, left: 2},
		{name: "regular expression", term: "wiki(pedia)?|docs", removed: 3, left: 1},
		{name: "invalid pattern matched literally", term: "docs(", removed: 1, left: 3},
		{name: "empty term", term: "", removed: 0, left: 4},
		{name: "no match", term: "weather", removed: 0, left: 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewWindowMemory(4)
			m.SaveExchange("search wikipedia for go", "I have no tool called Wikipedia")
			m.SaveExchange("open docs(", "done")

			assert.Equal(t, tt.removed, m.Forget(tt.term))
			assert.Equal(t, tt.left, m.Len())
		})
	}
}

func TestWindowMemory_Clear(t *testing.T) {
	m := NewWindowMemory(4)
	m.SaveExchange("a", "b")
	m.Clear()
	assert.Zero(t, m.Len())
}

func TestWindowMemory_Concurrent(t *testing.T) {
	m := NewWindowMemory(3)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.SaveExchange(fmt.Sprintf("q%d", i), "a")
			m.Forget("q1")
			_ = m.Messages()
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 6)
}
