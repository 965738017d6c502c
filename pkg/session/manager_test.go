package session

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sandboxrunner/sandboxrunner/pkg/apperrors"
)

func TestManager_CreateGeneratesIDWhenEmpty(t *testing.T) {
	m := NewManager()
	s := m.Create("")
	assert.NotEmpty(t, s.ID)
}

func TestManager_CreateReusesExistingID(t *testing.T) {
	m := NewManager()
	s1 := m.Create("fixed-id")
	s2 := m.Create("fixed-id")
	assert.Same(t, s1, s2)
}

func TestManager_AppendAndList(t *testing.T) {
	m := NewManager()
	id, _ := m.Append("", RoleUser, "hi")
	_, _ = m.Append(id, RoleAssistant, "hello")

	messages, err := m.List(id)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, RoleUser, messages[0].Role)
	assert.Equal(t, RoleAssistant, messages[1].Role)
	assert.False(t, messages[1].Timestamp.Before(messages[0].Timestamp))
}

func TestManager_GetUnknownReturnsNotFound(t *testing.T) {
	m := NewManager()
	_, err := m.Get("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestManager_DeleteUnknownReturnsNotFound(t *testing.T) {
	m := NewManager()
	err := m.Delete("nope")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperrors.ErrNotFound))
}

func TestManager_DeleteThenGetReturnsNotFound(t *testing.T) {
	m := NewManager()
	id, _ := m.Append("", RoleUser, "hi")
	require.NoError(t, m.Delete(id))
	_, err := m.Get(id)
	require.Error(t, err)
}

func TestManager_SummarizeSkipsEmptySessions(t *testing.T) {
	m := NewManager()
	m.Create("empty-session")
	id, _ := m.Append("", RoleUser, "hi")

	summaries := m.Summarize()
	require.Len(t, summaries, 1)
	assert.Equal(t, id, summaries[0].ID)
	assert.Equal(t, 1, summaries[0].Count)
}

func TestSession_AppendIsMonotonicUnderConcurrency(t *testing.T) {
	m := NewManager()
	id, _ := m.Append("", RoleUser, "start")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.Append(id, RoleAssistant, "reply")
		}(i)
	}
	wg.Wait()

	messages, err := m.List(id)
	require.NoError(t, err)
	require.Len(t, messages, 21)
	for i := 1; i < len(messages); i++ {
		assert.False(t, messages[i].Timestamp.Before(messages[i-1].Timestamp))
	}
}
