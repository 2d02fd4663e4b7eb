// Package chat provides the conversational agent and its JSON-backed
// message history.
package chat

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// DefaultConversationID is the conversation used when the caller does not
// scope requests to a conversation.
const DefaultConversationID = "1"

// historyVersion is the envelope schema version. Bump when the message
// shape changes.
const historyVersion = 1

// Message roles.
const (
	RoleUser  = "user"
	RoleModel = "model"
)

// Message is one chat turn in the canonical envelope: role, content, and
// timestamp. The envelope is provider-agnostic by design so switching LLM
// SDKs never invalidates stored history.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// conversation is the stored state of one conversation.
type conversation struct {
	Messages  []Message `json:"messages"`
	UpdatedAt time.Time `json:"updated_at"`
}

// historyState is the on-disk JSON shape.
type historyState struct {
	Version       int                      `json:"version"`
	Conversations map[string]*conversation `json:"conversations"`
}

// HistoryStore persists chat messages as a JSON document keyed by
// conversation ID. A corrupt or missing file is treated as empty state and
// silently reset.
type HistoryStore struct {
	path string
	mu   sync.Mutex
}

// NewHistoryStore creates a store persisting to path.
func NewHistoryStore(path string) (*HistoryStore, error) {
	if path == "" {
		return nil, fmt.Errorf("history path cannot be empty")
	}
	return &HistoryStore{path: path}, nil
}

// Messages returns all messages for the conversation, oldest first.
func (h *HistoryStore) Messages(conversationID string) ([]Message, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.load()
	conv, ok := state.Conversations[conversationID]
	if !ok {
		return nil, nil
	}
	return conv.Messages, nil
}

// Append appends messages to the conversation and persists the store.
func (h *HistoryStore) Append(conversationID string, msgs ...Message) error {
	if len(msgs) == 0 {
		return nil
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.load()
	conv, ok := state.Conversations[conversationID]
	if !ok {
		conv = &conversation{}
		state.Conversations[conversationID] = conv
	}
	conv.Messages = append(conv.Messages, msgs...)
	conv.UpdatedAt = time.Now().UTC()

	return h.save(state)
}

// Clear removes all messages for the conversation.
func (h *HistoryStore) Clear(conversationID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	state := h.load()
	if _, ok := state.Conversations[conversationID]; !ok {
		return nil
	}
	delete(state.Conversations, conversationID)
	return h.save(state)
}

// load reads the state file. Missing or corrupt files yield empty state.
func (h *HistoryStore) load() *historyState {
	empty := &historyState{
		Version:       historyVersion,
		Conversations: make(map[string]*conversation),
	}

	data, err := os.ReadFile(h.path)
	if err != nil {
		return empty
	}

	var state historyState
	if err := json.Unmarshal(data, &state); err != nil {
		return empty
	}
	if state.Conversations == nil {
		state.Conversations = make(map[string]*conversation)
	}
	state.Version = historyVersion
	return &state
}

// save writes the state atomically: temp file then rename.
func (h *HistoryStore) save(state *historyState) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}

	dir := filepath.Dir(h.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating history dir %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("creating temp history file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("closing history: %w", err)
	}
	if err := os.Rename(tmp.Name(), h.path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("replacing history %s: %w", h.path, err)
	}
	return nil
}
