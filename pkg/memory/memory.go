// Package memory implements the Memory Store: multi-session chat
// history plus durable long-term memories, persisted as JSON under a
// storage directory and consumed by the Context Assembler.
package memory

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/crace/crace/internal/errs"
)

// Role is a ChatMessage's speaker.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatMessage is a single turn in a Conversation.
type ChatMessage struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Conversation is one chat session, persisted as its own JSON file.
type Conversation struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	Messages    []ChatMessage  `json:"messages"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	ProjectRoot string         `json:"project_root"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// UserMemory is a durable fact or preference about the user or project.
type UserMemory struct {
	ID           string    `json:"id"`
	Category     string    `json:"category"`
	Content      string    `json:"content"`
	Importance   float64   `json:"importance"`
	CreatedAt    time.Time `json:"created_at"`
	LastAccessed time.Time `json:"last_accessed"`
	AccessCount  int       `json:"access_count"`
}

// maxHistoryLength is the in-memory message cap per conversation.
const maxHistoryLength = 50

// ConversationSummary is the lightweight listing shape for conversations/list.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	IsActive     bool      `json:"is_active"`
}

// RelevantContext is the bundle get_relevant_context returns: query-matched
// older messages followed by the most recent messages (oldest first), plus
// memories matched against a query.
type RelevantContext struct {
	History  []ChatMessage
	Memories []UserMemory
}

// Store manages conversations and long-term memories, with a single
// process-wide active conversation and per-mutation disk persistence.
type Store struct {
	mu sync.RWMutex

	storageDir string

	conversations map[string]*Conversation
	memories      map[string]*UserMemory
	activeID      string

	// diskMu serializes writes to disk independently of mu, so a slow
	// fsync never blocks concurrent in-memory reads for long.
	diskMu sync.Mutex
}

// New creates a Store rooted at storageDir (created if absent) and loads
// any conversations/memories already persisted there.
func New(storageDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(storageDir, "conversations"), 0o755); err != nil {
		return nil, errs.Wrap(errs.Internal, "memory.New", "create storage dir", err)
	}
	s := &Store{
		storageDir:    storageDir,
		conversations: make(map[string]*Conversation),
		memories:      make(map[string]*UserMemory),
	}
	s.loadFromDisk()
	return s, nil
}

func (s *Store) loadFromDisk() {
	convDir := filepath.Join(s.storageDir, "conversations")
	entries, err := os.ReadDir(convDir)
	if err == nil {
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
				continue
			}
			data, err := os.ReadFile(filepath.Join(convDir, e.Name()))
			if err != nil {
				continue
			}
			var c Conversation
			if err := json.Unmarshal(data, &c); err != nil {
				// Malformed file: skip it rather than aborting startup.
				continue
			}
			s.conversations[c.ID] = &c
		}
	}

	memFile := filepath.Join(s.storageDir, "memories.json")
	if data, err := os.ReadFile(memFile); err == nil {
		var raw map[string]*UserMemory
		if err := json.Unmarshal(data, &raw); err == nil {
			s.memories = raw
		}
	}
}

// CreateConversation starts a new session and makes it active.
func (s *Store) CreateConversation(title, projectRoot string) *Conversation {
	if title == "" {
		title = "New Conversation"
	}
	now := time.Now()
	c := &Conversation{
		ID:          uuid.NewString(),
		Title:       title,
		CreatedAt:   now,
		UpdatedAt:   now,
		ProjectRoot: projectRoot,
	}

	s.mu.Lock()
	s.conversations[c.ID] = c
	s.activeID = c.ID
	s.mu.Unlock()

	s.saveConversation(c)
	return c
}

// GetConversation returns a conversation by ID, or nil.
func (s *Store) GetConversation(id string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conversations[id]
}

// ActiveConversation returns the process-wide active conversation, or nil
// if none has been created/selected yet.
func (s *Store) ActiveConversation() *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == "" {
		return nil
	}
	return s.conversations[s.activeID]
}

// SetActiveConversation switches the active conversation. Reports false if
// id does not name an existing conversation.
func (s *Store) SetActiveConversation(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[id]; !ok {
		return false
	}
	s.activeID = id
	return true
}

// ListConversations returns every conversation, most-recently-updated first.
func (s *Store) ListConversations() []ConversationSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ConversationSummary, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, ConversationSummary{
			ID:           c.ID,
			Title:        c.Title,
			MessageCount: len(c.Messages),
			CreatedAt:    c.CreatedAt,
			UpdatedAt:    c.UpdatedAt,
			IsActive:     c.ID == s.activeID,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out
}

// DeleteConversation removes a conversation from memory and disk. Reports
// whether it existed.
func (s *Store) DeleteConversation(id string) bool {
	s.mu.Lock()
	_, ok := s.conversations[id]
	if ok {
		delete(s.conversations, id)
		if s.activeID == id {
			s.activeID = ""
		}
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.diskMu.Lock()
	_ = os.Remove(filepath.Join(s.storageDir, "conversations", id+".json"))
	s.diskMu.Unlock()
	return true
}

// AddMessage appends a message to convID (or the active conversation if
// convID is empty, creating one if none exists yet), trims history to the
// 50-message cap, persists, and returns the appended message.
func (s *Store) AddMessage(convID string, role Role, content string, metadata map[string]any) (*Conversation, ChatMessage) {
	s.mu.Lock()
	target := convID
	if target == "" {
		target = s.activeID
	}
	var c *Conversation
	if target != "" {
		c = s.conversations[target]
	}
	if c == nil {
		s.mu.Unlock()
		c = s.CreateConversation("New Conversation", "")
		s.mu.Lock()
	}

	msg := ChatMessage{Role: role, Content: content, Timestamp: time.Now(), Metadata: metadata}
	c.Messages = append(c.Messages, msg)
	c.UpdatedAt = msg.Timestamp
	trimHistory(c)
	s.mu.Unlock()

	s.saveConversation(c)
	return c, msg
}

// trimHistory keeps every system message plus the most recent non-system
// messages so the conversation's message count does not exceed the cap.
func trimHistory(c *Conversation) {
	if len(c.Messages) <= maxHistoryLength {
		return
	}
	var system, rest []ChatMessage
	for _, m := range c.Messages {
		if m.Role == RoleSystem {
			system = append(system, m)
		} else {
			rest = append(rest, m)
		}
	}
	keep := maxHistoryLength - len(system)
	if keep < 0 {
		keep = 0
	}
	if len(rest) > keep {
		rest = rest[len(rest)-keep:]
	}
	c.Messages = append(system, rest...)
}

// AddTurn appends a (user, assistant) pair to a conversation in order.
func (s *Store) AddTurn(convID, userMsg, assistantMsg string) {
	s.AddMessage(convID, RoleUser, userMsg, nil)
	s.AddMessage(convID, RoleAssistant, assistantMsg, nil)
}

// GetHistory returns a conversation's messages, optionally capped to the
// most recent limit (0 means unlimited).
func (s *Store) GetHistory(convID string, limit int) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target := convID
	if target == "" {
		target = s.activeID
	}
	c, ok := s.conversations[target]
	if !ok {
		return nil
	}
	msgs := c.Messages
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]ChatMessage, len(msgs))
	copy(out, msgs)
	return out
}

// SearchHistory returns up to limit messages (most recent first among
// matches) whose content case-insensitively contains query.
func (s *Store) SearchHistory(convID, query string, limit int) []ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	target := convID
	if target == "" {
		target = s.activeID
	}
	c, ok := s.conversations[target]
	if !ok {
		return nil
	}
	queryLower := strings.ToLower(query)
	var matches []ChatMessage
	for _, m := range c.Messages {
		if strings.Contains(strings.ToLower(m.Content), queryLower) {
			matches = append(matches, m)
		}
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[len(matches)-limit:]
	}
	return matches
}

// AddMemory stores a new durable memory and persists the memory snapshot.
func (s *Store) AddMemory(category, content string, importance float64) *UserMemory {
	now := time.Now()
	m := &UserMemory{
		ID:           uuid.NewString(),
		Category:     category,
		Content:      content,
		Importance:   importance,
		CreatedAt:    now,
		LastAccessed: now,
	}

	s.mu.Lock()
	s.memories[m.ID] = m
	s.mu.Unlock()

	s.saveMemories()
	return m
}

// ListMemories returns memories (optionally filtered by category), sorted
// by (importance, last_accessed) descending, capped at limit.
func (s *Store) ListMemories(category string, limit int) []UserMemory {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]UserMemory, 0, len(s.memories))
	for _, m := range s.memories {
		if category != "" && m.Category != category {
			continue
		}
		out = append(out, *m)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].LastAccessed.After(out[j].LastAccessed)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// SearchMemories matches query case-insensitively against memory content,
// incrementing access_count and refreshing last_accessed on every hit, and
// ranks results by importance * (1 + 0.1*access_count) descending.
func (s *Store) SearchMemories(query string, limit int) []UserMemory {
	queryLower := strings.ToLower(query)

	s.mu.Lock()
	var hits []*UserMemory
	for _, m := range s.memories {
		if strings.Contains(strings.ToLower(m.Content), queryLower) {
			m.AccessCount++
			m.LastAccessed = time.Now()
			hits = append(hits, m)
		}
	}
	out := make([]UserMemory, len(hits))
	for i, m := range hits {
		out[i] = *m
	}
	s.mu.Unlock()

	if len(hits) > 0 {
		s.saveMemories()
	}

	sort.Slice(out, func(i, j int) bool {
		return rankScore(out[i]) > rankScore(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func rankScore(m UserMemory) float64 {
	return m.Importance * (1 + 0.1*float64(m.AccessCount))
}

// DeleteMemory removes a memory from memory and disk. Reports whether it
// existed.
func (s *Store) DeleteMemory(id string) bool {
	s.mu.Lock()
	_, ok := s.memories[id]
	if ok {
		delete(s.memories, id)
	}
	s.mu.Unlock()

	if !ok {
		return false
	}
	s.saveMemories()
	return true
}

// GetRelevantContext is the main retrieval entry point the orchestrator
// calls: recent history merged with query-matched history, plus
// query-matched memories.
func (s *Store) GetRelevantContext(convID, query string, maxHistory, maxMemories int) RelevantContext {
	recent := s.GetHistory(convID, maxHistory)
	relevant := s.SearchHistory(convID, query, 3)

	seen := make(map[string]bool, len(recent))
	key := func(m ChatMessage) string { return string(m.Role) + "\x00" + m.Content }
	for _, m := range recent {
		seen[key(m)] = true
	}
	merged := make([]ChatMessage, 0, len(recent)+len(relevant))
	for _, m := range relevant {
		if !seen[key(m)] {
			merged = append(merged, m)
			seen[key(m)] = true
		}
	}
	merged = append(merged, recent...)

	return RelevantContext{
		History:  merged,
		Memories: s.SearchMemories(query, maxMemories),
	}
}

// ExportConversation returns a copy of a conversation with its own Messages
// slice (metadata maps are shared with the stored conversation) for
// serializing to a client, or nil if it does not exist.
func (s *Store) ExportConversation(id string) *Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.conversations[id]
	if !ok {
		return nil
	}
	cp := *c
	cp.Messages = append([]ChatMessage(nil), c.Messages...)
	return &cp
}

// Stats summarizes store-wide counters.
type Stats struct {
	TotalConversations int
	TotalMessages       int
	TotalMemories       int
	ActiveConversation  string
	MemoryCategories    []string
}

// Stats returns current store-wide counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	cats := map[string]bool{}
	for _, c := range s.conversations {
		total += len(c.Messages)
	}
	for _, m := range s.memories {
		cats[m.Category] = true
	}
	catList := make([]string, 0, len(cats))
	for c := range cats {
		catList = append(catList, c)
	}
	sort.Strings(catList)

	return Stats{
		TotalConversations: len(s.conversations),
		TotalMessages:      total,
		TotalMemories:      len(s.memories),
		ActiveConversation: s.activeID,
		MemoryCategories:   catList,
	}
}

// ClearAll wipes every conversation and memory, in memory and on disk. It
// is the destructive reset behind memory/clear-all; callers gate it behind
// an explicit confirmation.
func (s *Store) ClearAll() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	s.conversations = make(map[string]*Conversation)
	s.memories = make(map[string]*UserMemory)
	s.activeID = ""
	s.mu.Unlock()

	s.diskMu.Lock()
	defer s.diskMu.Unlock()
	for _, id := range ids {
		_ = os.Remove(filepath.Join(s.storageDir, "conversations", id+".json"))
	}
	_ = os.Remove(filepath.Join(s.storageDir, "memories.json"))
}

// saveConversation writes one conversation's JSON file. All disk writes,
// for every conversation and for memories.json, go through the store-wide
// diskMu and are therefore serialized.
func (s *Store) saveConversation(c *Conversation) {
	s.mu.RLock()
	data, err := json.MarshalIndent(c, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return
	}

	s.diskMu.Lock()
	defer s.diskMu.Unlock()
	path := filepath.Join(s.storageDir, "conversations", c.ID+".json")
	_ = os.WriteFile(path, data, 0o644)
}

// saveMemories rewrites the single memories.json snapshot.
func (s *Store) saveMemories() {
	s.mu.RLock()
	data, err := json.MarshalIndent(s.memories, "", "  ")
	s.mu.RUnlock()
	if err != nil {
		return
	}

	s.diskMu.Lock()
	defer s.diskMu.Unlock()
	path := filepath.Join(s.storageDir, "memories.json")
	_ = os.WriteFile(path, data, 0o644)
}
