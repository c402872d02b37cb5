package memory

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestCreateConversation_BecomesActive(t *testing.T) {
	s := newTestStore(t)
	c := s.CreateConversation("Session One", "/proj")

	active := s.ActiveConversation()
	if active == nil || active.ID != c.ID {
		t.Fatal("expected the newly created conversation to become active")
	}
}

func TestAddMessage_CreatesConversationWhenNoneActive(t *testing.T) {
	s := newTestStore(t)
	conv, msg := s.AddMessage("", RoleUser, "hello", nil)

	if conv == nil {
		t.Fatal("expected a conversation to be auto-created")
	}
	if msg.Content != "hello" || msg.Role != RoleUser {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if len(s.GetHistory(conv.ID, 0)) != 1 {
		t.Fatal("expected one message in history")
	}
}

func TestAddMessage_TrimsHistoryKeepingSystemMessages(t *testing.T) {
	s := newTestStore(t)
	c := s.CreateConversation("t", "")
	s.AddMessage(c.ID, RoleSystem, "sys-1", nil)

	for i := 0; i < 60; i++ {
		s.AddMessage(c.ID, RoleUser, "msg", nil)
	}

	hist := s.GetHistory(c.ID, 0)
	if len(hist) != maxHistoryLength {
		t.Fatalf("history length = %d, want %d", len(hist), maxHistoryLength)
	}
	if hist[0].Role != RoleSystem || hist[0].Content != "sys-1" {
		t.Fatalf("expected system message to survive trimming, got %+v", hist[0])
	}
}

func TestSetActiveConversation_RejectsUnknownID(t *testing.T) {
	s := newTestStore(t)
	s.CreateConversation("a", "")

	if s.SetActiveConversation("does-not-exist") {
		t.Fatal("expected switching to an unknown conversation to fail")
	}
}

func TestDeleteConversation_ClearsActiveAndDisk(t *testing.T) {
	s := newTestStore(t)
	c := s.CreateConversation("a", "")

	if !s.DeleteConversation(c.ID) {
		t.Fatal("expected DeleteConversation to report true")
	}
	if s.ActiveConversation() != nil {
		t.Fatal("expected active conversation to clear on delete")
	}
	if s.GetConversation(c.ID) != nil {
		t.Fatal("expected conversation to be gone from memory")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s1, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c := s1.CreateConversation("Persisted", "/proj")
	s1.AddTurn(c.ID, "hi", "hello there")
	s1.AddMemory("preference", "likes dark mode", 0.8)

	s2, err := New(dir)
	if err != nil {
		t.Fatalf("reload New: %v", err)
	}
	reloaded := s2.GetConversation(c.ID)
	if reloaded == nil {
		t.Fatal("expected conversation to survive a reload from disk")
	}
	if len(reloaded.Messages) != 2 {
		t.Fatalf("expected 2 messages after reload, got %d", len(reloaded.Messages))
	}
	if reloaded.Messages[0].Content != "hi" || reloaded.Messages[1].Content != "hello there" {
		t.Fatalf("unexpected messages after reload: %+v", reloaded.Messages)
	}

	mems := s2.ListMemories("", 10)
	if len(mems) != 1 || mems[0].Content != "likes dark mode" {
		t.Fatalf("unexpected memories after reload: %+v", mems)
	}
}

func TestSearchMemories_RanksByImportanceAndAccessCount(t *testing.T) {
	s := newTestStore(t)
	s.AddMemory("pref", "uses dark mode everywhere", 0.5)
	s.AddMemory("pref", "uses dark mode in the editor", 0.9)

	results := s.SearchMemories("dark mode", 10)
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}
	if results[0].Content != "uses dark mode in the editor" {
		t.Fatalf("expected the higher-importance memory first, got %+v", results[0])
	}
	if results[0].AccessCount != 1 {
		t.Fatalf("expected access_count to increment on search hit, got %d", results[0].AccessCount)
	}
}

func TestDeleteMemory(t *testing.T) {
	s := newTestStore(t)
	m := s.AddMemory("general", "some fact", 1.0)

	if !s.DeleteMemory(m.ID) {
		t.Fatal("expected DeleteMemory to report true")
	}
	if len(s.ListMemories("", 10)) != 0 {
		t.Fatal("expected memory to be gone")
	}
}

func TestGetRelevantContext_MergesHistoryAndMemories(t *testing.T) {
	s := newTestStore(t)
	c := s.CreateConversation("t", "")
	s.AddTurn(c.ID, "how do I use the orchestrator", "here is how")
	s.AddMemory("project", "the orchestrator lives in pkg/orchestrator", 0.7)

	ctx := s.GetRelevantContext(c.ID, "orchestrator", 5, 5)
	if len(ctx.History) == 0 {
		t.Fatal("expected merged history to be non-empty")
	}
	if len(ctx.Memories) != 1 {
		t.Fatalf("expected 1 matched memory, got %d", len(ctx.Memories))
	}
}

func TestLoadFromDisk_IgnoresMalformedFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.CreateConversation("good", "")

	badPath := filepath.Join(dir, "conversations", "bad.json")
	if err := os.WriteFile(badPath, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write bad file: %v", err)
	}

	s2, err := New(dir)
	if err != nil {
		t.Fatalf("reload should not fail on a malformed file: %v", err)
	}
	if len(s2.ListConversations()) != 1 {
		t.Fatalf("expected only the well-formed conversation to load, got %d", len(s2.ListConversations()))
	}
}

func TestClearAll_WipesMemoryAndDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c := s.CreateConversation("to be wiped", "/proj")
	s.AddTurn(c.ID, "hello", "hi")
	s.AddMemory("preference", "prefers tabs", 0.9)

	s.ClearAll()

	if got := s.ListConversations(); len(got) != 0 {
		t.Fatalf("conversations after ClearAll = %d, want 0", len(got))
	}
	if got := s.ListMemories("", 0); len(got) != 0 {
		t.Fatalf("memories after ClearAll = %d, want 0", len(got))
	}
	if s.ActiveConversation() != nil {
		t.Fatal("active conversation should be cleared")
	}

	if entries, err := os.ReadDir(filepath.Join(dir, "conversations")); err != nil || len(entries) != 0 {
		t.Fatalf("conversation files remain on disk: %v (err %v)", entries, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "memories.json")); !os.IsNotExist(err) {
		t.Fatalf("memories.json should be gone, stat err = %v", err)
	}

	// A fresh store over the same directory starts empty.
	s2, err := New(dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if got := s2.ListConversations(); len(got) != 0 {
		t.Fatalf("reloaded conversations = %d, want 0", len(got))
	}
}
