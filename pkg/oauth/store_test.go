package oauth

import (
	"testing"
	"time"

	"github.com/docsift/docsift/pkg/types"
)

func TestStoreCreateAndLookup(t *testing.T) {
	s := NewStore(time.Minute)
	defer s.Stop()

	session := s.Create(types.ProviderGoogle, "work", "")
	if session.ID == "" || session.State == "" {
		t.Fatal("expected session ID and state to be set")
	}
	if session.ID == session.State {
		t.Error("state must be an independent random value, not the session ID")
	}
	if session.Status != StatusPending {
		t.Errorf("new session status = %q", session.Status)
	}

	if got := s.Get(session.ID); got != session {
		t.Error("Get by ID failed")
	}
	if got := s.GetByState(session.State); got != session {
		t.Error("Get by state failed")
	}
	if s.Get("nope") != nil || s.GetByState("nope") != nil {
		t.Error("unknown lookups must return nil")
	}
}

func TestStoreCompleteAndFail(t *testing.T) {
	s := NewStore(time.Minute)
	defer s.Stop()

	done := s.Create(types.ProviderGoogle, "work", "")
	s.Complete(done.ID, "ana@example.com")
	if done.Status != StatusComplete || done.Email != "ana@example.com" {
		t.Errorf("complete session = %+v", done)
	}

	failed := s.Create(types.ProviderMicrosoft, "corp", "")
	s.Fail(failed.ID, "access_denied")
	if failed.Status != StatusError || failed.Error != "access_denied" {
		t.Errorf("failed session = %+v", failed)
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore(time.Minute)
	defer s.Stop()

	session := s.Create(types.ProviderGoogle, "work", "")
	s.Delete(session.ID)

	if s.Get(session.ID) != nil {
		t.Error("deleted session still retrievable by ID")
	}
	if s.GetByState(session.State) != nil {
		t.Error("deleted session still retrievable by state")
	}
}

func TestStoreCleanupDropsExpiredSessions(t *testing.T) {
	s := NewStore(time.Millisecond)
	defer s.Stop()

	session := s.Create(types.ProviderGoogle, "work", "")
	time.Sleep(5 * time.Millisecond)
	s.cleanup()

	if s.Get(session.ID) != nil {
		t.Error("expired session survived cleanup")
	}
	if s.GetByState(session.State) != nil {
		t.Error("expired session state index survived cleanup")
	}
}
