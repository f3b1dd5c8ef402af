package macro

import (
	"path/filepath"
	"testing"
	"time"
)

func TestFileStorage_SaveGetList(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "macros"))
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	defer s.Close()

	rec := Recording{ID: "r1", Name: "one", StartTime: time.Now()}
	if err := s.Save(rec); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, ok, err := s.Get("r1")
	if err != nil || !ok {
		t.Fatalf("Get: err=%v ok=%v", err, ok)
	}
	if got.Name != "one" {
		t.Fatalf("expected name %q, got %q", "one", got.Name)
	}

	list, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 recording, got %d", len(list))
	}
}

func TestFileStorage_DeleteRemovesRecord(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "macros"))
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	defer s.Close()

	_ = s.Save(Recording{ID: "r1", Name: "one"})

	deleted, err := s.Delete("r1")
	if err != nil || !deleted {
		t.Fatalf("Delete: deleted=%v err=%v", deleted, err)
	}

	if _, ok, _ := s.Get("r1"); ok {
		t.Fatal("expected record to be gone after delete")
	}

	deletedAgain, err := s.Delete("r1")
	if err != nil || deletedAgain {
		t.Fatalf("expected deleting an already-deleted record to be a no-op, got %v/%v", deletedAgain, err)
	}
}

func TestFileStorage_UpdateMutatesAndPersists(t *testing.T) {
	s, err := NewFileStorage(filepath.Join(t.TempDir(), "macros"))
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	defer s.Close()

	_ = s.Save(Recording{ID: "r1", Name: "one"})

	ok, err := s.Update("r1", func(r *Recording) { r.Name = "renamed" })
	if err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}

	got, _, _ := s.Get("r1")
	if got.Name != "renamed" {
		t.Fatalf("expected renamed recording, got %q", got.Name)
	}
}

func TestFileStorage_SurvivesReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "macros")

	s1, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("NewFileStorage: %v", err)
	}
	_ = s1.Save(Recording{ID: "r1", Name: "persisted"})
	_ = s1.Close()

	s2, err := NewFileStorage(dir)
	if err != nil {
		t.Fatalf("reopen NewFileStorage: %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.Get("r1")
	if err != nil || !ok {
		t.Fatalf("expected record to survive reopen, ok=%v err=%v", ok, err)
	}
	if got.Name != "persisted" {
		t.Fatalf("expected name %q, got %q", "persisted", got.Name)
	}
}
