package notebook

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatchReloadsOnExternalWrite(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "---\nid: a\n---\n"})
	nb := openNotebook(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Watch(ctx, nb, dir, discardLogger()) }()
	// Give the watcher a moment to register the tree.
	time.Sleep(100 * time.Millisecond)

	writeTree(t, dir, map[string]string{"n/b.md": "---\nid: b\n---\n"})

	if !eventually(t, 3*time.Second, func() bool { return nb.Card("n", "b") != nil }) {
		t.Error("external write never reconciled")
	}

	cancel()
	if err := <-done; err != nil {
		t.Errorf("Watch returned %v", err)
	}
}

func TestWatchCoversNewDirectories(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "---\nid: a\n---\n"})
	nb := openNotebook(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	defer func() { <-done }()
	defer cancel()
	go func() { done <- Watch(ctx, nb, dir, discardLogger()) }()
	time.Sleep(100 * time.Millisecond)

	// A brand new section directory, then a card inside it.
	if err := os.MkdirAll(filepath.Join(dir, "fresh"), 0o755); err != nil {
		t.Fatal(err)
	}
	if !eventually(t, 3*time.Second, func() bool { return nb.Section("fresh") != nil }) {
		t.Fatal("new directory never became a section")
	}

	writeTree(t, dir, map[string]string{"fresh/c.md": "---\nid: c\n---\n"})
	if !eventually(t, 3*time.Second, func() bool { return nb.Card("fresh", "c") != nil }) {
		t.Error("write into new directory never reconciled")
	}
}

func TestWatchIgnoresOwnSaves(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "---\nid: a\n---\n"})

	reloads := 0
	nb := openNotebook(t, dir, WithEventCallback(func(kind, path string) {
		if kind == EventReloaded {
			reloads++
		}
	}))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	defer func() { <-done }()
	defer cancel()
	go func() { done <- Watch(ctx, nb, dir, discardLogger()) }()
	time.Sleep(100 * time.Millisecond)

	card := nb.Card("n", "a")
	card.Fields.Set("title", "Saved Through API")
	if err := nb.SaveCard("n", card); err != nil {
		t.Fatal(err)
	}

	// Wait past the debounce window; the echo must be suppressed.
	time.Sleep(600 * time.Millisecond)
	if reloads != 0 {
		t.Errorf("reloads = %d, own save must not reload", reloads)
	}
	if nb.Card("n", "a").Title() != "Saved Through API" {
		t.Error("saved state lost")
	}
}
