package notebook

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/othala/internal/storage"
)

// writeTree writes files relative to dir, creating parents.
func writeTree(t *testing.T, dir string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		abs := filepath.Join(dir, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func openNotebook(t *testing.T, dir string, opts ...Option) *Notebook {
	t.Helper()
	store, err := storage.NewFS(dir)
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	nb, err := Open(store, discardLogger(), opts...)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return nb
}

func TestLoadBasicNote(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"papers/bert.md": "---\nid: bert-paper\ntitle: BERT\ntags: [nlp]\n---\nPre-training notes.\n",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("papers")
	if sec == nil {
		t.Fatal("papers section missing")
	}
	if len(sec.Cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(sec.Cards))
	}
	c := sec.Cards[0]
	if c.ID != "bert-paper" || c.Type != "note" {
		t.Errorf("card = %s/%s", c.ID, c.Type)
	}
	if c.Title() != "BERT" {
		t.Errorf("title = %q", c.Title())
	}
	if c.Body != "Pre-training notes.\n" {
		t.Errorf("body = %q", c.Body)
	}
	if c.Section != "papers" || c.Subdir != "" {
		t.Errorf("placement = %q/%q", c.Section, c.Subdir)
	}
	if c.FilePath() != "papers/bert.md" {
		t.Errorf("path = %q", c.FilePath())
	}
	if c.Checksum == "" {
		t.Error("checksum not computed")
	}
}

func TestLoadSynthesizesID(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"notes/untagged.md": "---\ntitle: No ID Here\n---\nbody\n",
	})
	nb := openNotebook(t, dir)

	c := nb.Section("notes").Cards[0]
	if !strings.HasPrefix(c.ID, "untagged-") {
		t.Errorf("id = %q, want stem-timestamp", c.ID)
	}
}

func TestLoadIDCollisionGetsSuffix(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"n/a.md": "---\nid: dup\n---\n",
		"n/b.md": "---\nid: dup\n---\n",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("n")
	ids := map[string]bool{}
	for _, c := range sec.Cards {
		ids[c.ID] = true
	}
	if !ids["dup"] || !ids["dup-2"] {
		t.Errorf("ids = %v, want dup and dup-2", ids)
	}
}

func TestLoadSectionOrderAndVisibility(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".othala/settings.yaml": "title: My Notebook\nsections:\n  - directory: second\n    visible: true\n  - directory: first\n    visible: false\n  - directory: planned\n    visible: true\n",
		"first/a.md":            "a\n",
		"second/b.md":           "b\n",
		"stray/c.md":            "c\n",
		"archive/old.md":        "old\n",
	})
	nb := openNotebook(t, dir)

	secs := nb.Sections()
	if len(secs) < 5 {
		t.Fatalf("sections = %d, want 5", len(secs))
	}
	// Declared order first.
	if secs[0].Name != "second" || secs[1].Name != "first" || secs[2].Name != "planned" {
		t.Errorf("declared order = %s, %s, %s", secs[0].Name, secs[1].Name, secs[2].Name)
	}
	if secs[1].Visible {
		t.Error("first should be hidden per settings")
	}
	if !secs[2].Pending {
		t.Error("planned (no directory) should be pending")
	}
	// Unmatched on-disk sections follow; archive hidden by default.
	arch := nb.Section("archive")
	if arch == nil || arch.Visible {
		t.Error("archive should exist and default to hidden")
	}
	stray := nb.Section("stray")
	if stray == nil || !stray.Visible {
		t.Error("stray should exist and default to visible")
	}
}

func TestLoadReservedDirsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".git/config":           "x",
		"node_modules/p/a.js":   "x",
		"assets/pic.png":        "x",
		".othala/settings.yaml": "title: T\n",
		"real/a.md":             "a",
	})
	nb := openNotebook(t, dir)

	for _, name := range []string{".git", "node_modules", "assets", ".othala"} {
		if nb.Section(name) != nil {
			t.Errorf("reserved dir %q became a section", name)
		}
	}
	if nb.Section("real") == nil {
		t.Error("real section missing")
	}
}

func TestLoadEmptySubdirRecorded(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"proj/a.md": "a"})
	if err := os.MkdirAll(filepath.Join(dir, "proj", "drafts", "deep"), 0o755); err != nil {
		t.Fatal(err)
	}
	nb := openNotebook(t, dir)

	sec := nb.Section("proj")
	has := func(p string) bool {
		for _, d := range sec.Subdirs {
			if d == p {
				return true
			}
		}
		return false
	}
	if !has("drafts") || !has("drafts/deep") {
		t.Errorf("subdirs = %v, want drafts and drafts/deep", sec.Subdirs)
	}

	// Still there after a reload.
	if err := nb.Reload(false); err != nil {
		t.Fatalf("Reload: %v", err)
	}
	sec = nb.Section("proj")
	if !sec.hasSubdir("drafts/deep") {
		t.Error("empty subdir lost on reload")
	}
}

func TestLoadCompanionHoisted(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"snippets/fib.code.py":     "# ---\n# id: fib\n# title: Fib\n# ---\ndef fib(n): pass\n",
		"snippets/fib.output.html": "<pre>1 1 2 3</pre>",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("snippets")
	if len(sec.Cards) != 1 {
		t.Fatalf("cards = %d, want 1 (companion must not be a card)", len(sec.Cards))
	}
	c := sec.Cards[0]
	if c.Type != "code" {
		t.Errorf("type = %q", c.Type)
	}
	if got := c.Fields.GetString("output"); got != "<pre>1 1 2 3</pre>" {
		t.Errorf("output field = %q", got)
	}
	if !strings.Contains(c.Body, "def fib") {
		t.Errorf("body = %q", c.Body)
	}
}

func TestLoadSubdirCards(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"papers/ml/bert.md": "---\nid: bert\n---\n",
	})
	nb := openNotebook(t, dir)

	c := nb.Card("papers", "bert")
	if c == nil {
		t.Fatal("card in subdir not loaded")
	}
	if c.Subdir != "ml" {
		t.Errorf("subdir = %q", c.Subdir)
	}
	if c.FilePath() != "papers/ml/bert.md" {
		t.Errorf("path = %q", c.FilePath())
	}
}

func TestLoadOpaqueFallback(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"misc/archive.tar.gz.txt": "not really an archive",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("misc")
	if len(sec.Cards) != 1 {
		t.Fatal("opaque file dropped from tree")
	}
	c := sec.Cards[0]
	if c.Type != "file" {
		t.Errorf("type = %q, want file", c.Type)
	}
	if c.Body != "not really an archive" {
		t.Errorf("body = %q", c.Body)
	}
}

func TestLoadMalformedStructuredBecomesOpaque(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"links/broken.bookmark.json": "{\"url\": ",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("links")
	if len(sec.Cards) != 1 {
		t.Fatal("malformed file dropped from tree")
	}
	c := sec.Cards[0]
	if c.Type != "file" {
		t.Errorf("type = %q, want opaque fallback", c.Type)
	}
	if c.Body != "{\"url\": " {
		t.Errorf("body = %q, want raw content preserved", c.Body)
	}
}

func TestLoadBinaryPlaceholder(t *testing.T) {
	dir := t.TempDir()
	payload := string([]byte{0x89, 'P', 'N', 'G', 0x00, 0x01})
	writeTree(t, dir, map[string]string{
		"pics/logo.png": payload,
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("pics")
	if len(sec.Cards) != 1 {
		t.Fatal("binary file not loaded")
	}
	c := sec.Cards[0]
	if c.Type != "image" {
		t.Errorf("type = %q", c.Type)
	}
	if v, _ := c.Fields.Get("size"); v != int64(len(payload)) {
		t.Errorf("size field = %v", v)
	}
	if !strings.Contains(c.Body, "binary file") {
		t.Errorf("body = %q", c.Body)
	}
}

func TestLoadRootFilesAndDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"readme.md":  "---\nid: readme\n---\nroot file\n",
		".hidden.md": "never loaded",
	})
	nb := openNotebook(t, dir)

	root := nb.Section(RootSectionName)
	if root == nil {
		t.Fatal("root pseudo-section missing")
	}
	if len(root.Cards) != 1 {
		t.Fatalf("root cards = %d, want 1", len(root.Cards))
	}
	if root.Cards[0].ID != "readme" {
		t.Errorf("root card id = %q", root.Cards[0].ID)
	}
}

func TestLoadTitleSortPolicy(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".othala/settings.yaml": "sort:\n  field: title\n  ascending: true\n",
		"n/z.md":                "---\nid: z\ntitle: Zebra\n---\n",
		"n/a.md":                "---\nid: a\ntitle: Aardvark\n---\n",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("n")
	if sec.Cards[0].Title() != "Aardvark" || sec.Cards[1].Title() != "Zebra" {
		t.Errorf("order = %q, %q", sec.Cards[0].Title(), sec.Cards[1].Title())
	}
}

func TestLoadTheme(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".othala/theme.css": "body { color: red; }",
	})
	nb := openNotebook(t, dir)

	if nb.Graph().Theme != "body { color: red; }" {
		t.Errorf("theme = %q", nb.Graph().Theme)
	}
}

func TestLoadExtensionOverrides(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".othala/extensions.yaml": ".md:\n  doc_type: page\n",
		"n/a.md":                  "---\nid: a\n---\n",
	})
	nb := openNotebook(t, dir)

	if got := nb.Card("n", "a").Type; got != "page" {
		t.Errorf("type = %q, want overridden page", got)
	}
}

func TestLoadMalformedOverridesIgnored(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".othala/extensions.yaml": "::: not yaml {{{",
		"n/a.md":                  "---\nid: a\n---\n",
	})
	nb := openNotebook(t, dir)

	if got := nb.Card("n", "a").Type; got != "note" {
		t.Errorf("type = %q, want builtin note", got)
	}
}

func TestLoadTemplateFieldOverridesType(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"n/special.md": "---\nid: s\ntemplate: recipe\n---\n",
	})
	nb := openNotebook(t, dir)

	if got := nb.Card("n", "s").Type; got != "recipe" {
		t.Errorf("type = %q, want template override", got)
	}
}
