package notebook

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/starford/othala/internal/codec"
)

func readWorkFile(t *testing.T, dir, rel string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	if err != nil {
		t.Fatalf("read %s: %v", rel, err)
	}
	return string(data)
}

func TestSaveNewBookmarkCard(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"links/seed.md": "seed\n"})
	nb := openNotebook(t, dir)

	fields := codec.NewFrontmatter()
	fields.Set("title", "Go Blog")
	fields.Set("url", "https://go.dev/blog")
	card := &Card{Type: "bookmark", Fields: fields}

	if err := nb.SaveCard("links", card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	if card.Source.Filename != "go-blog.bookmark.json" {
		t.Errorf("filename = %q", card.Source.Filename)
	}
	if card.ID == "" {
		t.Error("id not assigned")
	}
	if card.Section != "links" {
		t.Errorf("section = %q", card.Section)
	}

	content := readWorkFile(t, dir, "links/go-blog.bookmark.json")
	if !strings.Contains(content, `"url": "https://go.dev/blog"`) {
		t.Errorf("content = %s", content)
	}
	if !strings.Contains(content, `"type": "bookmark"`) {
		t.Errorf("structured doc missing its type: %s", content)
	}

	// Round trip through a reload.
	if err := nb.Reload(false); err != nil {
		t.Fatal(err)
	}
	loaded := nb.Card("links", card.ID)
	if loaded == nil {
		t.Fatal("saved card missing after reload")
	}
	if loaded.Fields.GetString("url") != "https://go.dev/blog" {
		t.Errorf("url = %q", loaded.Fields.GetString("url"))
	}
}

func TestSavePreservesFilename(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"n/legacy-name.md": "---\nid: card1\ntitle: Old Title\n---\nbody\n",
	})
	nb := openNotebook(t, dir)

	card := nb.Card("n", "card1")
	card.Fields.Set("title", "Completely New Title")
	if err := nb.SaveCard("n", card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	if card.Source.Filename != "legacy-name.md" {
		t.Errorf("filename = %q, a title change must never rename the file", card.Source.Filename)
	}
	if _, err := os.Stat(filepath.Join(dir, "n", "legacy-name.md")); err != nil {
		t.Error("original file gone")
	}
	content := readWorkFile(t, dir, "n/legacy-name.md")
	if !strings.Contains(content, "Completely New Title") {
		t.Errorf("content = %s", content)
	}
}

func TestSaveMakesSynthesizedIDDurable(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/anon.md": "---\ntitle: Anon\n---\n"})
	nb := openNotebook(t, dir)

	card := nb.Section("n").Cards[0]
	if err := nb.SaveCard("n", card); err != nil {
		t.Fatal(err)
	}
	content := readWorkFile(t, dir, "n/anon.md")
	if !strings.Contains(content, "id: "+card.ID) {
		t.Errorf("synthesized id not written: %s", content)
	}
}

func TestSaveSplitsCompanionField(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"code/seed.md": "s\n"})
	nb := openNotebook(t, dir)

	fields := codec.NewFrontmatter()
	fields.Set("title", "Fib Demo")
	fields.Set("output", "<pre>render</pre>")
	card := &Card{Type: "code", Fields: fields, Body: "def fib(n): pass\n"}

	if err := nb.SaveCard("code", card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	primary := readWorkFile(t, dir, "code/"+card.Source.Filename)
	if strings.Contains(primary, "<pre>render</pre>") {
		t.Error("companion content leaked into primary file")
	}
	stem := strings.TrimSuffix(card.Source.Filename, card.Source.Extension)
	companion := readWorkFile(t, dir, "code/"+stem+".output.html")
	if companion != "<pre>render</pre>" {
		t.Errorf("companion = %q", companion)
	}
}

func TestSaveExtractsEmbeddedAsset(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/seed.md": "s\n"})
	nb := openNotebook(t, dir)

	blob := base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4e, 0x47})
	fields := codec.NewFrontmatter()
	fields.Set("title", "Shot")
	fields.Set("screenshot", "data:image/png;base64,"+blob)
	card := &Card{Type: "note", Fields: fields, Body: "b\n"}

	if err := nb.SaveCard("n", card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	ref := card.Fields.GetString("screenshot")
	if !strings.HasPrefix(ref, "assets/") || !strings.HasSuffix(ref, ".png") {
		t.Fatalf("screenshot ref = %q", ref)
	}
	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(ref)))
	if err != nil {
		t.Fatalf("asset missing: %v", err)
	}
	if len(data) != 4 || data[0] != 0x89 {
		t.Errorf("asset bytes = %v", data)
	}
	// The primary document carries the reference, not the blob.
	content := readWorkFile(t, dir, card.FilePath())
	if strings.Contains(content, "base64") {
		t.Error("data URI leaked into primary document")
	}
}

func TestSaveUnknownSectionFails(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "a\n"})
	nb := openNotebook(t, dir)

	fields := codec.NewFrontmatter()
	card := &Card{Type: "note", Fields: fields}
	if err := nb.SaveCard("ghost", card); err == nil {
		t.Fatal("expected error for unknown section")
	}
	if card.ID != "" || card.Source.Filename != "" {
		t.Error("failed save mutated the card")
	}
}

func TestSavePendingSectionCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		".othala/settings.yaml": "sections:\n  - directory: planned\n    visible: true\n",
	})
	nb := openNotebook(t, dir)

	sec := nb.Section("planned")
	if sec == nil || !sec.Pending {
		t.Fatal("planned section should start pending")
	}

	fields := codec.NewFrontmatter()
	fields.Set("title", "First")
	card := &Card{Type: "note", Fields: fields, Body: "hello\n"}
	if err := nb.SaveCard("planned", card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	if nb.Section("planned").Pending {
		t.Error("section still pending after first write")
	}
	if _, err := os.Stat(filepath.Join(dir, "planned")); err != nil {
		t.Error("section directory not created")
	}
}

func TestSaveIntoSubdir(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"proj/a.md": "a\n"})
	nb := openNotebook(t, dir)

	fields := codec.NewFrontmatter()
	fields.Set("title", "Draft One")
	card := &Card{Type: "note", Fields: fields, Subdir: "drafts"}
	if err := nb.SaveCard("proj", card); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, "proj", "drafts", card.Source.Filename)); err != nil {
		t.Error("card file not under subdir")
	}
	if !nb.Section("proj").hasSubdir("drafts") {
		t.Error("subdir not recorded in section")
	}
}

func TestSaveRecordsLedger(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "---\nid: a\n---\n"})
	nb := openNotebook(t, dir)

	card := nb.Card("n", "a")
	if err := nb.SaveCard("n", card); err != nil {
		t.Fatal(err)
	}
	if !nb.Ledger().Recent("n/a.md") {
		t.Error("primary write not in ledger")
	}
}

func TestDeleteCardRemovesCompanions(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"code/fib.code.py":     "# ---\n# id: fib\n# ---\npass\n",
		"code/fib.output.html": "<pre>x</pre>",
	})
	nb := openNotebook(t, dir)

	if err := nb.DeleteCard("code", "fib"); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "code", "fib.code.py")); !os.IsNotExist(err) {
		t.Error("primary not deleted")
	}
	if _, err := os.Stat(filepath.Join(dir, "code", "fib.output.html")); !os.IsNotExist(err) {
		t.Error("companion not deleted")
	}
	if nb.Card("code", "fib") != nil {
		t.Error("card still in graph")
	}
}

func TestDeleteMissingCardFails(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "a\n"})
	nb := openNotebook(t, dir)

	if err := nb.DeleteCard("n", "ghost"); err == nil {
		t.Error("expected error for missing card")
	}
	if err := nb.DeleteCard("ghost", "a"); err == nil {
		t.Error("expected error for missing section")
	}
}

func TestSaveSettingsReordersSections(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"alpha/a.md": "a\n",
		"beta/b.md":  "b\n",
	})
	nb := openNotebook(t, dir)

	s := nb.Settings()
	s.Sections = []SectionRecord{
		{Directory: "beta", Visible: true},
		{Directory: "alpha", Visible: false},
		{Directory: "gamma", Visible: true},
	}
	if err := nb.SaveSettings(s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	secs := nb.Sections()
	if secs[0].Name != "beta" || secs[1].Name != "alpha" || secs[2].Name != "gamma" {
		t.Errorf("order = %s, %s, %s", secs[0].Name, secs[1].Name, secs[2].Name)
	}
	if secs[1].Visible {
		t.Error("alpha visibility not applied")
	}
	// Newly declared sections get their directory immediately.
	if _, err := os.Stat(filepath.Join(dir, "gamma")); err != nil {
		t.Error("gamma directory not created")
	}
	// Persisted document survives a reload.
	if err := nb.Reload(false); err != nil {
		t.Fatal(err)
	}
	if nb.Sections()[0].Name != "beta" {
		t.Error("order lost after reload")
	}
}

func TestSaveEmitsEvent(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "---\nid: a\n---\n"})

	var events []string
	nb := openNotebook(t, dir, WithEventCallback(func(kind, path string) {
		events = append(events, kind+":"+path)
	}))

	card := nb.Card("n", "a")
	if err := nb.SaveCard("n", card); err != nil {
		t.Fatal(err)
	}
	if err := nb.DeleteCard("n", "a"); err != nil {
		t.Fatal(err)
	}

	want := []string{"card.saved:n/a.md", "card.deleted:n/a.md"}
	if len(events) != 2 || events[0] != want[0] || events[1] != want[1] {
		t.Errorf("events = %v, want %v", events, want)
	}
}

func TestSaveLeavesPriorGraphSnapshotIntact(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/a.md": "---\nid: a\n---\nx\n"})
	nb := openNotebook(t, dir)

	before := nb.Section("n")
	if len(before.Cards) != 1 {
		t.Fatalf("seed cards = %d", len(before.Cards))
	}

	fields := codec.NewFrontmatter()
	fields.Set("title", "Second Note")
	if err := nb.SaveCard("n", &Card{Type: "note", Fields: fields}); err != nil {
		t.Fatalf("SaveCard: %v", err)
	}

	// A reader holding the pre-save section keeps its snapshot.
	if len(before.Cards) != 1 {
		t.Errorf("prior snapshot grew to %d cards", len(before.Cards))
	}
	after := nb.Section("n")
	if after == before {
		t.Error("save did not publish a new section")
	}
	if len(after.Cards) != 2 {
		t.Fatalf("cards after save = %d, want 2", len(after.Cards))
	}

	if err := nb.DeleteCard("n", "a"); err != nil {
		t.Fatalf("DeleteCard: %v", err)
	}
	if len(after.Cards) != 2 {
		t.Error("pre-delete snapshot lost a card")
	}
	if got := nb.Section("n"); len(got.Cards) != 1 {
		t.Errorf("cards after delete = %d, want 1", len(got.Cards))
	}
}

func TestSaveSettingsLeavesPriorSectionsIntact(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"alpha/a.md": "a\n"})
	nb := openNotebook(t, dir)

	before := nb.Section("alpha")
	if !before.Visible {
		t.Fatal("alpha should start visible")
	}

	s := nb.Settings()
	s.Sections = []SectionRecord{{Directory: "alpha", Visible: false}}
	if err := nb.SaveSettings(s); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	if !before.Visible {
		t.Error("prior snapshot visibility flipped in place")
	}
	if nb.Section("alpha").Visible {
		t.Error("new graph did not apply visibility")
	}
}

func TestConcurrentSavesAndReads(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/seed.md": "---\nid: seed\n---\nx\n"})
	nb := openNotebook(t, dir)

	const saves = 25
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < saves; i++ {
			fields := codec.NewFrontmatter()
			fields.Set("title", fmt.Sprintf("note %d", i))
			if err := nb.SaveCard("n", &Card{Type: "note", Fields: fields}); err != nil {
				t.Errorf("SaveCard %d: %v", i, err)
				return
			}
		}
	}()

	for loop := true; loop; {
		select {
		case <-done:
			loop = false
		default:
			for _, sec := range nb.Sections() {
				for _, c := range sec.Cards {
					_ = c.ID
				}
			}
		}
	}
	if got := len(nb.Section("n").Cards); got != saves+1 {
		t.Errorf("cards = %d, want %d", got, saves+1)
	}
}

func TestSaveBinaryCardRefused(t *testing.T) {
	dir := t.TempDir()
	payload := "\x89PNG\r\n\x1a\n\x00\x00fake image bytes"
	writeTree(t, dir, map[string]string{"pics/logo.png": payload})
	nb := openNotebook(t, dir)

	sec := nb.Section("pics")
	if len(sec.Cards) != 1 {
		t.Fatalf("cards = %d, want 1", len(sec.Cards))
	}
	card := *sec.Cards[0]
	card.Fields = card.Fields.Clone()

	err := nb.SaveCard("pics", &card)
	if err == nil {
		t.Fatal("expected save of a binary card to fail")
	}
	if !strings.Contains(err.Error(), "binary") {
		t.Errorf("error = %v, want a binary refusal", err)
	}
	if got := readWorkFile(t, dir, "pics/logo.png"); got != payload {
		t.Error("binary file was rewritten")
	}
}

func TestRapidResavesDoNotMergeFields(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"n/note.md": "---\nid: note1\ntitle: First\nalpha: kept\n---\nv1\n",
	})
	nb := openNotebook(t, dir)

	first := *nb.Card("n", "note1")
	second := first

	f1 := first.Fields.Clone()
	f1.Set("alpha", "from the first save")
	first.Fields = f1
	first.Body = "first body\n"

	f2 := codec.NewFrontmatter()
	f2.Set("id", "note1")
	f2.Set("title", "Second")
	f2.Set("beta", "from the second save")
	second.Fields = f2
	second.Body = "second body\n"

	if err := nb.SaveCard("n", &first); err != nil {
		t.Fatal(err)
	}
	if err := nb.SaveCard("n", &second); err != nil {
		t.Fatal(err)
	}

	// The file carries exactly the last write's frontmatter, never a
	// union of both writes.
	content := readWorkFile(t, dir, "n/note.md")
	if strings.Contains(content, "alpha") {
		t.Errorf("field from the earlier save leaked forward:\n%s", content)
	}
	for _, want := range []string{"title: Second", "beta: from the second save", "second body"} {
		if !strings.Contains(content, want) {
			t.Errorf("missing %q in:\n%s", want, content)
		}
	}

	card := nb.Card("n", "note1")
	if _, ok := card.Fields.Get("alpha"); ok {
		t.Error("graph card merged fields across saves")
	}
	if card.Body != "second body\n" {
		t.Errorf("body = %q", card.Body)
	}
}

func TestSaveDropsBodyFieldFromFrontmatter(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"n/seed.md": "x\n"})
	nb := openNotebook(t, dir)

	fields := codec.NewFrontmatter()
	fields.Set("title", "Dup Body")
	fields.Set("content", "echoed body text")
	card := &Card{Type: "note", Fields: fields, Body: "the real body\n"}
	if err := nb.SaveCard("n", card); err != nil {
		t.Fatal(err)
	}

	content := readWorkFile(t, dir, "n/dup-body.md")
	if strings.Contains(content, "echoed body text") {
		t.Errorf("body field written into frontmatter:\n%s", content)
	}
	if !strings.Contains(content, "the real body") {
		t.Errorf("body missing:\n%s", content)
	}
}
