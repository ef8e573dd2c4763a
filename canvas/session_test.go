package canvas

import (
	"canvas-studio/core"
	"errors"
	"testing"
)

const pngDataURL = "data:image/png;base64,iVBORw0KGgo="

func TestCopyPaste(t *testing.T) {
	s := newTestSession(t, entity("a", 10, 20, 100, 100))
	dispatch(t, s, down(50, 50), up(50, 50))

	if !s.HandleKey(KeyEvent{Key: "c", Ctrl: true}) {
		t.Fatal("ctrl+c not consumed")
	}
	if !s.HandleKey(KeyEvent{Key: "v", Meta: true}) {
		t.Fatal("meta+v not consumed")
	}

	entities := s.Entities()
	if len(entities) != 2 {
		t.Fatalf("got %d entities after paste, want 2", len(entities))
	}
	pasted := entities[1]
	if pasted.ID == "a" {
		t.Error("paste reused the original id")
	}
	if pasted.Position != (core.Point{X: 30, Y: 40}) {
		t.Errorf("pasted position = %v, want (30,40)", pasted.Position)
	}
	if pasted.Src != "src-a" || pasted.Size != (core.Size{Width: 100, Height: 100}) {
		t.Errorf("pasted content differs: %+v", pasted)
	}
	assertSelection(t, s, pasted.ID)

	// Pasting twice offsets from the copied position each time.
	id, ok := s.Paste()
	if !ok {
		t.Fatal("second paste failed")
	}
	e, _ := s.Get(id)
	if e.Position != (core.Point{X: 30, Y: 40}) {
		t.Errorf("second paste position = %v", e.Position)
	}
}

func TestCopyWithMultipleSelectedIsNoop(t *testing.T) {
	s := newTestSession(t, entity("a", 0, 0, 100, 100), entity("b", 200, 0, 100, 100))
	dispatch(t, s, down(50, 50), up(50, 50))
	if !s.Copy() {
		t.Fatal("single copy failed")
	}

	dispatch(t, s, modDown(250, 50), up(250, 50))
	if s.Copy() {
		t.Error("Copy() with two selected reported success")
	}
	clip, ok := s.Clipboard()
	if !ok || clip.ID != "a" {
		t.Errorf("clipboard changed by multi-select copy: %+v", clip)
	}
}

func TestPasteWithEmptyClipboard(t *testing.T) {
	s := newTestSession(t)
	if _, ok := s.Paste(); ok {
		t.Error("Paste() succeeded with nothing copied")
	}
	if s.HandleKey(KeyEvent{Key: "v", Ctrl: true}) {
		t.Error("ctrl+v consumed with nothing copied")
	}
}

func TestCutAndDelete(t *testing.T) {
	s := newTestSession(t,
		entity("a", 0, 0, 100, 100),
		entity("b", 200, 0, 100, 100),
		entity("c", 400, 0, 100, 100),
	)
	dispatch(t, s, down(50, 50), up(50, 50))

	if !s.HandleKey(KeyEvent{Key: "x", Ctrl: true}) {
		t.Fatal("ctrl+x not consumed")
	}
	if _, ok := s.Get("a"); ok {
		t.Error("cut did not remove a")
	}
	if clip, ok := s.Clipboard(); !ok || clip.ID != "a" {
		t.Errorf("cut did not copy a: %+v", clip)
	}

	dispatch(t, s, down(250, 50), up(250, 50))
	dispatch(t, s, modDown(450, 50), up(450, 50))
	if !s.HandleKey(KeyEvent{Key: "Backspace"}) {
		t.Fatal("backspace not consumed")
	}
	if len(s.Entities()) != 0 {
		t.Errorf("entities left after delete: %v", s.Entities())
	}
	assertSelection(t, s)

	if s.HandleKey(KeyEvent{Key: "Delete"}) {
		t.Error("delete with empty selection reported as consumed")
	}
}

func TestKeysIgnoredWhileInputFocused(t *testing.T) {
	s := newTestSession(t, entity("a", 0, 0, 100, 100))
	dispatch(t, s, down(50, 50), up(50, 50))

	if s.HandleKey(KeyEvent{Key: "Delete", InputFocused: true}) {
		t.Error("key consumed while input focused")
	}
	if _, ok := s.Get("a"); !ok {
		t.Error("entity deleted while input focused")
	}
}

func TestPlaceUploadsCascade(t *testing.T) {
	s := newTestSession(t)

	ids, err := s.PlaceUploads([]DecodedImage{
		{Src: pngDataURL, Width: 1000, Height: 1000},
		{Src: pngDataURL, Width: 1000, Height: 1000},
	})
	if err != nil {
		t.Fatalf("PlaceUploads() failed: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("got %d ids, want 2", len(ids))
	}

	want := []core.Rect{
		{X: 150, Y: 50, Width: 500, Height: 500},
		{X: 180, Y: 80, Width: 500, Height: 500},
	}
	for i, id := range ids {
		e, ok := s.Get(id)
		if !ok {
			t.Fatalf("uploaded entity %s missing", id)
		}
		if e.Box() != want[i] {
			t.Errorf("image %d box = %v, want %v", i, e.Box(), want[i])
		}
		if e.Status != core.StatusNormal {
			t.Errorf("image %d status = %v", i, e.Status)
		}
	}
}

func TestFitSize(t *testing.T) {
	testCases := []struct {
		w, h int
		want core.Size
	}{
		{1000, 1000, core.Size{Width: 500, Height: 500}},
		{1000, 500, core.Size{Width: 500, Height: 250}},
		{300, 600, core.Size{Width: 250, Height: 500}},
		{100, 50, core.Size{Width: 500, Height: 250}},
		{0, 10, core.Size{Width: 500, Height: 500}},
	}
	for _, tc := range testCases {
		if got := FitSize(tc.w, tc.h); got != tc.want {
			t.Errorf("FitSize(%d, %d) = %v, want %v", tc.w, tc.h, got, tc.want)
		}
	}
}

func TestGenerationLifecycle(t *testing.T) {
	ref := entity("ref", 0, 0, 100, 100)
	ref.Src = pngDataURL
	remote := entity("remote", 200, 0, 100, 100)
	remote.Src = "https://example.com/cat.png"
	s := newTestSession(t, ref, remote)
	dispatch(t, s, down(50, 50), up(50, 50))
	dispatch(t, s, modDown(250, 50), up(250, 50))

	req, err := s.BeginGeneration("  a cat wearing a hat  ")
	if err != nil {
		t.Fatalf("BeginGeneration() failed: %v", err)
	}
	if req.Prompt != "a cat wearing a hat" {
		t.Errorf("prompt not trimmed: %q", req.Prompt)
	}
	if len(req.References) != 1 || req.References[0].MIMEType != "image/png" {
		t.Errorf("references = %+v", req.References)
	}
	if len(req.Skipped) != 1 || req.Skipped[0] != "remote" {
		t.Errorf("skipped = %v", req.Skipped)
	}

	p, ok := s.Get(req.PlaceholderID)
	if !ok {
		t.Fatal("placeholder not inserted")
	}
	if p.Box() != (core.Rect{X: 150, Y: 50, Width: 500, Height: 500}) {
		t.Errorf("placeholder box = %v", p.Box())
	}
	if !p.IsPlaceholder() || !p.Generating || p.GenerationRequestID != req.RequestID {
		t.Errorf("placeholder state = %+v", p)
	}
	if !s.Generating() || !s.Frame().Busy {
		t.Error("session not busy during generation")
	}

	// The result lands where the request was made even if the view moved.
	_ = s.SetTool(ToolPan)
	_ = s.PanBy(core.Point{X: 300, Y: 300})

	if err := s.CompleteGeneration(req.RequestID, DecodedImage{Src: pngDataURL, Width: 1000, Height: 500}); err != nil {
		t.Fatalf("CompleteGeneration() failed: %v", err)
	}
	done, _ := s.Get(req.PlaceholderID)
	if done.Box() != (core.Rect{X: 150, Y: 175, Width: 500, Height: 250}) {
		t.Errorf("generated box = %v", done.Box())
	}
	if done.Status != core.StatusNormal || done.Generating || done.GenerationRequestID != "" || done.Src != pngDataURL {
		t.Errorf("generated entity = %+v", done)
	}
	if s.Generating() {
		t.Error("session still busy after completion")
	}

	if err := s.CompleteGeneration(req.RequestID, DecodedImage{}); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second completion error = %v, want ErrNotFound", err)
	}
}

func TestGenerationFailureKeepsPlaceholder(t *testing.T) {
	s := newTestSession(t)
	req, err := s.BeginGeneration("sunset")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.FailGeneration(req.RequestID, errors.New("boom")); err != nil {
		t.Fatalf("FailGeneration() failed: %v", err)
	}
	p, ok := s.Get(req.PlaceholderID)
	if !ok {
		t.Fatal("placeholder removed on failure")
	}
	if p.Generating || !p.IsPlaceholder() {
		t.Errorf("placeholder after failure = %+v", p)
	}
	if s.Generating() {
		t.Error("session still busy after failure")
	}
}

func TestGenerationResultDroppedWhenPlaceholderDeleted(t *testing.T) {
	s := newTestSession(t)
	req, err := s.BeginGeneration("sunset")
	if err != nil {
		t.Fatal(err)
	}
	s.Remove(req.PlaceholderID)

	if err := s.CompleteGeneration(req.RequestID, DecodedImage{Src: pngDataURL, Width: 10, Height: 10}); err != nil {
		t.Fatalf("CompleteGeneration() failed: %v", err)
	}
	if len(s.Entities()) != 0 {
		t.Errorf("result resurrected the placeholder: %v", s.Entities())
	}
}

func TestBeginGenerationRejectsEmptyPrompt(t *testing.T) {
	s := newTestSession(t)
	if _, err := s.BeginGeneration("   "); !errors.Is(err, ErrEmptyPrompt) {
		t.Errorf("error = %v, want ErrEmptyPrompt", err)
	}
	if len(s.Entities()) != 0 {
		t.Error("placeholder inserted for empty prompt")
	}
}

func TestConcurrentGenerationsGetDistinctPlaceholders(t *testing.T) {
	s := newTestSession(t)
	first, err := s.BeginGeneration("one")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.BeginGeneration("two")
	if err != nil {
		t.Fatal(err)
	}
	if first.PlaceholderID == second.PlaceholderID || first.RequestID == second.RequestID {
		t.Errorf("ids collide: %+v %+v", first, second)
	}
	if got := len(s.PendingGenerations()); got != 2 {
		t.Errorf("pending = %d, want 2", got)
	}
}

func TestExportTarget(t *testing.T) {
	s := newTestSession(t, entity("a", 0, 0, 100, 100))

	if _, err := s.ExportTarget(); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ExportTarget() without menu error = %v", err)
	}

	dispatch(t, s, rightDown(50, 50))
	e, err := s.ExportTarget()
	if err != nil {
		t.Fatalf("ExportTarget() failed: %v", err)
	}
	if e.ID != "a" {
		t.Errorf("export target = %s, want a", e.ID)
	}
	if s.ContextMenu() != nil {
		t.Error("menu still open after export")
	}
}

func TestRemoveClosesMenuOfRemovedEntity(t *testing.T) {
	s := newTestSession(t, entity("a", 0, 0, 100, 100))
	dispatch(t, s, rightDown(50, 50))
	s.Remove("a")
	if s.ContextMenu() != nil {
		t.Error("menu survived removal of its entity")
	}
}
