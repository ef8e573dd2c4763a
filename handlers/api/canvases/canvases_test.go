package canvases

import (
	"bytes"
	"canvas-studio/canvas"
	"canvas-studio/core"
	"canvas-studio/handlers/auth"
	"canvas-studio/sessions"
	"canvas-studio/stores/memory"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

// Mock generator for testing
type mockGenerator struct {
	ready   bool
	release chan struct{}
}

func (m *mockGenerator) Ready() bool { return m.ready }

func (m *mockGenerator) Generate(ctx context.Context, prompt string, refs []core.Image) (core.Image, error) {
	if m.release != nil {
		<-m.release
	}
	return core.Image{}, io.ErrUnexpectedEOF
}

// frameView is the part of a frame the tests look at.
type frameView struct {
	Viewport    canvas.Viewport     `json:"viewport"`
	ZoomPercent int                 `json:"zoomPercent"`
	Tool        string              `json:"tool"`
	Busy        bool                `json:"busy"`
	ContextMenu *canvas.ContextMenu `json:"contextMenu"`
	Items       []struct {
		ID          core.EntityID `json:"id"`
		Box         core.Rect     `json:"box"`
		Placeholder bool          `json:"placeholder"`
	} `json:"items"`
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	reg     *sessions.Registry
	token   string
}

func newTestServer(t *testing.T, opts ...sessions.Option) *testServer {
	t.Helper()
	auth.InitAuth("test-secret")

	reg := sessions.NewRegistry(append([]sessions.Option{sessions.WithExportStore(memory.NewStore())}, opts...)...)
	r := chi.NewRouter()
	r.Route("/api/v2", func(r chi.Router) { Register(r, reg) })

	ts := &testServer{t: t, handler: r, reg: reg}
	rr := ts.do(http.MethodPost, "/api/v2/sessions", `{"width":800,"height":600}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("create session: expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var created struct {
		ID    string    `json:"id"`
		Token string    `json:"token"`
		Frame frameView `json:"frame"`
	}
	decode(t, rr, &created)
	if created.ID == "" || created.Token == "" {
		t.Fatalf("create session: missing id or token: %s", rr.Body.String())
	}
	ts.token = created.Token
	return ts
}

func (ts *testServer) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if ts.token != "" {
		req.Header.Set("Authorization", "Bearer "+ts.token)
	}
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

// frame performs the request, expects a 200 and decodes the frame.
func (ts *testServer) frame(method, path, body string) frameView {
	ts.t.Helper()
	rr := ts.do(method, path, body)
	if rr.Code != http.StatusOK {
		ts.t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, http.StatusOK, rr.Code, rr.Body.String())
	}
	var f frameView
	decode(ts.t, rr, &f)
	return f
}

func (ts *testServer) upload(files map[string][]byte, contentTypes map[string]string) *httptest.ResponseRecorder {
	ts.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for name, data := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="files"; filename="`+name+`"`)
		h.Set("Content-Type", contentTypes[name])
		part, err := mw.CreatePart(h)
		if err != nil {
			ts.t.Fatal(err)
		}
		part.Write(data)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/v2/session/uploads", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.token)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to unmarshal response: %v: %s", err, rr.Body.String())
	}
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestSessionLifecycle(t *testing.T) {
	ts := newTestServer(t)

	f := ts.frame(http.MethodGet, "/api/v2/session", "")
	if f.Viewport.Size != (core.Size{Width: 800, Height: 600}) || f.ZoomPercent != 100 || f.Tool != "pointer" {
		t.Errorf("unexpected initial frame: %+v", f)
	}

	token := ts.token
	ts.token = ""
	if rr := ts.do(http.MethodGet, "/api/v2/session", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("without token: expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	ts.token = "not-a-jwt"
	if rr := ts.do(http.MethodGet, "/api/v2/session", ""); rr.Code != http.StatusUnauthorized {
		t.Errorf("bad token: expected status %d, got %d", http.StatusUnauthorized, rr.Code)
	}
	ts.token = token

	if rr := ts.do(http.MethodDelete, "/api/v2/session", ""); rr.Code != http.StatusNoContent {
		t.Errorf("delete: expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if rr := ts.do(http.MethodGet, "/api/v2/session", ""); rr.Code != http.StatusNotFound {
		t.Errorf("after delete: expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestUploadTooLarge(t *testing.T) {
	ts := newTestServer(t)
	defer func(limit int64) { MaxUploadSize = limit }(MaxUploadSize)
	MaxUploadSize = 1 << 10

	rr := ts.upload(
		map[string][]byte{"big.png": bytes.Repeat([]byte{0x89}, 4<<10)},
		map[string]string{"big.png": "image/png"},
	)
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("Expected status %d, got %d: %s", http.StatusRequestEntityTooLarge, rr.Code, rr.Body.String())
	}

	if f := ts.frame(http.MethodGet, "/api/v2/session", ""); len(f.Items) != 0 {
		t.Errorf("Expected no entities after a rejected upload, got %d", len(f.Items))
	}
}

func TestUploadAndExport(t *testing.T) {
	ts := newTestServer(t)
	second := pngBytes(t, 1000, 1000)

	rr := ts.upload(
		map[string][]byte{"a.png": pngBytes(t, 1000, 1000), "b.png": second, "notes.txt": []byte("hello")},
		map[string]string{"a.png": "image/png", "b.png": "image/png", "notes.txt": "text/plain"},
	)
	if rr.Code != http.StatusOK {
		t.Fatalf("upload: expected status %d, got %d: %s", http.StatusOK, rr.Code, rr.Body.String())
	}
	var up struct {
		IDs     []core.EntityID `json:"ids"`
		Skipped int             `json:"skipped"`
		Frame   frameView       `json:"frame"`
	}
	decode(t, rr, &up)
	if len(up.IDs) != 2 || up.Skipped != 1 {
		t.Fatalf("upload placed %d and skipped %d", len(up.IDs), up.Skipped)
	}
	if up.Frame.Items[0].Box != (core.Rect{X: 150, Y: 50, Width: 500, Height: 500}) ||
		up.Frame.Items[1].Box != (core.Rect{X: 180, Y: 80, Width: 500, Height: 500}) {
		t.Errorf("unexpected placement: %+v", up.Frame.Items)
	}

	if rr := ts.do(http.MethodPost, "/api/v2/session/exports", ""); rr.Code != http.StatusConflict {
		t.Errorf("export without menu: expected status %d, got %d", http.StatusConflict, rr.Code)
	}

	// Map iteration decides the upload order, so export whichever is on top.
	f := ts.frame(http.MethodPost, "/api/v2/session/pointer", `{"kind":"down","screen":{"x":400,"y":300},"button":"secondary"}`)
	if f.ContextMenu == nil || f.ContextMenu.EntityID != up.IDs[1] {
		t.Fatalf("expected context menu on %s, got %+v", up.IDs[1], f.ContextMenu)
	}

	rr = ts.do(http.MethodPost, "/api/v2/session/exports", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("export: expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}
	var exported struct {
		ID   string `json:"id"`
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	decode(t, rr, &exported)
	if exported.Name != "image.png" || exported.URL != "/api/v2/exports/"+exported.ID {
		t.Errorf("unexpected export response: %+v", exported)
	}

	ts.token = ""
	rr = ts.do(http.MethodGet, exported.URL, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("download: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("download content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, `filename="image.png"`) {
		t.Errorf("download disposition = %q", cd)
	}
	if rr.Body.Len() == 0 {
		t.Error("download body is empty")
	}

	if rr := ts.do(http.MethodGet, "/api/v2/exports/unknown", ""); rr.Code != http.StatusNotFound {
		t.Errorf("unknown export: expected status %d, got %d", http.StatusNotFound, rr.Code)
	}
}

func TestListExports(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(map[string][]byte{"a.png": pngBytes(t, 10, 10)}, map[string]string{"a.png": "image/png"})
	ts.frame(http.MethodPost, "/api/v2/session/pointer", `{"kind":"down","screen":{"x":400,"y":300},"button":"2"}`)
	if rr := ts.do(http.MethodPost, "/api/v2/session/exports", ""); rr.Code != http.StatusCreated {
		t.Fatalf("export: expected status %d, got %d: %s", http.StatusCreated, rr.Code, rr.Body.String())
	}

	rr := ts.do(http.MethodGet, "/api/v2/session/exports", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var list []map[string]any
	decode(t, rr, &list)
	if len(list) != 1 || list[0]["data"] != nil {
		t.Errorf("unexpected export list: %v", list)
	}
}

func TestGenerate(t *testing.T) {
	testCases := []struct {
		name       string
		gen        *mockGenerator
		body       string
		wantStatus int
	}{
		{name: "no generator", body: `{"prompt":"a cat"}`, wantStatus: http.StatusPreconditionFailed},
		{name: "no credential", gen: &mockGenerator{}, body: `{"prompt":"a cat"}`, wantStatus: http.StatusPreconditionFailed},
		{name: "empty prompt", gen: &mockGenerator{ready: true}, body: `{"prompt":"   "}`, wantStatus: http.StatusBadRequest},
		{name: "bad body", gen: &mockGenerator{ready: true}, body: `{`, wantStatus: http.StatusBadRequest},
		{name: "accepted", gen: &mockGenerator{ready: true, release: make(chan struct{})}, body: `{"prompt":"a cat"}`, wantStatus: http.StatusAccepted},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var opts []sessions.Option
			if tc.gen != nil {
				opts = append(opts, sessions.WithGenerator(tc.gen))
			}
			ts := newTestServer(t, opts...)

			rr := ts.do(http.MethodPost, "/api/v2/session/generations", tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if tc.wantStatus != http.StatusAccepted {
				if f := ts.frame(http.MethodGet, "/api/v2/session", ""); len(f.Items) != 0 {
					t.Errorf("expected no placeholder, got %+v", f.Items)
				}
				return
			}

			var resp struct {
				RequestID     string        `json:"requestId"`
				PlaceholderID core.EntityID `json:"placeholderId"`
				Frame         frameView     `json:"frame"`
			}
			decode(t, rr, &resp)
			if !resp.Frame.Busy || len(resp.Frame.Items) != 1 || !resp.Frame.Items[0].Placeholder {
				t.Errorf("expected a busy frame with one placeholder, got %+v", resp.Frame)
			}
			if resp.Frame.Items[0].ID != resp.PlaceholderID {
				t.Errorf("placeholder id = %s, want %s", resp.Frame.Items[0].ID, resp.PlaceholderID)
			}

			close(tc.gen.release)
			ts.reg.Wait()
			if f := ts.frame(http.MethodGet, "/api/v2/session", ""); f.Busy {
				t.Error("frame still busy after the generator answered")
			}
		})
	}
}

func TestToolAndPan(t *testing.T) {
	ts := newTestServer(t)

	if rr := ts.do(http.MethodPost, "/api/v2/session/pan", `{"dx":10,"dy":5}`); rr.Code != http.StatusConflict {
		t.Errorf("pan with pointer tool: expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	if rr := ts.do(http.MethodPost, "/api/v2/session/tool", `{"tool":"lasso"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("unknown tool: expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}

	if f := ts.frame(http.MethodPost, "/api/v2/session/tool", `{"tool":"hand"}`); f.Tool != "pan" {
		t.Errorf("tool = %q, want pan", f.Tool)
	}
	f := ts.frame(http.MethodPost, "/api/v2/session/pan", `{"dx":10,"dy":5}`)
	if f.Viewport.Pan != (core.Point{X: 10, Y: 5}) {
		t.Errorf("pan = %v", f.Viewport.Pan)
	}
}

func TestZoom(t *testing.T) {
	ts := newTestServer(t)

	testCases := []struct {
		name        string
		path        string
		body        string
		wantPercent int
	}{
		{name: "zoom in", path: "/api/v2/session/zoom", body: `{"action":"in"}`, wantPercent: 120},
		{name: "reset", path: "/api/v2/session/zoom", body: `{"action":"reset"}`, wantPercent: 100},
		{name: "wheel up", path: "/api/v2/session/wheel", body: `{"x":10,"y":10,"deltaY":-100}`, wantPercent: 110},
		{name: "wheel down", path: "/api/v2/session/wheel", body: `{"x":10,"y":10,"deltaY":100}`, wantPercent: 100},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if f := ts.frame(http.MethodPost, tc.path, tc.body); f.ZoomPercent != tc.wantPercent {
				t.Errorf("zoom = %d%%, want %d%%", f.ZoomPercent, tc.wantPercent)
			}
		})
	}

	if rr := ts.do(http.MethodPost, "/api/v2/session/zoom", `{"action":"sideways"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad zoom action: expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestViewport(t *testing.T) {
	ts := newTestServer(t)

	if f := ts.frame(http.MethodPut, "/api/v2/session/viewport", `{"width":1024,"height":768}`); f.Viewport.Size != (core.Size{Width: 1024, Height: 768}) {
		t.Errorf("viewport = %v", f.Viewport.Size)
	}
	if rr := ts.do(http.MethodPut, "/api/v2/session/viewport", `{"width":0,"height":768}`); rr.Code != http.StatusBadRequest {
		t.Errorf("empty viewport: expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}

func TestKeyDeletesSelection(t *testing.T) {
	ts := newTestServer(t)
	ts.upload(map[string][]byte{"a.png": pngBytes(t, 10, 10)}, map[string]string{"a.png": "image/png"})

	ts.frame(http.MethodPost, "/api/v2/session/pointer", `{"kind":"down","screen":{"x":400,"y":300}}`)
	ts.frame(http.MethodPost, "/api/v2/session/pointer", `{"kind":"up","screen":{"x":400,"y":300}}`)

	rr := ts.do(http.MethodPost, "/api/v2/session/key", `{"key":"Delete","inputFocused":true}`)
	var resp struct {
		Handled bool      `json:"handled"`
		Frame   frameView `json:"frame"`
	}
	decode(t, rr, &resp)
	if resp.Handled || len(resp.Frame.Items) != 1 {
		t.Errorf("key with input focus: handled=%v items=%d", resp.Handled, len(resp.Frame.Items))
	}

	rr = ts.do(http.MethodPost, "/api/v2/session/key", `{"key":"Delete"}`)
	decode(t, rr, &resp)
	if !resp.Handled || len(resp.Frame.Items) != 0 {
		t.Errorf("delete: handled=%v items=%d", resp.Handled, len(resp.Frame.Items))
	}

	if rr := ts.do(http.MethodPost, "/api/v2/session/pointer", `{"kind":"hover"}`); rr.Code != http.StatusBadRequest {
		t.Errorf("bad pointer kind: expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
}
