package web

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync/atomic"
	"testing"

	"product-studio-ai/internal/gemini"
	"product-studio-ai/internal/session"
	"product-studio-ai/internal/studio"
)

type stubGenerator struct {
	calls atomic.Int64
	err   error
}

func (g *stubGenerator) GenerateImage(ctx context.Context, req gemini.ImageRequest) (string, error) {
	n := g.calls.Add(1)
	if g.err != nil {
		return "", g.err
	}
	payload := base64.StdEncoding.EncodeToString([]byte("img-" + req.AspectRatio + "-" + string(rune('0'+n))))
	return gemini.EncodeDataURL("image/png", payload), nil
}

func newTestServer(t *testing.T, gen studio.Generator) *httptest.Server {
	t.Helper()
	store := session.NewStore(session.Options{
		New: func(string) *studio.Session {
			return studio.New(studio.Options{Generator: gen})
		},
	})
	srv := httptest.NewServer(New(Options{Sessions: store}).Routes())
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url string, body any, out any) int {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

func createSession(t *testing.T, base string) sessionView {
	t.Helper()
	var view sessionView
	if code := doJSON(t, http.MethodPost, base+"/api/sessions", nil, &view); code != http.StatusCreated {
		t.Fatalf("create session status = %d", code)
	}
	return view
}

func uploadSource(t *testing.T, base, sessionID string) int {
	t.Helper()
	return uploadImage(t, base, sessionID, []byte("\x89PNG\r\n\x1a\nfake"))
}

func uploadImage(t *testing.T, base, sessionID string, data []byte) int {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="image"; filename="bottle.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPut, base+"/api/sessions/"+sessionID+"/source", &buf)
	req.Header.Set("content-type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func TestCreateSessionListsSixIdleNodes(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	view := createSession(t, srv.URL)

	if view.ID == "" || view.HasSource {
		t.Fatalf("session view = %+v", view)
	}
	if len(view.Nodes) != 6 {
		t.Fatalf("len(nodes) = %d, want 6", len(view.Nodes))
	}
	for _, n := range view.Nodes {
		if n.Status != "idle" {
			t.Fatalf("node %s status = %s", n.ID, n.Status)
		}
	}
}

func TestGenerateWithoutSourceConflicts(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	view := createSession(t, srv.URL)

	var apiErr apiError
	code := doJSON(t, http.MethodPost, srv.URL+"/api/sessions/"+view.ID+"/generate", nil, &apiErr)
	if code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", code)
	}
	if !strings.Contains(apiErr.Error, studio.ErrNoSource.Error()) {
		t.Fatalf("error = %q", apiErr.Error)
	}
}

func TestUnknownSessionIsNotFound(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/sessions/nope", nil, nil); code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", code)
	}
}

func TestGenerateAllAndDownload(t *testing.T) {
	gen := &stubGenerator{}
	srv := newTestServer(t, gen)
	view := createSession(t, srv.URL)
	base := srv.URL + "/api/sessions/" + view.ID

	if code := uploadSource(t, srv.URL, view.ID); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}

	var after sessionView
	if code := doJSON(t, http.MethodPost, base+"/generate?wait=true", nil, &after); code != http.StatusOK {
		t.Fatalf("generate status = %d", code)
	}
	if !after.HasSource || after.Filename != "bottle.png" || after.MimeType != "image/png" {
		t.Fatalf("session view = %+v", after)
	}
	for _, n := range after.Nodes {
		if n.Status != "completed" || n.ImageURL == "" {
			t.Fatalf("node %s = %+v", n.ID, n)
		}
	}
	if got := gen.calls.Load(); got != 6 {
		t.Fatalf("generator calls = %d, want 6", got)
	}

	resp, err := http.Get(base + "/nodes/node3/download")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status = %d", resp.StatusCode)
	}
	if cd := resp.Header.Get("content-disposition"); !strings.Contains(cd, "historia_instagram_9_16_node3.png") {
		t.Fatalf("content-disposition = %q", cd)
	}
	if ct := resp.Header.Get("content-type"); ct != "image/png" {
		t.Fatalf("content-type = %q", ct)
	}
}

func TestEditAndRevertNode(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	view := createSession(t, srv.URL)
	base := srv.URL + "/api/sessions/" + view.ID
	if code := uploadSource(t, srv.URL, view.ID); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}

	var first nodeView
	if code := doJSON(t, http.MethodPost, base+"/nodes/node1/generate?wait=1", nil, &first); code != http.StatusOK {
		t.Fatalf("generate status = %d", code)
	}

	var edited nodeView
	body := generateRequest{Instruction: "cambia el fondo a azul", AreaSelected: true}
	if code := doJSON(t, http.MethodPost, base+"/nodes/node1/generate?wait=1", body, &edited); code != http.StatusOK {
		t.Fatalf("edit status = %d", code)
	}
	if edited.CustomPrompt != body.Instruction || len(edited.History) != 1 {
		t.Fatalf("edited = %+v", edited)
	}
	if edited.History[0].ImageURL != first.ImageURL {
		t.Fatalf("history[0] = %+v, want first image", edited.History[0])
	}

	var reverted nodeView
	if code := doJSON(t, http.MethodPost, base+"/nodes/node1/revert", map[string]int{"index": 0}, &reverted); code != http.StatusOK {
		t.Fatalf("revert status = %d", code)
	}
	if reverted.ImageURL != first.ImageURL || reverted.CustomPrompt != "" {
		t.Fatalf("reverted = %+v", reverted)
	}

	if code := doJSON(t, http.MethodPost, base+"/nodes/node1/revert", map[string]int{"index": 9}, nil); code != http.StatusBadRequest {
		t.Fatalf("bad index status = %d, want 400", code)
	}
	if code := doJSON(t, http.MethodPost, base+"/nodes/node1/revert", map[string]string{}, nil); code != http.StatusBadRequest {
		t.Fatalf("missing index status = %d, want 400", code)
	}
	if code := doJSON(t, http.MethodPost, base+"/nodes/node9/generate", nil, nil); code != http.StatusNotFound {
		t.Fatalf("unknown node status = %d, want 404", code)
	}
}

func TestFailedGenerationIsReportedOnNode(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{err: errors.New("quota exceeded")})
	view := createSession(t, srv.URL)
	base := srv.URL + "/api/sessions/" + view.ID
	if code := uploadSource(t, srv.URL, view.ID); code != http.StatusOK {
		t.Fatalf("upload status = %d", code)
	}

	var node nodeView
	if code := doJSON(t, http.MethodPost, base+"/nodes/node2/generate?wait=true", nil, &node); code != http.StatusOK {
		t.Fatalf("generate status = %d", code)
	}
	if node.Status != "error" || node.ImageURL != "" {
		t.Fatalf("node = %+v, want error", node)
	}
	if code := doJSON(t, http.MethodGet, base+"/nodes/node2/download", nil, nil); code != http.StatusNotFound {
		t.Fatalf("download status = %d, want 404", code)
	}
}

func TestUploadRejectsNonImage(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	view := createSession(t, srv.URL)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, _ := mw.CreateFormFile("image", "notes.txt")
	_, _ = part.Write([]byte("just some text"))
	_ = mw.Close()

	req, _ := http.NewRequest(http.MethodPut, srv.URL+"/api/sessions/"+view.ID+"/source", &buf)
	req.Header.Set("content-type", mw.FormDataContentType())
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestUploadSizeLimit(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	view := createSession(t, srv.URL)

	png := []byte("\x89PNG\r\n\x1a\n")
	atLimit := append(png, bytes.Repeat([]byte{0}, maxUploadBytes-len(png))...)
	if code := uploadImage(t, srv.URL, view.ID, atLimit); code != http.StatusOK {
		t.Fatalf("upload of %d bytes status = %d, want 200", len(atLimit), code)
	}

	overLimit := append(atLimit, 0)
	if code := uploadImage(t, srv.URL, view.ID, overLimit); code != http.StatusRequestEntityTooLarge {
		t.Fatalf("upload of %d bytes status = %d, want 413", len(overLimit), code)
	}
}

func TestTemplates(t *testing.T) {
	srv := newTestServer(t, &stubGenerator{})
	var out []templateView
	if code := doJSON(t, http.MethodGet, srv.URL+"/api/templates", nil, &out); code != http.StatusOK {
		t.Fatalf("status = %d", code)
	}
	if len(out) != 6 || out[2].AspectRatio != "9:16" {
		t.Fatalf("templates = %+v", out)
	}
}
