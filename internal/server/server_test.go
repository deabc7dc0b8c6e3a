package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-extractor/constants"
	"github.com/joseph-ayodele/invoice-extractor/internal/common"
	"github.com/joseph-ayodele/invoice-extractor/internal/document"
	"github.com/joseph-ayodele/invoice-extractor/internal/llm"
	"github.com/joseph-ayodele/invoice-extractor/internal/ocr"
	"github.com/joseph-ayodele/invoice-extractor/internal/pipeline"
	"github.com/joseph-ayodele/invoice-extractor/internal/session"
)

type fakeExtractor struct {
	mu        sync.Mutex
	answer    string
	prepErr   error
	extErr    error
	block     chan struct{} // when set, Extract waits on it or ctx
	prepares  int
	extracts  int
	lastNames []string
}

func (f *fakeExtractor) Prepare(_ context.Context, name string, data []byte) (*pipeline.Prepared, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prepares++
	f.lastNames = append(f.lastNames, name)
	if f.prepErr != nil {
		return nil, f.prepErr
	}
	doc := &document.Document{
		Identity: document.IdentityOf(name, data),
		MIME:     constants.MIMEPNG,
		Format:   constants.FormatImage,
		PageMIME: constants.MIMEPNG,
		Pages:    [][]byte{data},
	}
	return &pipeline.Prepared{Document: doc, OCR: ocr.Result{Text: "ocr " + name}}, nil
}

func (f *fakeExtractor) Extract(ctx context.Context, _ *pipeline.Prepared) (pipeline.Extraction, error) {
	f.mu.Lock()
	f.extracts++
	block, answer, err := f.block, f.answer, f.extErr
	f.mu.Unlock()
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return pipeline.Extraction{}, ctx.Err()
		}
	}
	if err != nil {
		return pipeline.Extraction{}, err
	}
	return pipeline.Extraction{Completion: llm.Completion{Text: answer, Model: "fake"}, Repair: llm.Repair(answer)}, nil
}

type harness struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
	fake   *fakeExtractor
	store  *session.Store
}

func newHarness(t *testing.T, fake *fakeExtractor) *harness {
	t.Helper()
	store := session.NewStore(time.Hour, nil)
	cfg := common.ServerConfig{HTTPAddr: ":0", MaxUploadBytes: 1 << 20}
	s, err := New(cfg, fake, store, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(s.Routes())
	t.Cleanup(ts.Close)

	client := ts.Client()
	jar := newJar()
	client.Jar = jar
	client.CheckRedirect = func(*http.Request, []*http.Request) error { return http.ErrUseLastResponse }
	return &harness{t: t, srv: ts, client: client, fake: fake, store: store}
}

// jar keeps the session cookie between calls.
type jar struct {
	mu      sync.Mutex
	cookies []*http.Cookie
}

func newJar() *jar { return &jar{} }

func (j *jar) SetCookies(_ *url.URL, cookies []*http.Cookie) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.cookies = append(j.cookies, cookies...)
}

func (j *jar) Cookies(*url.URL) []*http.Cookie {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.cookies
}

func (h *harness) do(req *http.Request, wantJSON bool) *http.Response {
	h.t.Helper()
	if wantJSON {
		req.Header.Set("Accept", "application/json")
	}
	resp, err := h.client.Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) upload(name string, data []byte, wantJSON bool) *http.Response {
	h.t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(h.t, err)
	_, err = fw.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req, err := http.NewRequest(http.MethodPost, h.srv.URL+"/upload", &body)
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return h.do(req, wantJSON)
}

func (h *harness) post(path string, form url.Values, wantJSON bool) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.srv.URL+path, strings.NewReader(form.Encode()))
	require.NoError(h.t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req, wantJSON)
}

func (h *harness) get(path string, wantJSON bool) *http.Response {
	h.t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.srv.URL+path, nil)
	require.NoError(h.t, err)
	return h.do(req, wantJSON)
}

func decodeState(t *testing.T, resp *http.Response) stateJSON {
	t.Helper()
	var out stateJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestHealthz(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	resp := h.get("/healthz", false)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get(requestIDHeader))
	assert.Equal(t, 0, h.store.Len())
}

func TestIndexRendersFieldHelp(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})
	resp := h.get("/", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "<h3>Nota fiscal</h3>")
	assert.Contains(t, buf.String(), "<strong>numeroRps</strong>")
	assert.Equal(t, 1, h.store.Len())
}

func TestUploadExtractsAndDownloads(t *testing.T) {
	h := newHarness(t, &fakeExtractor{answer: "Here is the result:\n[{\"numeroRps\":\"123\"}]"})

	resp := h.upload("nota.png", []byte("png-bytes"), true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	st := decodeState(t, resp)
	assert.True(t, st.Valid)
	assert.Equal(t, string(constants.SessionLLMOK), st.Status)
	assert.Equal(t, 1, st.Pages)
	assert.Equal(t, "ocr nota.png", st.OCRText)
	assert.Equal(t, "[\n    {\n        \"numeroRps\": \"123\"\n    }\n]", st.JSON)

	resp = h.get("/download/json", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "extracted_data.json")
	var records []map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&records))
	require.Len(t, records, 1)
	assert.Equal(t, "123", records[0]["numeroRps"])

	resp = h.get("/download/xlsx", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxMIME, resp.Header.Get("Content-Type"))

	resp = h.get("/pages/1", false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, constants.MIMEPNG, resp.Header.Get("Content-Type"))
	resp = h.get("/pages/2", false)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUploadBrowserRedirects(t *testing.T) {
	h := newHarness(t, &fakeExtractor{answer: "[]"})
	resp := h.upload("nota.png", []byte("png"), false)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestUnrepairableAnswerDisablesDownloads(t *testing.T) {
	h := newHarness(t, &fakeExtractor{answer: "Sorry, I cannot process this."})

	st := decodeState(t, h.upload("nota.png", []byte("png"), true))
	assert.False(t, st.Valid)
	assert.Equal(t, "Sorry, I cannot process this.", st.JSON)
	assert.Equal(t, string(constants.SessionInvalidJSON), st.Status)

	resp := h.get("/download/json", false)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp = h.get("/download/xlsx", true)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestEditKeepsInvalidTextAndRevalidates(t *testing.T) {
	h := newHarness(t, &fakeExtractor{answer: `[{"numeroNota":"1"}]`})
	h.upload("nota.png", []byte("png"), true)

	st := decodeState(t, h.post("/edit", url.Values{"json": {`[{"numeroNota": "2",`}}, true))
	assert.False(t, st.Valid)
	assert.Equal(t, `[{"numeroNota": "2",`, st.JSON)
	assert.Equal(t, http.StatusConflict, h.get("/download/json", false).StatusCode)

	st = decodeState(t, h.post("/edit", url.Values{"json": {`[{"numeroNota": "2"}]`}}, true))
	assert.True(t, st.Valid)
	assert.Equal(t, `[{"numeroNota": "2"}]`, st.JSON)
	assert.Equal(t, http.StatusOK, h.get("/download/json", false).StatusCode)
}

func TestNewUploadResetsSession(t *testing.T) {
	fake := &fakeExtractor{answer: `[{"numeroNota":"1"}]`}
	h := newHarness(t, fake)
	h.upload("a.png", []byte("first"), true)

	fake.mu.Lock()
	fake.prepErr = common.UpstreamError("load document", errors.New("rasterizer crashed"))
	fake.mu.Unlock()

	resp := h.upload("b.png", []byte("second"), true)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	var body errorJSON
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "UPSTREAM_ERROR", body.Code)
	assert.Equal(t, genericFailure, body.Message)
	assert.Contains(t, body.Detail, "rasterizer crashed")

	st := decodeState(t, h.get("/", true))
	assert.Equal(t, 0, st.Pages)
	assert.Empty(t, st.OCRText)
	assert.Empty(t, st.JSON)
	assert.Equal(t, string(constants.SessionFailed), st.Status)
	assert.Equal(t, "UPSTREAM_ERROR", st.ErrorCode)
}

func TestSameUploadIsNoop(t *testing.T) {
	fake := &fakeExtractor{answer: `[{"numeroNota":"1"}]`}
	h := newHarness(t, fake)
	h.upload("a.png", []byte("same"), true)
	h.upload("a.png", []byte("same"), true)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.prepares)
	assert.Equal(t, 1, fake.extracts)
}

func TestRegenerateUsesCache(t *testing.T) {
	fake := &fakeExtractor{answer: `[{"numeroNota":"1"}]`}
	h := newHarness(t, fake)

	resp := h.post("/regenerate", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	h.upload("a.png", []byte("x"), true)
	fake.mu.Lock()
	fake.answer = `[{"numeroNota":"2"}]`
	fake.mu.Unlock()

	st := decodeState(t, h.post("/regenerate", nil, true))
	assert.Contains(t, st.JSON, `"2"`)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.prepares)
	assert.Equal(t, 2, fake.extracts)
}

func TestModelFailureShowsGenericMessage(t *testing.T) {
	fake := &fakeExtractor{extErr: common.UpstreamError("model", errors.New("401 invalid api key"))}
	h := newHarness(t, fake)
	h.upload("a.png", []byte("x"), false)

	resp := h.get("/", false)
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), genericFailure)
	assert.Contains(t, buf.String(), "401 invalid api key")
}

func TestUploadValidation(t *testing.T) {
	h := newHarness(t, &fakeExtractor{})

	resp := h.upload("empty.png", nil, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.upload("big.png", bytes.Repeat([]byte("x"), 3<<19), true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.post("/upload", url.Values{"x": {"y"}}, true)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestClearResets(t *testing.T) {
	h := newHarness(t, &fakeExtractor{answer: "[]"})
	h.upload("a.png", []byte("x"), true)

	st := decodeState(t, h.post("/clear", nil, true))
	assert.Equal(t, string(constants.SessionEmpty), st.Status)
	assert.Equal(t, 0, st.Pages)
	assert.Empty(t, st.JSON)
}

func TestCancelStopsInflightExtraction(t *testing.T) {
	fake := &fakeExtractor{answer: "[]", block: make(chan struct{})}
	h := newHarness(t, fake)

	// one request to get a session cookie before going concurrent
	h.get("/", true)

	result := make(chan *http.Response, 1)
	go func() {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, _ := mw.CreateFormFile("file", "a.png")
		_, _ = fw.Write([]byte("x"))
		_ = mw.Close()
		req, _ := http.NewRequest(http.MethodPost, h.srv.URL+"/upload", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Accept", "application/json")
		resp, err := h.client.Do(req)
		if err != nil {
			result <- nil
			return
		}
		result <- resp
	}()

	require.Eventually(t, func() bool {
		return decodeState(t, h.get("/", true)).Busy
	}, 2*time.Second, 10*time.Millisecond)

	h.post("/cancel", nil, true)

	select {
	case resp := <-result:
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
	case <-time.After(2 * time.Second):
		t.Fatal("upload did not return after cancel")
	}

	st := decodeState(t, h.get("/", true))
	assert.False(t, st.Busy)
	assert.Equal(t, "CANCELLED", st.ErrorCode)
}
