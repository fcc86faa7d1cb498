package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slackpost/internal/config"
)

// fakeSlack serves the three Slack endpoints plus per-file upload URLs and
// records what it received.
type fakeSlack struct {
	t   *testing.T
	srv *httptest.Server

	mu            sync.Mutex
	calls         map[string]int
	uploadedBytes map[string][]byte
	completions   []completeUploadRequest
	lastAuth      string

	postMessageStatus int
	postMessageBody   string

	// keyed by filename; missing entries succeed
	getURLStatus map[string]int
	getURLBody   map[string]string
	uploadStatus map[string]int

	completeStatus int
	completeBody   string
}

func newFakeSlack(t *testing.T) *fakeSlack {
	t.Helper()

	f := &fakeSlack{
		t:                 t,
		calls:             make(map[string]int),
		uploadedBytes:     make(map[string][]byte),
		postMessageStatus: http.StatusOK,
		postMessageBody:   `{"ok":true}`,
		getURLStatus:      make(map[string]int),
		getURLBody:        make(map[string]string),
		uploadStatus:      make(map[string]int),
		completeStatus:    http.StatusOK,
		completeBody:      `{"ok":true,"files":[]}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/chat.postMessage", f.handlePostMessage)
	mux.HandleFunc("/api/files.getUploadURLExternal", f.handleGetUploadURL)
	mux.HandleFunc("/api/files.completeUploadExternal", f.handleComplete)
	mux.HandleFunc("/upload/", f.handleUpload)

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeSlack) client(t *testing.T) *APIClient {
	t.Helper()

	c, err := NewClient(config.SlackConfig{APIBaseURL: f.srv.URL + "/api", HTTPTimeout: 5 * time.Second}, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)
	require.NoError(t, err)
	return c
}

func (f *fakeSlack) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeSlack) uploaded(filename string) []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.uploadedBytes[filename]
}

func (f *fakeSlack) completed() []completeUploadRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]completeUploadRequest(nil), f.completions...)
}

func (f *fakeSlack) auth() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastAuth
}

func (f *fakeSlack) record(name string, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	f.lastAuth = r.Header.Get("Authorization")
}

func (f *fakeSlack) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	f.record("chat.postMessage", r)
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))

	var payload map[string]string
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))
	assert.Equal(f.t, "C1", payload["channel"])

	w.WriteHeader(f.postMessageStatus)
	_, _ = io.WriteString(w, f.postMessageBody)
}

func (f *fakeSlack) handleGetUploadURL(w http.ResponseWriter, r *http.Request) {
	f.record("files.getUploadURLExternal", r)
	assert.Equal(f.t, http.MethodGet, r.Method)

	filename := r.URL.Query().Get("filename")
	status, ok := f.getURLStatus[filename]
	if !ok {
		status = http.StatusOK
	}
	body, ok := f.getURLBody[filename]
	if !ok {
		body = fmt.Sprintf(`{"ok":true,"upload_url":%q,"file_id":%q}`, f.srv.URL+"/upload/"+filename, "F_"+filename)
	}

	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

func (f *fakeSlack) handleUpload(w http.ResponseWriter, r *http.Request) {
	f.record("upload", r)
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "application/octet-stream", r.Header.Get("Content-Type"))

	filename := strings.TrimPrefix(r.URL.Path, "/upload/")
	data, err := io.ReadAll(r.Body)
	assert.NoError(f.t, err)

	f.mu.Lock()
	f.uploadedBytes[filename] = data
	f.mu.Unlock()

	status, ok := f.uploadStatus[filename]
	if !ok {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = io.WriteString(w, "OK - "+filename)
}

func (f *fakeSlack) handleComplete(w http.ResponseWriter, r *http.Request) {
	f.record("files.completeUploadExternal", r)
	assert.Equal(f.t, http.MethodPost, r.Method)
	assert.Equal(f.t, "application/json", r.Header.Get("Content-Type"))

	var payload completeUploadRequest
	assert.NoError(f.t, json.NewDecoder(r.Body).Decode(&payload))

	f.mu.Lock()
	f.completions = append(f.completions, payload)
	f.mu.Unlock()

	w.WriteHeader(f.completeStatus)
	_, _ = io.WriteString(w, f.completeBody)
}

func TestNewClient_RejectsBadBaseURL(t *testing.T) {
	_, err := NewClient(config.SlackConfig{APIBaseURL: "not a url"}, nil, nil)
	require.Error(t, err)
}

func TestPostMessage_ReturnsDecodedBody(t *testing.T) {
	fake := newFakeSlack(t)

	resp, err := fake.client(t).PostMessage(context.Background(), "t", "C1", "hi")
	require.NoError(t, err)

	assert.Equal(t, Response{"ok": true}, resp)
	assert.Equal(t, "Bearer t", fake.auth())
	assert.Equal(t, 1, fake.count("chat.postMessage"))
}

func TestPostMessage_OkFalseStillReturnsBody(t *testing.T) {
	fake := newFakeSlack(t)
	fake.postMessageBody = `{"ok":false,"error":"channel_not_found"}`

	resp, err := fake.client(t).PostMessage(context.Background(), "t", "C1", "hi")
	require.NoError(t, err)

	assert.False(t, resp.OK())
	assert.Equal(t, "channel_not_found", resp["error"])
}

func TestPostMessage_Non200(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, body: `{"ok":false,"error":"ratelimited"}`},
		{name: "server error", status: http.StatusInternalServerError, body: "upstream broke"},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `{"ok":false,"error":"invalid_auth"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSlack(t)
			fake.postMessageStatus = tt.status
			fake.postMessageBody = tt.body

			resp, err := fake.client(t).PostMessage(context.Background(), "t", "C1", "hi")
			require.Error(t, err)
			assert.Nil(t, resp)

			var apiErr *APIError
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.body, apiErr.Body)
		})
	}
}

func TestPostMessage_TransportError(t *testing.T) {
	fake := newFakeSlack(t)
	c := fake.client(t)
	fake.srv.Close()

	resp, err := c.PostMessage(context.Background(), "t", "C1", "hi")
	require.Error(t, err)
	assert.Nil(t, resp)

	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}

func TestUploadImage_Success(t *testing.T) {
	fake := newFakeSlack(t)

	fileID, err := fake.client(t).UploadImage(context.Background(), "t", []byte("png-bytes"), "a.png")
	require.NoError(t, err)

	assert.Equal(t, "F_a.png", fileID)
	assert.Equal(t, []byte("png-bytes"), fake.uploaded("a.png"))
	assert.Equal(t, 1, fake.count("files.getUploadURLExternal"))
	assert.Equal(t, 1, fake.count("upload"))
	assert.Zero(t, fake.count("files.completeUploadExternal"))
}

func TestUploadImage_SendsFilenameAndLength(t *testing.T) {
	var (
		mu       sync.Mutex
		gotQuery map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files.getUploadURLExternal" {
			mu.Lock()
			defer mu.Unlock()
			gotQuery = map[string]string{
				"filename": r.URL.Query().Get("filename"),
				"length":   r.URL.Query().Get("length"),
			}
			_, _ = fmt.Fprintf(w, `{"ok":true,"upload_url":%q,"file_id":"F1"}`, "http://"+r.Host+"/bytes")
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := NewClient(config.SlackConfig{APIBaseURL: srv.URL}, nil, nil)
	require.NoError(t, err)

	_, err = c.UploadImage(context.Background(), "t", []byte("12345"), "my chart.png")
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(map[string]string{"filename": "my chart.png", "length": "5"}, gotQuery); diff != "" {
		t.Fatalf("unexpected query (-want +got):\n%s", diff)
	}
}

func TestUploadImage_GetURLFailureShortCircuits(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "ok false", status: http.StatusOK, body: `{"ok":false,"error":"invalid_auth"}`},
		{name: "ok missing", status: http.StatusOK, body: `{"upload_url":"x","file_id":"F1"}`},
		{name: "not json", status: http.StatusOK, body: "<html>"},
		{name: "non 200", status: http.StatusForbidden, body: `{"ok":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeSlack(t)
			fake.getURLStatus["a.png"] = tt.status
			fake.getURLBody["a.png"] = tt.body

			fileID, err := fake.client(t).UploadImage(context.Background(), "t", []byte("x"), "a.png")
			require.Error(t, err)
			assert.Empty(t, fileID)
			assert.Contains(t, err.Error(), "error getting upload URL")
			assert.Zero(t, fake.count("upload"), "no byte upload should follow a failed url fetch")
		})
	}
}

func TestUploadImage_ScopeHintInError(t *testing.T) {
	fake := newFakeSlack(t)
	fake.getURLBody["a.png"] = `{"ok":false,"error":"missing_scope","needed":"files:write","provided":"chat:write"}`

	_, err := fake.client(t).UploadImage(context.Background(), "t", []byte("x"), "a.png")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "missing_scope", apiErr.SlackError)
	assert.True(t, strings.HasSuffix(err.Error(), "(needed=files:write provided=chat:write)"), err.Error())
}

func TestUploadImage_ByteUploadFailure(t *testing.T) {
	fake := newFakeSlack(t)
	fake.uploadStatus["a.png"] = http.StatusInternalServerError

	fileID, err := fake.client(t).UploadImage(context.Background(), "t", []byte("x"), "a.png")
	require.Error(t, err)
	assert.Empty(t, fileID)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "uploading file", apiErr.Op)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestSendImage_Success(t *testing.T) {
	fake := newFakeSlack(t)
	fake.completeBody = `{"ok":true,"files":[{"id":"F_a.png","title":"Chart"}]}`

	resp, err := fake.client(t).SendImage(context.Background(), "t", "C1", Image{Data: []byte("abc"), Filename: "a.png", Title: "Chart"})
	require.NoError(t, err)
	assert.True(t, resp.OK())

	want := []completeUploadRequest{{Files: []FileRef{{ID: "F_a.png", Title: "Chart"}}, ChannelID: "C1"}}
	if diff := cmp.Diff(want, fake.completed()); diff != "" {
		t.Fatalf("unexpected completion payload (-want +got):\n%s", diff)
	}
}

func TestSendImage_DrainsReader(t *testing.T) {
	fake := newFakeSlack(t)

	_, err := fake.client(t).SendImage(context.Background(), "t", "C1", Image{Reader: strings.NewReader("streamed"), Filename: "s.png", Title: "S"})
	require.NoError(t, err)

	assert.Equal(t, []byte("streamed"), fake.uploaded("s.png"))
}

func TestSendImage_UploadFailureSkipsCompletion(t *testing.T) {
	fake := newFakeSlack(t)
	fake.getURLBody["a.png"] = `{"ok":false}`

	resp, err := fake.client(t).SendImage(context.Background(), "t", "C1", Image{Data: []byte("abc"), Filename: "a.png", Title: "A"})
	require.Error(t, err)
	assert.Nil(t, resp)
	assert.Zero(t, fake.count("files.completeUploadExternal"))
}

func TestSendImage_CompletionNon200(t *testing.T) {
	fake := newFakeSlack(t)
	fake.completeStatus = http.StatusBadGateway
	fake.completeBody = "bad gateway"

	resp, err := fake.client(t).SendImage(context.Background(), "t", "C1", Image{Data: []byte("abc"), Filename: "a.png", Title: "A"})
	require.Error(t, err)
	assert.Nil(t, resp)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "completing upload", apiErr.Op)
}

func TestSendImages_SkipsFailedItem(t *testing.T) {
	fake := newFakeSlack(t)
	fake.uploadStatus["b.png"] = http.StatusInternalServerError

	images := []Image{
		{Data: []byte("a"), Filename: "a.png", Title: "A"},
		{Data: []byte("b"), Filename: "b.png", Title: "B"},
		{Reader: strings.NewReader("c"), Filename: "c.png", Title: "C"},
	}

	result, err := fake.client(t).SendImages(context.Background(), "t", "C1", images)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.True(t, result.Response.OK())

	want := []completeUploadRequest{{
		Files:     []FileRef{{ID: "F_a.png", Title: "A"}, {ID: "F_c.png", Title: "C"}},
		ChannelID: "C1",
	}}
	if diff := cmp.Diff(want, fake.completed()); diff != "" {
		t.Fatalf("unexpected completion payload (-want +got):\n%s", diff)
	}

	require.Len(t, result.Failed, 1)
	assert.Equal(t, "b.png", result.Failed[0].Filename)
	assert.Len(t, result.Uploaded, 2)
	require.Error(t, result.Err())
	assert.Contains(t, result.Err().Error(), "b.png")
}

func TestSendImages_AllFailed(t *testing.T) {
	fake := newFakeSlack(t)
	fake.getURLStatus["a.png"] = http.StatusInternalServerError
	fake.getURLBody["b.png"] = `{"ok":false,"error":"invalid_auth"}`

	images := []Image{
		{Data: []byte("a"), Filename: "a.png", Title: "A"},
		{Data: []byte("b"), Filename: "b.png", Title: "B"},
	}

	result, err := fake.client(t).SendImages(context.Background(), "t", "C1", images)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoImagesPrepared))
	assert.Nil(t, result.Response)
	assert.Len(t, result.Failed, 2)
	assert.Zero(t, fake.count("files.completeUploadExternal"))
}

func TestSendImages_Empty(t *testing.T) {
	fake := newFakeSlack(t)

	_, err := fake.client(t).SendImages(context.Background(), "t", "C1", nil)
	require.ErrorIs(t, err, ErrNoImagesPrepared)
	assert.Zero(t, fake.count("files.completeUploadExternal"))
}

func TestSendImages_CompletionOkFalse(t *testing.T) {
	fake := newFakeSlack(t)
	fake.completeBody = `{"ok":false,"error":"not_in_channel"}`

	result, err := fake.client(t).SendImages(context.Background(), "t", "C1", []Image{{Data: []byte("a"), Filename: "a.png", Title: "A"}})
	require.Error(t, err)
	assert.Nil(t, result.Response)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusOK, apiErr.StatusCode)
	assert.Equal(t, "not_in_channel", apiErr.SlackError)
}

type recordedCall struct {
	method  string
	outcome string
}

type fakeRecorder struct {
	calls []recordedCall
}

func (r *fakeRecorder) ObserveSlackCall(method, outcome string, _ time.Duration) {
	r.calls = append(r.calls, recordedCall{method: method, outcome: outcome})
}

func TestClient_RecordsEveryCall(t *testing.T) {
	fake := newFakeSlack(t)
	fake.uploadStatus["a.png"] = http.StatusInternalServerError

	rec := &fakeRecorder{}
	c, err := NewClient(config.SlackConfig{APIBaseURL: fake.srv.URL + "/api"}, nil, rec)
	require.NoError(t, err)

	_, err = c.SendImage(context.Background(), "t", "C1", Image{Data: []byte("a"), Filename: "a.png"})
	require.Error(t, err)

	want := []recordedCall{
		{method: methodGetUploadURLExternal, outcome: outcomeOK},
		{method: methodUploadBytes, outcome: outcomeHTTPError},
	}
	if diff := cmp.Diff(want, rec.calls, cmp.AllowUnexported(recordedCall{})); diff != "" {
		t.Fatalf("unexpected recorded calls (-want +got):\n%s", diff)
	}
}
