package aiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers every request with a canned response and records the request
type fakeTransport struct {
	requests []Request
	status   int
	body     []byte
	length   int64
	err      error
}

func (f *fakeTransport) Do(_ context.Context, req Request) (*Response, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	status := f.status
	if status == 0 {
		status = http.StatusOK
	}
	length := f.length
	if length == 0 {
		length = int64(len(f.body))
	}
	return &Response{
		StatusCode:    status,
		Body:          io.NopCloser(bytes.NewReader(f.body)),
		ContentLength: length,
	}, nil
}

func newTestClient(tr Transport) *Client {
	return NewClient(tr, Config{}, zerolog.Nop())
}

func TestTranscribe_RequestBody(t *testing.T) {
	tr := &fakeTransport{body: []byte(`{"text":"hello"}`)}
	c := newTestClient(tr)

	pcm := make([]int16, 32000)
	for i := range pcm {
		pcm[i] = int16(i % 1000)
	}

	text, err := c.Transcribe(context.Background(), pcm, "ru")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	require.Len(t, tr.requests, 1)
	req := tr.requests[0]
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, PathTranscribe, req.Path)
	assert.Equal(t, 60*time.Second, req.Timeout)

	var body TranscribeRequest
	require.NoError(t, json.Unmarshal(req.Body, &body))
	assert.Equal(t, 16000, body.SampleRate)
	assert.Equal(t, 1, body.Channels)
	assert.Equal(t, 2, body.SampleWidth)
	assert.Equal(t, "pcm_s16le", body.Format)
	assert.Equal(t, "ru", body.LangHint)

	raw, err := base64.StdEncoding.DecodeString(body.PCMBase64)
	require.NoError(t, err)
	require.Len(t, raw, 64000)
	for i, v := range pcm {
		got := int16(uint16(raw[2*i]) | uint16(raw[2*i+1])<<8)
		if got != v {
			t.Fatalf("sample %d: expected %d, got %d", i, v, got)
		}
	}
}

func TestTranscribe_Base64Padding(t *testing.T) {
	// 1 sample = 2 bytes, 3 samples = 6 bytes
	tests := []struct {
		samples int
		padded  bool
	}{
		{1, true},
		{3, false},
		{4, true},
		{6, false},
	}

	for _, tt := range tests {
		t.Run(strconv.Itoa(tt.samples), func(t *testing.T) {
			tr := &fakeTransport{body: []byte(`{"text":"x"}`)}
			_, err := newTestClient(tr).Transcribe(context.Background(), make([]int16, tt.samples), "en")
			require.NoError(t, err)

			var body TranscribeRequest
			require.NoError(t, json.Unmarshal(tr.requests[0].Body, &body))

			n := 2 * tt.samples
			assert.Len(t, body.PCMBase64, 4*((n+2)/3))
			assert.Equal(t, tt.padded, body.PCMBase64[len(body.PCMBase64)-1] == '=')
		})
	}
}

func TestExtractText_CandidateOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"text", `{"text":"a","answer":"b"}`, "a"},
		{"output_text", `{"output_text":"b","answer":"c"}`, "b"},
		{"answer", `{"answer":"c","assistant_text":"d"}`, "c"},
		{"assistant_text", `{"assistant_text":"d"}`, "d"},
		{"empty text falls through", `{"text":"","answer":"c"}`, "c"},
		{"non-string falls through", `{"text":42,"output_text":"b"}`, "b"},
		{"no candidate", `{"result":"x"}`, ""},
		{"invalid json", `not json`, ""},
		{"array", `["text"]`, ""},
		{"unicode", `{"text":"привет"}`, "привет"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText([]byte(tt.body)))
		})
	}
}

func TestTranscribe_EmptyResult(t *testing.T) {
	for _, body := range []string{`{}`, `garbage`, `{"text":""}`} {
		tr := &fakeTransport{body: []byte(body)}
		text, err := newTestClient(tr).Transcribe(context.Background(), []int16{1}, "en")
		assert.Empty(t, text)
		assert.ErrorIs(t, err, ErrEmptyResult)
		assert.NotErrorIs(t, err, ErrTransport)
	}
}

func TestConverse(t *testing.T) {
	tr := &fakeTransport{body: []byte(`{"answer":"hi there"}`)}
	c := newTestClient(tr)

	reply, err := c.Converse(context.Background(), "hello\r\nworld\r", "ru", "en")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	var body ChatRequest
	require.NoError(t, json.Unmarshal(tr.requests[0].Body, &body))
	assert.Equal(t, "hello\nworld", body.Text)
	assert.Equal(t, "ru", body.UserLang)
	assert.Equal(t, "en", body.AssistantLang)
	assert.Equal(t, PathChat, tr.requests[0].Path)
}

func TestConverse_EscapesText(t *testing.T) {
	tr := &fakeTransport{body: []byte(`{"text":"ok"}`)}
	_, err := newTestClient(tr).Converse(context.Background(), `say "hi" \ now`, "en", "kk")
	require.NoError(t, err)

	var body ChatRequest
	require.NoError(t, json.Unmarshal(tr.requests[0].Body, &body))
	assert.Equal(t, `say "hi" \ now`, body.Text)
}

func TestConverse_KeepsMarkupBytes(t *testing.T) {
	tr := &fakeTransport{body: []byte(`{"text":"ok"}`)}
	_, err := newTestClient(tr).Converse(context.Background(), "a<b & \"c\"\r\nd", "ru", "en")
	require.NoError(t, err)

	assert.Equal(t,
		`{"text":"a<b & \"c\"\nd","user_lang":"ru","assistant_lang":"en"}`,
		string(tr.requests[0].Body))
}

func TestSynthesize_KeepsMarkupBytes(t *testing.T) {
	wav := []byte("RIFF....")
	tr := &fakeTransport{body: wav}
	_, err := newTestClient(tr).Synthesize(context.Background(), "<ok> & done", "marin")
	require.NoError(t, err)

	assert.Equal(t,
		`{"text":"<ok> & done","voice":"marin","format":"wav"}`,
		string(tr.requests[0].Body))
}

func TestNonOKStatusIsTransportFailure(t *testing.T) {
	for _, status := range []int{201, 204, 400, 500, 503} {
		tr := &fakeTransport{status: status, body: []byte(`{"text":"ignored"}`)}
		c := newTestClient(tr)

		_, err := c.Converse(context.Background(), "x", "en", "ru")
		assert.ErrorIs(t, err, ErrTransport, "status %d", status)

		var reqErr *RequestError
		require.True(t, errors.As(err, &reqErr))
		assert.Equal(t, status, reqErr.StatusCode)
		assert.Equal(t, PathChat, reqErr.Path)
	}
}

func TestConnectFailureIsTransportFailure(t *testing.T) {
	tr := &fakeTransport{err: errors.New("connection refused")}
	c := newTestClient(tr)

	_, err := c.Transcribe(context.Background(), []int16{1}, "en")
	assert.ErrorIs(t, err, ErrTransport)

	_, err = c.Synthesize(context.Background(), "x", "marin")
	assert.ErrorIs(t, err, ErrTransport)

	assert.ErrorIs(t, c.Health(context.Background()), ErrTransport)
	// No retries
	assert.Len(t, tr.requests, 3)
}

func TestSynthesize(t *testing.T) {
	wav := []byte("RIFF....WAVEfmt payload bytes")
	tr := &fakeTransport{body: wav}
	c := newTestClient(tr)

	got, err := c.Synthesize(context.Background(), "hi there\r", "marin")
	require.NoError(t, err)
	assert.Equal(t, wav, got)

	var body SynthesizeRequest
	require.NoError(t, json.Unmarshal(tr.requests[0].Body, &body))
	assert.Equal(t, "hi there", body.Text)
	assert.Equal(t, "marin", body.Voice)
	assert.Equal(t, "wav", body.Format)
	assert.Equal(t, PathSynthesize, tr.requests[0].Path)
}

func TestSynthesize_TruncatedBody(t *testing.T) {
	tr := &fakeTransport{body: make([]byte, 100), length: 150}
	_, err := newTestClient(tr).Synthesize(context.Background(), "x", "marin")
	assert.ErrorIs(t, err, ErrTruncatedBody)
}

func TestSynthesize_UnknownLength(t *testing.T) {
	tr := &fakeTransport{body: []byte("abc"), length: -1}
	_, err := newTestClient(tr).Synthesize(context.Background(), "x", "marin")
	assert.ErrorIs(t, err, ErrUnknownLength)
}

func TestSynthesize_TooLarge(t *testing.T) {
	tr := &fakeTransport{body: []byte("abc"), length: 1 << 30}
	c := NewClient(tr, Config{MaxAudioBytes: 1024}, zerolog.Nop())
	_, err := c.Synthesize(context.Background(), "x", "marin")
	assert.ErrorIs(t, err, ErrBodyTooLarge)
}

func TestHealth_UsesShortTimeout(t *testing.T) {
	tr := &fakeTransport{body: []byte("ok")}
	c := newTestClient(tr)

	require.NoError(t, c.Health(context.Background()))
	require.Len(t, tr.requests, 1)
	assert.Equal(t, http.MethodGet, tr.requests[0].Method)
	assert.Equal(t, PathHealth, tr.requests[0].Path)
	assert.Nil(t, tr.requests[0].Body)
	assert.Equal(t, 5*time.Second, tr.requests[0].Timeout)
}

func TestHealth_Unhealthy(t *testing.T) {
	tr := &fakeTransport{status: http.StatusServiceUnavailable}
	err := newTestClient(tr).Health(context.Background())

	var reqErr *RequestError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusServiceUnavailable, reqErr.StatusCode)
}

func TestClient_OverHTTP(t *testing.T) {
	wav := bytes.Repeat([]byte{1, 2}, 500)

	mux := http.NewServeMux()
	mux.HandleFunc(PathHealth, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc(PathTranscribe, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NotEmpty(t, r.Header.Get("X-Request-ID"))
		var req TranscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "hello"})
	})
	mux.HandleFunc(PathChat, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"assistant_text": "hi there"})
	})
	mux.HandleFunc(PathSynthesize, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Length", strconv.Itoa(len(wav)))
		w.Write(wav)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewClient(NewHTTPTransport(srv.URL+"/"), DefaultConfig(), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, c.Health(ctx))

	text, err := c.Transcribe(ctx, []int16{1, 2, 3}, "ru")
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	reply, err := c.Converse(ctx, text, "ru", "en")
	require.NoError(t, err)
	assert.Equal(t, "hi there", reply)

	got, err := c.Synthesize(ctx, reply, "marin")
	require.NoError(t, err)
	assert.Equal(t, wav, got)
}

func TestClient_OverHTTPServerDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(NewHTTPTransport(url), DefaultConfig(), zerolog.Nop())
	_, err := c.Transcribe(context.Background(), []int16{1}, "en")
	assert.ErrorIs(t, err, ErrTransport)
}

func TestHTTPTransport_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	c := NewClient(NewHTTPTransport(srv.URL), Config{HealthTimeout: 50 * time.Millisecond}, zerolog.Nop())
	err := c.Health(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}
