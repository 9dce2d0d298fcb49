package aiclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/steppetalk/voice-terminal/internal/audio"
	"github.com/steppetalk/voice-terminal/internal/observability"
)

// Endpoint paths on the AI back-end
const (
	PathHealth     = "/health"
	PathTranscribe = "/stt_raw"
	PathChat       = "/chat"
	PathSynthesize = "/tts"
)

// Capture format announced with every transcription upload
const (
	UploadSampleRate  = 16000
	UploadChannels    = 1
	UploadSampleWidth = 2
	UploadFormat      = "pcm_s16le"
)

// textFields are tried in order; the first non-empty string wins
var textFields = []string{"text", "output_text", "answer", "assistant_text"}

// Config holds client timeouts and limits
type Config struct {
	HealthTimeout    time.Duration
	InferenceTimeout time.Duration
	MaxAudioBytes    int
}

// DefaultConfig returns the timeouts the back-end is known to need
func DefaultConfig() Config {
	return Config{
		HealthTimeout:    5 * time.Second,
		InferenceTimeout: 60 * time.Second,
		MaxAudioBytes:    4 << 20,
	}
}

// TranscribeRequest is the body of POST /stt_raw
type TranscribeRequest struct {
	PCMBase64   string `json:"pcm_b64"`
	SampleRate  int    `json:"sample_rate"`
	Channels    int    `json:"channels"`
	SampleWidth int    `json:"sample_width"`
	Format      string `json:"format"`
	LangHint    string `json:"lang_hint"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Text          string `json:"text"`
	UserLang      string `json:"user_lang"`
	AssistantLang string `json:"assistant_lang"`
}

// SynthesizeRequest is the body of POST /tts
type SynthesizeRequest struct {
	Text   string `json:"text"`
	Voice  string `json:"voice"`
	Format string `json:"format"`
}

// Client speaks the speech-to-text, chat and text-to-speech protocol.
// Every call is attempted exactly once.
type Client struct {
	transport Transport
	config    Config
	logger    zerolog.Logger
}

// NewClient creates a protocol client over transport
func NewClient(transport Transport, cfg Config, logger zerolog.Logger) *Client {
	defaults := DefaultConfig()
	if cfg.HealthTimeout <= 0 {
		cfg.HealthTimeout = defaults.HealthTimeout
	}
	if cfg.InferenceTimeout <= 0 {
		cfg.InferenceTimeout = defaults.InferenceTimeout
	}
	if cfg.MaxAudioBytes <= 0 {
		cfg.MaxAudioBytes = defaults.MaxAudioBytes
	}
	return &Client{
		transport: transport,
		config:    cfg,
		logger:    logger.With().Str("component", "aiclient").Logger(),
	}
}

// Health performs the no-body liveness GET. Only status 200 counts as healthy.
func (c *Client) Health(ctx context.Context) error {
	resp, err := c.exchange(ctx, http.MethodGet, PathHealth, nil, c.config.HealthTimeout)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Transcribe uploads 16 kHz mono PCM and returns the recognized text
func (c *Client) Transcribe(ctx context.Context, pcm []int16, langHint string) (string, error) {
	body, err := marshalBody(TranscribeRequest{
		PCMBase64:   base64.StdEncoding.EncodeToString(audio.SamplesToBytes(pcm)),
		SampleRate:  UploadSampleRate,
		Channels:    UploadChannels,
		SampleWidth: UploadSampleWidth,
		Format:      UploadFormat,
		LangHint:    langHint,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	c.logger.Debug().
		Int("samples", len(pcm)).
		Int("body_bytes", len(body)).
		Str("lang_hint", langHint).
		Msg("Uploading speech")

	return c.postText(ctx, PathTranscribe, body)
}

// Converse sends the transcript to the chat endpoint and returns the reply
func (c *Client) Converse(ctx context.Context, text, userLang, assistantLang string) (string, error) {
	body, err := marshalBody(ChatRequest{
		Text:          stripCarriageReturns(text),
		UserLang:      userLang,
		AssistantLang: assistantLang,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.postText(ctx, PathChat, body)
}

// Synthesize requests a WAV rendering of text. The body is only returned
// once exactly the declared number of bytes has been read.
func (c *Client) Synthesize(ctx context.Context, text, voice string) ([]byte, error) {
	body, err := marshalBody(SynthesizeRequest{
		Text:   stripCarriageReturns(text),
		Voice:  voice,
		Format: "wav",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	resp, err := c.exchange(ctx, http.MethodPost, PathSynthesize, body, c.config.InferenceTimeout)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.ContentLength <= 0 {
		return nil, ErrUnknownLength
	}
	if resp.ContentLength > int64(c.config.MaxAudioBytes) {
		return nil, fmt.Errorf("%w: declared %d bytes, limit %d", ErrBodyTooLarge, resp.ContentLength, c.config.MaxAudioBytes)
	}

	wav := make([]byte, resp.ContentLength)
	n, err := io.ReadFull(resp.Body, wav)
	if err != nil {
		return nil, fmt.Errorf("%w: read %d of %d bytes: %v", ErrTruncatedBody, n, len(wav), err)
	}

	c.logger.Debug().Int("bytes", n).Msg("Received synthesized audio")
	return wav, nil
}

// marshalBody encodes v as JSON without HTML escaping and without the
// encoder's trailing newline
func marshalBody(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// postText POSTs a JSON body and extracts the reply text
func (c *Client) postText(ctx context.Context, path string, body []byte) (string, error) {
	resp, err := c.exchange(ctx, http.MethodPost, path, body, c.config.InferenceTimeout)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &RequestError{Path: path, Cause: fmt.Errorf("failed to read body: %w", err)}
	}

	text := ExtractText(raw)
	if text == "" {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyResult)
	}
	return text, nil
}

// exchange performs one request and rejects any status other than 200.
// On success the caller owns resp.Body.
func (c *Client) exchange(ctx context.Context, method, path string, body []byte, timeout time.Duration) (*Response, error) {
	start := time.Now()
	resp, err := c.transport.Do(ctx, Request{
		Method:  method,
		Path:    path,
		Body:    body,
		Timeout: timeout,
	})
	latency := time.Since(start)

	if err != nil {
		observability.RecordRemoteRequest(path, "error", latency)
		c.logger.Warn().Err(err).Str("path", path).Dur("latency", latency).Msg("Request failed")
		return nil, &RequestError{Path: path, Cause: err}
	}

	observability.RecordRemoteRequest(path, strconv.Itoa(resp.StatusCode), latency)

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		c.logger.Warn().Int("status", resp.StatusCode).Str("path", path).Msg("Unexpected status")
		return nil, &RequestError{Path: path, StatusCode: resp.StatusCode}
	}

	return resp, nil
}

// ExtractText returns the first non-empty string among the candidate fields
// of a JSON object, or "" when none matches or the body is not a JSON object.
func ExtractText(body []byte) string {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return ""
	}
	for _, field := range textFields {
		raw, ok := obj[field]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			continue
		}
		if s != "" {
			return s
		}
	}
	return ""
}

func stripCarriageReturns(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}
