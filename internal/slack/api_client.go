package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"slackpost/internal/config"
)

const (
	DefaultAPIBaseURL = "https://slack.com/api/"

	methodChatPostMessage        = "chat.postMessage"
	methodGetUploadURLExternal   = "files.getUploadURLExternal"
	methodCompleteUploadExternal = "files.completeUploadExternal"
	methodUploadBytes            = "upload"
)

const (
	outcomeOK             = "ok"
	outcomeHTTPError      = "http_error"
	outcomeTransportError = "transport_error"
)

// Recorder receives one observation per outbound Slack request.
type Recorder interface {
	ObserveSlackCall(method, outcome string, elapsed time.Duration)
}

// Response is Slack's decoded JSON payload, returned as-is to the caller.
type Response map[string]any

// OK reports Slack's own "ok" field. A missing or non-boolean field is false.
func (r Response) OK() bool {
	ok, _ := r["ok"].(bool)
	return ok
}

type APIClient struct {
	baseURL    string
	logger     *slog.Logger
	httpClient *http.Client
	recorder   Recorder
}

type slackAPIResponse struct {
	OK        bool   `json:"ok"`
	Error     string `json:"error"`
	Needed    string `json:"needed"`
	Provided  string `json:"provided"`
	UploadURL string `json:"upload_url"`
	FileID    string `json:"file_id"`
}

type chatPostMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

func NewClient(cfg config.SlackConfig, logger *slog.Logger, recorder Recorder) (*APIClient, error) {
	baseURL := strings.TrimSpace(cfg.APIBaseURL)
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("parse slack api base url: %w", err)
	}
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &APIClient{
		baseURL:  baseURL,
		logger:   logger,
		recorder: recorder,
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
	}, nil
}

// PostMessage sends text to a channel through chat.postMessage. Any 200
// response is decoded and returned; Slack's "ok" field is left for the caller
// to inspect.
func (c *APIClient) PostMessage(ctx context.Context, token, channelID, text string) (Response, error) {
	status, body, err := c.callSlackJSON(ctx, token, methodChatPostMessage, chatPostMessageRequest{
		Channel: channelID,
		Text:    text,
	})
	if err != nil {
		c.logger.ErrorContext(ctx, "slack post message failed", slog.String("channel_id", channelID), slog.String("error", err.Error()))
		return nil, err
	}

	if status != http.StatusOK {
		apiErr := newAPIError("posting message", status, body, parseSlackResponse(body))
		c.logger.ErrorContext(ctx, "slack post message failed",
			slog.String("channel_id", channelID),
			slog.Int("status", status),
			slog.String("body", string(body)),
		)
		return nil, apiErr
	}

	resp, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "message sent successfully", slog.String("channel_id", channelID), slog.Bool("ok", resp.OK()))
	return resp, nil
}

func (c *APIClient) endpoint(method string) string {
	return c.baseURL + method
}

func (c *APIClient) callSlackJSON(ctx context.Context, token, method string, payload any) (int, []byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(method), bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("build slack request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, method)
}

// do sends req and reads the whole body. Only transport and read failures are
// returned as errors; status handling is left to the caller.
func (c *APIClient) do(req *http.Request, method string) (int, []byte, error) {
	start := time.Now()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(method, outcomeTransportError, start)
		return 0, nil, fmt.Errorf("call slack %s: %w", method, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(method, outcomeTransportError, start)
		return 0, nil, fmt.Errorf("read slack %s response: %w", method, err)
	}

	outcome := outcomeOK
	if resp.StatusCode != http.StatusOK {
		outcome = outcomeHTTPError
	}
	c.observe(method, outcome, start)

	return resp.StatusCode, body, nil
}

func (c *APIClient) observe(method, outcome string, start time.Time) {
	if c.recorder == nil {
		return
	}
	c.recorder.ObserveSlackCall(method, outcome, time.Since(start))
}

func decodeResponse(body []byte) (Response, error) {
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode slack response: %w", err)
	}
	if resp == nil {
		resp = Response{}
	}
	return resp, nil
}

// parseSlackResponse pulls the known fields out of body. A body that is not
// JSON yields the zero value, which reads as ok=false.
func parseSlackResponse(body []byte) slackAPIResponse {
	var parsed slackAPIResponse
	_ = json.Unmarshal(body, &parsed)
	return parsed
}
