package slack

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hashicorp/go-multierror"
)

// Image is one file to upload. When Data is nil, Reader is drained into memory
// before the upload starts.
type Image struct {
	Data     []byte
	Reader   io.Reader
	Filename string
	Title    string
}

// FileRef names an uploaded file in a files.completeUploadExternal call.
type FileRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type UploadedFile struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Title    string `json:"title"`
}

type FailedImage struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Err      error  `json:"-"`
}

// BatchResult describes a SendImages call. Response is only set when the
// completion call succeeded.
type BatchResult struct {
	Response Response
	Uploaded []UploadedFile
	Failed   []FailedImage
}

// Err folds the per-image failures into one error, or nil when every image
// was uploaded.
func (r *BatchResult) Err() error {
	if r == nil {
		return nil
	}

	var result *multierror.Error
	for _, f := range r.Failed {
		result = multierror.Append(result, fmt.Errorf("%s: %w", f.Filename, f.Err))
	}
	return result.ErrorOrNil()
}

type uploadTicket struct {
	UploadURL string
	FileID    string
}

type completeUploadRequest struct {
	Files     []FileRef `json:"files"`
	ChannelID string    `json:"channel_id"`
}

func (img Image) payload() ([]byte, error) {
	if img.Data != nil || img.Reader == nil {
		return img.Data, nil
	}

	data, err := io.ReadAll(img.Reader)
	if err != nil {
		return nil, fmt.Errorf("read image %s: %w", img.Filename, err)
	}
	return data, nil
}

// UploadImage pushes data to Slack and returns the file ID without sharing the
// file anywhere. The bytes are only sent once Slack has issued an upload URL.
func (c *APIClient) UploadImage(ctx context.Context, token string, data []byte, filename string) (string, error) {
	ticket, err := c.getUploadURL(ctx, token, filename, len(data))
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ticket.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build slack upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	status, body, err := c.do(req, methodUploadBytes)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		return "", newAPIError("uploading file", status, body, slackAPIResponse{})
	}

	c.logger.DebugContext(ctx, "slack file uploaded", slog.String("filename", filename), slog.String("file_id", ticket.FileID))
	return ticket.FileID, nil
}

func (c *APIClient) getUploadURL(ctx context.Context, token, filename string, length int) (uploadTicket, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(methodGetUploadURLExternal), nil)
	if err != nil {
		return uploadTicket{}, fmt.Errorf("build slack upload url request: %w", err)
	}

	q := req.URL.Query()
	q.Set("filename", filename)
	q.Set("length", strconv.Itoa(length))
	req.URL.RawQuery = q.Encode()

	req.Header.Set("Authorization", "Bearer "+token)

	status, body, err := c.do(req, methodGetUploadURLExternal)
	if err != nil {
		return uploadTicket{}, err
	}

	parsed := parseSlackResponse(body)
	if status != http.StatusOK || !parsed.OK {
		return uploadTicket{}, newAPIError("getting upload URL", status, body, parsed)
	}

	return uploadTicket{UploadURL: parsed.UploadURL, FileID: parsed.FileID}, nil
}

// SendImage uploads one image and shares it to channelID with its title.
func (c *APIClient) SendImage(ctx context.Context, token, channelID string, img Image) (Response, error) {
	data, err := img.payload()
	if err != nil {
		c.logger.ErrorContext(ctx, "slack send image failed", slog.String("filename", img.Filename), slog.String("error", err.Error()))
		return nil, err
	}

	fileID, err := c.UploadImage(ctx, token, data, img.Filename)
	if err != nil {
		c.logger.ErrorContext(ctx, "slack send image failed", slog.String("filename", img.Filename), slog.String("error", err.Error()))
		return nil, err
	}

	status, body, err := c.completeUpload(ctx, token, channelID, []FileRef{{ID: fileID, Title: img.Title}})
	if err != nil {
		c.logger.ErrorContext(ctx, "slack complete upload failed", slog.String("channel_id", channelID), slog.String("error", err.Error()))
		return nil, err
	}
	if status != http.StatusOK {
		c.logger.ErrorContext(ctx, "slack complete upload failed",
			slog.String("channel_id", channelID),
			slog.Int("status", status),
			slog.String("body", string(body)),
		)
		return nil, newAPIError("completing upload", status, body, parseSlackResponse(body))
	}

	resp, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "image sent successfully", slog.String("channel_id", channelID), slog.String("file_id", fileID))
	return resp, nil
}

// SendImages uploads each image in order and shares the successful ones to
// channelID in a single completion call. An image that fails to upload is
// recorded in BatchResult.Failed and skipped. The returned result is non-nil
// even when err is set.
func (c *APIClient) SendImages(ctx context.Context, token, channelID string, images []Image) (*BatchResult, error) {
	result := &BatchResult{}
	files := make([]FileRef, 0, len(images))

	for _, img := range images {
		fileID, err := c.uploadOne(ctx, token, img)
		if err != nil {
			c.logger.ErrorContext(ctx, "slack image upload skipped", slog.String("filename", img.Filename), slog.String("error", err.Error()))
			result.Failed = append(result.Failed, FailedImage{Filename: img.Filename, Title: img.Title, Err: err})
			continue
		}

		files = append(files, FileRef{ID: fileID, Title: img.Title})
		result.Uploaded = append(result.Uploaded, UploadedFile{ID: fileID, Filename: img.Filename, Title: img.Title})
	}

	if len(files) == 0 {
		c.logger.ErrorContext(ctx, "no images were successfully prepared for upload", slog.String("channel_id", channelID), slog.Int("failed", len(result.Failed)))
		if err := result.Err(); err != nil {
			return result, fmt.Errorf("%w: %w", ErrNoImagesPrepared, err)
		}
		return result, ErrNoImagesPrepared
	}

	status, body, err := c.completeUpload(ctx, token, channelID, files)
	if err != nil {
		c.logger.ErrorContext(ctx, "slack complete upload failed", slog.String("channel_id", channelID), slog.String("error", err.Error()))
		return result, err
	}

	parsed := parseSlackResponse(body)
	if status != http.StatusOK || !parsed.OK {
		c.logger.ErrorContext(ctx, "slack complete upload failed",
			slog.String("channel_id", channelID),
			slog.Int("status", status),
			slog.String("body", string(body)),
		)
		return result, newAPIError("completing upload", status, body, parsed)
	}

	resp, err := decodeResponse(body)
	if err != nil {
		return result, err
	}
	result.Response = resp

	c.logger.InfoContext(ctx, "images sent successfully",
		slog.String("channel_id", channelID),
		slog.Int("uploaded", len(result.Uploaded)),
		slog.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (c *APIClient) uploadOne(ctx context.Context, token string, img Image) (string, error) {
	data, err := img.payload()
	if err != nil {
		return "", err
	}
	return c.UploadImage(ctx, token, data, img.Filename)
}

func (c *APIClient) completeUpload(ctx context.Context, token, channelID string, files []FileRef) (int, []byte, error) {
	return c.callSlackJSON(ctx, token, methodCompleteUploadExternal, completeUploadRequest{
		Files:     files,
		ChannelID: channelID,
	})
}
