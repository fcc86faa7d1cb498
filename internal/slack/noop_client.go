package slack

import (
	"context"
	"fmt"
	"log/slog"
)

// NoopClient logs what would have been sent and reports success without
// calling Slack.
type NoopClient struct {
	logger *slog.Logger
}

func NewNoopClient(logger *slog.Logger) *NoopClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopClient{logger: logger}
}

func (c *NoopClient) PostMessage(ctx context.Context, _, channelID, text string) (Response, error) {
	c.logger.InfoContext(ctx, "noop slack post", slog.String("channel_id", channelID), slog.String("text", text))
	return Response{"ok": true, "channel": channelID}, nil
}

func (c *NoopClient) SendImage(ctx context.Context, _, channelID string, img Image) (Response, error) {
	c.logger.InfoContext(ctx, "noop slack image", slog.String("channel_id", channelID), slog.String("filename", img.Filename), slog.String("title", img.Title))
	return Response{"ok": true, "files": []any{map[string]any{"id": "F_NOOP_1", "title": img.Title}}}, nil
}

func (c *NoopClient) SendImages(ctx context.Context, _, channelID string, images []Image) (*BatchResult, error) {
	if len(images) == 0 {
		return &BatchResult{}, ErrNoImagesPrepared
	}

	result := &BatchResult{}
	files := make([]any, 0, len(images))
	for i, img := range images {
		id := fmt.Sprintf("F_NOOP_%d", i+1)
		result.Uploaded = append(result.Uploaded, UploadedFile{ID: id, Filename: img.Filename, Title: img.Title})
		files = append(files, map[string]any{"id": id, "title": img.Title})
	}
	result.Response = Response{"ok": true, "files": files}

	c.logger.InfoContext(ctx, "noop slack images", slog.String("channel_id", channelID), slog.Int("image_count", len(images)))
	return result, nil
}
