package slack

import "context"

type Client interface {
	PostMessage(ctx context.Context, token, channelID, text string) (Response, error)
	SendImage(ctx context.Context, token, channelID string, img Image) (Response, error)
	SendImages(ctx context.Context, token, channelID string, images []Image) (*BatchResult, error)
}
