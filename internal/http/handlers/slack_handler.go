package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	"slackpost/internal/config"
	"slackpost/internal/slack"

	"github.com/gin-gonic/gin"
)

type SlackHandler struct {
	client         slack.Client
	defaults       config.SlackConfig
	uploadMaxBytes int64
	logger         *slog.Logger
}

func NewSlackHandler(client slack.Client, defaults config.SlackConfig, uploadMaxBytes int64, logger *slog.Logger) *SlackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlackHandler{
		client:         client,
		defaults:       defaults,
		uploadMaxBytes: uploadMaxBytes,
		logger:         logger,
	}
}

// SendMessage godoc
// @Summary Post a text message
// @Description Sends text to a channel via chat.postMessage and returns Slack's response body.
// @Tags slack
// @Accept json
// @Produce json
// @Param Authorization header string false "Bearer token; falls back to the configured bot token"
// @Param request body SendMessageRequest true "Message payload"
// @Success 200 {object} SlackResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 502 {object} SlackErrorResponse
// @Router /api/messages [post]
func (h *SlackHandler) SendMessage(c *gin.Context) {
	token, ok := h.resolveToken(c)
	if !ok {
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	channelID, ok := h.resolveChannel(c, req.Channel)
	if !ok {
		return
	}

	resp, err := h.client.PostMessage(c.Request.Context(), token, channelID, req.Text)
	if err != nil {
		h.writeSlackError(c, err)
		return
	}

	c.JSON(http.StatusOK, SlackResponse{Slack: resp})
}

// SendImages godoc
// @Summary Upload images to a channel
// @Description Uploads one or more images with Slack's external upload flow and shares them to a channel.
// @Description A single file is shared on its own; several files are shared in one completion call and
// @Description files that fail to upload are skipped and listed under "failed".
// @Tags slack
// @Accept multipart/form-data
// @Produce json
// @Param Authorization header string false "Bearer token; falls back to the configured bot token"
// @Param channel_id formData string false "Destination channel; falls back to the configured channel"
// @Param files formData file true "Image files"
// @Param titles formData []string false "Titles, in the same order as files" collectionFormat(multi)
// @Success 200 {object} SendImagesResponse
// @Failure 400 {object} ErrorResponse
// @Failure 401 {object} ErrorResponse
// @Failure 422 {object} SendImagesResponse
// @Failure 502 {object} SlackErrorResponse
// @Router /api/images [post]
func (h *SlackHandler) SendImages(c *gin.Context) {
	token, ok := h.resolveToken(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.uploadMaxBytes)
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart form: " + err.Error()})
		return
	}

	channelID, ok := h.resolveChannel(c, firstValue(form.Value["channel_id"]))
	if !ok {
		return
	}

	headers := form.File["files"]
	if len(headers) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one file is required"})
		return
	}

	images, closeAll, err := openImages(headers, form.Value["titles"])
	defer closeAll()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if len(images) == 1 {
		resp, err := h.client.SendImage(ctx, token, channelID, images[0])
		if err != nil {
			h.writeSlackError(c, err)
			return
		}
		c.JSON(http.StatusOK, SendImagesResponse{Slack: resp})
		return
	}

	result, err := h.client.SendImages(ctx, token, channelID, images)
	out := batchResponse(result)
	if err != nil {
		if errors.Is(err, slack.ErrNoImagesPrepared) {
			c.JSON(http.StatusUnprocessableEntity, out)
			return
		}
		h.writeSlackError(c, err)
		return
	}

	c.JSON(http.StatusOK, out)
}

// resolveToken prefers the caller's bearer token and falls back to the
// configured bot token.
func (h *SlackHandler) resolveToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if token, found := strings.CutPrefix(header, "Bearer "); found && strings.TrimSpace(token) != "" {
		return strings.TrimSpace(token), true
	}

	if h.defaults.BotToken != "" {
		return h.defaults.BotToken, true
	}

	c.JSON(http.StatusUnauthorized, gin.H{"error": "no Slack token supplied and no default configured"})
	return "", false
}

func (h *SlackHandler) resolveChannel(c *gin.Context, channelID string) (string, bool) {
	channelID = strings.TrimSpace(channelID)
	if channelID != "" {
		return channelID, true
	}
	if h.defaults.ChannelID != "" {
		return h.defaults.ChannelID, true
	}

	c.JSON(http.StatusBadRequest, gin.H{"error": "channel is required"})
	return "", false
}

func (h *SlackHandler) writeSlackError(c *gin.Context, err error) {
	var apiErr *slack.APIError
	if errors.As(err, &apiErr) {
		c.JSON(http.StatusBadGateway, SlackErrorResponse{
			Error:  apiErr.Error(),
			Status: apiErr.StatusCode,
			Body:   apiErr.Body,
		})
		return
	}

	h.logger.ErrorContext(c.Request.Context(), "slack request failed", slog.String("error", err.Error()))
	c.JSON(http.StatusBadGateway, SlackErrorResponse{Error: err.Error()})
}

// openImages opens every uploaded part as a reader; the returned func closes
// whatever was opened.
func openImages(headers []*multipart.FileHeader, titles []string) ([]slack.Image, func(), error) {
	closers := make([]io.Closer, 0, len(headers))
	closeAll := func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}

	images := make([]slack.Image, 0, len(headers))
	for i, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			return nil, closeAll, err
		}
		closers = append(closers, f)

		title := fh.Filename
		if i < len(titles) && strings.TrimSpace(titles[i]) != "" {
			title = strings.TrimSpace(titles[i])
		}

		images = append(images, slack.Image{Reader: f, Filename: fh.Filename, Title: title})
	}

	return images, closeAll, nil
}

func batchResponse(result *slack.BatchResult) SendImagesResponse {
	if result == nil {
		return SendImagesResponse{}
	}

	out := SendImagesResponse{
		Slack:    result.Response,
		Uploaded: result.Uploaded,
	}
	for _, f := range result.Failed {
		msg := ""
		if f.Err != nil {
			msg = f.Err.Error()
		}
		out.Failed = append(out.Failed, FailedImageResponse{Filename: f.Filename, Title: f.Title, Error: msg})
	}
	return out
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
