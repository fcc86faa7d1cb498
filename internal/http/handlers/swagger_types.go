package handlers

import "slackpost/internal/slack"

type ErrorResponse struct {
	Error string `json:"error"`
}

type SlackErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status,omitempty"`
	Body   string `json:"body,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
	DryRun  bool   `json:"dry_run"`
}

type SendMessageRequest struct {
	Channel string `json:"channel"`
	Text    string `json:"text"`
}

type SlackResponse struct {
	Slack slack.Response `json:"slack" swaggertype:"object"`
}

type FailedImageResponse struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Error    string `json:"error"`
}

type SendImagesResponse struct {
	Slack    slack.Response        `json:"slack,omitempty" swaggertype:"object"`
	Uploaded []slack.UploadedFile  `json:"uploaded,omitempty"`
	Failed   []FailedImageResponse `json:"failed,omitempty"`
}
