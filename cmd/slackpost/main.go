package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"slackpost/internal/app"
	"slackpost/internal/config"
	"slackpost/internal/slack"
)

const usage = `usage:
  slackpost message <text...>
  slackpost image [-title T] <path>
  slackpost images <path[:title]>...`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Slack.RequireCredentials(); err != nil {
		return err
	}

	logger := app.NewLogger(stderr, cfg.App.Environment)
	client, err := app.NewSlackClient(cfg.Slack, logger, nil)
	if err != nil {
		return fmt.Errorf("build slack client: %w", err)
	}

	token, channel := cfg.Slack.BotToken, cfg.Slack.ChannelID

	var out any
	switch cmd, rest := args[0], args[1:]; cmd {
	case "message":
		if len(rest) == 0 {
			return errors.New("message text is required")
		}
		out, err = client.PostMessage(ctx, token, channel, strings.Join(rest, " "))
	case "image":
		fs := flag.NewFlagSet("image", flag.ContinueOnError)
		fs.SetOutput(stderr)
		title := fs.String("title", "", "title shown in Slack (defaults to the file name)")
		if err := fs.Parse(rest); err != nil {
			return err
		}
		if fs.NArg() != 1 {
			return errors.New("exactly one image path is required")
		}

		f, openErr := os.Open(fs.Arg(0))
		if openErr != nil {
			return fmt.Errorf("open image: %w", openErr)
		}
		defer f.Close()

		img := slack.Image{Reader: f, Filename: filepath.Base(fs.Arg(0)), Title: *title}
		if img.Title == "" {
			img.Title = img.Filename
		}
		out, err = client.SendImage(ctx, token, channel, img)
	case "images":
		if len(rest) == 0 {
			return errors.New("at least one image path is required")
		}
		images, readErr := readImages(rest)
		if readErr != nil {
			return readErr
		}

		result, sendErr := client.SendImages(ctx, token, channel, images)
		if result != nil {
			for _, failed := range result.Failed {
				fmt.Fprintf(stderr, "skipped %s: %v\n", failed.Filename, failed.Err)
			}
			out = result.Response
		}
		err = sendErr
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
	if err != nil {
		return err
	}

	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// readImages loads each "path" or "path:title" argument into memory.
func readImages(specs []string) ([]slack.Image, error) {
	images := make([]slack.Image, 0, len(specs))
	for _, spec := range specs {
		path, title, _ := strings.Cut(spec, ":")
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read image %s: %w", path, err)
		}

		name := filepath.Base(path)
		if title == "" {
			title = name
		}
		images = append(images, slack.Image{Data: data, Filename: name, Title: title})
	}
	return images, nil
}
