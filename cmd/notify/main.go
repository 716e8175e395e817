// Package main is the entry point for the notify command-line tool.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/shineum/app-infra/internal/config"
	"github.com/shineum/app-infra/internal/email"
	"github.com/shineum/app-infra/internal/fileaccess"
	"github.com/shineum/app-infra/internal/mail"
	"github.com/shineum/app-infra/internal/mail/graph"
	"github.com/shineum/app-infra/internal/mail/ses"
	"github.com/shineum/app-infra/internal/mail/stdout"
	"github.com/shineum/app-infra/internal/notify"
)

func main() {
	app := &cli.App{
		Name:  "notify",
		Usage: "send system notification emails and manage report files",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to YAML configuration `FILE` (optional)",
			},
		},
		Commands: []*cli.Command{
			sendCommand(),
			saveCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

// sendCommand sends a notification email through the configured transport.
func sendCommand() *cli.Command {
	return &cli.Command{
		Name:  "send",
		Usage: "send a notification email",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:     "to",
				Usage:    "recipient `ADDRESS` (repeatable)",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "subject",
				Usage:    "message `SUBJECT`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "body",
				Usage: "plain-text message `BODY`",
			},
			&cli.StringFlag{
				Name:  "body-file",
				Usage: "read the message body from `FILE`",
			},
			&cli.StringSliceFlag{
				Name:  "attach",
				Usage: "attach `FILE` to the message (repeatable)",
			},
		},
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	cfg, err := loadConfig(c.String("config"))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	setupLogger(cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	transport, err := selectTransport(ctx, cfg)
	if err != nil {
		return err
	}

	files := fileaccess.New()

	body := c.String("body")
	if path := c.String("body-file"); path != "" {
		if !files.FileExists(path) {
			return fmt.Errorf("body file %s does not exist", path)
		}
		body, err = files.ReadText(path)
		if err != nil {
			return fmt.Errorf("failed to read body file: %w", err)
		}
	}

	attachments, err := loadAttachments(files, c.StringSlice("attach"))
	if err != nil {
		return err
	}

	notifier := notify.New(transport, cfg)
	to := c.StringSlice("to")

	slog.Info("sending notification",
		"transport", transport.Name(),
		"recipients", len(to),
		"attachments", len(attachments),
	)

	switch {
	case len(attachments) > 0:
		err = notifier.SendWithAttachments(ctx, to, c.String("subject"), body, attachments)
	case len(to) == 1:
		err = notifier.Send(ctx, to[0], c.String("subject"), body)
	default:
		err = notifier.SendToMany(ctx, to, c.String("subject"), body)
	}
	if err != nil {
		return fmt.Errorf("delivery failed: %w", err)
	}

	slog.Info("notification sent")
	return nil
}

// saveCommand copies stdin to a target path, backing up any existing file.
func saveCommand() *cli.Command {
	return &cli.Command{
		Name:      "save",
		Usage:     "save stdin to a file, renaming any existing file with a timestamp suffix",
		ArgsUsage: "PATH",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("expected exactly one PATH argument")
			}
			return fileaccess.New().Save(c.Args().First(), os.Stdin)
		},
	}
}

// loadAttachments reads each path through the accessor and builds the
// attachment list. Content types are derived from the file extension.
func loadAttachments(files *fileaccess.Accessor, paths []string) ([]email.Attachment, error) {
	attachments := make([]email.Attachment, 0, len(paths))
	for _, path := range paths {
		stream, err := files.ReadStream(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open attachment %s: %w", path, err)
		}
		if stream == nil {
			return nil, fmt.Errorf("attachment %s does not exist", path)
		}

		content, err := io.ReadAll(stream)
		stream.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read attachment %s: %w", path, err)
		}

		name, err := files.FileName(path)
		if err != nil {
			return nil, err
		}

		contentType := mime.TypeByExtension(files.FileExtension(path))
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		attachments = append(attachments, email.Attachment{
			Filename:    name,
			ContentType: contentType,
			Content:     content,
		})
	}
	return attachments, nil
}

// loadConfig loads configuration from the specified path (YAML + env override)
// or from environment variables only if no path is given.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// setupLogger configures the global slog logger with JSON output and the
// specified log level.
func setupLogger(level string) {
	var logLevel slog.Level

	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// selectTransport chooses the mail delivery backend based on configuration.
// If mail.transport is set, it takes precedence. Otherwise, Graph is used
// when configured, then SES, then stdout.
func selectTransport(ctx context.Context, cfg *config.Config) (mail.Transport, error) {
	switch cfg.Mail.Transport {
	case "ses":
		if !cfg.SESConfigured() {
			return nil, fmt.Errorf("ses transport selected but SES_REGION is required")
		}
		return newSESTransport(ctx, cfg)

	case "graph":
		if !cfg.GraphConfigured() {
			return nil, fmt.Errorf("graph transport selected but GRAPH_TENANT_ID, GRAPH_CLIENT_ID, and GRAPH_CLIENT_SECRET are required")
		}
		return newGraphTransport(cfg), nil

	case "stdout":
		return stdout.New(), nil

	case "":
		if cfg.GraphConfigured() {
			slog.Info("using Microsoft Graph transport (auto-detected)",
				"sender", cfg.SystemEmailAddress(),
			)
			return newGraphTransport(cfg), nil
		}
		if cfg.SESConfigured() {
			slog.Info("using AWS SES transport (auto-detected)",
				"region", cfg.SES.Region,
				"sender", cfg.SystemEmailAddress(),
			)
			return newSESTransport(ctx, cfg)
		}
		slog.Info("no transport configured, using stdout transport")
		return stdout.New(), nil

	default:
		return nil, fmt.Errorf("unknown transport %q", cfg.Mail.Transport)
	}
}

func newSESTransport(ctx context.Context, cfg *config.Config) (mail.Transport, error) {
	t, err := ses.New(ctx, ses.Config{
		Region:          cfg.SES.Region,
		AccessKeyID:     cfg.SES.AccessKeyID,
		SecretAccessKey: cfg.SES.SecretAccessKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create SES transport: %w", err)
	}
	return t, nil
}

func newGraphTransport(cfg *config.Config) mail.Transport {
	return graph.New(graph.Config{
		TenantID:     cfg.Graph.TenantID,
		ClientID:     cfg.Graph.ClientID,
		ClientSecret: cfg.Graph.ClientSecret,
		Sender:       cfg.SystemEmailAddress(),
	})
}
