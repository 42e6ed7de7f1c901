package deliver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hookdump/hookdump/internal/config"
	apperrors "github.com/hookdump/hookdump/internal/errors"
	"github.com/hookdump/hookdump/internal/logger"
	"github.com/vbauerster/mpb/v8"
)

// DiscordDeliverer uploads artifacts to a Discord webhook. Artifacts over
// MaxFileBytes are split first and the parts are uploaded in order; each
// part is removed from disk once its upload succeeds. The original
// artifact is never removed here.
type DiscordDeliverer struct {
	WebhookURL   string
	Username     string
	MaxFileBytes int64

	Client   *http.Client
	Logger   *logger.Logger
	Progress *mpb.Progress
}

func NewDiscordDeliverer(webhookURL string) *DiscordDeliverer {
	return &DiscordDeliverer{
		WebhookURL:   webhookURL,
		MaxFileBytes: config.DefaultMaxFileBytes,
	}
}

func (d *DiscordDeliverer) Deliver(ctx context.Context, artifactPath string) error {
	if d.WebhookURL == "" {
		return apperrors.New(apperrors.TypeConfig, "discord webhook URL is not set", "Set webhook.url in the config or pass --webhook-url.")
	}

	maxBytes := d.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = config.DefaultMaxFileBytes
	}

	parts, err := Split(artifactPath, maxBytes)
	if err != nil {
		return err
	}

	total := len(parts)
	if d.Logger != nil && total > 1 {
		d.Logger.Info("Artifact exceeds upload ceiling, split into parts", "parts", total, "max_bytes", maxBytes)
	}

	for i, part := range parts {
		if err := d.sendFile(ctx, part, i+1, total); err != nil {
			return err
		}

		// Chunks are throwaway copies; the caller owns the original.
		if part != artifactPath {
			if rmErr := os.Remove(part); rmErr != nil && d.Logger != nil {
				d.Logger.Warn("Failed to remove delivered chunk", "path", part, "error", rmErr)
			}
		}

		if d.Logger != nil {
			d.Logger.Debug("Delivered", "part", i+1, "of", total)
		}
	}

	return nil
}

func (d *DiscordDeliverer) sendFile(ctx context.Context, path string, index, total int) error {
	f, err := os.Open(path)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeResource, "failed to open upload file", "The chunk may have been removed before upload.")
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return err
	}

	name := filepath.Base(path)
	content := fmt.Sprintf("`%s`", name)
	if total > 1 {
		content = fmt.Sprintf("`%s` (part %d/%d)", name, index, total)
	}

	var body io.Reader = f
	if d.Progress != nil {
		bar := AddUploadBar(d.Progress, name, fi.Size())
		body = &progressReader{r: f, bar: bar}
	}

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		payload := map[string]any{"content": content}
		if d.Username != "" {
			payload["username"] = d.Username
		}
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			pw.CloseWithError(err)
			return
		}

		if err := mw.WriteField("payload_json", string(payloadJSON)); err != nil {
			pw.CloseWithError(err)
			return
		}

		fw, err := mw.CreateFormFile("files[0]", name)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(fw, body); err != nil {
			pw.CloseWithError(err)
			return
		}

		pw.CloseWithError(mw.Close())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.WebhookURL, pr)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return apperrors.Wrap(err, apperrors.TypeConnection, "webhook request failed", "Verify the webhook URL and network connectivity.")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusRequestEntityTooLarge {
		return apperrors.New(apperrors.TypeDelivery,
			fmt.Sprintf("webhook rejected %s: payload too large", name),
			"Lower webhook.max_file_bytes below the platform's upload ceiling.")
	}
	if resp.StatusCode >= 400 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return apperrors.New(apperrors.TypeDelivery,
			fmt.Sprintf("webhook returned status %d for %s: %s", resp.StatusCode, name, string(snippet)),
			"Check the webhook URL and the platform's status page.")
	}

	return nil
}
