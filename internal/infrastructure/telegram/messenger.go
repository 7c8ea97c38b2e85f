package telegram

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"Briefcast/internal/domain"
	"Briefcast/internal/ports"
)

const defaultAPIBase = "https://api.telegram.org"

// Messenger delivers briefings to a Telegram chat via the bot API.
// Text uses a short-timeout client; audio uploads get their own client
// with an extended timeout, since large files outlive typical request
// deadlines.
type Messenger struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	uploads  *http.Client
}

var _ ports.Messenger = (*Messenger)(nil)

// NewMessenger registers bot credentials and the upload timeout.
func NewMessenger(botToken, chatID string, uploadTimeout time.Duration) *Messenger {
	if uploadTimeout <= 0 {
		uploadTimeout = 2 * time.Minute
	}
	return &Messenger{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
		uploads:  &http.Client{Timeout: uploadTimeout},
	}
}

// SendText posts a message; formatted requests Markdown rendering. A 400
// on a formatted send surfaces as domain.ErrBadFormat so the caller can
// fall back to plain text.
func (m *Messenger) SendText(ctx context.Context, text string, formatted bool) error {
	if m.botToken == "" || m.chatID == "" {
		return fmt.Errorf("telegram messenger misconfigured")
	}

	form := url.Values{}
	form.Set("chat_id", m.chatID)
	form.Set("text", text)
	if formatted {
		form.Set("parse_mode", "Markdown")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusBadRequest && formatted {
		return fmt.Errorf("sendMessage: %w", domain.ErrBadFormat)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

// SendAudio uploads the file at path as an audio attachment with caption,
// title, and performer metadata.
func (m *Messenger) SendAudio(ctx context.Context, path, caption, title, performer string) error {
	if m.botToken == "" || m.chatID == "" {
		return fmt.Errorf("telegram messenger misconfigured")
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open audio: %w", err)
	}
	defer file.Close()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	fields := map[string]string{
		"chat_id":   m.chatID,
		"caption":   caption,
		"title":     title,
		"performer": performer,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if err := writer.WriteField(name, value); err != nil {
			return fmt.Errorf("write field %s: %w", name, err)
		}
	}

	part, err := writer.CreateFormFile("audio", filepath.Base(path))
	if err != nil {
		return fmt.Errorf("create file part: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return fmt.Errorf("copy audio: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint("sendAudio"), &body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := m.uploads.Do(req)
	if err != nil {
		return fmt.Errorf("upload audio: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

func (m *Messenger) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", m.apiBase, m.botToken, method)
}
