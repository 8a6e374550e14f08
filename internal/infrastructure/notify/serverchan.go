package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"PaperDigest/internal/ports"
)

const serverChanEndpoint = "https://sctapi.ftqq.com"

// ServerChan pushes digests to WeChat through the ServerChan (Server酱) API.
type ServerChan struct {
	key      string
	endpoint string
	client   *http.Client
}

var _ ports.Notifier = (*ServerChan)(nil)

// NewServerChan registers the push key.
func NewServerChan(key string) *ServerChan {
	return &ServerChan{
		key:      key,
		endpoint: serverChanEndpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Name identifies the channel in logs.
func (s *ServerChan) Name() string {
	return "serverchan"
}

// PublishDigest posts the digest as a title plus markdown description.
func (s *ServerChan) PublishDigest(ctx context.Context, subject, body string) error {
	if s.key == "" {
		return fmt.Errorf("serverchan: key is required")
	}

	form := url.Values{}
	form.Set("title", subject)
	form.Set("desp", body)

	endpoint := fmt.Sprintf("%s/%s.send", strings.TrimSuffix(s.endpoint, "/"), s.key)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("serverchan: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("serverchan: send digest: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("serverchan: api returned %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}
