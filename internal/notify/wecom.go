package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	wecomMaxRunes   = 4000
	truncatedNotice = "\n\n...(truncated, see the full report)"
)

// WeCom posts markdown messages to a WeCom group robot webhook.
type WeCom struct {
	url    string
	client *http.Client
}

// NewWeCom creates a WeCom notifier. An empty URL disables it.
func NewWeCom(url string) *WeCom {
	return &WeCom{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (w *WeCom) Name() string  { return "wecom" }
func (w *WeCom) Enabled() bool { return w.url != "" }

type wecomMessage struct {
	MsgType  string `json:"msgtype"`
	Markdown struct {
		Content string `json:"content"`
	} `json:"markdown"`
}

type wecomResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// FitMessage cuts content to the webhook's size limit, appending a notice
// when anything was removed.
func FitMessage(content string) string {
	r := []rune(content)
	if len(r) <= wecomMaxRunes {
		return content
	}
	return string(r[:wecomMaxRunes]) + truncatedNotice
}

// Send posts the markdown. The title is already part of the digest.
func (w *WeCom) Send(ctx context.Context, _ string, markdown string) error {
	if !w.Enabled() {
		return nil
	}
	msg := wecomMessage{MsgType: "markdown"}
	msg.Markdown.Content = FitMessage(markdown)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding message: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	var result wecomResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("decoding webhook response: %w", err)
	}
	if result.ErrCode != 0 {
		return fmt.Errorf("webhook error %d: %s", result.ErrCode, result.ErrMsg)
	}
	return nil
}
