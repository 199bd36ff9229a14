package notifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// Telegram 通知器：决策周期产生开/平仓时，把关键信息推送到指定群。
type Telegram struct {
	BotToken string
	ChatID   string
	Client   *http.Client

	baseURL string
}

func NewTelegram(botToken, chatID string) *Telegram {
	return &Telegram{
		BotToken: botToken,
		ChatID:   chatID,
		Client:   &http.Client{Timeout: 15 * time.Second},
		baseURL:  "https://api.telegram.org",
	}
}

// SendText 发送 Markdown 文本（最多 3 次重试）。
func (t *Telegram) SendText(text string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram 配置不完整")
	}
	payload, _ := json.Marshal(map[string]any{
		"chat_id":    t.ChatID,
		"text":       text,
		"parse_mode": "Markdown",
	})
	return t.post(t.method("sendMessage"), "application/json", func() io.Reader {
		return bytes.NewReader(payload)
	})
}

// SendPhoto 发送 PNG 图片，caption 可为空。
func (t *Telegram) SendPhoto(png []byte, caption string) error {
	if t.BotToken == "" || t.ChatID == "" {
		return fmt.Errorf("telegram 配置不完整")
	}
	if len(png) == 0 {
		return fmt.Errorf("telegram photo 为空")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	_ = w.WriteField("chat_id", t.ChatID)
	if caption != "" {
		_ = w.WriteField("caption", caption)
	}
	part, err := w.CreateFormFile("photo", "chart.png")
	if err != nil {
		return err
	}
	if _, err := part.Write(png); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}

	body := buf.Bytes()
	return t.post(t.method("sendPhoto"), w.FormDataContentType(), func() io.Reader {
		return bytes.NewReader(body)
	})
}

func (t *Telegram) method(name string) string {
	base := t.baseURL
	if base == "" {
		base = "https://api.telegram.org"
	}
	return fmt.Sprintf("%s/bot%s/%s", base, t.BotToken, name)
}

// post retries transient failures; the body factory rebuilds the reader per
// attempt.
func (t *Telegram) post(url, contentType string, body func() io.Reader) error {
	client := t.Client
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	var lastErr error
	for i := 0; i < 3; i++ {
		if i > 0 {
			time.Sleep(time.Duration(i) * time.Second)
		}
		req, err := http.NewRequest(http.MethodPost, url, body())
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", contentType)
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
		if resp.StatusCode/100 == 2 {
			return nil
		}
		lastErr = fmt.Errorf("telegram status=%d", resp.StatusCode)
	}
	return lastErr
}
