// Package oracle calls an OpenAI-compatible chat completion endpoint to
// translate Japanese recipes and menus into Chinese.
package oracle

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

const (
	systemPrompt = "You are a helpful assistant that responds in Markdown. " +
		"Translate Japanese recipes and menus into Simplified Chinese."
	imagePrompt = "请将以下日语菜单图片内容翻译成中文："

	// DefaultTimeout bounds a single translation call.
	DefaultTimeout = 10 * time.Second
)

// ErrEmptyResponse is returned when the endpoint answers without any text.
var ErrEmptyResponse = errors.New("oracle: empty translation returned")

// Config configures the endpoint.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Request is one translation job. At least one of Text or Image is set.
type Request struct {
	Text             string
	Image            []byte
	ImageContentType string
}

// Client translates through a chat completion model.
type Client struct {
	client  *openai.Client
	model   string
	timeout time.Duration
}

// New creates a Client. A zero Timeout falls back to DefaultTimeout.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}
	clientCfg.HTTPClient = &http.Client{Timeout: timeout}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4o
	}

	return &Client{
		client:  openai.NewClientWithConfig(clientCfg),
		model:   model,
		timeout: timeout,
	}
}

// Translate sends the request and returns the translated text.
func (c *Client) Translate(ctx context.Context, req Request) (string, error) {
	if strings.TrimSpace(req.Text) == "" && len(req.Image) == 0 {
		return "", errors.New("oracle: nothing to translate")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			userMessage(req),
		},
		// A literal 0 is dropped by omitempty and the endpoint falls back to 1.0.
		Temperature: math.SmallestNonzeroFloat32,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	translation := strings.TrimSpace(resp.Choices[0].Message.Content)
	if translation == "" {
		return "", ErrEmptyResponse
	}
	return translation, nil
}

// userMessage inlines the image as a data URL, so the endpoint never has to
// fetch anything from our storage.
func userMessage(req Request) openai.ChatCompletionMessage {
	if len(req.Image) == 0 {
		return openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Text}
	}

	text := req.Text
	if strings.TrimSpace(text) == "" {
		text = imagePrompt
	}
	return openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{Type: openai.ChatMessagePartTypeText, Text: text},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    DataURL(req.ImageContentType, req.Image),
					Detail: openai.ImageURLDetailAuto,
				},
			},
		},
	}
}

// DataURL encodes data as a base64 data URL.
func DataURL(contentType string, data []byte) string {
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
