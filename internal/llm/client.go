package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/cloudwego/hertz/pkg/common/hlog"

	"metals-dashboard/internal/settings"
)

var ErrNotConfigured = errors.New("LLM API not configured. Please set your API key in Settings.")

// Delta is one streamed fragment. A delta with Err set is the last one sent.
type Delta struct {
	Content string
	Err     error
}

// Factory builds a chat model for the given settings.
type Factory func(ctx context.Context, s settings.Settings) (model.BaseChatModel, error)

// OpenAIFactory talks to any OpenAI-compatible endpoint.
func OpenAIFactory(timeout time.Duration) Factory {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return func(ctx context.Context, s settings.Settings) (model.BaseChatModel, error) {
		temp := float32(s.Temperature)
		m, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
			APIKey:      s.APIKey,
			Model:       s.Model,
			BaseURL:     s.BaseURL,
			Timeout:     timeout,
			Temperature: &temp,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// Client builds a model from the current settings on every call, so edits
// made in the settings panel apply to the next request.
type Client struct {
	store    settings.Store
	newModel Factory
}

func NewClient(store settings.Store, f Factory) *Client {
	return &Client{store: store, newModel: f}
}

func (c *Client) model(ctx context.Context) (model.BaseChatModel, settings.Settings, error) {
	s, err := c.store.Get(ctx)
	if err != nil {
		return nil, s, fmt.Errorf("load settings: %w", err)
	}
	if !s.Configured() {
		return nil, s, ErrNotConfigured
	}
	m, err := c.newModel(ctx, s)
	if err != nil {
		return nil, s, fmt.Errorf("init chat model: %w", err)
	}
	return m, s, nil
}

// Ready returns ErrNotConfigured when no credential is stored.
func (c *Client) Ready(ctx context.Context) error {
	s, err := c.store.Get(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	if !s.Configured() {
		return ErrNotConfigured
	}
	return nil
}

// Complete returns the whole reply to msgs.
func (c *Client) Complete(ctx context.Context, msgs []*schema.Message) (string, error) {
	m, s, err := c.model(ctx)
	if err != nil {
		return "", err
	}
	start := time.Now()
	out, err := m.Generate(ctx, msgs)
	if err != nil {
		logLLMError(err)
		return "", err
	}
	hlog.Infof("llm completion model=%s latency_ms=%d", s.Model, time.Since(start).Milliseconds())
	return out.Content, nil
}

// Stream sends reply fragments as they arrive and closes the channel at the
// end. It stops early when ctx is cancelled. Only setup failures are
// returned directly; upstream errors arrive as a final Delta.
func (c *Client) Stream(ctx context.Context, msgs []*schema.Message) (<-chan Delta, error) {
	m, _, err := c.model(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan Delta)
	send := func(d Delta) bool {
		select {
		case out <- d:
			return true
		case <-ctx.Done():
			return false
		}
	}

	go func() {
		defer close(out)

		sr, err := m.Stream(ctx, msgs)
		if err != nil {
			logLLMError(err)
			send(Delta{Err: err})
			return
		}
		defer sr.Close()

		for {
			msg, err := sr.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				logLLMError(err)
				send(Delta{Err: err})
				return
			}
			if msg == nil || msg.Content == "" {
				continue
			}
			if !send(Delta{Content: msg.Content}) {
				return
			}
		}
	}()
	return out, nil
}

func logLLMError(err error) {
	apiErr := &openai.APIError{}
	if errors.As(err, &apiErr) {
		msg := apiErr.Message
		if len(msg) > 300 {
			msg = msg[:300] + "..."
		}
		hlog.Errorf("llm api error: status=%d message=%s", apiErr.HTTPStatusCode, msg)
		return
	}
	hlog.Errorf("llm error: %v", err)
}
