package gemini

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/agentstudio/ragchat/llm"
	"github.com/agentstudio/ragchat/message"
)

// Config holds Gemini provider configuration
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// DefaultConfig returns default Gemini configuration
func DefaultConfig(apiKey string) *Config {
	return &Config{
		APIKey: apiKey,
		Model:  "gemini-1.5-flash",
	}
}

// Provider implements llm.Client for Google Gemini
type Provider struct {
	config *Config
	client *genai.Client
}

// New creates a new Gemini provider using the official SDK
func New(ctx context.Context, config *Config) (*Provider, error) {
	if config == nil {
		config = DefaultConfig("")
	}
	if config.Model == "" {
		config.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Provider{config: config, client: client}, nil
}

// Model returns the configured model name.
func (p *Provider) Model() string { return p.config.Model }

// Close releases the underlying client.
func (p *Provider) Close() error { return p.client.Close() }

// Generate implements llm.Client
func (p *Provider) Generate(ctx context.Context, req *llm.Request) (*llm.Response, error) {
	if req == nil {
		return nil, fmt.Errorf("generate request cannot be nil")
	}

	model := p.client.GenerativeModel(p.config.Model)
	if req.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(req.MaxTokens))
	}
	if p.config.Temperature > 0 {
		model.SetTemperature(p.config.Temperature)
	}

	// Gemini takes the system instruction separately and the final user
	// message as the chat send; everything in between becomes history.
	var systemPrompts []string
	var history []*genai.Content
	var last string
	for _, msg := range req.Messages {
		switch msg.Role {
		case message.RoleSystem:
			systemPrompts = append(systemPrompts, msg.Content)
		case message.RoleUser, message.RoleAssistant:
			if last != "" {
				history = append(history, contentFor(last, message.RoleUser))
				last = ""
			}
			if msg.Role == message.RoleUser {
				last = msg.Content
			} else {
				history = append(history, contentFor(msg.Content, message.RoleAssistant))
			}
		}
	}
	if last == "" {
		return nil, fmt.Errorf("gemini request has no user message")
	}
	if len(systemPrompts) > 0 {
		model.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(strings.Join(systemPrompts, "\n"))},
		}
	}

	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return nil, fmt.Errorf("gemini API error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini API returned no candidates")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	return &llm.Response{Content: text.String()}, nil
}

func contentFor(text string, role message.Role) *genai.Content {
	geminiRole := "user"
	if role == message.RoleAssistant {
		geminiRole = "model"
	}
	return &genai.Content{
		Parts: []genai.Part{genai.Text(text)},
		Role:  geminiRole,
	}
}
