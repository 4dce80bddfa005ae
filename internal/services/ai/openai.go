package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/benvon/taskpulse/internal/models"
	"github.com/benvon/taskpulse/internal/prioritizer"
	"github.com/benvon/taskpulse/internal/request"
)

const (
	// ProviderOpenAI is the registry name of the OpenAI provider
	ProviderOpenAI = "openai"
	// DefaultOpenAIModel is the default model to use
	DefaultOpenAIModel = "gpt-4o-mini"
	// DefaultOpenAIBaseURL is the default OpenAI API base URL
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	// DefaultTimeout is the default timeout for API calls
	DefaultTimeout = 30 * time.Second
	// DefaultMaxTokens bounds the completion length
	DefaultMaxTokens = 2000

	systemPrompt = "You are a productivity expert who ranks tasks. Respond with raw JSON only."
)

// OpenAIProvider suggests task priorities using an OpenAI-compatible chat API
type OpenAIProvider struct {
	client    openai.Client
	model     string
	logger    *zap.Logger
	debugMode bool
	now       func() time.Time
}

var _ Provider = (*OpenAIProvider)(nil)

// NewOpenAIProvider creates a new OpenAI provider
func NewOpenAIProvider(apiKey, baseURL, model string, logger *zap.Logger, debugMode bool) *OpenAIProvider {
	if model == "" {
		model = DefaultOpenAIModel
	}
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client := openai.NewClient(
		option.WithAPIKey(apiKey),
		option.WithBaseURL(baseURL),
		option.WithHTTPClient(&http.Client{Timeout: DefaultTimeout}),
		option.WithMaxRetries(0),
	)

	return &OpenAIProvider{
		client:    client,
		model:     model,
		logger:    logger,
		debugMode: debugMode,
		now:       time.Now,
	}
}

// RegisterOpenAI registers the OpenAI provider factory
func RegisterOpenAI(registry *ProviderRegistry, logger *zap.Logger) {
	registry.Register(ProviderOpenAI, func(cfg ProviderConfig) (Provider, error) {
		if cfg.APIKey == "" {
			return nil, fmt.Errorf("openai provider requires an API key")
		}
		return NewOpenAIProvider(cfg.APIKey, cfg.BaseURL, cfg.Model, logger, cfg.DebugMode), nil
	})
}

// Model implements Provider
func (p *OpenAIProvider) Model() string {
	return p.model
}

// promptTask is the task shape sent to the model
type promptTask struct {
	ID              string  `json:"id"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	CurrentPriority int     `json:"currentPriority"`
	DueDate         *string `json:"dueDate"`
	Status          string  `json:"status"`
	CreatedAt       string  `json:"createdAt"`
}

type suggestionResponse struct {
	Tasks []struct {
		TaskID            string `json:"taskId"`
		SuggestedPriority int    `json:"suggestedPriority"`
		Reasoning         string `json:"reasoning"`
	} `json:"tasks"`
}

// SuggestPriorities asks the model to rank the given tasks
func (p *OpenAIProvider) SuggestPriorities(ctx context.Context, tasks []models.Task) ([]prioritizer.Suggestion, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	prompt, err := p.buildPrompt(tasks)
	if err != nil {
		return nil, err
	}

	req := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(p.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(prompt),
		},
		MaxTokens: openai.Int(DefaultMaxTokens),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		},
	}

	userID, requestID := "", request.RequestID(ctx)
	if len(tasks) > 0 {
		userID = tasks[0].UserID.String()
	}
	if p.debugMode {
		p.logger.Debug("llm_api_request",
			zap.String("operation", "suggest_priorities"),
			zap.String("model", p.model),
			zap.Int("task_count", len(tasks)),
			zap.Int("prompt_length", len(prompt)),
			zap.String("prompt_preview", SanitizePrompt(prompt, true)),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
		)
	}

	start := time.Now()
	resp, err := p.client.Chat.Completions.New(ctx, req)
	latency := time.Since(start)
	if err != nil {
		p.logger.Warn("llm_api_error",
			zap.String("operation", "suggest_priorities"),
			zap.String("model", p.model),
			zap.Error(err),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
		if apiErr := ExtractAPIError(err); apiErr != nil {
			return nil, fmt.Errorf("failed to suggest priorities: %w", apiErr)
		}
		return nil, fmt.Errorf("failed to suggest priorities: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoicesInResponse
	}

	content := resp.Choices[0].Message.Content
	if p.debugMode {
		p.logger.Debug("llm_api_response",
			zap.String("operation", "suggest_priorities"),
			zap.String("model", p.model),
			zap.Int("response_length", len(content)),
			zap.String("response_preview", SanitizeResponse(content, true)),
			zap.String("user_id", userID),
			zap.String("request_id", requestID),
			zap.Int64("latency_ms", latency.Milliseconds()),
		)
	}

	return parseSuggestions(content)
}

func (p *OpenAIProvider) buildPrompt(tasks []models.Task) (string, error) {
	payload := make([]promptTask, 0, len(tasks))
	for i := range tasks {
		t := &tasks[i]
		pt := promptTask{
			ID:              t.ID.String(),
			Title:           t.Title,
			Category:        t.CategoryName(),
			CurrentPriority: t.Priority,
			Status:          string(t.Status),
			CreatedAt:       t.CreatedAt.UTC().Format(time.RFC3339),
		}
		if t.Description != nil {
			pt.Description = *t.Description
		}
		if t.DueDate != nil {
			due := t.DueDate.UTC().Format(time.RFC3339)
			pt.DueDate = &due
		}
		payload = append(payload, pt)
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode tasks for prompt: %w", err)
	}

	var b strings.Builder
	b.WriteString("Analyze these tasks and suggest optimal priorities (1=low, 2=medium, 3=high, 4=urgent).\n\n")
	fmt.Fprintf(&b, "Current date and time: %s\n\n", p.now().UTC().Format(time.RFC3339))
	b.WriteString("Consider:\n")
	b.WriteString("- due dates (upcoming deadlines mean higher priority)\n")
	b.WriteString("- task categories (work tasks during work hours, health tasks consistently)\n")
	b.WriteString("- current status\n")
	b.WriteString("- importance versus urgency\n\n")
	b.WriteString("Tasks to analyze:\n")
	b.Write(data)
	b.WriteString("\n\nRespond in JSON with this structure:\n")
	b.WriteString(`{"tasks": [{"taskId": "task id", "suggestedPriority": 3, "reasoning": "short explanation"}]}`)
	b.WriteString("\n\nOnly suggest changes where there is a clear benefit.")
	return b.String(), nil
}

// parseSuggestions decodes the model output. Entries with unparseable IDs are
// dropped; range checks are left to the caller.
func parseSuggestions(content string) ([]prioritizer.Suggestion, error) {
	var parsed suggestionResponse
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		start := strings.Index(content, "{")
		end := strings.LastIndex(content, "}")
		if start == -1 || end <= start {
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}
		if err := json.Unmarshal([]byte(content[start:end+1]), &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse model response: %w", err)
		}
	}

	suggestions := make([]prioritizer.Suggestion, 0, len(parsed.Tasks))
	for _, t := range parsed.Tasks {
		id, err := uuid.Parse(t.TaskID)
		if err != nil {
			continue
		}
		suggestions = append(suggestions, prioritizer.Suggestion{
			TaskID:    id,
			Priority:  t.SuggestedPriority,
			Reasoning: t.Reasoning,
		})
	}
	return suggestions, nil
}
