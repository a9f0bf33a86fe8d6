// Package ai wraps the generative reply provider. The rest of the system
// treats it as opaque: it takes the user message plus prior turns and
// returns the bot reply.
package ai

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/estilobot/backend/internal/config"
	"github.com/estilobot/backend/internal/model/chat"
	"github.com/estilobot/backend/internal/model/instruction"
)

var (
	// ErrInvalidAPIKey marks an authentication failure at the provider.
	ErrInvalidAPIKey = errors.New("gemini api key rejected")

	// ErrBlocked marks a reply withheld by the provider's safety filters.
	ErrBlocked = errors.New("response blocked by safety settings")
)

// Turn is one prior conversation turn supplied by the caller.
type Turn struct {
	Author  string `json:"author"`
	Content string `json:"content"`
}

// historyLimit caps the prior turns forwarded to the model.
const historyLimit = 10

// Service generates replies with Gemini. The system instruction is read
// from the instruction store per request so admin updates apply without a
// restart.
type Service struct {
	client       *genai.Client
	instructions instruction.Store
	cfg          config.AIConfig
	logger       *zap.Logger
}

// NewService creates the Gemini-backed reply provider.
func NewService(ctx context.Context, instructions instruction.Store, cfg config.AIConfig, logger *zap.Logger) (*Service, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Service{
		client:       client,
		instructions: instructions,
		cfg:          cfg,
		logger:       logger,
	}, nil
}

// StreamingEnabled reports whether SSE streaming is configured.
func (s *Service) StreamingEnabled() bool {
	return s.cfg.StreamResponse
}

// Generate returns the full reply for the message given the prior turns.
func (s *Service) Generate(ctx context.Context, message string, history []Turn) (string, error) {
	contents, cfg, err := s.buildRequest(ctx, message, history)
	if err != nil {
		return "", err
	}

	resp, err := s.client.Models.GenerateContent(ctx, s.cfg.Model, contents, cfg)
	if err != nil {
		return "", classifyErr(err)
	}
	if blocked(resp) {
		return "", ErrBlocked
	}

	text := resp.Text()
	s.logger.Info("reply generated",
		zap.String("model", s.cfg.Model),
		zap.Int("length", len(text)))
	return text, nil
}

// Stream yields reply chunks in order. Callers accumulate the chunks to
// obtain the full reply; an error ends the sequence.
func (s *Service) Stream(ctx context.Context, message string, history []Turn) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents, cfg, err := s.buildRequest(ctx, message, history)
		if err != nil {
			yield("", err)
			return
		}

		for resp, err := range s.client.Models.GenerateContentStream(ctx, s.cfg.Model, contents, cfg) {
			if err != nil {
				yield("", classifyErr(err))
				return
			}
			if blocked(resp) {
				yield("", ErrBlocked)
				return
			}
			if chunk := resp.Text(); chunk != "" {
				if !yield(chunk, nil) {
					return
				}
			}
		}
	}
}

func (s *Service) buildRequest(ctx context.Context, message string, history []Turn) ([]*genai.Content, *genai.GenerateContentConfig, error) {
	systemText, err := s.systemInstruction(ctx)
	if err != nil {
		return nil, nil, err
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemText, genai.RoleUser),
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockMediumAndAbove},
		},
	}
	if s.cfg.Temperature != nil {
		val := float32(*s.cfg.Temperature)
		cfg.Temperature = &val
	}
	if s.cfg.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*s.cfg.MaxTokens)
	}

	contents := buildHistory(history)
	contents = append(contents, genai.NewContentFromText(message, genai.RoleUser))
	return contents, cfg, nil
}

// systemInstruction resolves the prompt: stored document first, shipped
// default when none exists yet.
func (s *Service) systemInstruction(ctx context.Context) (string, error) {
	doc, err := s.instructions.Get(ctx)
	if errors.Is(err, instruction.ErrNotFound) {
		return instruction.DefaultText, nil
	}
	if err != nil {
		return "", fmt.Errorf("load system instruction: %w", err)
	}
	if strings.TrimSpace(doc.Text) == "" {
		return instruction.DefaultText, nil
	}
	return doc.Text, nil
}

// buildHistory converts the trailing turns into model contents. Authors
// outside {model, bot} are treated as the user, mirroring the widget's
// contract.
func buildHistory(history []Turn) []*genai.Content {
	start := 0
	if len(history) > historyLimit {
		start = len(history) - historyLimit
	}

	contents := make([]*genai.Content, 0, len(history)-start+1)
	for _, turn := range history[start:] {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		var role genai.Role = genai.RoleUser
		if turn.Author == "model" || turn.Author == chat.AuthorBot {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Content, role))
	}
	return contents
}

// classifyErr maps provider failures onto the error taxonomy the HTTP
// layer exposes: invalid key, safety block, or opaque upstream failure.
func classifyErr(err error) error {
	msg := err.Error()
	if strings.Contains(msg, "API key not valid") || strings.Contains(msg, "API_KEY_INVALID") {
		return fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
	}
	if strings.Contains(strings.ToUpper(msg), "SAFETY") {
		return fmt.Errorf("%w: %v", ErrBlocked, err)
	}
	return fmt.Errorf("generate reply: %w", err)
}

func blocked(resp *genai.GenerateContentResponse) bool {
	if resp == nil {
		return false
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return true
	}
	for _, candidate := range resp.Candidates {
		if candidate != nil && candidate.FinishReason == genai.FinishReasonSafety {
			return true
		}
	}
	return false
}
