package gateway

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/genai"

	"github.com/nguyentantai21042004/meeting-flow/internal/config"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
)

type implGateway struct {
	client       *genai.Client
	summaryModel string
	flashModel   string
	pollInterval time.Duration
	timeout      time.Duration
	logger       logger.Logger
}

// New creates a Gateway backed by the Gemini API. When no API key is
// configured the gateway is created anyway and every operation fails with
// a configuration error, degrading the capability instead of crashing.
func New(ctx context.Context, cfg config.GeminiConfig, log logger.Logger) (Gateway, error) {
	g := &implGateway{
		summaryModel: cfg.SummaryModel,
		flashModel:   cfg.FlashModel,
		pollInterval: time.Duration(cfg.PollIntervalSecs) * time.Second,
		timeout:      time.Duration(cfg.TimeoutSecs) * time.Second,
		logger:       log,
	}

	if cfg.APIKey == "" {
		log.Warn(ctx, "GEMINI_API_KEY not set, remote inference will be unavailable")
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	g.client = client
	return g, nil
}
