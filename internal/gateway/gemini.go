package gateway

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/nguyentantai21042004/meeting-flow/pkg/poll"
)

// ErrNotConfigured is returned by every operation when the API key is
// missing.
var ErrNotConfigured = errors.New("gemini API key not configured")

// Transcribe uploads the audio and asks the flash model for a speaker-
// grouped transcript. The remote artifact is deleted before returning on
// every path.
func (g *implGateway) Transcribe(ctx context.Context, audioPath string) (*TranscribeResult, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	file, err := g.uploadAudio(ctx, audioPath)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	defer g.deleteRemote(ctx, file.Name)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(transcribePrompt),
			genai.NewPartFromURI(file.URI, file.MIMEType),
		}, genai.RoleUser),
	}

	g.logger.Info(ctx, "Sending transcription request to %s", g.flashModel)
	resp, err := g.client.Models.GenerateContent(ctx, g.flashModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate transcript: %w", err)
	}

	text, blocked, reason := extractText(resp)
	if blocked {
		return nil, fmt.Errorf("transcription blocked by the model (%s)", reason)
	}
	if text == "" {
		return nil, errors.New("no transcription content in response")
	}

	return &TranscribeResult{
		// The model occasionally wraps the transcript in quotes.
		Transcript: strings.ReplaceAll(text, `"`, ""),
		Model:      g.flashModel,
		Elapsed:    time.Since(start),
	}, nil
}

// ExtractKeywords asks the flash model for comma-separated search terms.
// A blocked response degrades to empty keywords instead of an error so
// the pipeline can continue without enhanced context.
func (g *implGateway) ExtractKeywords(ctx context.Context, transcript string) (*KeywordResult, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	prompt := fmt.Sprintf(keywordPromptFormat, transcript)
	resp, err := g.client.Models.GenerateContent(ctx, g.flashModel, genai.Text(prompt), nil)
	if err != nil {
		return nil, fmt.Errorf("generate keywords: %w", err)
	}

	text, blocked, reason := extractText(resp)
	if blocked {
		g.logger.Warn(ctx, "Keyword extraction blocked (%s), continuing without keywords", reason)
		return &KeywordResult{Keywords: "", Model: g.flashModel, Blocked: true}, nil
	}
	if text == "" {
		return nil, errors.New("no keyword content in response")
	}

	return &KeywordResult{
		Keywords: strings.TrimSpace(text),
		Model:    g.flashModel,
	}, nil
}

// Summarize re-uploads the original audio as a multimodal input next to
// the assembled prompt. Blocked responses yield a descriptive placeholder
// rather than an error.
func (g *implGateway) Summarize(ctx context.Context, req SummarizeRequest) (*SummaryResult, error) {
	if g.client == nil {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	file, err := g.uploadAudio(ctx, req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("upload audio: %w", err)
	}
	defer g.deleteRemote(ctx, file.Name)

	systemPrompt := buildSystemPrompt(req.Preferences, req.ExternalContext)
	userMessage := buildUserMessage(req.UserPrompt, req.Snippets)

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(userMessage),
			genai.NewPartFromURI(file.URI, file.MIMEType),
		}, genai.RoleUser),
	}
	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromParts(
			[]*genai.Part{genai.NewPartFromText(systemPrompt)}, genai.RoleUser),
	}

	g.logger.Info(ctx, "Sending summarization request to %s", g.summaryModel)
	resp, err := g.client.Models.GenerateContent(ctx, g.summaryModel, contents, genCfg)
	if err != nil {
		return nil, fmt.Errorf("generate summary: %w", err)
	}

	result := &SummaryResult{
		Model:        g.summaryModel,
		SystemPrompt: systemPrompt,
		UserMessage:  userMessage,
		Elapsed:      time.Since(start),
	}

	text, blocked, reason := extractText(resp)
	switch {
	case blocked:
		g.logger.Warn(ctx, "Summary generation blocked (%s)", reason)
		result.Summary = fmt.Sprintf("Summary generation blocked by the model (%s).", reason)
		result.Blocked = true
	case text == "":
		return nil, errors.New("no summary content in response")
	default:
		result.Summary = text
	}
	return result, nil
}

// uploadAudio pushes the local file to the Files API and polls until the
// remote file becomes active.
func (g *implGateway) uploadAudio(ctx context.Context, audioPath string) (*genai.File, error) {
	if _, err := os.Stat(audioPath); err != nil {
		return nil, fmt.Errorf("local audio file missing: %w", err)
	}

	mimeType, ok := MIMETypeFor(audioPath)
	if !ok {
		return nil, fmt.Errorf("unsupported audio extension: %s", audioPath)
	}

	file, err := g.client.Files.UploadFromPath(ctx, audioPath, &genai.UploadFileConfig{MIMEType: mimeType})
	if err != nil {
		return nil, fmt.Errorf("files upload: %w", err)
	}
	g.logger.Info(ctx, "Uploaded %s as %s (%s)", audioPath, file.Name, mimeType)

	err = poll.Until(ctx, g.pollInterval, g.timeout, func(ctx context.Context) (bool, error) {
		current, err := g.client.Files.Get(ctx, file.Name, nil)
		if err != nil {
			return false, fmt.Errorf("files get: %w", err)
		}
		g.logger.Debug(ctx, "Remote file %s state: %s", file.Name, current.State)
		switch current.State {
		case genai.FileStateActive:
			file = current
			return true, nil
		case genai.FileStateFailed:
			return false, fmt.Errorf("remote processing failed for %s", file.Name)
		default:
			return false, nil
		}
	})
	if err != nil {
		// The caller never sees the file handle, so clean up here.
		g.deleteRemote(ctx, file.Name)
		return nil, err
	}
	return file, nil
}

// deleteRemote removes the uploaded artifact. Failures are logged, never
// propagated.
func (g *implGateway) deleteRemote(ctx context.Context, name string) {
	// Use a fresh context so cleanup still runs when ctx is already done.
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	if _, err := g.client.Files.Delete(delCtx, name, nil); err != nil {
		g.logger.Error(ctx, "Failed to delete remote file %s: %v", name, err)
		return
	}
	g.logger.Debug(ctx, "Deleted remote file %s", name)
}

// extractText joins the text parts of the first candidate and reports
// whether the response was blocked by safety or recitation filtering.
func extractText(resp *genai.GenerateContentResponse) (text string, blocked bool, reason string) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", false, ""
	}

	cand := resp.Candidates[0]
	switch cand.FinishReason {
	case genai.FinishReasonSafety:
		return "", true, "safety"
	case genai.FinishReasonRecitation:
		return "", true, "recitation"
	}

	if cand.Content == nil {
		return "", false, ""
	}
	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if part != nil {
			b.WriteString(part.Text)
		}
	}
	return b.String(), false, ""
}
