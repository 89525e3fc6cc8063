package gateway

import (
	"context"
	"time"

	"github.com/nguyentantai21042004/meeting-flow/internal/contextstore"
	"github.com/nguyentantai21042004/meeting-flow/internal/knowledge"
)

// Gateway wraps the remote inference service. All operations follow the
// same lifecycle: upload the audio, poll until the remote file is active,
// invoke the model, delete the remote artifact on every exit path.
//
// Results are structured: a blocked response (safety or recitation
// filtering) is reported in the result, never guessed from response text.
type Gateway interface {
	Transcribe(ctx context.Context, audioPath string) (*TranscribeResult, error)
	ExtractKeywords(ctx context.Context, transcript string) (*KeywordResult, error)
	Summarize(ctx context.Context, req SummarizeRequest) (*SummaryResult, error)
}

// TranscribeResult is a successful transcription.
type TranscribeResult struct {
	Transcript string
	Model      string
	Elapsed    time.Duration
}

// KeywordResult carries extracted search keywords. Blocked responses keep
// Keywords empty so the pipeline can continue without enhanced context.
type KeywordResult struct {
	Keywords string
	Model    string
	Blocked  bool
}

// SummarizeRequest bundles everything the summarization prompt needs.
type SummarizeRequest struct {
	AudioPath       string
	UserPrompt      string
	Snippets        []knowledge.Snippet
	Preferences     contextstore.Preferences
	ExternalContext string
}

// SummaryResult is the outcome of multimodal summarization. When Blocked
// is set, Summary holds a descriptive placeholder instead of model output.
type SummaryResult struct {
	Summary      string
	Model        string
	Blocked      bool
	SystemPrompt string
	UserMessage  string
	Elapsed      time.Duration
}
