package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/nguyentantai21042004/meeting-flow/internal/contextstore"
	"github.com/nguyentantai21042004/meeting-flow/internal/gateway"
	"github.com/nguyentantai21042004/meeting-flow/internal/knowledge"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
	"github.com/nguyentantai21042004/meeting-flow/internal/summary"
	"github.com/nguyentantai21042004/meeting-flow/internal/tasks"
)

const transcriptPreviewLen = 300

// eventBuffer comfortably exceeds the number of events one run can emit,
// so a consumer that disconnects mid-stream never blocks a stage.
const eventBuffer = 16

// Retriever is the slice of the knowledge index the pipeline needs.
type Retriever interface {
	Query(ctx context.Context, text string, topK int) []knowledge.Snippet
	Status() knowledge.Status
}

// Runner drives one task through the ordered pipeline stages, emitting
// progress events and guaranteeing terminal cleanup of the task entry
// and its backing file.
type Runner struct {
	registry  *tasks.Registry
	gateway   gateway.Gateway
	retriever Retriever
	contexts  *contextstore.Store
	writer    *summary.Writer
	topK      int
	logger    logger.Logger
}

// NewRunner wires the pipeline's collaborators.
func NewRunner(registry *tasks.Registry, gw gateway.Gateway, retriever Retriever, contexts *contextstore.Store, writer *summary.Writer, topK int, log logger.Logger) *Runner {
	if topK <= 0 {
		topK = 5
	}
	return &Runner{
		registry:  registry,
		gateway:   gw,
		retriever: retriever,
		contexts:  contexts,
		writer:    writer,
		topK:      topK,
		logger:    log,
	}
}

// Run starts the pipeline for taskID and returns its event stream. The
// channel is closed after the terminal event. promptOverride, when non-
// empty, replaces the prompt stored at submission time.
func (r *Runner) Run(ctx context.Context, taskID, promptOverride string) <-chan Event {
	events := make(chan Event, eventBuffer)
	go r.run(ctx, taskID, promptOverride, events)
	return events
}

func (r *Runner) run(ctx context.Context, taskID, promptOverride string, events chan<- Event) {
	defer close(events)

	task, err := r.registry.Get(taskID)
	if err != nil {
		r.emit(events, Event{
			Stage:           StageTaskError,
			ProgressPercent: progressStarted,
			Error:           "invalid or expired task",
		})
		return
	}

	// Terminal cleanup runs no matter how this function exits.
	defer r.cleanup(ctx, task)
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error(ctx, "Pipeline panic for task %s: %v", taskID, rec)
			r.registry.SetStatus(taskID, tasks.StatusError)
			r.emit(events, Event{
				Stage:           StagePipelineError,
				ProgressPercent: progressStarted,
				Error:           "unexpected internal error",
			})
		}
	}()

	r.registry.SetStatus(taskID, tasks.StatusProcessing)
	start := time.Now()
	r.emit(events, Event{
		Stage:           StageStarted,
		ProgressPercent: progressStarted,
		Message:         "Processing " + task.OriginalFilename,
	})

	// Transcribing
	tr, err := r.gateway.Transcribe(ctx, task.FilePath)
	if err != nil {
		r.logger.Error(ctx, "Transcription failed for task %s: %v", taskID, err)
		r.registry.SetStatus(taskID, tasks.StatusError)
		r.emit(events, Event{
			Stage:           StageTranscriptionError,
			ProgressPercent: progressStarted,
			Error:           "transcription failed: " + err.Error(),
		})
		return
	}
	r.emit(events, Event{
		Stage:             StageTranscribing,
		ProgressPercent:   progressTranscribed,
		TranscriptPreview: preview(tr.Transcript),
	})

	// KeywordGeneration: failure degrades instead of aborting, the
	// summary is simply generated without enhanced context.
	r.emit(events, Event{
		Stage:           StageKeywordGeneration,
		ProgressPercent: progressKeywordsBegin,
		Message:         "Generating search keywords",
	})
	keywords := ""
	keywordModel := ""
	keywordStart := time.Now()
	kw, err := r.gateway.ExtractKeywords(ctx, tr.Transcript)
	if err != nil {
		r.logger.Warn(ctx, "Keyword extraction failed for task %s: %v", taskID, err)
		r.emit(events, Event{
			Stage:           StageKeywordGeneration,
			ProgressPercent: progressKeywordsDone,
			Warning:         "keyword generation failed, continuing without knowledge context",
		})
	} else {
		keywords = kw.Keywords
		keywordModel = kw.Model
		r.emit(events, Event{
			Stage:           StageKeywordGeneration,
			ProgressPercent: progressKeywordsDone,
			Message:         keywords,
		})
	}
	keywordElapsed := time.Since(keywordStart)

	// ContextRetrieval: skipped entirely without keywords. Zero results
	// is valid, the index may be empty, failed, or still building.
	retrievalStart := time.Now()
	var snippets []knowledge.Snippet
	if keywords != "" {
		snippets = r.retriever.Query(ctx, keywords, r.topK)
	}
	retrievalElapsed := time.Since(retrievalStart)
	r.emit(events, Event{
		Stage:           StageContextRetrieval,
		ProgressPercent: progressRetrievalDone,
		Message:         retrievalMessage(len(snippets)),
	})

	// Summarizing: the stream-supplied prompt wins over the stored one.
	userPrompt := task.UserPrompt
	if promptOverride != "" {
		userPrompt = promptOverride
	}
	r.emit(events, Event{
		Stage:           StageSummarizing,
		ProgressPercent: progressSummarizeBegin,
		Message:         "Generating summary",
	})
	sum, err := r.gateway.Summarize(ctx, gateway.SummarizeRequest{
		AudioPath:       task.FilePath,
		UserPrompt:      userPrompt,
		Snippets:        snippets,
		Preferences:     r.contexts.Get(),
		ExternalContext: r.contexts.ExternalContext(ctx),
	})
	if err != nil || sum.Blocked {
		msg := "summarization failed"
		if err != nil {
			msg = "summarization failed: " + err.Error()
		} else if sum.Blocked {
			msg = sum.Summary
		}
		r.logger.Error(ctx, "Summarization failed for task %s: %s", taskID, msg)
		r.registry.SetStatus(taskID, tasks.StatusError)
		r.emit(events, Event{
			Stage:           StageSummarizationError,
			ProgressPercent: progressSummarizeBegin,
			Error:           msg,
		})
		return
	}

	// Completed: persistence is best-effort and never changes the
	// terminal outcome.
	now := time.Now()
	summaryPath := r.writer.Save(ctx, summary.Document{
		Summary:          sum.Summary,
		OriginalFilename: task.OriginalFilename,
		Keywords:         keywords,
		CreatedAt:        now,
	})

	result := &Result{
		Transcript: tr.Transcript,
		Summary:    sum.Summary,
		Keywords:   keywords,
		Snippets:   snippets,
		Models: map[string]string{
			"transcription": tr.Model,
			"keywords":      keywordModel,
			"summarization": sum.Model,
		},
		StageSeconds: map[string]float64{
			"transcription": tr.Elapsed.Seconds(),
			"keywords":      keywordElapsed.Seconds(),
			"retrieval":     retrievalElapsed.Seconds(),
			"summarization": sum.Elapsed.Seconds(),
		},
		TotalSeconds:     time.Since(start).Seconds(),
		SummaryPath:      summaryPath,
		OriginalFilename: task.OriginalFilename,
	}

	r.registry.SetStatus(taskID, tasks.StatusDone)
	r.emit(events, Event{
		Stage:           StageCompleted,
		ProgressPercent: progressCompleted,
		Result:          result,
	})
}

// cleanup removes the task from the registry and deletes its backing
// file. It runs on every terminal transition; deletion failures are
// logged, never escalated.
func (r *Runner) cleanup(ctx context.Context, task tasks.Task) {
	r.registry.Remove(task.ID)
	if err := os.Remove(task.FilePath); err != nil && !os.IsNotExist(err) {
		r.logger.Error(ctx, "Failed to delete uploaded file %s: %v", task.FilePath, err)
	} else {
		r.logger.Debug(ctx, "Deleted uploaded file %s", task.FilePath)
	}
}

// emit delivers an event without ever blocking the pipeline. The buffer
// outlives any realistic event count, so a drop only happens when the
// consumer is gone.
func (r *Runner) emit(events chan<- Event, ev Event) {
	select {
	case events <- ev:
	default:
		r.logger.Debug(context.Background(), "Dropping event %s, no consumer", ev.Stage)
	}
}

func preview(transcript string) string {
	runes := []rune(transcript)
	if len(runes) <= transcriptPreviewLen {
		return transcript
	}
	return string(runes[:transcriptPreviewLen]) + "..."
}

func retrievalMessage(n int) string {
	switch n {
	case 0:
		return "No knowledge snippets found"
	case 1:
		return "Found 1 knowledge snippet"
	default:
		return fmt.Sprintf("Found %d knowledge snippets", n)
	}
}
