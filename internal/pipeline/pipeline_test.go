package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nguyentantai21042004/meeting-flow/internal/contextstore"
	"github.com/nguyentantai21042004/meeting-flow/internal/gateway"
	"github.com/nguyentantai21042004/meeting-flow/internal/knowledge"
	"github.com/nguyentantai21042004/meeting-flow/internal/logger"
	"github.com/nguyentantai21042004/meeting-flow/internal/summary"
	"github.com/nguyentantai21042004/meeting-flow/internal/tasks"
)

type fakeGateway struct {
	transcript    string
	transcribeErr error

	keywords   string
	keywordErr error

	summary       string
	summaryErr    error
	blocked       bool
	lastSummarize gateway.SummarizeRequest
}

func (f *fakeGateway) Transcribe(ctx context.Context, audioPath string) (*gateway.TranscribeResult, error) {
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return &gateway.TranscribeResult{Transcript: f.transcript, Model: "flash-test", Elapsed: time.Millisecond}, nil
}

func (f *fakeGateway) ExtractKeywords(ctx context.Context, transcript string) (*gateway.KeywordResult, error) {
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return &gateway.KeywordResult{Keywords: f.keywords, Model: "flash-test"}, nil
}

func (f *fakeGateway) Summarize(ctx context.Context, req gateway.SummarizeRequest) (*gateway.SummaryResult, error) {
	f.lastSummarize = req
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	return &gateway.SummaryResult{Summary: f.summary, Model: "pro-test", Blocked: f.blocked, Elapsed: time.Millisecond}, nil
}

type fakeRetriever struct {
	snippets []knowledge.Snippet
	queries  int
}

func (f *fakeRetriever) Query(ctx context.Context, text string, topK int) []knowledge.Snippet {
	f.queries++
	return f.snippets
}

func (f *fakeRetriever) Status() knowledge.Status {
	return knowledge.StatusReady
}

func newTestRunner(t *testing.T, gw gateway.Gateway, ret Retriever) (*Runner, *tasks.Registry) {
	t.Helper()
	log := logger.New("error")
	dir := t.TempDir()
	registry := tasks.NewRegistry()
	contexts := contextstore.New(filepath.Join(dir, "context.json"), "", log)
	writer := summary.NewWriter(filepath.Join(dir, "summaries"), log)
	return NewRunner(registry, gw, ret, contexts, writer, 5, log), registry
}

func newUpload(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "standup.mp3")
	if err := os.WriteFile(path, []byte("audio"), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func collect(t *testing.T, events <-chan Event) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return got
			}
			got = append(got, ev)
		case <-deadline:
			t.Fatalf("event stream never closed, got %d events", len(got))
		}
	}
}

func TestRunSuccess(t *testing.T) {
	gw := &fakeGateway{
		transcript: "Speaker 1: we agreed to move the launch to June and revisit the budget.",
		keywords:   "launch date, budget revision",
		summary:    "## Decisions\n- Launch moved to June.",
	}
	ret := &fakeRetriever{snippets: []knowledge.Snippet{
		{Content: "Launch planning notes", Source: "launch.md", Score: 0.8},
		{Content: "Budget spreadsheet summary", Source: "budget.md", Score: 0.5},
	}}
	runner, registry := newTestRunner(t, gw, ret)
	path := newUpload(t)
	id := registry.Create(path, "standup.mp3", "")

	got := collect(t, runner.Run(context.Background(), id, ""))
	if len(got) == 0 {
		t.Fatal("no events emitted")
	}

	last := -1
	for _, ev := range got {
		if ev.ProgressPercent < last {
			t.Errorf("progress went backwards: %d after %d (stage %s)", ev.ProgressPercent, last, ev.Stage)
		}
		last = ev.ProgressPercent
	}

	final := got[len(got)-1]
	if final.Stage != StageCompleted || final.ProgressPercent != 100 {
		t.Fatalf("final event = %s/%d, want Completed/100", final.Stage, final.ProgressPercent)
	}
	if final.Result == nil {
		t.Fatal("completed event has no result")
	}
	if final.Result.Summary == "" || final.Result.Transcript != gw.transcript {
		t.Errorf("unexpected result payload: %+v", final.Result)
	}
	if final.Result.Keywords != "launch date, budget revision" {
		t.Errorf("Keywords = %q", final.Result.Keywords)
	}
	if len(final.Result.Snippets) != 2 {
		t.Errorf("got %d snippets, want 2", len(final.Result.Snippets))
	}
	if final.Result.SummaryPath == "" {
		t.Error("summary path not recorded")
	} else if _, err := os.Stat(final.Result.SummaryPath); err != nil {
		t.Errorf("summary file missing: %v", err)
	}

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("uploaded file not deleted after completion")
	}
	if _, err := registry.Get(id); !errors.Is(err, tasks.ErrTaskNotFound) {
		t.Errorf("task still registered after completion: %v", err)
	}
}

func TestRunUnknownTask(t *testing.T) {
	runner, _ := newTestRunner(t, &fakeGateway{}, &fakeRetriever{})

	got := collect(t, runner.Run(context.Background(), "nope", ""))
	if len(got) != 1 {
		t.Fatalf("got %d events, want exactly 1", len(got))
	}
	if got[0].Error == "" || got[0].Stage != StageTaskError {
		t.Errorf("event = %+v, want task error", got[0])
	}
}

func TestRunTranscriptionError(t *testing.T) {
	gw := &fakeGateway{transcribeErr: errors.New("remote file never became active")}
	runner, registry := newTestRunner(t, gw, &fakeRetriever{})
	path := newUpload(t)
	id := registry.Create(path, "standup.mp3", "")

	got := collect(t, runner.Run(context.Background(), id, ""))
	final := got[len(got)-1]
	if final.Stage != StageTranscriptionError || final.Error == "" {
		t.Fatalf("final event = %+v, want transcription error", final)
	}
	for _, ev := range got[:len(got)-1] {
		if ev.Error != "" {
			t.Errorf("non-final event carries error: %+v", ev)
		}
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("uploaded file not deleted after failure")
	}
	if _, err := registry.Get(id); !errors.Is(err, tasks.ErrTaskNotFound) {
		t.Error("task still registered after failure")
	}
}

func TestRunKeywordFailureDegrades(t *testing.T) {
	gw := &fakeGateway{
		transcript: "short meeting",
		keywordErr: errors.New("quota exceeded"),
		summary:    "Nothing notable.",
	}
	ret := &fakeRetriever{snippets: []knowledge.Snippet{{Content: "x", Source: "x.md"}}}
	runner, registry := newTestRunner(t, gw, ret)
	id := registry.Create(newUpload(t), "standup.mp3", "")

	got := collect(t, runner.Run(context.Background(), id, ""))
	final := got[len(got)-1]
	if final.Stage != StageCompleted {
		t.Fatalf("final event = %+v, want Completed despite keyword failure", final)
	}
	if final.Result.Keywords != "" {
		t.Errorf("Keywords = %q, want empty", final.Result.Keywords)
	}
	if len(final.Result.Snippets) != 0 {
		t.Errorf("got %d snippets, want retrieval skipped", len(final.Result.Snippets))
	}
	if ret.queries != 0 {
		t.Errorf("retriever queried %d times without keywords", ret.queries)
	}

	warned := false
	for _, ev := range got {
		if ev.Warning != "" {
			warned = true
		}
	}
	if !warned {
		t.Error("no warning event for keyword failure")
	}
}

func TestRunBlockedKeywordsSkipRetrieval(t *testing.T) {
	gw := &fakeGateway{transcript: "t", keywords: "", summary: "s"}
	ret := &fakeRetriever{}
	runner, registry := newTestRunner(t, gw, ret)
	id := registry.Create(newUpload(t), "a.wav", "")

	got := collect(t, runner.Run(context.Background(), id, ""))
	if got[len(got)-1].Stage != StageCompleted {
		t.Fatalf("final event = %+v", got[len(got)-1])
	}
	if ret.queries != 0 {
		t.Errorf("retriever queried %d times with empty keywords", ret.queries)
	}
}

func TestRunSummarizationBlocked(t *testing.T) {
	gw := &fakeGateway{
		transcript: "t",
		keywords:   "k",
		summary:    "Summary generation blocked by the model (SAFETY).",
		blocked:    true,
	}
	runner, registry := newTestRunner(t, gw, &fakeRetriever{})
	path := newUpload(t)
	id := registry.Create(path, "a.wav", "")

	got := collect(t, runner.Run(context.Background(), id, ""))
	final := got[len(got)-1]
	if final.Stage != StageSummarizationError || final.Error == "" {
		t.Fatalf("final event = %+v, want summarization error", final)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("uploaded file not deleted after blocked summary")
	}
}

func TestRunPromptOverride(t *testing.T) {
	gw := &fakeGateway{transcript: "t", keywords: "k", summary: "s"}
	runner, registry := newTestRunner(t, gw, &fakeRetriever{})
	id := registry.Create(newUpload(t), "a.wav", "stored prompt")

	collect(t, runner.Run(context.Background(), id, "override prompt"))
	if gw.lastSummarize.UserPrompt != "override prompt" {
		t.Errorf("UserPrompt = %q, want override", gw.lastSummarize.UserPrompt)
	}

	id = registry.Create(newUpload(t), "b.wav", "stored prompt")
	collect(t, runner.Run(context.Background(), id, ""))
	if gw.lastSummarize.UserPrompt != "stored prompt" {
		t.Errorf("UserPrompt = %q, want stored prompt", gw.lastSummarize.UserPrompt)
	}
}
