package pipeline

import "github.com/nguyentantai21042004/meeting-flow/internal/knowledge"

// Stage labels the pipeline step an event belongs to. Error events carry
// a stage-specific label so callers can tell where a task failed.
type Stage string

const (
	StageStarted           Stage = "Started"
	StageTranscribing      Stage = "Transcribing"
	StageKeywordGeneration Stage = "KeywordGeneration"
	StageContextRetrieval  Stage = "ContextRetrieval"
	StageSummarizing       Stage = "Summarizing"
	StageCompleted         Stage = "Completed"

	StageTaskError          Stage = "Task Error"
	StageTranscriptionError Stage = "Transcription Error"
	StageSummarizationError Stage = "Summarization Error"
	StagePipelineError      Stage = "Pipeline Error"
)

// Fixed progress checkpoints. Values only ever increase within one run
// and the final event always reports 100.
const (
	progressStarted        = 10
	progressTranscribed    = 25
	progressKeywordsBegin  = 30
	progressKeywordsDone   = 45
	progressRetrievalDone  = 60
	progressSummarizeBegin = 65
	progressCompleted      = 100
)

// Event is one message on a task's progress stream.
type Event struct {
	Stage             Stage   `json:"stage"`
	ProgressPercent   int     `json:"progress_percent"`
	Message           string  `json:"message,omitempty"`
	TranscriptPreview string  `json:"transcript_preview,omitempty"`
	Warning           string  `json:"warning,omitempty"`
	Error             string  `json:"error,omitempty"`
	Result            *Result `json:"result,omitempty"`
}

// Terminal reports whether this event ends the stream.
func (e Event) Terminal() bool {
	return e.Error != "" || e.Stage == StageCompleted
}

// Result is the immutable terminal payload of a successful run.
type Result struct {
	Transcript       string              `json:"transcript"`
	Summary          string              `json:"summary"`
	Keywords         string              `json:"rag_keywords_generated"`
	Snippets         []knowledge.Snippet `json:"retrieved_snippets"`
	Models           map[string]string   `json:"model_identifiers"`
	StageSeconds     map[string]float64  `json:"stage_timings_secs"`
	TotalSeconds     float64             `json:"total_secs"`
	SummaryPath      string              `json:"summary_markdown_path,omitempty"`
	OriginalFilename string              `json:"original_filename"`
}
