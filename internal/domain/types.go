package domain

import "time"

// JobStatus tracks each pipeline stage for a single subtitle job.
type JobStatus string

const (
	JobStatusIdle         JobStatus = "idle"
	JobStatusQueued       JobStatus = "queued"
	JobStatusConverting   JobStatus = "converting"
	JobStatusTranscribing JobStatus = "transcribing"
	JobStatusWriting      JobStatus = "writing"
	JobStatusDone         JobStatus = "done"
	JobStatusFailed       JobStatus = "failed"
)

// ModelVariant selects the GigaAM decoder head.
type ModelVariant string

const (
	ModelCTC  ModelVariant = "ctc"
	ModelRNNT ModelVariant = "rnnt"
)

// Valid reports whether the variant is one the ASR library can load.
func (m ModelVariant) Valid() bool {
	return m == ModelCTC || m == ModelRNNT
}

// ErrorPolicy decides what the batch driver does after a failed job.
type ErrorPolicy string

const (
	// ErrorPolicyIgnore logs the failure and continues with the next job.
	ErrorPolicyIgnore ErrorPolicy = "ignore"
	// ErrorPolicyRaise stops the run at the first failure.
	ErrorPolicyRaise ErrorPolicy = "raise"
)

// Valid reports whether the policy is known.
func (p ErrorPolicy) Valid() bool {
	return p == ErrorPolicyIgnore || p == ErrorPolicyRaise
}

// Settings is the run configuration shared by every job of a run.
type Settings struct {
	Model             ModelVariant `json:"model"`
	Device            string       `json:"device"`
	MaxDuration       float64      `json:"maxDuration"`
	MinDuration       float64      `json:"minDuration"`
	NewChunkThreshold float64      `json:"newChunkThreshold"`
	HFToken           string       `json:"hfToken,omitempty"`
	ErrorPolicy       ErrorPolicy  `json:"errorPolicy"`
	Recursive         bool         `json:"recursive"`
	PythonPath        string       `json:"pythonPath"`
	FFmpegPath        string       `json:"ffmpegPath"`
}

// Segment is one recognized span of speech.
type Segment struct {
	Start time.Duration `json:"start"`
	End   time.Duration `json:"end"`
	Text  string        `json:"text"`
}

// Job pairs one input media file with the subtitle file it produces.
type Job struct {
	ID         string    `json:"id"`
	InputPath  string    `json:"inputPath"`
	OutputPath string    `json:"outputPath"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}
