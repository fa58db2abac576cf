package domain

// TaskKind enumerates the queue-routed task variants. Each kind is bound to
// its own durable topic so variants can be consumed independently.
type TaskKind string

const (
	TaskBatchImage  TaskKind = "batch_image"
	TaskSingleImage TaskKind = "single_image"
	TaskBatchVideo  TaskKind = "batch_video"
	TaskSingleVideo TaskKind = "single_video"
	TaskTextParse   TaskKind = "text_parse"
)

// Topic returns the queue topic a task kind is published to.
func (k TaskKind) Topic() string {
	return "tasks:" + string(k)
}

// Kinds lists every task variant a worker must consume.
func Kinds() []TaskKind {
	return []TaskKind{TaskBatchImage, TaskSingleImage, TaskBatchVideo, TaskSingleVideo, TaskTextParse}
}

// GenerationMode controls how a batch treats targets that already own an asset.
type GenerationMode string

const (
	ModeAll     GenerationMode = "ALL"
	ModeMissing GenerationMode = "MISSING"
)

// GenerationParams carries caller-supplied parameters. Empty fields fall back
// to project defaults, then to system defaults, during dispatch.
type GenerationParams struct {
	Model        string         `json:"model,omitempty"`
	AspectRatio  string         `json:"aspect_ratio,omitempty"`
	CountPerItem int            `json:"count_per_item,omitempty"`
	Mode         GenerationMode `json:"mode,omitempty"`
}

// VideoParams carries video-only knobs. DurationSeconds is clamped to the
// vendor-supported buckets at submission time; nil means the shortest bucket.
type VideoParams struct {
	DurationSeconds *int   `json:"duration_seconds,omitempty"`
	Size            string `json:"size,omitempty"`
}

// TaskMessage is the immutable queue payload that triggers one dispatch
// workflow. It is never mutated or re-published; retries happen inside the
// vendor call, not by re-queuing.
type TaskMessage struct {
	JobID     string           `json:"job_id"`
	UserID    string           `json:"user_id"`
	ProjectID string           `json:"project_id"`
	Kind      TaskKind         `json:"kind"`
	TargetIDs []string         `json:"target_ids,omitempty"`
	Params    GenerationParams `json:"params"`
	Video     *VideoParams     `json:"video,omitempty"`

	// Single-image / single-video extras.
	CustomPrompt  string   `json:"custom_prompt,omitempty"`
	ReferenceURLs []string `json:"reference_urls,omitempty"`
	CharacterIDs  []string `json:"character_ids,omitempty"`
	SceneID       string   `json:"scene_id,omitempty"`
	PropIDs       []string `json:"prop_ids,omitempty"`

	// Text-parse extras.
	Text     string `json:"text,omitempty"`
	Language string `json:"language,omitempty"`
}
