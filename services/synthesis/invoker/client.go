package invoker

import (
	"context"
	"encoding/json"
)

// MediaPart is one media input attached to an invocation request.
type MediaPart struct {
	SegmentID string `json:"segment_id"`
	MimeType  string `json:"mime_type"`
	Bytes     []byte `json:"bytes"`
}

// Request is the resolved input for one stage invocation.
type Request struct {
	// Stage is the stage name, used for routing and logging.
	Stage string `json:"stage"`

	// Role is the stage's role label (e.g., "field naturalist").
	Role string `json:"role"`

	// Instruction is the stage's task description, including the expected
	// output shape.
	Instruction string `json:"instruction"`

	// Media are the raw media inputs for this stage, if any.
	Media []MediaPart `json:"media,omitempty"`

	// Context is structured JSON context: sensor window, history,
	// predecessor payloads.
	Context json.RawMessage `json:"context,omitempty"`

	// RepairHint is set on a retry after schema validation failed, telling
	// the model what was wrong with its previous response.
	RepairHint string `json:"repair_hint,omitempty"`
}

// Invoker is the single abstracted boundary to an external inference
// service. The pipeline treats every response as untrusted input requiring
// schema validation before use.
type Invoker interface {
	// Invoke performs one inference call and returns the raw JSON payload.
	// Implementations must respect ctx cancellation and deadlines.
	Invoke(ctx context.Context, req Request) (json.RawMessage, error)
}
