package pipeline

// ProgressUpdate represents a progress update during deck generation
type ProgressUpdate struct {
	Stage    string `json:"stage"`    // "outline", "enhance", "layout", "visual", "assemble", "complete"
	Progress int    `json:"progress"` // 0-100
	Message  string `json:"message"`  // Human-readable message like "Generating slide visuals..."
	Step     int    `json:"step"`     // Current step number
	Total    int    `json:"total"`    // Total steps
}

// ProgressCallback is a function that receives progress updates
type ProgressCallback func(update ProgressUpdate)

// Pre-defined progress stages in pipeline order
const (
	StageOutline  = "outline"
	StageEnhance  = "enhance"
	StageLayout   = "layout"
	StageVisual   = "visual"
	StageAssemble = "assemble"
	StageComplete = "complete"
)

// NewProgressUpdate creates a new progress update
func NewProgressUpdate(stage string, progress int, message string, step, total int) ProgressUpdate {
	return ProgressUpdate{
		Stage:    stage,
		Progress: progress,
		Message:  message,
		Step:     step,
		Total:    total,
	}
}
