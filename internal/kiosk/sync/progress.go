package sync

// Stage is where a sync run currently is. Transitions are monotonic
// within a run and reset to StageIdle when the next run starts.
type Stage int

const (
	StageIdle Stage = iota
	StageFetching
	StageProcessing
	StageUploading
	StageCompleted
)

func (s Stage) String() string {
	switch s {
	case StageFetching:
		return "fetching"
	case StageProcessing:
		return "processing"
	case StageUploading:
		return "uploading"
	case StageCompleted:
		return "completed"
	default:
		return "idle"
	}
}

// Stage weights of the overall percentage: download 40%, local
// processing 30%, upload 30%.
const (
	downloadWeight   = 0.4
	processingWeight = 0.3
	uploadWeight     = 0.3
)

// Progress is one progress snapshot handed to the Reporter.
type Progress struct {
	Stage   Stage
	Percent int
	Message string
}

// Reporter receives progress snapshots during a run. Called from the
// sync goroutine; implementations should return quickly.
type Reporter func(Progress)

// percent folds per-stage completion into the cumulative 0..100 scale.
// A stage with an unknown total counts as complete, so an empty upload
// phase still lands on 100.
func percent(stage Stage, done, total int) int {
	frac := 1.0
	if total > 0 {
		frac = float64(done) / float64(total)
		if frac > 1 {
			frac = 1
		}
	}
	switch stage {
	case StageFetching:
		return int(downloadWeight * frac * 100)
	case StageProcessing:
		return int((downloadWeight + processingWeight*frac) * 100)
	case StageUploading:
		return int((downloadWeight + processingWeight + uploadWeight*frac) * 100)
	case StageCompleted:
		return 100
	default:
		return 0
	}
}
