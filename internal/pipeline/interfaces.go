package pipeline

import (
	"context"

	"github.com/ytget/velora/internal/model"
)

// Transcoder defines the interface for running a post-processing plan.
type Transcoder interface {
	Run(ctx context.Context, plan Plan, emit func(model.ProgressEvent)) (Output, error)
}

// Inspector defines the interface for reading media properties of a local file.
type Inspector interface {
	Inspect(ctx context.Context, path string) (MediaInfo, error)
}

var (
	_ Transcoder = (*Pipeline)(nil)
	_ Inspector  = (*Prober)(nil)
)
