package download

import (
	"context"

	"github.com/ytget/velora/internal/model"
	"github.com/ytget/velora/internal/progress"
)

// Fetcher defines the interface for the download executor.
type Fetcher interface {
	Fetch(ctx context.Context, req Request, tracker *progress.Tracker, emit func(model.ProgressEvent)) (Result, error)
}

var _ Fetcher = (*Executor)(nil)
