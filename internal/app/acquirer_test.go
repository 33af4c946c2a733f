package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ytget/velora/internal/batch"
	"github.com/ytget/velora/internal/engine"
	"github.com/ytget/velora/internal/failure"
	"github.com/ytget/velora/internal/model"
)

type fakeProber struct {
	md    model.MediaMetadata
	err   error
	calls int
}

func (p *fakeProber) Probe(ctx context.Context, url string, playlistAware bool) (model.MediaMetadata, error) {
	p.calls++
	if !playlistAware {
		return model.MediaMetadata{}, errors.New("expected a playlist-aware probe")
	}
	return p.md, p.err
}

type fakeExpander struct {
	md  model.MediaMetadata
	err error
}

func (e fakeExpander) Expand(ctx context.Context, url string) (model.MediaMetadata, error) {
	return e.md, e.err
}

type fakePublisher struct {
	mu    sync.Mutex
	paths []string
	fail  string
}

func (p *fakePublisher) Publish(ctx context.Context, path string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if path == p.fail {
		return "", fmt.Errorf("upload %s refused", path)
	}
	p.paths = append(p.paths, path)
	return "s3://media/" + path, nil
}

func entries(n int) []model.PlaylistEntry {
	var out []model.PlaylistEntry
	for i := 1; i <= n; i++ {
		out = append(out, model.PlaylistEntry{Index: i, URL: fmt.Sprintf("https://www.youtube.com/watch?v=video%06d", i)})
	}
	return out
}

// runner succeeds for every item except the one with index failItem
func runner(failItem int) batch.RunFunc {
	return func(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult {
		if desc.Index() == failItem && failItem > 0 {
			return model.JobResult{Item: desc.Index(), Outcome: model.OutcomeFailed, Err: failure.ClassifyResolve(1, "ERROR: Private video")}
		}
		return model.JobResult{
			JobID:     desc.ID(),
			Item:      desc.Index(),
			Outcome:   model.OutcomeSuccess,
			Artifacts: []string{fmt.Sprintf("/out/item-%d.mp4", desc.Index())},
		}
	}
}

func descriptor(t *testing.T, url string) model.JobDescriptor {
	t.Helper()
	desc, err := model.NewJobDescriptor(url, model.Options{Kind: model.KindVideo, Quality: model.BestQuality, OutputDir: t.TempDir()})
	require.NoError(t, err)
	return desc
}

func TestAcquire_SingleItem(t *testing.T) {
	prober := &fakeProber{md: model.MediaMetadata{Title: "One"}}
	r := runner(0)
	a := New(prober, r, batch.New(nil, r))

	report, err := a.Acquire(context.Background(), descriptor(t, "https://vimeo.com/123456"), nil)
	require.NoError(t, err)
	require.NotNil(t, report.Single)
	assert.Nil(t, report.Batch)
	assert.Equal(t, model.OutcomeSuccess, report.Single.Outcome)
	assert.Len(t, report.Results(), 1)
	assert.Empty(t, report.Published)
}

func TestAcquire_Playlist(t *testing.T) {
	prober := &fakeProber{md: model.MediaMetadata{Title: "Mix", IsPlaylist: true, Entries: entries(3)}}
	r := runner(2)
	a := New(prober, r, batch.New(nil, r, batch.WithMaxParallel(2)))

	report, err := a.Acquire(context.Background(), descriptor(t, "https://www.youtube.com/playlist?list=PLabc"), nil)
	require.NoError(t, err)
	require.NotNil(t, report.Batch)
	assert.Nil(t, report.Single)

	var outcomes []model.Outcome
	for _, it := range report.Results() {
		outcomes = append(outcomes, it.Outcome)
	}
	assert.Equal(t, []model.Outcome{model.OutcomeSuccess, model.OutcomeFailed, model.OutcomeSuccess}, outcomes)
	assert.Equal(t, "Mix", report.Batch.Title)
}

// scriptedProber answers both playlist-aware and item probes, failing with
// errs in order before returning md
type scriptedProber struct {
	mu    sync.Mutex
	md    model.MediaMetadata
	errs  []error
	calls int
}

func (p *scriptedProber) Probe(ctx context.Context, url string, playlistAware bool) (model.MediaMetadata, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		if err != nil {
			return model.MediaMetadata{}, err
		}
	}
	return p.md, nil
}

func TestAcquire_ProbeFailure(t *testing.T) {
	unsupported := failure.ClassifyResolve(1, "ERROR: Unsupported URL: https://example.com/x")
	network := failure.ClassifyResolve(1, "ERROR: Unable to download webpage: <urlopen error [Errno -3] Temporary failure in name resolution>")

	tests := []struct {
		name      string
		errs      []error
		attempts  int
		wantCalls int
		wantCause failure.Cause
	}{
		// one playlist-aware probe, then one probe per engine attempt
		{"unsupported url is not retried", []error{unsupported, unsupported, unsupported}, 3, 2, failure.CauseUnsupportedURL},
		{"network failure is retried", []error{network, network, network, network}, 3, 4, failure.CauseNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &scriptedProber{errs: tt.errs}
			eng := engine.New(prober, nil, nil)
			policy := engine.RetryPolicy{Attempts: tt.attempts}
			jobs := batch.RunFunc(func(ctx context.Context, desc model.JobDescriptor, events chan<- model.ProgressEvent) model.JobResult {
				return eng.RunWithRetry(ctx, desc, events, policy)
			})

			report, err := New(prober, jobs, batch.New(nil, jobs)).Acquire(context.Background(), descriptor(t, "https://example.com/x"), nil)
			require.NoError(t, err)
			require.NotNil(t, report.Single)
			assert.Equal(t, model.OutcomeFailed, report.Single.Outcome)
			require.NotNil(t, report.Single.Err)
			assert.Equal(t, failure.KindResolve, report.Single.Err.Kind)
			assert.Equal(t, tt.wantCause, report.Single.Err.Cause)
			if prober.calls != tt.wantCalls {
				t.Errorf("expected %d probes, got %d", tt.wantCalls, prober.calls)
			}
		})
	}
}

func TestAcquire_ProbeFailureThenItemSucceeds(t *testing.T) {
	network := failure.ClassifyResolve(1, "ERROR: Unable to download webpage: timed out")
	prober := &fakeProber{err: network}
	r := runner(0)

	report, err := New(prober, r, batch.New(nil, r)).Acquire(context.Background(), descriptor(t, "https://vimeo.com/123456"), nil)
	require.NoError(t, err)
	require.NotNil(t, report.Single)
	assert.Equal(t, model.OutcomeSuccess, report.Single.Outcome)
}

func TestAcquire_PlaylistExpansionFailure(t *testing.T) {
	prober := &fakeProber{err: failure.ClassifyResolve(1, "ERROR: The playlist does not exist")}
	r := runner(0)

	_, err := New(prober, r, batch.New(nil, r)).Acquire(context.Background(), descriptor(t, "https://www.youtube.com/playlist?list=PLgone"), nil)
	require.Error(t, err)
	assert.Equal(t, failure.KindResolve, failure.KindOf(err))
}

func TestAcquire_NativePlaylist(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		native      fakeExpander
		wantProbes  int
		wantEntries int
	}{
		{"list url uses native", "https://www.youtube.com/playlist?list=PLabc", fakeExpander{md: model.MediaMetadata{Entries: entries(2)}}, 0, 2},
		{"native failure falls back", "https://www.youtube.com/playlist?list=PLabc", fakeExpander{err: errors.New("quota")}, 1, 3},
		{"plain url skips native", "https://www.youtube.com/watch?v=abcdefghijk", fakeExpander{md: model.MediaMetadata{Entries: entries(2)}}, 1, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := &fakeProber{md: model.MediaMetadata{IsPlaylist: true, Entries: entries(3)}}
			r := runner(0)
			a := New(prober, r, batch.New(nil, r), WithNativePlaylist(tt.native))

			report, err := a.Acquire(context.Background(), descriptor(t, tt.url), nil)
			require.NoError(t, err)
			require.NotNil(t, report.Batch)
			assert.Len(t, report.Batch.Items, tt.wantEntries)
			assert.Equal(t, tt.wantProbes, prober.calls)
		})
	}
}

func TestAcquire_PublishesSuccessfulArtifacts(t *testing.T) {
	prober := &fakeProber{md: model.MediaMetadata{IsPlaylist: true, Entries: entries(3)}}
	r := runner(2)
	pub := &fakePublisher{fail: "/out/item-3.mp4"}
	a := New(prober, r, batch.New(nil, r), WithPublisher(pub))

	report, err := a.Acquire(context.Background(), descriptor(t, "https://www.youtube.com/playlist?list=PLabc"), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"s3://media//out/item-1.mp4"}, report.Published)
	assert.Error(t, report.PublishErr)
	assert.Equal(t, 2, report.Batch.Succeeded, "upload failures do not change outcomes")
}
