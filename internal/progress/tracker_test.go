package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ytget/velora/internal/model"
)

func dl(p float64) model.ProgressEvent {
	return model.ProgressEvent{Phase: model.PhaseDownloading, Percent: p}
}

func TestTracker_MonotonicWithinPhase(t *testing.T) {
	tr := NewTracker("job", 2)

	var got []float64
	for _, p := range []float64{10, 5, 30, model.PercentUnknown, 20, 100} {
		ev := tr.Stamp(dl(p))
		assert.Equal(t, "job", ev.JobID)
		assert.Equal(t, 2, ev.Item)
		got = append(got, ev.Percent)
	}
	assert.Equal(t, []float64{10, 10, 30, 30, 30, 100}, got)

	// a new phase starts from its own baseline
	ev := tr.Stamp(model.ProgressEvent{Phase: model.PhaseConverting, Percent: 3})
	assert.InDelta(t, 3.0, ev.Percent, 1e-9)
	assert.InDelta(t, 100.0, tr.Last(model.PhaseDownloading), 1e-9)
	assert.InDelta(t, float64(model.PercentUnknown), tr.Last(model.PhaseTrimming), 1e-9)
}

func TestTracker_UnknownBeforeFirstPercent(t *testing.T) {
	tr := NewTracker("job", 0)
	ev := tr.Stamp(dl(model.PercentUnknown))
	assert.False(t, ev.HasPercent())
}

func TestTracker_MultiStreamDownload(t *testing.T) {
	tr := NewTracker("job", 0)
	tr.SetStreams(2)

	tr.BeginStream()
	a := tr.Stamp(dl(50))
	b := tr.Stamp(dl(100))
	tr.BeginStream()
	c := tr.Stamp(dl(0))
	d := tr.Stamp(dl(100))

	assert.InDelta(t, 25.0, a.Percent, 1e-9)
	assert.InDelta(t, 50.0, b.Percent, 1e-9)
	assert.InDelta(t, 50.0, c.Percent, 1e-9)
	assert.InDelta(t, 100.0, d.Percent, 1e-9)

	// extra destinations never push past the last stream
	tr.BeginStream()
	e := tr.Stamp(dl(100))
	assert.InDelta(t, 100.0, e.Percent, 1e-9)
}
