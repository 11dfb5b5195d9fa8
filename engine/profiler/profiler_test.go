package profiler

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/Carmen-Shannon/hello-triangle/common"
	"github.com/Carmen-Shannon/hello-triangle/engine/renderer"
	"github.com/stretchr/testify/assert"
)

func TestProfilerReportsOncePerInterval(t *testing.T) {
	var buf bytes.Buffer
	common.SetLogger(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { common.SetLogger(nil) })

	clock := time.Unix(100, 0)
	p := NewProfiler()
	p.lastTime = clock
	p.now = func() time.Time { return clock }

	clock = clock.Add(500 * time.Millisecond)
	assert.False(t, p.Tick(renderer.FrameStats{Presented: 30}))
	assert.Empty(t, buf.String())

	clock = clock.Add(500 * time.Millisecond)
	assert.True(t, p.Tick(renderer.FrameStats{Presented: 60, Skipped: 2}))
	out := buf.String()
	assert.Contains(t, out, "msg=profiler")
	assert.Contains(t, out, "fps=2")
	assert.Contains(t, out, "presented=60")
	assert.Contains(t, out, "skipped=2")

	buf.Reset()
	clock = clock.Add(time.Second)
	assert.True(t, p.Tick(renderer.FrameStats{Presented: 120, Skipped: 2}))
	assert.Contains(t, buf.String(), "presented=60", "reports the delta since the last interval")
	assert.Contains(t, buf.String(), "skipped=0")
}
