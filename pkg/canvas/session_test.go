package canvas

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/chazu/koga/pkg/config"
	"github.com/chazu/koga/pkg/engine"
	"github.com/chazu/koga/pkg/figma"
	"github.com/chazu/koga/pkg/viewport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	opts = append([]Option{WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}, opts...)
	s, err := New(nil, opts...)
	require.NoError(t, err)
	return s
}

func TestStatusString(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, "0 objects · Zoom: 100% · Canvas: 1200 × 800", s.Status().String())

	st := Status{Nodes: 3, ZoomPercent: 144, Width: 640, Height: 480}
	assert.Equal(t, "3 objects · Zoom: 144% · Canvas: 640 × 480", st.String())
}

func TestExecuteUpdatesStatus(t *testing.T) {
	var seen []string
	s := newSession(t, WithCodeHandler(func(code string) { seen = append(seen, code) }))

	code := `
(def f (createFrame))
(addChild f (createText))
(appendChild f)
(appendChild (createEllipse))
`
	res, err := s.Execute(context.Background(), code)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Appended)
	assert.Equal(t, []string{code}, seen)

	st := s.Status()
	assert.Equal(t, 2, st.Nodes)
	assert.Equal(t, 3, st.Objects)
	assert.False(t, st.Busy)
}

func TestExecutePartialEffects(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute(context.Background(), "(appendChild (createRectangle))\n(group (list))")

	var ee *engine.ExecutionError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, figma.ErrEmptyGroup)
	assert.Equal(t, 1, s.Status().Nodes)
}

func TestExecuteSingleFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	s := newSession(t, WithCodeHandler(func(string) {
		close(started)
		<-release
	}))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := s.Execute(context.Background(), "(appendChild (createRectangle))")
		assert.NoError(t, err)
	}()

	<-started
	assert.True(t, s.Busy())
	assert.True(t, s.Status().Busy)
	_, err := s.Execute(context.Background(), "(appendChild (createEllipse))")
	assert.ErrorIs(t, err, ErrBusy)

	close(release)
	wg.Wait()
	assert.False(t, s.Busy())
	assert.Equal(t, 1, s.Status().Nodes)
}

func TestViewportActions(t *testing.T) {
	s := newSession(t)
	assert.Equal(t, 120, s.ZoomIn().ZoomPercent)
	assert.Equal(t, 100, s.ZoomOut().ZoomPercent)

	s.Pan(10, 20)
	assert.Equal(t, viewport.Point{X: 10, Y: 20}, s.Viewport().Pan)

	st, err := s.SetTool("ellipse")
	require.NoError(t, err)
	assert.Equal(t, viewport.ToolEllipse, st.Tool)

	_, err = s.SetTool("lasso")
	assert.ErrorIs(t, err, viewport.ErrUnknownTool)

	st = s.SetView(50, viewport.Point{X: -3, Y: 4})
	assert.Equal(t, 500, st.ZoomPercent)
	assert.Equal(t, viewport.Point{X: -3, Y: 4}, s.Viewport().Pan)
}

func TestReset(t *testing.T) {
	s := newSession(t)
	_, err := s.Execute(context.Background(), "(appendChild (createRectangle))")
	require.NoError(t, err)
	s.ZoomIn()
	_, err = s.SetTool("text")
	require.NoError(t, err)

	st := s.Reset()
	assert.Equal(t, 0, st.Nodes)
	assert.Equal(t, 100, st.ZoomPercent)
	assert.Equal(t, viewport.ToolText, st.Tool)
	assert.Empty(t, s.Nodes())
}

func TestSubscribe(t *testing.T) {
	s := newSession(t)
	var mu sync.Mutex
	var got []Status
	unsubscribe := s.Subscribe(func(st Status) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, st)
	})

	s.ZoomIn()
	_, err := s.Execute(context.Background(), "(appendChild (createRectangle))")
	require.NoError(t, err)

	mu.Lock()
	require.Len(t, got, 3)
	assert.Equal(t, 120, got[0].ZoomPercent)
	assert.True(t, got[1].Busy)
	assert.False(t, got[2].Busy)
	assert.Equal(t, 1, got[2].Nodes)
	mu.Unlock()

	unsubscribe()
	s.ZoomOut()
	mu.Lock()
	assert.Len(t, got, 3)
	mu.Unlock()
}

func TestRenderOutputs(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.Width, cfg.Canvas.Height = 120, 80
	s, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	_, err = s.Execute(context.Background(), `(appendChild (createRectangle :x 0 :y 0 :width 50 :height 50))`)
	require.NoError(t, err)

	img := s.Image()
	assert.Equal(t, 120, img.Bounds().Dx())
	assert.Equal(t, 80, img.Bounds().Dy())

	var png, svg bytes.Buffer
	require.NoError(t, s.RenderPNG(&png))
	assert.True(t, bytes.HasPrefix(png.Bytes(), []byte("\x89PNG")))
	require.NoError(t, s.RenderSVG(&svg))
	assert.Contains(t, svg.String(), "<svg")
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.Width = 0
	_, err := New(cfg)
	assert.True(t, errors.Is(err, config.ErrInvalid))
}

func TestResetIsAtomicForRenders(t *testing.T) {
	s := newSession(t)
	stop := make(chan struct{})
	torn := make(chan string, 1)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			// Nodes only exist while zoomed in; a reset clears both at once.
			nodes, vp := s.frame()
			if vp.Zoom == 1 && len(nodes) > 0 {
				select {
				case torn <- "identity view with nodes still on the page":
				default:
				}
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		s.ZoomIn()
		_, err := s.Execute(context.Background(), "(appendChild (createRectangle))")
		require.NoError(t, err)
		s.Reset()
	}
	close(stop)
	wg.Wait()

	select {
	case msg := <-torn:
		t.Fatal(msg)
	default:
	}
}
