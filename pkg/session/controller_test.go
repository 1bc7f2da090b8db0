package session

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"dermascan-be/pkg/client"
	"dermascan-be/pkg/media"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUser = UserContext{UserID: "user-1", Token: "token-1"}

type fakeAnalyzer struct {
	mu       sync.Mutex
	analysis *client.Analysis
	err      error
	block    chan struct{}
	calls    int
}

func (a *fakeAnalyzer) AnalyzeAsset(ctx context.Context, _ client.Credentials, _ media.ImageAsset) (*client.Analysis, error) {
	a.mu.Lock()
	a.calls++
	block := a.block
	analysis, err := a.analysis, a.err
	a.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if analysis == nil {
		return nil, err
	}
	copied := *analysis
	return &copied, err
}

type sliceStream struct {
	chunks []string
	pos    int
	err    error
}

func (s *sliceStream) Next() bool {
	if s.pos >= len(s.chunks) {
		return false
	}
	s.pos++
	return true
}

func (s *sliceStream) Text() string { return s.chunks[s.pos-1] }
func (s *sliceStream) Err() error   { return s.err }
func (s *sliceStream) Close() error { return nil }

type fakeChatter struct {
	mu       sync.Mutex
	chunks   []string
	err      error
	midErr   error
	block    chan struct{}
	requests []client.ChatRequest
}

func (c *fakeChatter) Send(ctx context.Context, _ client.Credentials, chat client.ChatRequest) (client.TextStream, error) {
	c.mu.Lock()
	c.requests = append(c.requests, chat)
	block := c.block
	c.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if c.err != nil {
		return nil, c.err
	}
	return &sliceStream{chunks: c.chunks, err: c.midErr}, nil
}

type recorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *recorder) last() Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}
	}
	return r.items[len(r.items)-1]
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type stubDevice struct {
	err error
}

func (d stubDevice) Open(context.Context) (media.FrameSource, error) {
	if d.err != nil {
		return nil, d.err
	}
	return &stubSource{}, nil
}

type stubSource struct{}

func (stubSource) Frame() (image.Image, error) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.White)
	return img, nil
}

func (stubSource) Close() error { return nil }

func completedAnalysis() *client.Analysis {
	return &client.Analysis{
		ID:          uuid.NewString(),
		RawText:     "Mild irritation\nKeep the area clean.",
		SummaryLine: "Mild irritation",
		Confidence:  75,
		Persisted:   true,
	}
}

func writeImage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "arm.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())
	return path
}

func newTestController(analyzer *fakeAnalyzer, chatter *fakeChatter, notes *recorder, opts ...Option) *Controller {
	opts = append([]Option{WithNotifier(notes), WithDevice(stubDevice{})}, opts...)
	c := NewController(analyzer, chatter, opts...)
	c.SignIn(testUser)
	return c
}

// conversing drives c to Conversing with the default fakes.
func conversing(t *testing.T, c *Controller, path string) {
	t.Helper()
	require.NoError(t, c.SelectFile(path))
	_, err := c.Analyze(context.Background())
	require.NoError(t, err)
	require.NoError(t, c.StartChat())
}

func TestController_HappyPath(t *testing.T) {
	notes := &recorder{}
	chatter := &fakeChatter{chunks: []string{"Keep ", "it ", "clean."}}
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, chatter, notes)

	assert.Equal(t, ViewCapture, c.View())
	require.NoError(t, c.StartCamera(context.Background()))
	assert.True(t, c.Snapshot().CameraLive)
	require.NoError(t, c.CaptureFrame())
	assert.Equal(t, ViewAnalysis, c.View())
	assert.False(t, c.Snapshot().CameraLive)

	analysis, err := c.Analyze(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, analysis.ID)
	assert.Equal(t, Reviewing, c.State())
	assert.Equal(t, "Mild irritation", notes.last().Message)

	require.NoError(t, c.StartChat())
	assert.Equal(t, ViewChat, c.View())

	var deltas []string
	reply, err := c.SendMessage(context.Background(), "What should I do?", func(s string) { deltas = append(deltas, s) })
	require.NoError(t, err)
	assert.Equal(t, "Keep it clean.", reply)
	assert.Equal(t, []string{"Keep ", "it ", "clean."}, deltas)

	history := c.Snapshot().History
	require.Len(t, history, 2)
	assert.Equal(t, client.RoleUser, history[0].Role)
	assert.Equal(t, "Keep it clean.", history[1].Content)

	require.Len(t, chatter.requests, 1)
	assert.Equal(t, analysis.RawText, chatter.requests[0].AnalysisContext)
	assert.Equal(t, analysis.ID, chatter.requests[0].AnalysisID)
}

func TestController_ChatRateLimited(t *testing.T) {
	notes := &recorder{}
	chatter := &fakeChatter{chunks: []string{"ok"}}
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, chatter, notes)
	conversing(t, c, writeImage(t))

	_, err := c.SendMessage(context.Background(), "first", nil)
	require.NoError(t, err)

	chatter.err = &client.Error{Kind: client.KindRateLimit, Message: client.MessageRateLimited, Status: http.StatusTooManyRequests}
	_, err = c.SendMessage(context.Background(), "second", nil)
	assert.ErrorIs(t, err, client.ErrRateLimit)

	assert.Equal(t, Conversing, c.State())
	assert.Len(t, c.Snapshot().History, 2)
	assert.Equal(t, client.MessageRateLimited, notes.last().Message)
	assert.Equal(t, LevelError, notes.last().Level)

	chatter.err = &client.Error{Kind: client.KindQuota, Message: client.MessageQuota, Status: http.StatusPaymentRequired}
	_, err = c.SendMessage(context.Background(), "third", nil)
	assert.ErrorIs(t, err, client.ErrQuota)
	assert.Equal(t, client.MessageQuota, notes.last().Message)
	assert.Len(t, c.Snapshot().History, 2)
}

func TestController_MidStreamFailureAppendsNothing(t *testing.T) {
	notes := &recorder{}
	chatter := &fakeChatter{chunks: []string{"partial"}, midErr: &client.Error{Kind: client.KindTransport, Message: "upstream closed"}}
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, chatter, notes)
	conversing(t, c, writeImage(t))

	_, err := c.SendMessage(context.Background(), "hi", nil)
	assert.ErrorIs(t, err, client.ErrTransport)
	assert.Empty(t, c.Snapshot().History)
	assert.Equal(t, Conversing, c.State())
}

func TestController_BackClearsHistory(t *testing.T) {
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, &fakeChatter{chunks: []string{"ok"}}, &recorder{})
	conversing(t, c, writeImage(t))

	_, err := c.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Len(t, c.Snapshot().History, 2)

	c.Back()
	snap := c.Snapshot()
	assert.Equal(t, Reviewing, snap.State)
	assert.Empty(t, snap.History)
	require.NotNil(t, snap.Analysis)

	require.NoError(t, c.StartChat())
	assert.Empty(t, c.Snapshot().History)

	c.Back()
	c.Back()
	snap = c.Snapshot()
	assert.Equal(t, Capturing, snap.State)
	assert.Nil(t, snap.Analysis)
	assert.False(t, snap.HasImage)
}

func TestController_CameraDenied(t *testing.T) {
	notes := &recorder{}
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, &fakeChatter{}, notes, WithDevice(stubDevice{err: media.ErrPermissionDenied}))

	err := c.StartCamera(context.Background())
	var devErr *media.DeviceError
	require.True(t, errors.As(err, &devErr))
	assert.Equal(t, Capturing, c.State())
	assert.Equal(t, "Camera unavailable", notes.last().Title)

	require.NoError(t, c.SelectFile(writeImage(t)))
	assert.Equal(t, Reviewing, c.State())
}

func TestController_SilentSelection(t *testing.T) {
	notes := &recorder{}
	c := newTestController(&fakeAnalyzer{}, &fakeChatter{}, notes)

	err := c.SelectFile("")
	assert.Error(t, err)
	assert.Equal(t, 0, notes.count())
	assert.Equal(t, Capturing, c.State())
}

func TestController_ChatRequiresAnalysis(t *testing.T) {
	notes := &recorder{}
	analyzer := &fakeAnalyzer{err: &client.Error{Kind: client.KindModel, Message: "AI analysis failed: 500"}}
	c := newTestController(analyzer, &fakeChatter{}, notes)
	require.NoError(t, c.SelectFile(writeImage(t)))

	_, err := c.Analyze(context.Background())
	assert.ErrorIs(t, err, client.ErrModel)
	assert.Equal(t, "AI analysis failed: 500", notes.last().Message)
	assert.True(t, c.Snapshot().HasImage)

	assert.ErrorIs(t, c.StartChat(), ErrNoAnalysis)
	assert.Equal(t, Reviewing, c.State())
}

func TestController_PersistenceFailureStillChats(t *testing.T) {
	notes := &recorder{}
	local := completedAnalysis()
	local.Persisted = false
	analyzer := &fakeAnalyzer{analysis: local, err: &client.Error{Kind: client.KindPersistence, Message: "Failed to save analysis"}}
	chatter := &fakeChatter{chunks: []string{"ok"}}
	c := newTestController(analyzer, chatter, notes)
	require.NoError(t, c.SelectFile(writeImage(t)))

	a, err := c.Analyze(context.Background())
	assert.ErrorIs(t, err, client.ErrPersistence)
	require.NotNil(t, a)
	assert.Equal(t, "Not saved", notes.last().Title)

	require.NoError(t, c.StartChat())
	_, err = c.SendMessage(context.Background(), "hi", nil)
	require.NoError(t, err)
	assert.Empty(t, chatter.requests[0].AnalysisID)
	assert.Equal(t, local.RawText, chatter.requests[0].AnalysisContext)
}

func TestController_SignedOut(t *testing.T) {
	notes := &recorder{}
	c := NewController(&fakeAnalyzer{}, &fakeChatter{}, WithNotifier(notes))

	assert.Equal(t, ViewSignedOut, c.View())
	assert.ErrorIs(t, c.SelectFile(writeImage(t)), ErrSignedOut)
	assert.Equal(t, "Not signed in", notes.last().Title)

	c.SignIn(testUser)
	require.NoError(t, c.SelectFile(writeImage(t)))
	c.SignOut()
	assert.Equal(t, ViewSignedOut, c.View())
	assert.False(t, c.Snapshot().HasImage)
}

func TestController_OneChatInFlight(t *testing.T) {
	chatter := &fakeChatter{chunks: []string{"ok"}, block: make(chan struct{})}
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, chatter, &recorder{})
	conversing(t, c, writeImage(t))

	done := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), "first", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Snapshot().Chatting }, time.Second, 5*time.Millisecond)
	_, err := c.SendMessage(context.Background(), "second", nil)
	assert.ErrorIs(t, err, ErrChatInFlight)

	close(chatter.block)
	require.NoError(t, <-done)
	assert.Len(t, c.Snapshot().History, 2)
}

func TestController_BackCancelsChat(t *testing.T) {
	chatter := &fakeChatter{chunks: []string{"late"}, block: make(chan struct{})}
	c := newTestController(&fakeAnalyzer{analysis: completedAnalysis()}, chatter, &recorder{})
	conversing(t, c, writeImage(t))

	done := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), "hi", nil)
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Snapshot().Chatting }, time.Second, 5*time.Millisecond)
	c.Back()

	assert.ErrorIs(t, <-done, ErrStale)
	snap := c.Snapshot()
	assert.Equal(t, Reviewing, snap.State)
	assert.Empty(t, snap.History)
	assert.False(t, snap.Chatting)
}

func TestController_BackDiscardsLateAnalysis(t *testing.T) {
	analyzer := &fakeAnalyzer{analysis: completedAnalysis(), block: make(chan struct{})}
	c := newTestController(analyzer, &fakeChatter{}, &recorder{})
	require.NoError(t, c.SelectFile(writeImage(t)))

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		done <- err
	}()

	require.Eventually(t, func() bool { return c.Snapshot().Analyzing }, time.Second, 5*time.Millisecond)
	c.Back()

	assert.ErrorIs(t, <-done, ErrStale)
	snap := c.Snapshot()
	assert.Equal(t, Capturing, snap.State)
	assert.Nil(t, snap.Analysis)
}

func TestController_ChatWaitsForReanalysis(t *testing.T) {
	first := completedAnalysis()
	analyzer := &fakeAnalyzer{analysis: first}
	chatter := &fakeChatter{chunks: []string{"ok"}, block: make(chan struct{})}
	notes := &recorder{}
	c := newTestController(analyzer, chatter, notes)
	require.NoError(t, c.SelectFile(writeImage(t)))
	_, err := c.Analyze(context.Background())
	require.NoError(t, err)

	release := make(chan struct{})
	analyzer.mu.Lock()
	analyzer.block = release
	second := completedAnalysis()
	second.RawText = "Different diagnosis"
	analyzer.analysis = second
	analyzer.mu.Unlock()

	analyzed := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		analyzed <- err
	}()
	require.Eventually(t, func() bool { return c.Snapshot().Analyzing }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, c.StartChat(), ErrBusy)
	assert.Equal(t, Reviewing, c.State())
	assert.Equal(t, "Please wait", notes.last().Title)

	close(release)
	require.NoError(t, <-analyzed)
	assert.Equal(t, "Different diagnosis", c.Snapshot().Analysis.RawText)

	require.NoError(t, c.StartChat())
	chatted := make(chan error, 1)
	go func() {
		_, err := c.SendMessage(context.Background(), "hi", nil)
		chatted <- err
	}()
	require.Eventually(t, func() bool { return c.Snapshot().Chatting }, time.Second, 5*time.Millisecond)

	c.Back()
	select {
	case err := <-chatted:
		assert.ErrorIs(t, err, ErrStale)
	case <-time.After(time.Second):
		t.Fatal("chat kept running after Back")
	}
	assert.Equal(t, "Different diagnosis", c.Snapshot().Analysis.RawText)
}

func TestController_LateAnalysisAfterLeavingReview(t *testing.T) {
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{analysis: completedAnalysis(), block: release}
	c := newTestController(analyzer, &fakeChatter{}, &recorder{})
	require.NoError(t, c.SelectFile(writeImage(t)))

	done := make(chan error, 1)
	go func() {
		_, err := c.Analyze(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool { return c.Snapshot().Analyzing }, time.Second, 5*time.Millisecond)

	c.Restart()
	close(release)
	assert.ErrorIs(t, <-done, ErrStale)
	assert.Nil(t, c.Snapshot().Analysis)
	assert.Equal(t, Capturing, c.State())
}

func TestController_SnapshotIsACopy(t *testing.T) {
	a := completedAnalysis()
	a.Extra = map[string]any{"severity": "mild"}
	c := newTestController(&fakeAnalyzer{analysis: a}, &fakeChatter{}, &recorder{})
	require.NoError(t, c.SelectFile(writeImage(t)))
	_, err := c.Analyze(context.Background())
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Analysis.Extra["severity"] = "severe"
	assert.Equal(t, "mild", c.Snapshot().Analysis.Extra["severity"])
}

// TestController_TransitionFuzz drives random operation sequences and checks
// that Conversing is never reached without a completed analysis.
func TestController_TransitionFuzz(t *testing.T) {
	path := writeImage(t)
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		analyzer := &fakeAnalyzer{analysis: completedAnalysis()}
		if rng.Intn(3) == 0 {
			analyzer = &fakeAnalyzer{err: &client.Error{Kind: client.KindModel}}
		}
		chatter := &fakeChatter{chunks: []string{"a", "b"}}
		if rng.Intn(4) == 0 {
			chatter.err = &client.Error{Kind: client.KindRateLimit}
		}
		c := newTestController(analyzer, chatter, &recorder{})

		for step := 0; step < 30; step++ {
			switch rng.Intn(10) {
			case 0:
				_ = c.StartCamera(context.Background())
			case 1:
				_ = c.CaptureFrame()
			case 2:
				_ = c.SelectFile(path)
			case 3:
				_, _ = c.Analyze(context.Background())
			case 4:
				_ = c.StartChat()
			case 5:
				_, _ = c.SendMessage(context.Background(), "hi", nil)
			case 6:
				c.Back()
			case 7:
				c.StopCamera()
			case 8:
				c.SignOut()
			case 9:
				c.SignIn(testUser)
			}

			snap := c.Snapshot()
			if snap.State == Conversing {
				require.NotNil(t, snap.Analysis, "run %d step %d", run, step)
				require.NotEmpty(t, snap.Analysis.ID, "run %d step %d", run, step)
			}
			if snap.State != Capturing {
				require.True(t, snap.HasImage, "run %d step %d", run, step)
				require.False(t, snap.CameraLive, "run %d step %d", run, step)
			}
			require.Zero(t, len(snap.History)%2, "run %d step %d", run, step)
		}
	}
}
