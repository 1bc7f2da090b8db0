// Package session drives one user's capture → analysis → chat flow.
package session

import (
	"context"
	"errors"
	"strings"
	"sync"

	"dermascan-be/internal/pkg/logger"
	"dermascan-be/pkg/client"
	"dermascan-be/pkg/media"
)

// State is the controller's position in the flow.
type State int

const (
	Capturing State = iota
	Reviewing
	Conversing
)

func (s State) String() string {
	switch s {
	case Capturing:
		return "capturing"
	case Reviewing:
		return "reviewing"
	case Conversing:
		return "conversing"
	default:
		return "unknown"
	}
}

// View is the screen shown for the current state.
type View string

const (
	ViewSignedOut View = "signed_out"
	ViewCapture   View = "capture"
	ViewAnalysis  View = "analysis"
	ViewChat      View = "chat"
)

var (
	ErrSignedOut    = errors.New("not signed in")
	ErrWrongState   = errors.New("operation not allowed in current state")
	ErrNoAnalysis   = errors.New("no completed analysis")
	ErrNoImage      = errors.New("no image to analyze")
	ErrNoCamera     = errors.New("camera is not running")
	ErrChatInFlight = errors.New("a reply is already in progress")
	ErrBusy         = errors.New("analysis already in progress")
	ErrEmptyMessage = errors.New("message is empty")
	// ErrStale is returned when the user navigated away before a call finished.
	ErrStale = errors.New("result discarded after navigation")
)

// UserContext is the signed-in identity.
type UserContext struct {
	UserID string
	Token  string
}

func (u UserContext) credentials() client.Credentials {
	return client.Credentials{UserID: u.UserID, Token: u.Token}
}

// Analyzer runs and persists an analysis. A non-nil analysis with a
// persistence error is still usable.
type Analyzer interface {
	AnalyzeAsset(ctx context.Context, user client.Credentials, asset media.ImageAsset) (*client.Analysis, error)
}

// Chatter opens a reply stream.
type Chatter interface {
	Send(ctx context.Context, user client.Credentials, chat client.ChatRequest) (client.TextStream, error)
}

// ChatClientAdapter lets *client.ChatClient satisfy Chatter.
type ChatClientAdapter struct {
	Client *client.ChatClient
}

func (a ChatClientAdapter) Send(ctx context.Context, user client.Credentials, chat client.ChatRequest) (client.TextStream, error) {
	s, err := a.Client.Send(ctx, user, chat)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	State      State
	View       View
	SignedIn   bool
	HasImage   bool
	CameraLive bool
	Analyzing  bool
	Chatting   bool
	Analysis   *client.Analysis
	History    []client.Message
}

// Controller is safe for concurrent use. Its lock is never held across a
// network call or a camera operation that may block.
type Controller struct {
	analyzer Analyzer
	chatter  Chatter
	device   media.Device
	notifier Notifier
	logger   logger.ILogger

	mu        sync.Mutex
	user      *UserContext
	state     State
	asset     *media.ImageAsset
	analysis  *client.Analysis
	history   []client.Message
	capture   *media.LiveCapture
	epoch     uint64
	analyzing bool
	chatting  bool

	analyzeCancel context.CancelFunc
	chatCancel    context.CancelFunc
}

type Option func(*Controller)

func WithDevice(d media.Device) Option {
	return func(c *Controller) { c.device = d }
}

func WithNotifier(n Notifier) Option {
	return func(c *Controller) { c.notifier = n }
}

func WithLogger(l logger.ILogger) Option {
	return func(c *Controller) { c.logger = l }
}

func NewController(analyzer Analyzer, chatter Chatter, opts ...Option) *Controller {
	c := &Controller{
		analyzer: analyzer,
		chatter:  chatter,
		notifier: NotifierFunc(func(Notification) {}),
		logger:   logger.NewNopLogger(),
		state:    Capturing,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SignIn installs the user and starts a fresh session.
func (c *Controller) SignIn(user UserContext) {
	c.mu.Lock()
	camera := c.resetLocked()
	c.user = &user
	c.mu.Unlock()

	_ = camera.Stop()
	c.logger.Info("SESSION", "Signed in", map[string]interface{}{"user_id": user.UserID})
}

// SignOut drops the user and everything captured under it.
func (c *Controller) SignOut() {
	c.mu.Lock()
	camera := c.resetLocked()
	c.user = nil
	c.mu.Unlock()

	_ = camera.Stop()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		State:      c.state,
		View:       c.viewLocked(),
		SignedIn:   c.user != nil,
		HasImage:   c.asset != nil,
		CameraLive: c.capture != nil,
		Analyzing:  c.analyzing,
		Chatting:   c.chatting,
		History:    append([]client.Message(nil), c.history...),
	}
	if c.analysis != nil {
		a := c.analysis.Clone()
		s.Analysis = &a
	}
	return s
}

// StartCamera opens the camera, replacing any running feed.
func (c *Controller) StartCamera(ctx context.Context) error {
	c.mu.Lock()
	if err := c.requireLocked(Capturing); err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	previous := c.capture
	c.capture = nil
	epoch := c.epoch
	c.mu.Unlock()

	_ = previous.Stop()

	capture, err := media.StartLiveCapture(ctx, c.device)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if c.epoch != epoch || c.state != Capturing || c.capture != nil {
		c.mu.Unlock()
		_ = capture.Stop()
		return ErrStale
	}
	c.capture = capture
	c.mu.Unlock()
	return nil
}

// StopCamera releases the camera if it is running.
func (c *Controller) StopCamera() {
	c.mu.Lock()
	capture := c.capture
	c.capture = nil
	c.mu.Unlock()

	_ = capture.Stop()
}

// CaptureFrame takes a frame from the running camera and moves to Reviewing.
// The camera is released whether or not the capture succeeds.
func (c *Controller) CaptureFrame() error {
	c.mu.Lock()
	if err := c.requireLocked(Capturing); err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	capture := c.capture
	c.capture = nil
	c.mu.Unlock()

	if capture == nil {
		return c.fail(ErrNoCamera)
	}

	asset, err := capture.CaptureFrame()
	_ = capture.Stop()
	if err != nil {
		return c.fail(err)
	}

	return c.acquired(asset)
}

// SelectFile loads a gallery image and moves to Reviewing. A dismissed picker
// (empty path) is ignored silently.
func (c *Controller) SelectFile(path string) error {
	c.mu.Lock()
	if err := c.requireLocked(Capturing); err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	c.mu.Unlock()

	asset, err := media.SelectFromFile(path)
	if err != nil {
		return c.fail(err)
	}

	c.StopCamera()
	return c.acquired(asset)
}

func (c *Controller) acquired(asset media.ImageAsset) error {
	c.mu.Lock()
	if c.user == nil || c.state != Capturing {
		c.mu.Unlock()
		return ErrStale
	}
	c.asset = &asset
	c.analysis = nil
	c.state = Reviewing
	c.mu.Unlock()
	return nil
}

// Analyze sends the current image for analysis. The view stays on Reviewing
// and holds the completed Analysis.
func (c *Controller) Analyze(ctx context.Context) (*client.Analysis, error) {
	c.mu.Lock()
	if err := c.requireLocked(Reviewing); err != nil {
		c.mu.Unlock()
		return nil, c.fail(err)
	}
	if c.asset == nil {
		c.mu.Unlock()
		return nil, c.fail(ErrNoImage)
	}
	if c.analyzing {
		c.mu.Unlock()
		return nil, c.fail(ErrBusy)
	}
	asset := *c.asset
	user := *c.user
	epoch := c.epoch
	ctx, cancel := context.WithCancel(ctx)
	c.analyzeCancel = cancel
	c.analyzing = true
	c.mu.Unlock()

	analysis, err := c.analyzer.AnalyzeAsset(ctx, user.credentials(), asset)
	cancel()

	c.mu.Lock()
	if c.epoch != epoch || c.state != Reviewing {
		c.mu.Unlock()
		return nil, ErrStale
	}
	c.analyzing = false
	c.analyzeCancel = nil
	usable := analysis != nil && analysis.ID != ""
	if usable {
		a := analysis.Clone()
		c.analysis = &a
	}
	c.mu.Unlock()

	if err != nil {
		c.fail(err)
		if !usable {
			return nil, err
		}
		return analysis, err
	}

	c.notifier.Notify(Notification{Level: LevelInfo, Title: "Analysis complete", Message: analysis.SummaryLine})
	return analysis, nil
}

// StartChat enters Conversing with an empty history seeded by the analysis.
func (c *Controller) StartChat() error {
	c.mu.Lock()
	if err := c.requireLocked(Reviewing); err != nil {
		c.mu.Unlock()
		return c.fail(err)
	}
	if c.analyzing {
		c.mu.Unlock()
		return c.fail(ErrBusy)
	}
	if c.analysis == nil || c.analysis.ID == "" {
		c.mu.Unlock()
		return c.fail(ErrNoAnalysis)
	}
	c.history = nil
	c.state = Conversing
	c.mu.Unlock()
	return nil
}

// SendMessage sends text and relays the reply through onDelta. Both turns are
// appended to the history only once the reply is complete.
func (c *Controller) SendMessage(ctx context.Context, text string, onDelta func(string)) (string, error) {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	if err := c.requireLocked(Conversing); err != nil {
		c.mu.Unlock()
		return "", c.fail(err)
	}
	if c.chatting {
		c.mu.Unlock()
		return "", ErrChatInFlight
	}
	if text == "" {
		c.mu.Unlock()
		return "", ErrEmptyMessage
	}

	userTurn := client.Message{Role: client.RoleUser, Content: text}
	messages := append(append([]client.Message(nil), c.history...), userTurn)
	chat := client.ChatRequest{
		Messages:        messages,
		AnalysisContext: c.analysis.RawText,
	}
	if c.analysis.Persisted {
		chat.AnalysisID = c.analysis.ID
	}
	user := *c.user
	epoch := c.epoch
	ctx, cancel := context.WithCancel(ctx)
	c.chatCancel = cancel
	c.chatting = true
	c.mu.Unlock()

	reply, err := c.streamReply(ctx, user, chat, epoch, onDelta)
	cancel()

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return "", ErrStale
	}
	c.chatting = false
	c.chatCancel = nil
	if err == nil {
		c.history = append(c.history, userTurn, client.Message{Role: client.RoleAssistant, Content: reply})
	}
	c.mu.Unlock()

	if err != nil {
		return "", c.fail(err)
	}
	return reply, nil
}

func (c *Controller) streamReply(ctx context.Context, user UserContext, chat client.ChatRequest, epoch uint64, onDelta func(string)) (string, error) {
	stream, err := c.chatter.Send(ctx, user.credentials(), chat)
	if err != nil {
		return "", err
	}

	return client.Collect(stream, func(delta string) {
		if onDelta != nil && c.currentEpoch() == epoch {
			onDelta(delta)
		}
	})
}

// Back moves one step toward Capturing, cancelling whatever is in flight.
func (c *Controller) Back() {
	c.mu.Lock()
	var camera *media.LiveCapture
	switch c.state {
	case Conversing:
		c.invalidateLocked()
		c.history = nil
		c.state = Reviewing
	case Reviewing:
		c.invalidateLocked()
		c.asset = nil
		c.analysis = nil
		c.history = nil
		c.state = Capturing
	case Capturing:
		camera = c.capture
		c.capture = nil
	}
	c.mu.Unlock()

	_ = camera.Stop()
}

// Restart returns to Capturing from anywhere, keeping the user signed in.
func (c *Controller) Restart() {
	c.mu.Lock()
	camera := c.resetLocked()
	c.mu.Unlock()

	_ = camera.Stop()
}

func (c *Controller) currentEpoch() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch
}

func (c *Controller) viewLocked() View {
	if c.user == nil {
		return ViewSignedOut
	}
	switch c.state {
	case Reviewing:
		return ViewAnalysis
	case Conversing:
		return ViewChat
	default:
		return ViewCapture
	}
}

func (c *Controller) requireLocked(state State) error {
	if c.user == nil {
		return ErrSignedOut
	}
	if c.state != state {
		return ErrWrongState
	}
	return nil
}

// invalidateLocked cancels the in-flight call and orphans its result.
func (c *Controller) invalidateLocked() {
	c.epoch++
	for _, cancel := range []context.CancelFunc{c.analyzeCancel, c.chatCancel} {
		if cancel != nil {
			cancel()
		}
	}
	c.analyzeCancel = nil
	c.chatCancel = nil
	c.analyzing = false
	c.chatting = false
}

// resetLocked clears the session and hands back the camera to stop.
func (c *Controller) resetLocked() *media.LiveCapture {
	c.invalidateLocked()
	camera := c.capture
	c.capture = nil
	c.asset = nil
	c.analysis = nil
	c.history = nil
	c.state = Capturing
	return camera
}

// fail notifies about err unless it is silent, and returns it.
func (c *Controller) fail(err error) error {
	if media.IsSilent(err) {
		return err
	}

	title, message := describe(err)
	c.logger.Warn("SESSION", title, map[string]interface{}{"error": err.Error()})
	c.notifier.Notify(Notification{Level: LevelError, Title: title, Message: message, Err: err})
	return err
}
