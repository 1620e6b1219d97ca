// Package client is a headless board participant. It keeps a rendered
// copy of a room in sync with the host and can draw on it.
package client

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"CollabBoard/internal/canvas"
	"CollabBoard/internal/export"
	"CollabBoard/internal/logging"
	boardnet "CollabBoard/internal/net"
	"CollabBoard/internal/reconcile"
	"CollabBoard/internal/state"
)

// ErrNotJoined is returned by drawing calls made before the room state
// arrived.
var ErrNotJoined = errors.New("not joined")

const writeWait = 10 * time.Second

// Options configure a participant.
type Options struct {
	Room string
	Name string
	// Size is the local canvas in pixels.
	Size canvas.Size
	// PartialInterval spaces live stroke updates.
	PartialInterval time.Duration
	CursorTTL       time.Duration
	MinMotion       float64
	MaxPoints       int
	Logger          *zap.Logger
}

func (o *Options) norm() {
	if o.Size.Width <= 0 || o.Size.Height <= 0 {
		o.Size = canvas.Size{Width: 1024, Height: 768}
	}
	if o.PartialInterval <= 0 {
		o.PartialInterval = 60 * time.Millisecond
	}
	if o.CursorTTL <= 0 {
		o.CursorTTL = 3 * time.Second
	}
	if o.MinMotion <= 0 {
		o.MinMotion = state.DefaultMinMotion
	}
	if o.MaxPoints <= 0 {
		o.MaxPoints = state.DefaultLimits().MaxPoints
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
}

// Client is one connection to a host.
type Client struct {
	opts   Options
	logger *zap.Logger
	conn   *websocket.Conn

	writeMu sync.Mutex

	raster  *canvas.Raster
	engine  *reconcile.Engine
	cursors *CursorTracker

	drawMu    sync.Mutex
	assembler *state.Assembler
	partials  rate.Sometimes

	mu     sync.RWMutex
	self   state.UserInfo
	users  []state.UserInfo
	joined bool

	ready     chan struct{}
	readyOnce sync.Once
	pongs     chan struct{}
	done      chan struct{}
	readErr   error
}

// Dial connects to a host websocket URL and starts reading. Call Join
// next.
func Dial(ctx context.Context, url string, opts Options) (*Client, error) {
	opts.norm()
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "dialing %s", url)
	}
	r := canvas.NewRaster(opts.Size.Width, opts.Size.Height)
	c := &Client{
		opts:      opts,
		logger:    opts.Logger.Named("client"),
		conn:      conn,
		raster:    r,
		cursors:   NewCursorTracker(opts.CursorTTL),
		assembler: state.NewAssembler("", nil, opts.MinMotion, opts.MaxPoints),
		partials:  rate.Sometimes{Interval: opts.PartialInterval},
		ready:     make(chan struct{}),
		pongs:     make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	c.engine = reconcile.NewEngine(r, c.logger)
	c.assembler.OnDraw = c.engine.DrawLocal
	go c.readLoop()
	return c, nil
}

// Join enters the configured room and waits for its state.
func (c *Client) Join(ctx context.Context) (state.FullState, error) {
	if err := c.send(state.EventJoin, state.JoinRequest{RoomID: c.opts.Room, UserName: c.opts.Name}); err != nil {
		return state.FullState{}, err
	}
	select {
	case <-c.ready:
	case <-c.done:
		return state.FullState{}, errors.Wrap(c.readErr, "connection lost before join")
	case <-ctx.Done():
		return state.FullState{}, ctx.Err()
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return state.FullState{SelfID: c.self.ID, SelfColor: c.self.Color, Users: c.users, Operations: c.engine.Log()}, nil
}

func (c *Client) send(typ string, data any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteJSON(state.Message{Type: typ, Data: data}); err != nil {
		return errors.Wrapf(err, "sending %s", typ)
	}
	return nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			c.readErr = err
			return
		}
		env, err := boardnet.Decode(frame)
		if err != nil {
			c.logger.Debug("bad frame", zap.Error(err))
			continue
		}
		if err := c.handle(env); err != nil {
			c.logger.Debug("bad payload", zap.String("type", env.Type), zap.Error(err))
		}
	}
}

func (c *Client) handle(env boardnet.Envelope) error {
	switch env.Type {
	case state.EventFullState:
		var fs state.FullState
		if err := env.DecodeInto(&fs); err != nil {
			return err
		}
		c.engine.Rebuild(fs.Operations)
		c.mu.Lock()
		c.self = state.UserInfo{ID: fs.SelfID, Color: fs.SelfColor, Name: c.opts.Name}
		c.users = fs.Users
		c.joined = true
		c.mu.Unlock()
		c.drawMu.Lock()
		c.assembler.AuthorID = fs.SelfID
		c.drawMu.Unlock()
		c.readyOnce.Do(func() { close(c.ready) })
		c.logger.Info("joined", logging.User(fs.SelfID), zap.Int("operations", len(fs.Operations)))

	case state.EventUserList:
		var users []state.UserInfo
		if err := env.DecodeInto(&users); err != nil {
			return err
		}
		present := make(map[string]struct{}, len(users))
		for _, u := range users {
			present[u.ID] = struct{}{}
		}
		present[c.Self().ID] = struct{}{}
		c.engine.DiscardAuthors(present)
		c.cursors.Retain(present)
		c.mu.Lock()
		c.users = users
		c.mu.Unlock()

	case state.EventOpNew:
		var e state.LogEntry
		if err := env.DecodeInto(&e); err != nil {
			return err
		}
		c.engine.ApplyCommitted(e)

	case state.EventPartial:
		s, err := boardnet.DecodeStroke(env.Data)
		if err != nil {
			return err
		}
		if s.AuthorID == c.Self().ID {
			return nil
		}
		c.engine.ApplyPartial(s)

	case state.EventCursor:
		var cur state.Cursor
		if err := env.DecodeInto(&cur); err != nil {
			return err
		}
		c.cursors.Update(cur)

	case state.EventPong:
		select {
		case c.pongs <- struct{}{}:
		default:
		}
	}
	return nil
}

func (c *Client) checkJoined() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.joined {
		return ErrNotJoined
	}
	return nil
}

// BeginStroke starts a gesture at local pixel (x, y) and announces it. A
// gesture still open is committed first.
func (c *Client) BeginStroke(tool state.Tool, color string, width, x, y float64) error {
	return c.begin(tool, color, width, x, y)
}

// BeginText places a text stroke. Text and image strokes are single-point
// gestures; EndStroke commits them.
func (c *Client) BeginText(color, text string, x, y float64) error {
	return c.begin(state.ToolText, color, 0, x, y, func(s *state.Stroke) { s.Text = text })
}

// BeginImage places an image given as a base64 data URL.
func (c *Client) BeginImage(dataURL string, x, y float64) error {
	return c.begin(state.ToolImage, "", 0, x, y, func(s *state.Stroke) { s.ImageSrc = dataURL })
}

func (c *Client) begin(tool state.Tool, color string, width, x, y float64, opts ...func(*state.Stroke)) error {
	if err := c.checkJoined(); err != nil {
		return err
	}
	c.drawMu.Lock()
	if open, ok := c.assembler.Finalize(); ok {
		if err := c.sendFinal(open); err != nil {
			c.drawMu.Unlock()
			return err
		}
	}
	s := c.assembler.Begin(tool, color, width, x, y, opts...)
	c.drawMu.Unlock()
	return c.sendPartial(s)
}

// MoveTo extends the gesture. Live updates go out at most once per
// partial interval; the final stroke carries every point regardless.
func (c *Client) MoveTo(x, y float64) error {
	if err := c.checkJoined(); err != nil {
		return err
	}
	c.drawMu.Lock()
	s, ok := c.assembler.Extend(x, y)
	c.drawMu.Unlock()
	if !ok {
		return nil
	}
	var err error
	c.partials.Do(func() { err = c.sendPartial(s) })
	return err
}

func (c *Client) sendPartial(s state.Stroke) error {
	return c.send(state.EventPartial, state.StrokeMessage{Stroke: c.opts.Size.SharedStroke(s)})
}

// EndStroke commits the gesture. It is a no-op when none is open.
func (c *Client) EndStroke() error {
	if err := c.checkJoined(); err != nil {
		return err
	}
	c.drawMu.Lock()
	defer c.drawMu.Unlock()
	s, ok := c.assembler.Finalize()
	if !ok {
		return nil
	}
	return c.sendFinal(s)
}

func (c *Client) sendFinal(s state.Stroke) error {
	return c.send(state.EventFinal, state.StrokeMessage{Stroke: c.opts.Size.SharedStroke(s)})
}

// Undo asks the host to hide the newest visible stroke of the room.
func (c *Client) Undo() error {
	if err := c.checkJoined(); err != nil {
		return err
	}
	return c.send(state.EventUndo, struct{}{})
}

// Redo asks the host to restore the newest undone stroke.
func (c *Client) Redo() error {
	if err := c.checkJoined(); err != nil {
		return err
	}
	return c.send(state.EventRedo, struct{}{})
}

// MoveCursor shares the local pointer position.
func (c *Client) MoveCursor(x, y float64) error {
	if err := c.checkJoined(); err != nil {
		return err
	}
	p := c.opts.Size.ToShared(state.Abs(x, y, 0))
	return c.send(state.EventCursor, state.Cursor{X: p.X, Y: p.Y})
}

// Ping measures a round trip to the host.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.send(state.EventPing, nil); err != nil {
		return 0, err
	}
	select {
	case <-c.pongs:
		return time.Since(start), nil
	case <-c.done:
		return 0, errors.Wrap(c.readErr, "connection lost")
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// Self is the local participant as assigned by the host.
func (c *Client) Self() state.UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// Users is the last roster received.
func (c *Client) Users() []state.UserInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]state.UserInfo(nil), c.users...)
}

// Cursors returns the peers' pointers that are not stale.
func (c *Client) Cursors() map[string]state.Cursor { return c.cursors.Active() }

// Frame copies the local rendering of the board.
func (c *Client) Frame() *image.RGBA {
	img, _ := c.engine.Frame()
	return img
}

// Engine exposes the reconciliation state.
func (c *Client) Engine() *reconcile.Engine { return c.engine }

// Export writes the committed board to a .pdf or .png file.
func (c *Client) Export(path string) error {
	return export.WriteFile(path, c.engine.Log(), c.opts.Size)
}

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close says goodbye and drops the connection.
func (c *Client) Close() error {
	c.writeMu.Lock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	c.writeMu.Unlock()
	select {
	case <-c.done:
	case <-time.After(time.Second):
	}
	return c.conn.Close()
}
