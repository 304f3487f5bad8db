package scanner

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Session errors.
var (
	ErrUnknownSession = errors.New("unknown session")
	ErrUnknownCorner  = errors.New("unknown corner")
	ErrUnknownHandle  = errors.New("unknown crop handle")
	ErrUnknownMode    = errors.New("unknown apply mode")
)

// Crop geometry.
const (
	// MinCropSize is the smallest crop width or height, unless the image
	// itself is smaller.
	MinCropSize = 50.0
	// InitialCropMargin is the fraction of each dimension left outside the
	// initial crop rectangle on every side.
	InitialCropMargin = 0.1
)

// Crop handles. HandleMove drags the whole rectangle.
var cropHandles = map[string]bool{
	"n": true, "s": true, "e": true, "w": true,
	"ne": true, "nw": true, "se": true, "sw": true,
	HandleMove: true,
}

// HandleMove names the handle that translates the crop rectangle.
const HandleMove = "move"

// Apply modes.
const (
	ModePerspective = "perspective"
	ModeCrop        = "crop"
)

// CropRect is an axis-aligned selection in image coordinates.
type CropRect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Quad returns the rectangle's corners.
func (r CropRect) Quad() geom.Quad {
	return geom.Quad{
		{X: r.X, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y},
		{X: r.X + r.Width, Y: r.Y + r.Height},
		{X: r.X, Y: r.Y + r.Height},
	}
}

// Session holds the editable corners and crop rectangle for one image.
// All methods are safe for concurrent use.
type Session struct {
	ID      string
	Source  string
	Created time.Time

	image *raster.Buffer

	mu      sync.Mutex
	corners geom.Quad
	crop    CropRect
}

// SessionState is a snapshot of a session.
type SessionState struct {
	ID      string    `json:"session_id"`
	Source  string    `json:"source"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Corners geom.Quad `json:"corners"`
	Crop    CropRect  `json:"crop"`
}

// NewSession starts editing img with the given initial corners, which are
// clamped to the image. The crop rectangle starts inset by
// InitialCropMargin, but is never smaller than the minimum crop size; a
// rectangle widened to that minimum stays centred.
func NewSession(img *raster.Buffer, corners geom.Quad, source string) (*Session, error) {
	if err := img.Validate(); err != nil {
		return nil, err
	}
	w, h := float64(img.Width), float64(img.Height)
	for i := range corners {
		corners[i] = corners[i].Clamp(w, h)
	}
	x, cw := initialCropSpan(w)
	y, ch := initialCropSpan(h)
	return &Session{
		ID:      uuid.NewString(),
		Source:  source,
		Created: time.Now(),
		image:   img,
		corners: corners,
		crop:    CropRect{X: x, Y: y, Width: cw, Height: ch},
	}, nil
}

// initialCropSpan returns the start and length of the initial crop along
// one image dimension of the given size.
func initialCropSpan(size float64) (start, length float64) {
	margin := size * InitialCropMargin
	length = size - 2*margin
	if minLen := math.Min(MinCropSize, size); length < minLen {
		return (size - minLen) / 2, minLen
	}
	return margin, length
}

// Image returns the session's source image. Callers must not modify it.
func (s *Session) Image() *raster.Buffer {
	return s.image
}

// State returns a snapshot of the session.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionState{
		ID:      s.ID,
		Source:  s.Source,
		Width:   s.image.Width,
		Height:  s.image.Height,
		Corners: s.corners,
		Crop:    s.crop,
	}
}

// MoveCorner places the named corner at p, clamped to the image, and
// returns where it ended up.
func (s *Session) MoveCorner(name string, p geom.Point) (geom.Point, error) {
	idx := geom.CornerIndex(name)
	if idx < 0 {
		return geom.Point{}, fmt.Errorf("%w: %q", ErrUnknownCorner, name)
	}
	p = p.Clamp(float64(s.image.Width), float64(s.image.Height))

	s.mu.Lock()
	s.corners[idx] = p
	s.mu.Unlock()
	return p, nil
}

// DragCrop moves one edge, corner or, with HandleMove, the whole crop
// rectangle by (dx, dy). The rectangle never leaves the image and never
// gets smaller than MinCropSize, or the image size if that is smaller.
func (s *Session) DragCrop(handle string, dx, dy float64) (CropRect, error) {
	if !cropHandles[handle] {
		return CropRect{}, fmt.Errorf("%w: %q", ErrUnknownHandle, handle)
	}
	maxW, maxH := float64(s.image.Width), float64(s.image.Height)
	minW, minH := math.Min(MinCropSize, maxW), math.Min(MinCropSize, maxH)

	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.crop
	old := r

	// Edges that move the origin keep the opposite edge fixed.
	moveLeft := func() {
		r.X = clamp(r.X+dx, 0, old.X+old.Width-minW)
		r.Width = old.Width + (old.X - r.X)
	}
	moveTop := func() {
		r.Y = clamp(r.Y+dy, 0, old.Y+old.Height-minH)
		r.Height = old.Height + (old.Y - r.Y)
	}
	moveRight := func() {
		room := maxW - r.X
		r.Width = clamp(r.Width+dx, math.Min(minW, room), room)
	}
	moveBottom := func() {
		room := maxH - r.Y
		r.Height = clamp(r.Height+dy, math.Min(minH, room), room)
	}

	switch handle {
	case HandleMove:
		r.X = clamp(r.X+dx, 0, maxW-r.Width)
		r.Y = clamp(r.Y+dy, 0, maxH-r.Height)
	case "nw":
		moveLeft()
		moveTop()
	case "n":
		moveTop()
	case "ne":
		moveTop()
		moveRight()
	case "e":
		moveRight()
	case "se":
		moveRight()
		moveBottom()
	case "s":
		moveBottom()
	case "sw":
		moveLeft()
		moveBottom()
	case "w":
		moveLeft()
	}

	s.crop = r
	return r, nil
}

// Apply renders the session: ModePerspective warps the corners to an
// automatically sized rectangle, ModeCrop cuts out the crop rectangle.
// Either way the result is then enhanced with opts.Style.
func (s *Session) Apply(ctx context.Context, sc *Scanner, mode string, opts Options) (*Result, error) {
	state := s.State()

	switch mode {
	case "", ModePerspective:
		opts.AutoSize = true
		return sc.ScanWithCorners(ctx, s.image, state.Corners, opts)

	case ModeCrop:
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c := state.Crop
		rect := image.Rect(
			int(math.Round(c.X)), int(math.Round(c.Y)),
			int(math.Round(c.X+c.Width)), int(math.Round(c.Y+c.Height)),
		)
		cropped, err := raster.Crop(s.image, rect)
		if err != nil {
			return nil, err
		}
		out, err := sc.Enhance(cropped, opts)
		if err != nil {
			return nil, err
		}
		return &Result{
			Image:   out,
			Corners: c.Quad(),
			Width:   out.Width,
			Height:  out.Height,
			Style:   opts.Style,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}

// Sessions is a registry of open sessions keyed by ID.
type Sessions struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewSessions returns an empty registry.
func NewSessions() *Sessions {
	return &Sessions{sessions: make(map[string]*Session)}
}

// Add registers s.
func (r *Sessions) Add(s *Session) {
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()
}

// Get returns the session with the given ID.
func (r *Sessions) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return s, nil
}

// Close removes the session with the given ID.
func (r *Sessions) Close(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	delete(r.sessions, id)
	return nil
}

// Len returns the number of open sessions.
func (r *Sessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
