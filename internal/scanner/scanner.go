package scanner

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/perspective"
	"github.com/ironsheep/docscan-mcp/internal/raster"
)

// Scanner runs the document pipeline with a fixed backend. It holds no
// per-image state and is safe for concurrent use.
type Scanner struct {
	backend Backend
	log     zerolog.Logger
}

// New returns a scanner using backend b.
func New(b Backend, log zerolog.Logger) *Scanner {
	return &Scanner{backend: b, log: log.With().Str("backend", b.Name).Logger()}
}

// Backend returns the backend the scanner was built with.
func (s *Scanner) Backend() Backend {
	return s.backend
}

// Result is the outcome of a full pipeline run.
type Result struct {
	Image     *raster.Buffer    `json:"-"`
	Corners   geom.Quad         `json:"corners"`
	Detection *detection.Result `json:"detection,omitempty"`
	Width     int               `json:"width"`
	Height    int               `json:"height"`
	Style     enhance.Style     `json:"style"`
	Recovered []*StageError     `json:"-"`
}

// RecoveredMessages returns Recovered as strings, for reporting.
func (r *Result) RecoveredMessages() []string {
	msgs := make([]string, 0, len(r.Recovered))
	for _, e := range r.Recovered {
		msgs = append(msgs, e.Error())
	}
	return msgs
}

// DetectCorners finds the document corners in src. A failed detection is
// not an error: the image frame is returned and the condition is listed in
// the returned StageErrors.
func (s *Scanner) DetectCorners(src *raster.Buffer, opts Options) (*detection.Result, []*StageError, error) {
	res, err := detection.DetectCorners(src, s.backend.Convolver, opts.detectionParams())
	if err != nil {
		return nil, nil, err
	}

	var recovered []*StageError
	if res.ParallelPairs > 0 {
		recovered = append(recovered, newStageError(StageDetect, ErrSingularSystem,
			"%d parallel line pairs skipped", res.ParallelPairs))
	}
	if res.Fallback {
		recovered = append(recovered, newStageError(StageDetect, ErrDegenerateInput,
			"%d corner candidates from %d lines, using image frame", len(res.Intersections), res.LineCount))
	}
	s.logRecovered(recovered)
	return res, recovered, nil
}

// Correct warps the quadrilateral corners of src to the configured output
// size, or to a size derived from the corners when opts.AutoSize is set.
func (s *Scanner) Correct(src *raster.Buffer, corners geom.Quad, opts Options) (*raster.Buffer, []*StageError, error) {
	w, h := opts.OutputWidth, opts.OutputHeight
	if opts.AutoSize {
		w, h = perspective.SuggestSize(corners)
	}
	if w <= 0 {
		w = perspective.DefaultWidth
	}
	if h <= 0 {
		h = perspective.DefaultHeight
	}

	out, report, err := perspective.Correct(src, corners, w, h, s.backend.Solver, s.backend.Warper)
	if err != nil {
		return nil, nil, err
	}

	var recovered []*StageError
	if report.Solve.Singular() {
		recovered = append(recovered, newStageError(StageSolve, ErrSingularSystem, "%s", report.Solve))
	}
	if n := report.Warp.Degenerate + report.Warp.OutOfBounds; n > 0 {
		recovered = append(recovered, newStageError(StageWarp, ErrOutOfBoundsSample,
			"%d degenerate, %d outside source of %d pixels", report.Warp.Degenerate, report.Warp.OutOfBounds, w*h))
	}
	s.logRecovered(recovered)
	return out, recovered, nil
}

// Enhance renders src in opts.Style.
func (s *Scanner) Enhance(src *raster.Buffer, opts Options) (*raster.Buffer, error) {
	return enhance.Apply(src, opts.Style, opts.enhanceOptions())
}

// Scan runs detection, correction and enhancement on src.
//
// Geometric trouble never fails a scan; it is collected in
// Result.Recovered. The errors returned are raster.ErrEmptyBuffer for
// unusable input and the context's error if ctx is already done.
func (s *Scanner) Scan(ctx context.Context, src *raster.Buffer, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	src, err := s.prepare(src, opts)
	if err != nil {
		return nil, err
	}

	det, recovered, err := s.DetectCorners(src, opts)
	if err != nil {
		return nil, err
	}
	res, err := s.finish(src, det.Corners, opts)
	if err != nil {
		return nil, err
	}
	res.Detection = det
	res.Recovered = append(recovered, res.Recovered...)
	return res, nil
}

// ScanWithCorners runs correction and enhancement with caller-supplied
// corners, skipping detection. Corners are in src coordinates, so
// MaxInputWidth is not applied.
func (s *Scanner) ScanWithCorners(ctx context.Context, src *raster.Buffer, corners geom.Quad, opts Options) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}
	return s.finish(src, corners, opts)
}

func (s *Scanner) prepare(src *raster.Buffer, opts Options) (*raster.Buffer, error) {
	if err := src.Validate(); err != nil {
		return nil, err
	}
	if opts.MaxInputWidth > 0 && src.Width > opts.MaxInputWidth {
		s.log.Debug().
			Int("width", src.Width).
			Int("max_width", opts.MaxInputWidth).
			Msg("Downscaling input")
		return raster.Downscale(src, opts.MaxInputWidth)
	}
	return src, nil
}

func (s *Scanner) finish(src *raster.Buffer, corners geom.Quad, opts Options) (*Result, error) {
	corrected, recovered, err := s.Correct(src, corners, opts)
	if err != nil {
		return nil, err
	}
	out, err := s.Enhance(corrected, opts)
	if err != nil {
		return nil, err
	}
	return &Result{
		Image:     out,
		Corners:   corners,
		Width:     out.Width,
		Height:    out.Height,
		Style:     opts.Style,
		Recovered: recovered,
	}, nil
}

func (s *Scanner) logRecovered(errs []*StageError) {
	for _, e := range errs {
		s.log.Debug().
			Str("stage", e.Stage).
			Err(e.Err).
			Str("details", e.Details).
			Msg("Recovered from pipeline condition")
	}
}
