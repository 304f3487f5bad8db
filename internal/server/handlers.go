package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	stdimaging "github.com/disintegration/imaging"

	"github.com/ironsheep/docscan-mcp/internal/detection"
	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/imaging"
	"github.com/ironsheep/docscan-mcp/internal/perspective"
	"github.com/ironsheep/docscan-mcp/internal/raster"
	"github.com/ironsheep/docscan-mcp/internal/scanner"
)

// Edge map defaults, higher than the corner detector's so that only strong
// structure shows.
const (
	DefaultEdgeMapLow  = 75.0
	DefaultEdgeMapHigh = 200.0
)

// DefaultOverlayThickness is the outline width of document_preview_corners.
const DefaultOverlayThickness = 3

var errMissingPath = errors.New("path is required")

// ToolCallParams represents the parameters for a tools/call MCP request.
type ToolCallParams struct {
	// Name is the tool to invoke (e.g., "document_scan").
	Name string `json:"name"`

	// Arguments contains the tool-specific parameters as JSON.
	Arguments json.RawMessage `json:"arguments"`

	// Meta carries the optional progress token for long-running tools.
	Meta *struct {
		ProgressToken interface{} `json:"progressToken,omitempty"`
	} `json:"_meta,omitempty"`
}

// toolCall is the per-call state handed to tool handlers.
type toolCall struct {
	ctx           context.Context
	args          json.RawMessage
	progressToken interface{}
}

// handleToolsCall processes a tools/call request and executes the specified tool.
//
// The response wraps the tool result in MCP's content format:
//
//	{
//	  "content": [{"type": "text", "text": "<JSON result>"}]
//	}
//
// Tool execution errors return a JSON-RPC error response with code -32000.
func (s *Server) handleToolsCall(ctx context.Context, req *MCPRequest) *MCPResponse {
	var params ToolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return s.errorResponse(req.ID, codeInvalidParams, "Invalid params", err.Error())
	}

	call := toolCall{ctx: ctx, args: params.Arguments}
	if params.Meta != nil {
		call.progressToken = params.Meta.ProgressToken
	}

	result, err := s.executeTool(params.Name, call)
	if err != nil {
		s.log.Warn().Err(err).Str("tool", params.Name).Msg("Tool failed")
		return s.errorResponse(req.ID, codeToolFailed, "Tool execution failed", err.Error())
	}

	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"content": []map[string]interface{}{
				{
					"type": "text",
					"text": mustMarshalJSON(result),
				},
			},
		},
	}
}

// executeTool dispatches tool execution to the appropriate handler function.
func (s *Server) executeTool(name string, call toolCall) (interface{}, error) {
	switch name {
	// Document Information
	case "document_load":
		return s.handleDocumentLoad(call)

	// Detection
	case "document_detect_corners":
		return s.handleDetectCorners(call)
	case "document_edge_map":
		return s.handleEdgeMap(call)
	case "document_preview_corners":
		return s.handlePreviewCorners(call)

	// Correction
	case "document_correct":
		return s.handleCorrect(call)
	case "document_enhance":
		return s.handleEnhance(call)
	case "document_scan":
		return s.handleScan(call)
	case "document_rotate":
		return s.handleRotate(call)
	case "document_scan_batch":
		return s.handleScanBatch(call)

	// Interactive Sessions
	case "session_open":
		return s.handleSessionOpen(call)
	case "session_move_corner":
		return s.handleSessionMoveCorner(call)
	case "session_crop":
		return s.handleSessionCrop(call)
	case "session_apply":
		return s.handleSessionApply(call)
	case "session_close":
		return s.handleSessionClose(call)

	default:
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
}

// mustMarshalJSON converts a value to pretty-printed JSON string.
// On marshal failure it returns an empty string.
func mustMarshalJSON(v interface{}) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}

// decodeArgs unmarshals tool arguments. Missing arguments decode as an
// empty object.
func decodeArgs(args json.RawMessage, v interface{}) error {
	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func (s *Server) load(path string) (*raster.Buffer, error) {
	if path == "" {
		return nil, errMissingPath
	}
	return s.cache.Load(path)
}

// parseCorners validates caller-supplied corners. nil means "detect".
func parseCorners(pts []geom.Point) (*geom.Quad, error) {
	if pts == nil {
		return nil, nil
	}
	if len(pts) != 4 {
		return nil, fmt.Errorf("corners: got %d points, want 4", len(pts))
	}
	var q geom.Quad
	copy(q[:], pts)
	return &q, nil
}

// encoded is the image part of a tool result: either base64 data or the
// path that was written.
type encoded struct {
	*raster.EncodedImage
	OutputPath string `json:"output_path,omitempty"`
}

// output writes b to outputPath if one is given, otherwise encodes it as
// base64 in format.
func (s *Server) output(b *raster.Buffer, outputPath string, format stdimaging.Format) (*encoded, error) {
	if outputPath != "" {
		if err := raster.Save(b, outputPath, s.quality); err != nil {
			return nil, err
		}
		return &encoded{
			EncodedImage: &raster.EncodedImage{Width: b.Width, Height: b.Height, MimeType: mimeFor(outputPath)},
			OutputPath:   outputPath,
		}, nil
	}
	img, err := raster.EncodeBase64(b, format, s.quality)
	if err != nil {
		return nil, err
	}
	return &encoded{EncodedImage: img}, nil
}

func mimeFor(path string) string {
	f, err := raster.ParseFormat(filepath.Ext(path))
	if err != nil {
		return ""
	}
	return raster.MimeType(f)
}

// scanArgs are the pipeline overrides shared by several tools.
type scanArgs struct {
	Style    *string `json:"style"`
	Width    *int    `json:"width"`
	Height   *int    `json:"height"`
	AutoSize *bool   `json:"auto_size"`
}

// options merges a over the server defaults.
func (s *Server) options(a scanArgs) (scanner.Options, error) {
	opts := s.defaults
	if a.Style != nil {
		style, err := enhance.ParseStyle(*a.Style)
		if err != nil {
			return opts, err
		}
		opts.Style = style
	}
	if a.Width != nil {
		if *a.Width < 1 {
			return opts, fmt.Errorf("width must be positive, got %d", *a.Width)
		}
		opts.OutputWidth = *a.Width
	}
	if a.Height != nil {
		if *a.Height < 1 {
			return opts, fmt.Errorf("height must be positive, got %d", *a.Height)
		}
		opts.OutputHeight = *a.Height
	}
	if a.AutoSize != nil {
		opts.AutoSize = *a.AutoSize
	}
	return opts, nil
}

// === Document Information ===

type pathArgs struct {
	Path string `json:"path"`
}

func (s *Server) handleDocumentLoad(call toolCall) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if a.Path == "" {
		return nil, errMissingPath
	}
	return raster.LoadInfo(s.cache, a.Path)
}

// === Detection ===

type detectCornersArgs struct {
	Path           string   `json:"path"`
	EdgeLow        *float64 `json:"edge_low"`
	EdgeHigh       *float64 `json:"edge_high"`
	HoughThreshold *int     `json:"hough_threshold"`
}

type detectCornersResult struct {
	Corners       geom.Quad               `json:"corners"`
	Fallback      bool                    `json:"fallback"`
	Geometry      perspective.Measurement `json:"geometry"`
	EdgePoints    int                     `json:"edge_points"`
	LineCount     int                     `json:"line_count"`
	Lines         []detection.Line        `json:"lines,omitempty"`
	Intersections []geom.Point            `json:"intersections,omitempty"`
	Width         int                     `json:"width"`
	Height        int                     `json:"height"`
	Recovered     []string                `json:"recovered,omitempty"`
}

// maxReportedLines bounds the line list in detect results.
const maxReportedLines = 20

func (s *Server) handleDetectCorners(call toolCall) (interface{}, error) {
	var a detectCornersArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	opts := s.defaults
	if a.EdgeLow != nil {
		opts.EdgeLow = *a.EdgeLow
	}
	if a.EdgeHigh != nil {
		opts.EdgeHigh = *a.EdgeHigh
	}
	if a.HoughThreshold != nil {
		opts.HoughThreshold = *a.HoughThreshold
	}

	det, recovered, err := s.scanner.DetectCorners(img, opts)
	if err != nil {
		return nil, err
	}
	lines := det.Lines
	if len(lines) > maxReportedLines {
		lines = lines[:maxReportedLines]
	}
	res := &detectCornersResult{
		Corners:       det.Corners,
		Fallback:      det.Fallback,
		Geometry:      perspective.Measure(det.Corners),
		EdgePoints:    det.EdgePoints,
		LineCount:     det.LineCount,
		Lines:         lines,
		Intersections: det.Intersections,
		Width:         img.Width,
		Height:        img.Height,
	}
	for _, e := range recovered {
		res.Recovered = append(res.Recovered, e.Error())
	}
	return res, nil
}

type edgeMapArgs struct {
	Path string   `json:"path"`
	Low  *float64 `json:"low"`
	High *float64 `json:"high"`
}

type edgeMapResult struct {
	*raster.EncodedImage
	EdgeCount int     `json:"edge_count"`
	Low       float64 `json:"low"`
	High      float64 `json:"high"`
}

func (s *Server) handleEdgeMap(call toolCall) (interface{}, error) {
	var a edgeMapArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	low, high := DefaultEdgeMapLow, DefaultEdgeMapHigh
	if a.Low != nil {
		low = *a.Low
	}
	if a.High != nil {
		high = *a.High
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	points, err := imaging.NewCanny(s.scanner.Backend().Convolver).Detect(img, low, high)
	if err != nil {
		return nil, err
	}
	edges, err := imaging.EdgeMap(points, img.Width, img.Height)
	if err != nil {
		return nil, err
	}
	enc, err := raster.EncodeBase64(edges, stdimaging.PNG, s.quality)
	if err != nil {
		return nil, err
	}
	return &edgeMapResult{EncodedImage: enc, EdgeCount: len(points), Low: low, High: high}, nil
}

type previewCornersArgs struct {
	Path      string       `json:"path"`
	Corners   []geom.Point `json:"corners"`
	Color     string       `json:"color"`
	Thickness int          `json:"thickness"`
}

type previewCornersResult struct {
	*raster.EncodedImage
	Corners  geom.Quad `json:"corners"`
	Detected bool      `json:"detected"`
	Fallback bool      `json:"fallback"`
}

func (s *Server) handlePreviewCorners(call toolCall) (interface{}, error) {
	var a previewCornersArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if a.Color == "" {
		a.Color = imaging.DefaultOverlayColor
	}
	if a.Thickness == 0 {
		a.Thickness = DefaultOverlayThickness
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	res := &previewCornersResult{}
	q, err := parseCorners(a.Corners)
	if err != nil {
		return nil, err
	}
	if q == nil {
		det, _, err := s.scanner.DetectCorners(img, s.defaults)
		if err != nil {
			return nil, err
		}
		q = &det.Corners
		res.Detected = true
		res.Fallback = det.Fallback
	}
	res.Corners = *q

	overlay, err := imaging.DrawQuad(img, *q, a.Color, a.Thickness)
	if err != nil {
		return nil, err
	}
	if res.EncodedImage, err = raster.EncodeBase64(overlay, stdimaging.PNG, s.quality); err != nil {
		return nil, err
	}
	return res, nil
}

// === Correction ===

type correctArgs struct {
	Path    string       `json:"path"`
	Corners []geom.Point `json:"corners"`
	scanArgs
}

type scanResult struct {
	*encoded
	Corners   geom.Quad `json:"corners"`
	Fallback  bool      `json:"fallback"`
	Style     string    `json:"style,omitempty"`
	Recovered []string  `json:"recovered,omitempty"`
}

func newScanResult(res *scanner.Result, enc *encoded) *scanResult {
	out := &scanResult{
		encoded:   enc,
		Corners:   res.Corners,
		Style:     res.Style.String(),
		Recovered: res.RecoveredMessages(),
	}
	if res.Detection != nil {
		out.Fallback = res.Detection.Fallback
	}
	return out
}

func (s *Server) handleCorrect(call toolCall) (interface{}, error) {
	var a correctArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	opts, err := s.options(a.scanArgs)
	if err != nil {
		return nil, err
	}
	// Correction only; styling is document_enhance's job.
	opts.Style = enhance.Original

	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	q, err := parseCorners(a.Corners)
	if err != nil {
		return nil, err
	}

	var res *scanner.Result
	if q != nil {
		res, err = s.scanner.ScanWithCorners(call.ctx, img, *q, opts)
	} else {
		res, err = s.scanner.Scan(call.ctx, img, opts)
	}
	if err != nil {
		return nil, err
	}
	enc, err := s.output(res.Image, "", stdimaging.JPEG)
	if err != nil {
		return nil, err
	}
	out := newScanResult(res, enc)
	out.Style = ""
	return out, nil
}

type enhanceArgs struct {
	Path       string `json:"path"`
	Style      string `json:"style"`
	OutputPath string `json:"output_path"`
}

func (s *Server) handleEnhance(call toolCall) (interface{}, error) {
	var a enhanceArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	style, err := enhance.ParseStyle(a.Style)
	if err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	opts := s.defaults
	opts.Style = style
	out, err := s.scanner.Enhance(img, opts)
	if err != nil {
		return nil, err
	}
	enc, err := s.output(out, a.OutputPath, stdimaging.JPEG)
	if err != nil {
		return nil, err
	}
	return &scanResult{encoded: enc, Style: style.String()}, nil
}

type scanToolArgs struct {
	Path       string `json:"path"`
	OutputPath string `json:"output_path"`
	scanArgs
}

func (s *Server) handleScan(call toolCall) (interface{}, error) {
	var a scanToolArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	opts, err := s.options(a.scanArgs)
	if err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}

	// The channel closes without a value when the request is cancelled.
	out, ok := <-s.scanner.ScanAsync(call.ctx, img, opts)
	if !ok {
		return nil, call.ctx.Err()
	}
	if out.Err != nil {
		return nil, out.Err
	}
	res := out.Result
	enc, err := s.output(res.Image, a.OutputPath, stdimaging.JPEG)
	if err != nil {
		return nil, err
	}
	return newScanResult(res, enc), nil
}

type rotateArgs struct {
	Path       string   `json:"path"`
	Degrees    *float64 `json:"degrees"`
	OutputPath string   `json:"output_path"`
}

func (s *Server) handleRotate(call toolCall) (interface{}, error) {
	var a rotateArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if a.Degrees == nil {
		return nil, errors.New("degrees is required")
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	out, err := raster.Rotate(img, *a.Degrees)
	if err != nil {
		return nil, err
	}
	if a.OutputPath != "" {
		// A rewritten file must be decoded again on the next load.
		s.cache.Evict(a.OutputPath)
	}
	return s.output(out, a.OutputPath, stdimaging.PNG)
}

type scanBatchArgs struct {
	Paths     []string `json:"paths"`
	OutputDir string   `json:"output_dir"`
	Style     *string  `json:"style"`
}

type batchEntry struct {
	Path       string   `json:"path"`
	OutputPath string   `json:"output_path,omitempty"`
	Fallback   bool     `json:"fallback"`
	Recovered  []string `json:"recovered,omitempty"`
	Error      string   `json:"error,omitempty"`
}

type batchResult struct {
	Completed int          `json:"completed"`
	Failed    int          `json:"failed"`
	Total     int          `json:"total"`
	Cancelled bool         `json:"cancelled"`
	Results   []batchEntry `json:"results"`
}

// BatchOutputName returns the file name a batch writes for the photo at
// path.
func BatchOutputName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base)) + "_scan.jpg"
}

func (s *Server) handleScanBatch(call toolCall) (interface{}, error) {
	var a scanBatchArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if len(a.Paths) == 0 {
		return nil, errors.New("paths must not be empty")
	}
	if a.OutputDir == "" {
		return nil, errors.New("output_dir is required")
	}
	opts, err := s.options(scanArgs{Style: a.Style})
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(a.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	// Photos are decoded as their turn comes; load errors are reported per
	// image, like scan errors.
	items := make([]scanner.Item, len(a.Paths))
	for i, p := range a.Paths {
		items[i] = scanner.Item{Name: p, Load: func() (*raster.Buffer, error) { return s.load(p) }}
	}

	progress := make(chan scanner.Progress)
	forwarded := make(chan struct{})
	go func() {
		defer close(forwarded)
		for p := range progress {
			token := call.progressToken
			if token == nil {
				token = p.BatchID
			}
			s.notify("notifications/progress", map[string]interface{}{
				"progressToken": token,
				"progress":      p.Index + 1,
				"total":         p.Total,
				"message":       fmt.Sprintf("scanned %s", filepath.Base(p.Name)),
			})
		}
	}()

	outcomes, batchErr := s.scanner.ScanBatch(call.ctx, items, opts, progress)
	close(progress)
	<-forwarded

	res := &batchResult{Total: len(items), Cancelled: batchErr != nil}
	for _, o := range outcomes {
		entry := batchEntry{Path: o.Name}
		err := o.Err
		if err == nil {
			entry.OutputPath = filepath.Join(a.OutputDir, BatchOutputName(o.Name))
			err = raster.Save(o.Result.Image, entry.OutputPath, s.quality)
			if o.Result.Detection != nil {
				entry.Fallback = o.Result.Detection.Fallback
			}
			entry.Recovered = o.Result.RecoveredMessages()
		}
		if err != nil {
			entry.OutputPath = ""
			entry.Error = err.Error()
			res.Failed++
		} else {
			res.Completed++
		}
		res.Results = append(res.Results, entry)
	}
	return res, nil
}

// === Interactive Sessions ===

func (s *Server) handleSessionOpen(call toolCall) (interface{}, error) {
	var a pathArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	img, err := s.load(a.Path)
	if err != nil {
		return nil, err
	}
	det, _, err := s.scanner.DetectCorners(img, s.defaults)
	if err != nil {
		return nil, err
	}
	sess, err := scanner.NewSession(img, det.Corners, a.Path)
	if err != nil {
		return nil, err
	}
	s.sessions.Add(sess)
	s.log.Debug().Str("session_id", sess.ID).Str("path", a.Path).Msg("Session opened")

	return map[string]interface{}{
		"session":  sess.State(),
		"fallback": det.Fallback,
	}, nil
}

type sessionArgs struct {
	SessionID string `json:"session_id"`
}

type moveCornerArgs struct {
	sessionArgs
	Corner string  `json:"corner"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
}

func (s *Server) handleSessionMoveCorner(call toolCall) (interface{}, error) {
	var a moveCornerArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(a.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.MoveCorner(a.Corner, geom.Point{X: a.X, Y: a.Y}); err != nil {
		return nil, err
	}
	return sess.State(), nil
}

type cropArgs struct {
	sessionArgs
	Handle string  `json:"handle"`
	DX     float64 `json:"dx"`
	DY     float64 `json:"dy"`
}

func (s *Server) handleSessionCrop(call toolCall) (interface{}, error) {
	var a cropArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(a.SessionID)
	if err != nil {
		return nil, err
	}
	if _, err := sess.DragCrop(a.Handle, a.DX, a.DY); err != nil {
		return nil, err
	}
	return sess.State(), nil
}

type applyArgs struct {
	sessionArgs
	Mode       string  `json:"mode"`
	Style      *string `json:"style"`
	OutputPath string  `json:"output_path"`
}

func (s *Server) handleSessionApply(call toolCall) (interface{}, error) {
	var a applyArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	opts, err := s.options(scanArgs{Style: a.Style})
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(a.SessionID)
	if err != nil {
		return nil, err
	}

	res, err := sess.Apply(call.ctx, s.scanner, a.Mode, opts)
	if err != nil {
		return nil, err
	}
	enc, err := s.output(res.Image, a.OutputPath, stdimaging.JPEG)
	if err != nil {
		return nil, err
	}
	return newScanResult(res, enc), nil
}

func (s *Server) handleSessionClose(call toolCall) (interface{}, error) {
	var a sessionArgs
	if err := decodeArgs(call.args, &a); err != nil {
		return nil, err
	}
	if err := s.sessions.Close(a.SessionID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"closed": a.SessionID, "open_sessions": s.sessions.Len()}, nil
}
