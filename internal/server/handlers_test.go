package server

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	_ "image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// createTestImageFile writes a solid PNG into the test's temp dir and
// returns its path.
func createTestImageFile(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}
	return writePNG(t, img)
}

// createDocumentFile writes a white n×n photo with a black square of side
// n/2 rotated by 45°.
func createDocumentFile(t *testing.T, n int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	c := float64(n) / 2
	half := float64(n) / 2 / math.Sqrt2
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			col := color.RGBA{255, 255, 255, 255}
			if math.Abs(float64(x)+0.5-c)+math.Abs(float64(y)+0.5-c) <= half {
				col = color.RGBA{0, 0, 0, 255}
			}
			img.Set(x, y, col)
		}
	}
	return writePNG(t, img)
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "handler-test-*.png")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return f.Name()
}

// callTool runs a tools/call request and decodes the text content.
func callTool(t *testing.T, s *Server, name string, args interface{}) map[string]interface{} {
	t.Helper()
	resp := callToolRaw(t, s, name, args)
	if resp.Error != nil {
		t.Fatalf("%s: unexpected error: %+v", name, resp.Error)
	}
	result := resp.Result.(map[string]interface{})
	content := result["content"].([]map[string]interface{})
	if len(content) != 1 || content[0]["type"] != "text" {
		t.Fatalf("%s: unexpected content: %v", name, content)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(content[0]["text"].(string)), &decoded); err != nil {
		t.Fatalf("%s: result is not JSON: %v", name, err)
	}
	return decoded
}

func callToolRaw(t *testing.T, s *Server, name string, args interface{}) *MCPResponse {
	t.Helper()
	params, err := json.Marshal(map[string]interface{}{"name": name, "arguments": args})
	if err != nil {
		t.Fatalf("marshal params: %v", err)
	}
	resp := s.handleToolsCall(context.Background(), &MCPRequest{JSONRPC: "2.0", ID: 1, Method: "tools/call", Params: params})
	if resp == nil {
		t.Fatal("handleToolsCall returned nil")
	}
	return resp
}

func expectToolError(t *testing.T, s *Server, name string, args interface{}, wantSubstr string) {
	t.Helper()
	resp := callToolRaw(t, s, name, args)
	if resp.Error == nil {
		t.Fatalf("%s: expected an error", name)
	}
	if resp.Error.Code != -32000 {
		t.Errorf("%s: code %d, want -32000", name, resp.Error.Code)
	}
	if data, _ := resp.Error.Data.(string); !strings.Contains(data, wantSubstr) {
		t.Errorf("%s: error %q does not mention %q", name, data, wantSubstr)
	}
}

// decodeImage decodes the base64 image of a tool result.
func decodeImage(t *testing.T, result map[string]interface{}) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(result["image_base64"].(string))
	if err != nil {
		t.Fatalf("invalid base64: %v", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("invalid image: %v", err)
	}
	return img
}

func TestDocumentLoad(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 80, color.RGBA{255, 0, 0, 255})

	result := callTool(t, s, "document_load", map[string]interface{}{"path": path})
	if result["width"] != float64(100) || result["height"] != float64(80) {
		t.Errorf("dimensions: got %vx%v, want 100x80", result["width"], result["height"])
	}
	if result["format"] != "png" {
		t.Errorf("format: got %v, want png", result["format"])
	}
	if s.cache.Len() != 1 {
		t.Errorf("cache: got %d entries, want 1", s.cache.Len())
	}
}

func TestDocumentDetectCorners(t *testing.T) {
	s := newTestServer(t)
	path := createDocumentFile(t, 400)

	result := callTool(t, s, "document_detect_corners", map[string]interface{}{"path": path})
	if result["fallback"] != false {
		t.Fatalf("fallback: got %v, want false (%v)", result["fallback"], result["recovered"])
	}
	corners := result["corners"].([]interface{})
	if len(corners) != 4 {
		t.Fatalf("corners: got %d, want 4", len(corners))
	}
	// Vertices of the diamond lie 141 px from the centre.
	for i, c := range corners {
		p := c.(map[string]interface{})
		d := math.Hypot(p["x"].(float64)-199.5, p["y"].(float64)-199.5)
		if math.Abs(d-141.42) > 4 {
			t.Errorf("corner %d at %v: %.1f px from centre", i, p, d)
		}
	}
}

func TestDocumentDetectCorners_FlatFallsBack(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 60, 40, color.RGBA{90, 90, 90, 255})

	result := callTool(t, s, "document_detect_corners", map[string]interface{}{
		"path": path, "edge_low": 10, "edge_high": 20, "hough_threshold": 5,
	})
	if result["fallback"] != true {
		t.Errorf("fallback: got %v, want true", result["fallback"])
	}
	if rec, _ := result["recovered"].([]interface{}); len(rec) == 0 {
		t.Error("expected recovered conditions")
	}

	geometry := result["geometry"].(map[string]interface{})
	if geometry["top"] != 60.0 || geometry["left"] != 40.0 || geometry["area"] != 2400.0 {
		t.Errorf("geometry: got %v, want the 60x40 frame", geometry)
	}
	if geometry["aspect_ratio"] != 1.5 {
		t.Errorf("aspect_ratio: got %v, want 1.5", geometry["aspect_ratio"])
	}
}

func TestDocumentEdgeMap(t *testing.T) {
	s := newTestServer(t)
	path := createDocumentFile(t, 120)

	result := callTool(t, s, "document_edge_map", map[string]interface{}{"path": path})
	if result["mime_type"] != "image/png" {
		t.Errorf("mime_type: got %v", result["mime_type"])
	}
	if result["edge_count"].(float64) == 0 {
		t.Error("expected edges on the square outline")
	}
	if result["low"] != 75.0 || result["high"] != 200.0 {
		t.Errorf("thresholds: got %v/%v, want 75/200", result["low"], result["high"])
	}
	if b := decodeImage(t, result).Bounds(); b.Dx() != 120 || b.Dy() != 120 {
		t.Errorf("edge map size: got %v", b)
	}
}

func TestDocumentPreviewCorners(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 50, 50, color.RGBA{255, 255, 255, 255})

	corners := []map[string]float64{{"x": 10, "y": 10}, {"x": 40, "y": 10}, {"x": 40, "y": 40}, {"x": 10, "y": 40}}
	result := callTool(t, s, "document_preview_corners", map[string]interface{}{
		"path": path, "corners": corners, "color": "#FF0000", "thickness": 1,
	})
	if result["detected"] != false {
		t.Errorf("detected: got %v, want false", result["detected"])
	}
	img := decodeImage(t, result)
	if r, g, b, _ := img.At(25, 10).RGBA(); r>>8 != 255 || g>>8 != 0 || b>>8 != 0 {
		t.Errorf("outline pixel: got (%d,%d,%d), want red", r>>8, g>>8, b>>8)
	}
	if r, g, b, _ := img.At(25, 25).RGBA(); r>>8 != 255 || g>>8 != 255 || b>>8 != 255 {
		t.Errorf("interior pixel changed: (%d,%d,%d)", r>>8, g>>8, b>>8)
	}

	// Without corners the detector runs.
	result = callTool(t, s, "document_preview_corners", map[string]interface{}{"path": path})
	if result["detected"] != true {
		t.Errorf("detected: got %v, want true", result["detected"])
	}
}

func TestDocumentCorrect(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 100, 100, color.RGBA{30, 60, 90, 255})

	corners := []map[string]float64{{"x": 10, "y": 20}, {"x": 70, "y": 20}, {"x": 70, "y": 60}, {"x": 10, "y": 60}}
	result := callTool(t, s, "document_correct", map[string]interface{}{
		"path": path, "corners": corners, "auto_size": true,
	})
	if result["width"] != float64(60) || result["height"] != float64(40) {
		t.Errorf("size: got %vx%v, want 60x40", result["width"], result["height"])
	}
	if result["mime_type"] != "image/jpeg" {
		t.Errorf("mime_type: got %v", result["mime_type"])
	}

	result = callTool(t, s, "document_correct", map[string]interface{}{"path": path, "width": 30, "height": 20})
	if b := decodeImage(t, result).Bounds(); b.Dx() != 30 || b.Dy() != 20 {
		t.Errorf("size: got %v, want 30x20", b)
	}
}

func TestDocumentEnhance(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 20, 20, color.RGBA{200, 40, 40, 255})
	out := filepath.Join(t.TempDir(), "gray.png")

	result := callTool(t, s, "document_enhance", map[string]interface{}{"path": path, "style": "grayscale", "output_path": out})
	if result["output_path"] != out {
		t.Errorf("output_path: got %v", result["output_path"])
	}
	if result["style"] != "grayscale" {
		t.Errorf("style: got %v", result["style"])
	}

	f, err := os.Open(out)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	r, g, b, _ := img.At(5, 5).RGBA()
	if r != g || g != b {
		t.Errorf("pixel not gray: (%d,%d,%d)", r>>8, g>>8, b>>8)
	}
}

func TestDocumentScan(t *testing.T) {
	s := newTestServer(t)
	path := createDocumentFile(t, 400)

	result := callTool(t, s, "document_scan", map[string]interface{}{"path": path, "style": "blackwhite"})
	if result["fallback"] != false {
		t.Errorf("fallback: got %v (%v)", result["fallback"], result["recovered"])
	}
	if result["width"] != float64(80) || result["height"] != float64(100) {
		t.Errorf("size: got %vx%v, want server default 80x100", result["width"], result["height"])
	}
	if result["style"] != "blackwhite" {
		t.Errorf("style: got %v", result["style"])
	}

	out := filepath.Join(t.TempDir(), "scan.jpg")
	result = callTool(t, s, "document_scan", map[string]interface{}{"path": path, "output_path": out, "width": 40, "height": 50})
	if result["mime_type"] != "image/jpeg" {
		t.Errorf("mime_type: got %v", result["mime_type"])
	}
	if _, err := os.Stat(out); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestDocumentRotate(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 30, 10, color.RGBA{0, 0, 255, 255})

	result := callTool(t, s, "document_rotate", map[string]interface{}{"path": path, "degrees": 90})
	if result["width"] != float64(10) || result["height"] != float64(30) {
		t.Errorf("rotated size: got %vx%v, want 10x30", result["width"], result["height"])
	}

	expectToolError(t, s, "document_rotate", map[string]interface{}{"path": path}, "degrees")
}

func TestSessionFlow(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 200, 100, color.RGBA{180, 180, 180, 255})

	opened := callTool(t, s, "session_open", map[string]interface{}{"path": path})
	session := opened["session"].(map[string]interface{})
	id := session["session_id"].(string)
	if id == "" {
		t.Fatal("empty session id")
	}
	if opened["fallback"] != true {
		t.Errorf("flat image should fall back to the frame")
	}

	state := callTool(t, s, "session_move_corner", map[string]interface{}{"session_id": id, "corner": "top_left", "x": -10, "y": 20})
	tl := state["corners"].([]interface{})[0].(map[string]interface{})
	if tl["x"] != 0.0 || tl["y"] != 20.0 {
		t.Errorf("top_left: got %v, want clamped (0,20)", tl)
	}

	state = callTool(t, s, "session_crop", map[string]interface{}{"session_id": id, "handle": "e", "dx": -1000, "dy": 0})
	crop := state["crop"].(map[string]interface{})
	if crop["width"] != 50.0 {
		t.Errorf("crop width: got %v, want minimum 50", crop["width"])
	}

	applied := callTool(t, s, "session_apply", map[string]interface{}{"session_id": id, "mode": "crop", "style": "grayscale"})
	if applied["width"] != 50.0 || applied["height"] != 80.0 {
		t.Errorf("crop output: got %vx%v, want 50x80", applied["width"], applied["height"])
	}

	applied = callTool(t, s, "session_apply", map[string]interface{}{"session_id": id})
	if applied["width"] == nil {
		t.Error("perspective apply returned no image")
	}

	closed := callTool(t, s, "session_close", map[string]interface{}{"session_id": id})
	if closed["open_sessions"] != 0.0 {
		t.Errorf("open_sessions: got %v", closed["open_sessions"])
	}
	expectToolError(t, s, "session_apply", map[string]interface{}{"session_id": id}, "unknown session")
}

func TestScanBatch_WritesOutputsAndNotifies(t *testing.T) {
	s := newTestServer(t)
	dir := t.TempDir()
	paths := []string{
		createTestImageFile(t, 40, 30, color.RGBA{200, 200, 200, 255}),
		filepath.Join(dir, "missing.png"),
		createDocumentFile(t, 100),
	}
	outDir := filepath.Join(dir, "out")

	params, _ := json.Marshal(map[string]interface{}{
		"name":      "document_scan_batch",
		"arguments": map[string]interface{}{"paths": paths, "output_dir": outDir, "style": "enhanced"},
		"_meta":     map[string]interface{}{"progressToken": "tok-1"},
	})
	req, _ := json.Marshal(MCPRequest{JSONRPC: "2.0", ID: 7, Method: "tools/call", Params: params})

	var out bytes.Buffer
	if err := s.Run(context.Background(), bytes.NewReader(append(req, '\n')), &out); err != nil {
		t.Fatalf("Run: %v", err)
	}

	msgs := readMessages(t, &out)
	if len(msgs) != 4 {
		t.Fatalf("messages: got %d, want 3 notifications and 1 response", len(msgs))
	}
	for i, m := range msgs[:3] {
		if m["method"] != "notifications/progress" {
			t.Fatalf("message %d: got %v, want progress notification", i, m)
		}
		p := m["params"].(map[string]interface{})
		if p["progressToken"] != "tok-1" || p["progress"] != float64(i+1) || p["total"] != 3.0 {
			t.Errorf("progress %d: got %v", i, p)
		}
	}

	resp := msgs[3]
	if resp["id"] != 7.0 {
		t.Fatalf("response id: got %v", resp["id"])
	}
	text := resp["result"].(map[string]interface{})["content"].([]interface{})[0].(map[string]interface{})["text"].(string)
	var result batchResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		t.Fatalf("batch result: %v", err)
	}
	if result.Completed != 2 || result.Failed != 1 || result.Cancelled {
		t.Errorf("batch: got %+v", result)
	}
	if result.Results[1].Error == "" {
		t.Error("missing file should be reported")
	}
	for _, i := range []int{0, 2} {
		if _, err := os.Stat(result.Results[i].OutputPath); err != nil {
			t.Errorf("result %d not written: %v", i, err)
		}
	}
	if filepath.Base(result.Results[2].OutputPath) != BatchOutputName(paths[2]) {
		t.Errorf("output name: got %s", result.Results[2].OutputPath)
	}
}

func TestBatchOutputName(t *testing.T) {
	tests := map[string]string{
		"/photos/receipt.JPG": "receipt_scan.jpg",
		"page.1.png":          "page.1_scan.jpg",
		"/tmp/no-extension":   "no-extension_scan.jpg",
	}
	for in, want := range tests {
		if got := BatchOutputName(in); got != want {
			t.Errorf("BatchOutputName(%q): got %q, want %q", in, got, want)
		}
	}
}

func TestToolErrors(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 20, 20, color.RGBA{})

	tests := []struct {
		tool string
		args interface{}
		want string
	}{
		{"document_load", map[string]interface{}{}, "path is required"},
		{"document_load", nil, "path is required"},
		{"document_load", map[string]interface{}{"path": "/nonexistent/image.png"}, "nonexistent"},
		{"document_scan", map[string]interface{}{"path": path, "style": "sepia"}, "sepia"},
		{"document_scan", map[string]interface{}{"path": path, "width": 0}, "width"},
		{"document_correct", map[string]interface{}{"path": path, "corners": []map[string]float64{{"x": 1, "y": 1}}}, "want 4"},
		{"document_enhance", map[string]interface{}{"path": path, "style": "neon"}, "neon"},
		{"document_scan_batch", map[string]interface{}{"output_dir": t.TempDir()}, "paths"},
		{"document_scan_batch", map[string]interface{}{"paths": []string{path}}, "output_dir"},
		{"session_move_corner", map[string]interface{}{"session_id": "nope", "corner": "top_left"}, "unknown session"},
		{"session_close", map[string]interface{}{"session_id": "nope"}, "unknown session"},
		{"image_load", map[string]interface{}{"path": path}, "unknown tool"},
		{"document_load", "not an object", "invalid arguments"},
	}

	for _, tt := range tests {
		t.Run(tt.tool+"/"+tt.want, func(t *testing.T) {
			expectToolError(t, s, tt.tool, tt.args, tt.want)
		})
	}
}

func TestSessionTools_BadHandleAndCorner(t *testing.T) {
	s := newTestServer(t)
	path := createTestImageFile(t, 80, 80, color.RGBA{})
	id := callTool(t, s, "session_open", map[string]interface{}{"path": path})["session"].(map[string]interface{})["session_id"].(string)

	expectToolError(t, s, "session_move_corner", map[string]interface{}{"session_id": id, "corner": "middle", "x": 1, "y": 1}, "unknown corner")
	expectToolError(t, s, "session_crop", map[string]interface{}{"session_id": id, "handle": "up", "dx": 1, "dy": 1}, "unknown crop handle")
	expectToolError(t, s, "session_apply", map[string]interface{}{"session_id": id, "mode": "rotate"}, "unknown apply mode")
}
