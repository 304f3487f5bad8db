package server

import (
	"github.com/ironsheep/docscan-mcp/internal/enhance"
	"github.com/ironsheep/docscan-mcp/internal/geom"
	"github.com/ironsheep/docscan-mcp/internal/scanner"
)

// Tool represents an MCP tool definition
type Tool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

func pathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Absolute path to the image file",
	}
}

func outputPathProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Optional file to write instead of returning base64. Format follows the extension (.jpg, .png, ...)",
	}
}

func styleProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"enum":        enhance.Styles(),
		"description": "Output style (default from server configuration, normally 'original')",
	}
}

func cornersProperty() map[string]interface{} {
	return map[string]interface{}{
		"type": "array",
		"items": map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"x": map[string]interface{}{"type": "number"},
				"y": map[string]interface{}{"type": "number"},
			},
			"required": []string{"x", "y"},
		},
		"minItems":    4,
		"maxItems":    4,
		"description": "Document corners in order top-left, top-right, bottom-right, bottom-left. Detected automatically if omitted.",
	}
}

func sizeProperties(props map[string]interface{}) map[string]interface{} {
	props["width"] = map[string]interface{}{
		"type":        "integer",
		"description": "Output width in pixels (default 800)",
	}
	props["height"] = map[string]interface{}{
		"type":        "integer",
		"description": "Output height in pixels (default 1000)",
	}
	props["auto_size"] = map[string]interface{}{
		"type":        "boolean",
		"description": "Derive the output size from the corner geometry instead of width/height",
		"default":     false,
	}
	return props
}

func sessionIDProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Session ID returned by session_open",
	}
}

// GetToolDefinitions returns all available tools
func GetToolDefinitions() []Tool {
	return []Tool{
		// Document Information
		{
			Name:        "document_load",
			Description: "Load a document photo and return its dimensions, format and file size. The decoded image is cached for later calls.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},

		// Detection
		{
			Name:        "document_detect_corners",
			Description: "Find the four corners of the document with Canny edges and a Hough line transform. Falls back to the image frame when four corners cannot be found.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"edge_low": map[string]interface{}{
						"type":        "number",
						"description": "Canny low threshold (default 50)",
					},
					"edge_high": map[string]interface{}{
						"type":        "number",
						"description": "Canny high threshold (default 150)",
					},
					"hough_threshold": map[string]interface{}{
						"type":        "integer",
						"description": "Minimum Hough votes a line must exceed (default 80)",
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_edge_map",
			Description: "Run Canny edge detection and return the edge map as base64-encoded PNG (white edges on black).",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"low": map[string]interface{}{
						"type":        "number",
						"description": "Low threshold (default 75)",
						"default":     75,
					},
					"high": map[string]interface{}{
						"type":        "number",
						"description": "High threshold (default 200)",
						"default":     200,
					},
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_preview_corners",
			Description: "Draw the document quadrilateral over the photo and return it as base64-encoded PNG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":    pathProperty(),
					"corners": cornersProperty(),
					"color": map[string]interface{}{
						"type":        "string",
						"description": "Outline color as hex (default #00C853)",
					},
					"thickness": map[string]interface{}{
						"type":        "integer",
						"description": "Outline thickness in pixels (default 3)",
						"default":     3,
					},
				},
				"required": []string{"path"},
			},
		},

		// Correction
		{
			Name:        "document_correct",
			Description: "Warp the document quadrilateral to a flat rectangle and return it as base64-encoded JPEG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sizeProperties(map[string]interface{}{
					"path":    pathProperty(),
					"corners": cornersProperty(),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_enhance",
			Description: "Apply an output style to an image without any geometric correction.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path":        pathProperty(),
					"style":       styleProperty(),
					"output_path": outputPathProperty(),
				},
				"required": []string{"path", "style"},
			},
		},
		{
			Name:        "document_scan",
			Description: "Full scan: detect corners, correct perspective and apply a style. Writes the result when output_path is given, otherwise returns base64-encoded JPEG.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": sizeProperties(map[string]interface{}{
					"path":        pathProperty(),
					"style":       styleProperty(),
					"output_path": outputPathProperty(),
				}),
				"required": []string{"path"},
			},
		},
		{
			Name:        "document_rotate",
			Description: "Rotate an image clockwise by the given number of degrees.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
					"degrees": map[string]interface{}{
						"type":        "number",
						"description": "Clockwise rotation in degrees, e.g. 90 or -90",
					},
					"output_path": outputPathProperty(),
				},
				"required": []string{"path", "degrees"},
			},
		},
		{
			Name:        "document_scan_batch",
			Description: "Scan several photos one after another and write each result to output_dir. Progress is reported with notifications/progress after every image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"paths": map[string]interface{}{
						"type":        "array",
						"items":       map[string]interface{}{"type": "string"},
						"description": "Absolute paths of the photos to scan",
					},
					"output_dir": map[string]interface{}{
						"type":        "string",
						"description": "Directory for the scanned JPEG files (created if missing)",
					},
					"style": styleProperty(),
				},
				"required": []string{"paths", "output_dir"},
			},
		},

		// Interactive Sessions
		{
			Name:        "session_open",
			Description: "Open an editing session for a photo. Corners start at the detected document corners; the crop rectangle starts 10% inside the frame.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"path": pathProperty(),
				},
				"required": []string{"path"},
			},
		},
		{
			Name:        "session_move_corner",
			Description: "Move one corner of a session's quadrilateral. Positions are clamped to the image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"corner": map[string]interface{}{
						"type": "string",
						"enum": geom.CornerNames[:],
					},
					"x": map[string]interface{}{"type": "number"},
					"y": map[string]interface{}{"type": "number"},
				},
				"required": []string{"session_id", "corner", "x", "y"},
			},
		},
		{
			Name:        "session_crop",
			Description: "Drag a handle of the session's crop rectangle by (dx, dy). The rectangle stays inside the image and at least 50 pixels in each dimension.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"handle": map[string]interface{}{
						"type":        "string",
						"enum":        []string{"nw", "n", "ne", "e", "se", "s", "sw", "w", scanner.HandleMove},
						"description": "Edge or corner handle, or 'move' to drag the whole rectangle",
					},
					"dx": map[string]interface{}{"type": "number"},
					"dy": map[string]interface{}{"type": "number"},
				},
				"required": []string{"session_id", "handle", "dx", "dy"},
			},
		},
		{
			Name:        "session_apply",
			Description: "Render a session: 'perspective' warps the corners, 'crop' cuts out the crop rectangle. The style is applied afterwards.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
					"mode": map[string]interface{}{
						"type":    "string",
						"enum":    []string{scanner.ModePerspective, scanner.ModeCrop},
						"default": scanner.ModePerspective,
					},
					"style":       styleProperty(),
					"output_path": outputPathProperty(),
				},
				"required": []string{"session_id"},
			},
		},
		{
			Name:        "session_close",
			Description: "Close a session and release its image.",
			InputSchema: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"session_id": sessionIDProperty(),
				},
				"required": []string{"session_id"},
			},
		},
	}
}

// handleToolsList returns the list of available tools
func (s *Server) handleToolsList(req *MCPRequest) *MCPResponse {
	return &MCPResponse{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result: map[string]interface{}{
			"tools": GetToolDefinitions(),
		},
	}
}
