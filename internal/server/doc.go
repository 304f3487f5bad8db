// Package server implements the MCP (Model Context Protocol) server for the
// document scanner.
//
// The server exposes corner detection, perspective correction, style
// enhancement and interactive crop sessions as MCP tools, so an assistant
// can turn phone photos of paper into flat scans.
//
// # Protocol
//
// The server communicates over stdio using JSON-RPC 2.0:
//   - Input: JSON-RPC requests on stdin (one per line)
//   - Output: JSON-RPC responses and notifications on stdout
//
// Supported MCP methods:
//   - initialize: Protocol handshake
//   - tools/list: Enumerate available tools
//   - tools/call: Execute a tool with arguments
//   - ping: Health check
//
// # Available Tools
//
// Document Information:
//   - document_load: Load a photo and report its metadata
//
// Detection:
//   - document_detect_corners: Find the document quadrilateral
//   - document_edge_map: Canny edge map as PNG
//   - document_preview_corners: Draw the quadrilateral over the photo
//
// Correction:
//   - document_correct: Perspective warp to a rectangle
//   - document_enhance: Apply an output style
//   - document_scan: Detect, correct and enhance in one call
//   - document_rotate: Rotate a photo
//   - document_scan_batch: Scan many photos into a directory
//
// Interactive Sessions:
//   - session_open, session_move_corner, session_crop, session_apply,
//     session_close
//
// # Progress
//
// document_scan_batch sends a notifications/progress message after every
// image. The progress token is taken from the request's _meta.progressToken,
// or is the batch ID when the client did not send one.
//
// # Image Caching
//
// Decoded photos are cached by path for the lifetime of the process.
// Sessions keep their own reference to the image until they are closed.
//
// # Error Handling
//
// Tool execution errors are returned as JSON-RPC error responses with:
//   - code: -32000 (tool execution failure) or standard JSON-RPC codes
//   - message: Human-readable error description
//   - data: The Go error string
//
// Conditions the pipeline recovers from, such as a photo where no document
// could be found, are not errors: the result carries a "recovered" list and,
// for detection, "fallback": true.
package server
