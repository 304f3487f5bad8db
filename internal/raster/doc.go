// Package raster holds the pixel buffer every scanning stage consumes and
// produces, plus the file-facing edge of the system: decoding with a
// path-keyed cache, encoding scanned pages, and the rotate, downscale and
// crop helpers applied before or after the core pipeline.
//
// A Buffer is plain RGBA bytes with straight alpha. Stages never mutate a
// buffer they are given; they allocate a new one. Conversions to and from
// image.Image copy.
package raster
