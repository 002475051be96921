package qrgen

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Result describes one finished encode.
type Result struct {
	PayloadBytes  int    `json:"payload_bytes"`
	Truncated     bool   `json:"truncated"`
	EncodedLength int    `json:"encoded_length"`
	Version       int    `json:"version"`
	ImageSize     int    `json:"image_size"`
	OutputPath    string `json:"output_path,omitempty"`
	Digest        string `json:"digest"` // hex SHA-256 of the encoded text
}

// Truncate caps payload at limit bytes. The second return value reports
// whether anything was dropped.
func Truncate(payload []byte, limit int) ([]byte, bool) {
	if len(payload) > limit {
		return payload[:limit], true
	}
	return payload, false
}

// EncodeText returns the standard, padded base64 form of payload.
func EncodeText(payload []byte) string {
	return base64.StdEncoding.EncodeToString(payload)
}

// Encoder runs the read, truncate, encode, render and write pipeline.
type Encoder struct {
	opts Options
	warn io.Writer
	log  *slog.Logger
}

// NewEncoder returns an Encoder for opts. Truncation warnings are printed to
// warn, or to stdout when warn is nil.
func NewEncoder(opts Options, warn io.Writer, log *slog.Logger) (*Encoder, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid encoder options: %w", err)
	}
	if warn == nil {
		warn = os.Stdout
	}
	if log == nil {
		log = slog.Default()
	}
	return &Encoder{opts: opts, warn: warn, log: log}, nil
}

// Options returns the options the encoder was built with.
func (e *Encoder) Options() Options {
	return e.opts
}

// Run reads the source file, renders it and writes the PNG to the output
// path, replacing any existing file.
func (e *Encoder) Run(ctx context.Context) (*Result, error) {
	payload, err := os.ReadFile(e.opts.SourcePath)
	if err != nil {
		return nil, fmt.Errorf("read source %s: %w", e.opts.SourcePath, err)
	}
	e.log.Debug("read source", "path", e.opts.SourcePath, "bytes", len(payload))

	res, png, err := e.EncodeBytes(ctx, payload)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.WriteFile(e.opts.OutputPath, png, 0o644); err != nil {
		return nil, fmt.Errorf("write image %s: %w", e.opts.OutputPath, err)
	}
	res.OutputPath = e.opts.OutputPath

	e.log.Info("qr image written",
		"path", res.OutputPath,
		"version", res.Version,
		"pixels", res.ImageSize,
		"encoded_length", res.EncodedLength,
	)
	return res, nil
}

// EncodeBytes runs the pipeline on an in-memory payload and returns the PNG
// instead of writing it.
func (e *Encoder) EncodeBytes(ctx context.Context, payload []byte) (*Result, []byte, error) {
	data, truncated := Truncate(payload, e.opts.MaxPayloadBytes)
	if truncated {
		fmt.Fprintf(e.warn, "Warning: Audio data truncated to %d bytes\n", e.opts.MaxPayloadBytes)
		e.log.Warn("payload truncated",
			"original_bytes", len(payload),
			"kept_bytes", len(data),
		)
	}

	text := EncodeText(data)
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	sym, err := Render(text, e.opts)
	if err != nil {
		return nil, nil, fmt.Errorf("build qr symbol: %w", err)
	}
	png, err := sym.PNG()
	if err != nil {
		return nil, nil, err
	}

	return &Result{
		PayloadBytes:  len(data),
		Truncated:     truncated,
		EncodedLength: len(text),
		Version:       sym.Version(),
		ImageSize:     sym.Size(),
		Digest:        digest(text),
	}, png, nil
}

func digest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}
