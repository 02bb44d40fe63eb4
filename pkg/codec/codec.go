// Package codec wraps raw byte sequences in a brotli stream and back.
//
// The codec knows nothing about canvas documents. It operates on bytes only;
// the string helpers are thin wrappers that additionally check that the
// decompressed bytes are valid UTF-8.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
)

const (
	// DefaultQuality favors file size over compression speed (range 0-11).
	DefaultQuality = 9
	// DefaultWindowBits selects a 4 MiB sliding window (range 10-24).
	DefaultWindowBits = 22
	// DefaultBufferSize is the chunk size used when draining the decoder.
	DefaultBufferSize = 4096
)

var (
	// ErrCorrupt is returned when input is not a complete, validly framed stream.
	ErrCorrupt = errors.New("codec: corrupt or truncated stream")
	// ErrEncoding is returned when decompressed bytes are not valid UTF-8.
	ErrEncoding = errors.New("codec: invalid utf-8 text")
)

// Options tunes the compressor. None of the knobs affect correctness.
type Options struct {
	Quality    int `yaml:"quality"`
	WindowBits int `yaml:"window_bits"`
	BufferSize int `yaml:"buffer_size"`
}

// DefaultOptions returns the settings used for project files.
func DefaultOptions() Options {
	return Options{
		Quality:    DefaultQuality,
		WindowBits: DefaultWindowBits,
		BufferSize: DefaultBufferSize,
	}
}

// Validate checks the options against the ranges brotli accepts.
func (o Options) Validate() error {
	if o.Quality < brotli.BestSpeed || o.Quality > brotli.BestCompression {
		return fmt.Errorf("codec: quality %d out of range [%d, %d]", o.Quality, brotli.BestSpeed, brotli.BestCompression)
	}
	if o.WindowBits < 10 || o.WindowBits > 24 {
		return fmt.Errorf("codec: window bits %d out of range [10, 24]", o.WindowBits)
	}
	if o.BufferSize <= 0 {
		return fmt.Errorf("codec: buffer size must be positive, got %d", o.BufferSize)
	}
	return nil
}

// Codec compresses and decompresses byte sequences. It is safe for
// concurrent use; every call allocates its own encoder or decoder.
type Codec struct {
	opts Options
}

// New returns a Codec using opts. Zero fields fall back to the defaults.
func New(opts Options) *Codec {
	def := DefaultOptions()
	if opts.Quality == 0 {
		opts.Quality = def.Quality
	}
	if opts.WindowBits == 0 {
		opts.WindowBits = def.WindowBits
	}
	if opts.BufferSize == 0 {
		opts.BufferSize = def.BufferSize
	}
	return &Codec{opts: opts}
}

// Default returns a Codec with DefaultOptions.
func Default() *Codec {
	return New(DefaultOptions())
}

// Options returns the effective options.
func (c *Codec) Options() Options {
	return c.opts
}

// Compress returns the brotli stream for data. The empty input yields a
// short, non-empty stream.
func (c *Codec) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	w := brotli.NewWriterOptions(&buf, brotli.WriterOptions{
		Quality: c.opts.Quality,
		LGWin:   c.opts.WindowBits,
	})
	for chunk := data; len(chunk) > 0; {
		n := min(len(chunk), c.opts.BufferSize)
		if _, err := w.Write(chunk[:n]); err != nil {
			return nil, fmt.Errorf("codec: compress: %w", err)
		}
		chunk = chunk[n:]
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("codec: finish stream: %w", err)
	}
	return buf.Bytes(), nil
}

// Decompress reverses Compress. Anything other than exactly one complete
// stream (empty input, truncation, bad framing, trailing bytes) fails with
// ErrCorrupt.
//
// Brotli streams carry no checksum. A byte changed inside a compressed
// block can still decode cleanly to different output, so ErrCorrupt is not
// a guarantee that damaged input is detected. Such output usually fails
// later as ErrEncoding or as a document format error.
func (c *Codec) Decompress(data []byte) ([]byte, error) {
	r := brotli.NewReader(bytes.NewReader(data))
	var out bytes.Buffer
	if _, err := io.CopyBuffer(&out, r, make([]byte, c.opts.BufferSize)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return out.Bytes(), nil
}

// CompressString compresses the UTF-8 bytes of s.
func (c *Codec) CompressString(s string) ([]byte, error) {
	return c.Compress([]byte(s))
}

// DecompressString decompresses data and returns it as text.
func (c *Codec) DecompressString(data []byte) (string, error) {
	b, err := c.Decompress(data)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrEncoding
	}
	return string(b), nil
}
