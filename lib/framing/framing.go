// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package framing

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Framing identifies an outer compression format. The zero value is
// an unframed payload.
type Framing uint8

const (
	None Framing = iota
	Gzip
	Zlib
	Zstd
	LZ4
)

func (f Framing) String() string {
	switch f {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zlib:
		return "zlib"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", f)
	}
}

// ParseFraming is the inverse of Framing.String.
func ParseFraming(name string) (Framing, error) {
	switch name {
	case "none":
		return None, nil
	case "gzip":
		return Gzip, nil
	case "zlib":
		return Zlib, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("unknown framing %q", name)
	}
}

// Frame describes how a payload was wrapped.
type Frame struct {
	Framing Framing

	// Level is the compression level to re-encode with, derived from
	// the gzip XFL byte or the zlib FLEVEL bits. Ignored by the other
	// framings.
	Level int

	// Gzip member header fields.
	Name    string
	Comment string
	Extra   []byte
	ModTime time.Time
	OS      byte
}

// ErrTooLarge is returned when a payload expands past the limit given
// to Decode.
var ErrTooLarge = errors.New("decompressed payload exceeds size limit")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
	lz4Magic  = []byte{0x04, 0x22, 0x4d, 0x18}
)

// Detect identifies the framing of data from its leading bytes.
func Detect(data []byte) Framing {
	switch {
	case bytes.HasPrefix(data, gzipMagic):
		return Gzip
	case bytes.HasPrefix(data, zstdMagic):
		return Zstd
	case bytes.HasPrefix(data, lz4Magic):
		return LZ4
	case isZlibHeader(data):
		return Zlib
	default:
		return None
	}
}

// isZlibHeader checks RFC 1950's CMF/FLG pair: deflate method, a window
// no larger than 32K, and the header checksum.
func isZlibHeader(data []byte) bool {
	if len(data) < 2 {
		return false
	}
	cmf, flg := data[0], data[1]
	return cmf&0x0f == 8 && cmf>>4 <= 7 && (uint16(cmf)<<8|uint16(flg))%31 == 0
}

// zstdEncoder is safe for concurrent EncodeAll calls.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("framing: zstd encoder initialization failed: " + err.Error())
	}
}

// Decode strips the framing from data. limit bounds the decompressed
// size; a non-positive limit means no bound. Unframed data is returned
// as is.
func Decode(data []byte, limit int64) ([]byte, Frame, error) {
	frame := Frame{Framing: Detect(data)}
	switch frame.Framing {
	case None:
		return data, frame, nil

	case Gzip:
		reader, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, frame, fmt.Errorf("gzip: %w", err)
		}
		defer reader.Close()
		frame.Name = reader.Name
		frame.Comment = reader.Comment
		frame.Extra = reader.Extra
		frame.ModTime = reader.ModTime
		frame.OS = reader.OS
		frame.Level = gzipLevel(data)
		payload, err := readLimited(reader, limit)
		if err != nil {
			return nil, frame, fmt.Errorf("gzip: %w", err)
		}
		return payload, frame, nil

	case Zlib:
		reader, err := zlib.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, frame, fmt.Errorf("zlib: %w", err)
		}
		defer reader.Close()
		frame.Level = zlibLevel(data[1] >> 6)
		payload, err := readLimited(reader, limit)
		if err != nil {
			return nil, frame, fmt.Errorf("zlib: %w", err)
		}
		return payload, frame, nil

	case Zstd:
		decoder, err := zstd.NewReader(bytes.NewReader(data), zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, frame, fmt.Errorf("zstd: %w", err)
		}
		defer decoder.Close()
		payload, err := readLimited(decoder, limit)
		if err != nil {
			return nil, frame, fmt.Errorf("zstd: %w", err)
		}
		return payload, frame, nil

	case LZ4:
		payload, err := readLimited(lz4.NewReader(bytes.NewReader(data)), limit)
		if err != nil {
			return nil, frame, fmt.Errorf("lz4: %w", err)
		}
		return payload, frame, nil
	}
	return nil, frame, fmt.Errorf("unsupported framing %s", frame.Framing)
}

func readLimited(reader io.Reader, limit int64) ([]byte, error) {
	if limit <= 0 {
		return io.ReadAll(reader)
	}
	payload, err := io.ReadAll(io.LimitReader(reader, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(payload)) > limit {
		return nil, ErrTooLarge
	}
	return payload, nil
}

// gzipLevel maps the member header's XFL byte to a writer level.
func gzipLevel(data []byte) int {
	if len(data) < 9 {
		return gzip.DefaultCompression
	}
	switch data[8] {
	case 2:
		return gzip.BestCompression
	case 4:
		return gzip.BestSpeed
	default:
		return gzip.DefaultCompression
	}
}

func zlibLevel(flevel byte) int {
	switch flevel {
	case 0:
		return zlib.BestSpeed
	case 1:
		return 3
	case 3:
		return zlib.BestCompression
	default:
		return zlib.DefaultCompression
	}
}

// Encode wraps payload in frame's framing.
func Encode(payload []byte, frame Frame) ([]byte, error) {
	var buffer bytes.Buffer
	switch frame.Framing {
	case None:
		return bytes.Clone(payload), nil

	case Gzip:
		writer, err := gzip.NewWriterLevel(&buffer, frame.levelOr(gzip.DefaultCompression))
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		writer.Name = frame.Name
		writer.Comment = frame.Comment
		writer.Extra = frame.Extra
		writer.ModTime = frame.ModTime
		writer.OS = frame.OS
		if err := finish(writer, payload); err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}

	case Zlib:
		writer, err := zlib.NewWriterLevel(&buffer, frame.levelOr(zlib.DefaultCompression))
		if err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}
		if err := finish(writer, payload); err != nil {
			return nil, fmt.Errorf("zlib: %w", err)
		}

	case Zstd:
		return zstdEncoder.EncodeAll(payload, nil), nil

	case LZ4:
		if err := finish(lz4.NewWriter(&buffer), payload); err != nil {
			return nil, fmt.Errorf("lz4: %w", err)
		}

	default:
		return nil, fmt.Errorf("unsupported framing %s", frame.Framing)
	}
	return buffer.Bytes(), nil
}

func (f Frame) levelOr(fallback int) int {
	if f.Level == 0 {
		return fallback
	}
	return f.Level
}

func finish(writer io.WriteCloser, payload []byte) error {
	if _, err := writer.Write(payload); err != nil {
		writer.Close()
		return err
	}
	return writer.Close()
}
