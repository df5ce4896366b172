// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbnail

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"image"
	"io"

	"golang.org/x/xerrors"
	"google.golang.org/protobuf/encoding/protowire"
)

// Framing selects how requests and responses travel over the helper pipes.
type Framing int

const (
	// FramingFramed sends uvarint length prefixed protobuf wire messages.
	FramingFramed Framing = iota
	// FramingLegacy sends four NUL-terminated strings and reads back
	// exactly Width*Height*Channels raw bytes.
	FramingLegacy
)

func (f Framing) String() string {
	if f == FramingLegacy {
		return "legacy"
	}
	return "framed"
}

func ParseFraming(name string) (Framing, error) {
	switch name {
	case "", "framed":
		return FramingFramed, nil
	case "legacy":
		return FramingLegacy, nil
	}
	return FramingFramed, xerrors.Errorf("unknown framing %q", name)
}

const (
	Width    = 150
	Height   = 150
	Channels = 4

	frameSize = Width * Height * Channels

	// larger messages mean a corrupt stream
	maxMessageSize = 4 * frameSize

	DefaultFont = "Sans 10"
)

// Kind is what a preview shows. The legacy framing only knows KindMeta.
type Kind int

const (
	KindMeta Kind = iota
	KindGtk
	KindMetacity
	KindIcon
)

// Request names the themes a preview is rendered with.
type Request struct {
	GtkTheme  string
	WMTheme   string
	IconTheme string
	Font      string
	Kind      Kind
}

func (r Request) font() string {
	if r.Font == "" {
		return DefaultFont
	}
	return r.Font
}

// request fields
const (
	fieldGtkTheme  protowire.Number = 1
	fieldWMTheme   protowire.Number = 2
	fieldIconTheme protowire.Number = 3
	fieldFont      protowire.Number = 4
	fieldKind      protowire.Number = 5
)

// response fields
const (
	fieldWidth    protowire.Number = 1
	fieldHeight   protowire.Number = 2
	fieldChannels protowire.Number = 3
	fieldPixels   protowire.Number = 4
	fieldError    protowire.Number = 5
)

func appendString(b []byte, num protowire.Number, value string) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, value)
}

func appendVarint(b []byte, num protowire.Number, value uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, value)
}

func marshalRequest(req Request) []byte {
	var b []byte
	b = appendString(b, fieldGtkTheme, req.GtkTheme)
	b = appendString(b, fieldWMTheme, req.WMTheme)
	b = appendString(b, fieldIconTheme, req.IconTheme)
	b = appendString(b, fieldFont, req.font())
	if req.Kind != KindMeta {
		b = appendVarint(b, fieldKind, uint64(req.Kind))
	}
	return b
}

// walkFields calls fn for each field of a protobuf wire message. Unknown
// fields are skipped.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, value []byte, v uint64)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, nil, v)
			b = b[n:]
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			fn(num, typ, v, 0)
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return protowire.ParseError(n)
			}
			b = b[n:]
		}
	}
	return nil
}

func unmarshalRequest(b []byte) (Request, error) {
	var req Request
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte, v uint64) {
		switch num {
		case fieldGtkTheme:
			req.GtkTheme = string(value)
		case fieldWMTheme:
			req.WMTheme = string(value)
		case fieldIconTheme:
			req.IconTheme = string(value)
		case fieldFont:
			req.Font = string(value)
		case fieldKind:
			req.Kind = Kind(v)
		}
	})
	if err != nil {
		return req, xerrors.Errorf("decode request: %w", err)
	}
	return req, nil
}

func marshalResponse(img *image.NRGBA, renderErr error) []byte {
	var b []byte
	if renderErr != nil {
		return appendString(b, fieldError, renderErr.Error())
	}
	size := img.Bounds().Size()
	b = appendVarint(b, fieldWidth, uint64(size.X))
	b = appendVarint(b, fieldHeight, uint64(size.Y))
	b = appendVarint(b, fieldChannels, Channels)
	b = protowire.AppendTag(b, fieldPixels, protowire.BytesType)
	return protowire.AppendBytes(b, packPixels(img))
}

func unmarshalResponse(b []byte) (*image.NRGBA, error) {
	var width, height, channels int
	var pixels []byte
	var remoteErr string
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte, v uint64) {
		switch num {
		case fieldWidth:
			width = int(v)
		case fieldHeight:
			height = int(v)
		case fieldChannels:
			channels = int(v)
		case fieldPixels:
			pixels = value
		case fieldError:
			remoteErr = string(value)
		}
	})
	if err != nil {
		return nil, xerrors.Errorf("decode response: %w", err)
	}
	if remoteErr != "" {
		return nil, &RenderError{Message: remoteErr}
	}
	if channels != Channels || width <= 0 || height <= 0 || len(pixels) != width*height*channels {
		return nil, xerrors.Errorf("bad response %dx%dx%d with %d bytes",
			width, height, channels, len(pixels))
	}
	return unpackPixels(pixels, width, height), nil
}

// RenderError is a failure reported by the helper. The pipe stays usable.
type RenderError struct {
	Message string
}

func (e *RenderError) Error() string {
	return "render helper: " + e.Message
}

func writeMessage(w io.Writer, body []byte) error {
	var prefix [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(prefix[:], uint64(len(body)))
	if _, err := w.Write(prefix[:n]); err != nil {
		return err
	}
	_, err := w.Write(body)
	return err
}

func readMessage(r *bufio.Reader) ([]byte, error) {
	size, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, err
	}
	if size > maxMessageSize {
		return nil, xerrors.Errorf("message of %d bytes is too large", size)
	}
	body := make([]byte, size)
	_, err = io.ReadFull(r, body)
	if err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}
	return body, nil
}

// writeLegacyRequest sends gtk, wm, icon theme and font, in that order,
// each terminated by NUL.
func writeLegacyRequest(w io.Writer, req Request) error {
	var buf bytes.Buffer
	for _, field := range []string{req.GtkTheme, req.WMTheme, req.IconTheme, req.font()} {
		buf.WriteString(field)
		buf.WriteByte(0)
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// readLegacyFrame reads exactly one Width x Height RGBA frame, whatever
// chunking the pipe delivers it in.
func readLegacyFrame(r io.Reader) (*image.NRGBA, error) {
	buf := make([]byte, frameSize)
	n, err := io.ReadFull(r, buf)
	if err != nil {
		if n > 0 {
			return nil, xerrors.Errorf("short pixel frame after %d bytes: %w", n, err)
		}
		return nil, err
	}
	return unpackPixels(buf, Width, Height), nil
}

// packPixels returns the rows of img back to back without stride padding.
func packPixels(img *image.NRGBA) []byte {
	b := img.Bounds()
	rowLen := b.Dx() * Channels
	out := make([]byte, 0, rowLen*b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		out = append(out, img.Pix[off:off+rowLen]...)
	}
	return out
}

func unpackPixels(pixels []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, pixels)
	return img
}

type legacyState int

const (
	stateReady legacyState = iota
	stateControl
	stateWM
	stateIcon
	stateFont
	stateWriting
)

// legacyDecoder collects NUL-terminated fields from an arbitrarily chunked
// byte stream.
type legacyDecoder struct {
	state  legacyState
	fields [4]bytes.Buffer
}

// feed consumes chunk and returns the requests it completed.
func (d *legacyDecoder) feed(chunk []byte) []Request {
	var done []Request
	for len(chunk) > 0 {
		if d.state == stateReady || d.state == stateWriting {
			d.state = stateControl
		}
		field := &d.fields[d.state-stateControl]
		idx := bytes.IndexByte(chunk, 0)
		if idx < 0 {
			field.Write(chunk)
			break
		}
		field.Write(chunk[:idx])
		chunk = chunk[idx+1:]

		if d.state != stateFont {
			d.state++
			continue
		}
		d.state = stateWriting
		done = append(done, Request{
			GtkTheme:  d.fields[0].String(),
			WMTheme:   d.fields[1].String(),
			IconTheme: d.fields[2].String(),
			Font:      d.fields[3].String(),
		})
		for i := range d.fields {
			d.fields[i].Reset()
		}
	}
	return done
}
