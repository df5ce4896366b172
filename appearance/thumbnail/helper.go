// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbnail

import (
	"bufio"
	"context"
	"image"
	"io"

	"golang.org/x/xerrors"
)

const readChunk = 1024

// Serve is the helper side of the pipe. It answers every request read from
// r on w until r reaches EOF or ctx is done. A clean EOF between requests
// returns nil.
func Serve(ctx context.Context, r io.Reader, w io.Writer, renderer Renderer, framing Framing) error {
	bw := bufio.NewWriter(w)
	if framing == FramingLegacy {
		return serveLegacy(ctx, r, bw, renderer)
	}
	return serveFramed(ctx, bufio.NewReader(r), bw, renderer)
}

func render(renderer Renderer, req Request) (*image.NRGBA, error) {
	img, err := renderer.Render(req)
	if err != nil {
		return nil, err
	}
	if img.Bounds().Size() != image.Pt(Width, Height) {
		return nil, xerrors.Errorf("renderer returned %v, want %dx%d", img.Bounds().Size(), Width, Height)
	}
	return img, nil
}

func serveLegacy(ctx context.Context, r io.Reader, w *bufio.Writer, renderer Renderer) error {
	var dec legacyDecoder
	buf := make([]byte, readChunk)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := r.Read(buf)
		for _, req := range dec.feed(buf[:n]) {
			logger.Debugf("render %q %q %q %q", req.GtkTheme, req.WMTheme, req.IconTheme, req.Font)
			img, renderErr := render(renderer, req)
			if renderErr != nil {
				// the byte count is the only framing, send a blank frame
				logger.Warning("render failed:", renderErr)
				img = image.NewNRGBA(image.Rect(0, 0, Width, Height))
			}
			if _, werr := w.Write(packPixels(img)); werr != nil {
				return werr
			}
			if werr := w.Flush(); werr != nil {
				return werr
			}
		}
		if err == io.EOF {
			if dec.state != stateReady && dec.state != stateWriting {
				return io.ErrUnexpectedEOF
			}
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func serveFramed(ctx context.Context, r *bufio.Reader, w *bufio.Writer, renderer Renderer) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		body, err := readMessage(r)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		req, err := unmarshalRequest(body)
		if err != nil {
			return err
		}
		logger.Debugf("render %+v", req)
		img, renderErr := render(renderer, req)
		if err := writeMessage(w, marshalResponse(img, renderErr)); err != nil {
			return err
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
}
