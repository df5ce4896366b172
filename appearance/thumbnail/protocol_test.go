// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package thumbnail

import (
	"bufio"
	"bytes"
	"context"
	"image"
	"image/color"
	"io"
	"testing"

	C "gopkg.in/check.v1"
)

type testWrapper struct{}

func init() {
	C.Suite(&testWrapper{})
}

func Test(t *testing.T) {
	C.TestingT(t)
}

// solidRenderer paints the whole canvas with a color derived from the
// gtk theme name length, so responses can be told apart.
type solidRenderer struct {
	requests []Request
}

func (r *solidRenderer) Render(req Request) (*image.NRGBA, error) {
	r.requests = append(r.requests, req)
	img := image.NewNRGBA(image.Rect(0, 0, Width, Height))
	c := color.NRGBA{R: uint8(len(req.GtkTheme)), G: 0x80, A: 0xff}
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img, nil
}

// chunkReader hands out at most n bytes per Read.
type chunkReader struct {
	r io.Reader
	n int
}

func (c *chunkReader) Read(b []byte) (int, error) {
	if len(b) > c.n {
		b = b[:c.n]
	}
	return c.r.Read(b)
}

func (*testWrapper) TestLegacyRequestBytes(c *C.C) {
	var buf bytes.Buffer
	err := writeLegacyRequest(&buf, Request{GtkTheme: "Clearlooks", WMTheme: "Atlanta", IconTheme: "gnome"})
	c.Check(err, C.IsNil)
	c.Check(buf.String(), C.Equals, "Clearlooks\x00Atlanta\x00gnome\x00Sans 10\x00")
}

func (*testWrapper) TestLegacyDecoderChunking(c *C.C) {
	stream := []byte("Clearlooks\x00Atlanta\x00gnome\x00Sans 12\x00Mist\x00\x00hicolor\x00Sans 10\x00")
	want := []Request{
		{GtkTheme: "Clearlooks", WMTheme: "Atlanta", IconTheme: "gnome", Font: "Sans 12"},
		{GtkTheme: "Mist", WMTheme: "", IconTheme: "hicolor", Font: "Sans 10"},
	}
	for _, size := range []int{1, 2, 3, 7, len(stream)} {
		var dec legacyDecoder
		var got []Request
		for i := 0; i < len(stream); i += size {
			end := i + size
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, dec.feed(stream[i:end])...)
		}
		c.Check(got, C.DeepEquals, want, C.Commentf("chunk size %d", size))
		c.Check(dec.state, C.Equals, stateWriting)
	}

	var dec legacyDecoder
	c.Check(dec.feed([]byte("half")), C.HasLen, 0)
	c.Check(dec.state, C.Equals, stateControl)
}

func (*testWrapper) TestServeLegacy(c *C.C) {
	var in bytes.Buffer
	c.Assert(writeLegacyRequest(&in, Request{GtkTheme: "abc"}), C.IsNil)
	c.Assert(writeLegacyRequest(&in, Request{GtkTheme: "abcdef", Font: "Serif 9"}), C.IsNil)

	var out bytes.Buffer
	renderer := &solidRenderer{}
	err := Serve(context.Background(), &chunkReader{r: &in, n: 5}, &out, renderer, FramingLegacy)
	c.Assert(err, C.IsNil)
	c.Check(out.Len(), C.Equals, 2*Width*Height*Channels)
	c.Check(renderer.requests, C.HasLen, 2)
	c.Check(renderer.requests[0].Font, C.Equals, DefaultFont)
	c.Check(renderer.requests[1].Font, C.Equals, "Serif 9")

	r := &chunkReader{r: &out, n: 333}
	first, err := readLegacyFrame(r)
	c.Assert(err, C.IsNil)
	c.Check(first.NRGBAAt(0, 0).R, C.Equals, uint8(3))
	second, err := readLegacyFrame(r)
	c.Assert(err, C.IsNil)
	c.Check(second.NRGBAAt(Width-1, Height-1).R, C.Equals, uint8(6))
}

func (*testWrapper) TestServeLegacyTruncated(c *C.C) {
	in := bytes.NewBufferString("abc\x00def")
	var out bytes.Buffer
	err := Serve(context.Background(), in, &out, &solidRenderer{}, FramingLegacy)
	c.Check(err, C.Equals, io.ErrUnexpectedEOF)
	c.Check(out.Len(), C.Equals, 0)

	_, err = readLegacyFrame(bytes.NewReader(make([]byte, 10)))
	c.Check(err, C.NotNil)
}

func (*testWrapper) TestFramedRoundTrip(c *C.C) {
	req := Request{GtkTheme: "Adwaita", WMTheme: "Adwaita", IconTheme: "gnome", Font: "Cantarell 11", Kind: KindGtk}
	got, err := unmarshalRequest(marshalRequest(req))
	c.Assert(err, C.IsNil)
	c.Check(got, C.DeepEquals, req)

	got, err = unmarshalRequest(marshalRequest(Request{GtkTheme: "x"}))
	c.Assert(err, C.IsNil)
	c.Check(got.Font, C.Equals, DefaultFont)
	c.Check(got.Kind, C.Equals, KindMeta)

	_, err = unmarshalRequest([]byte{0x0a, 0x05, 'a'})
	c.Check(err, C.NotNil)
}

func (*testWrapper) TestServeFramed(c *C.C) {
	var in bytes.Buffer
	c.Assert(writeMessage(&in, marshalRequest(Request{GtkTheme: "ab"})), C.IsNil)
	c.Assert(writeMessage(&in, marshalRequest(Request{GtkTheme: "abcd"})), C.IsNil)

	var out bytes.Buffer
	err := Serve(context.Background(), &in, &out, &solidRenderer{}, FramingFramed)
	c.Assert(err, C.IsNil)

	r := bufio.NewReader(&out)
	for _, want := range []uint8{2, 4} {
		body, err := readMessage(r)
		c.Assert(err, C.IsNil)
		img, err := unmarshalResponse(body)
		c.Assert(err, C.IsNil)
		c.Check(img.Bounds(), C.Equals, image.Rect(0, 0, Width, Height))
		c.Check(img.NRGBAAt(10, 10).R, C.Equals, want)
	}
	_, err = readMessage(r)
	c.Check(err, C.Equals, io.EOF)
}

func (*testWrapper) TestResponseError(c *C.C) {
	_, err := unmarshalResponse(marshalResponse(nil, io.ErrClosedPipe))
	c.Assert(err, C.NotNil)
	_, ok := err.(*RenderError)
	c.Check(ok, C.Equals, true)

	_, err = readMessage(bufio.NewReader(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0x0f})))
	c.Check(err, C.NotNil)
}

func (*testWrapper) TestParseFraming(c *C.C) {
	f, err := ParseFraming("legacy")
	c.Check(err, C.IsNil)
	c.Check(f, C.Equals, FramingLegacy)
	f, err = ParseFraming("")
	c.Check(err, C.IsNil)
	c.Check(f, C.Equals, FramingFramed)
	_, err = ParseFraming("json")
	c.Check(err, C.NotNil)
}
