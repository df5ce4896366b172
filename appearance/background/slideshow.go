// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

package background

import (
	"bytes"
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/xerrors"
)

// SlideFile is one rendition of a slide image.
type SlideFile struct {
	Path          string
	Width, Height int
}

// Slide is either a static image or a transition between two images.
type Slide struct {
	Static   bool
	Duration time.Duration
	// renditions of the static image or of the transition's start
	From []SlideFile
	// renditions of the transition's end, empty for static slides
	To []SlideFile
}

type Slideshow struct {
	StartTime time.Time
	Slides    []Slide
}

type slideshowXML struct {
	XMLName xml.Name   `xml:"background"`
	Nodes   []slideXML `xml:",any"`
}

type slideXML struct {
	XMLName  xml.Name
	Duration float64 `xml:"duration"`
	File     fileXML `xml:"file"`
	From     fileXML `xml:"from"`
	To       fileXML `xml:"to"`
	Year     int     `xml:"year"`
	Month    int     `xml:"month"`
	Day      int     `xml:"day"`
	Hour     int     `xml:"hour"`
	Minute   int     `xml:"minute"`
	Second   int     `xml:"second"`
}

type fileXML struct {
	Path  string    `xml:",chardata"`
	Sizes []sizeXML `xml:"size"`
}

type sizeXML struct {
	Width  int    `xml:"width,attr"`
	Height int    `xml:"height,attr"`
	Path   string `xml:",chardata"`
}

func (f fileXML) renditions(base string) []SlideFile {
	var result []SlideFile
	resolve := func(p string) string {
		p = strings.TrimSpace(p)
		if p != "" && !filepath.IsAbs(p) {
			p = filepath.Join(base, p)
		}
		return p
	}
	for _, size := range f.Sizes {
		if p := resolve(size.Path); p != "" {
			result = append(result, SlideFile{Path: p, Width: size.Width, Height: size.Height})
		}
	}
	if len(result) == 0 {
		if p := resolve(f.Path); p != "" {
			result = append(result, SlideFile{Path: p})
		}
	}
	return result
}

// looksLikeSlideshow checks the first bytes of a file for an XML document.
func looksLikeSlideshow(head []byte) bool {
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	head = bytes.TrimSpace(head)
	return bytes.HasPrefix(head, []byte("<?xml")) || bytes.HasPrefix(head, []byte("<background"))
}

func parseSlideshow(data []byte, base string) (*Slideshow, error) {
	var doc slideshowXML
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.CharsetReader = xmlCharsetReader
	if err := dec.Decode(&doc); err != nil {
		return nil, xerrors.Errorf("parse slideshow: %w", err)
	}

	show := &Slideshow{}
	for _, node := range doc.Nodes {
		duration := time.Duration(node.Duration * float64(time.Second))
		switch node.XMLName.Local {
		case "starttime":
			show.StartTime = time.Date(node.Year, time.Month(node.Month), node.Day,
				node.Hour, node.Minute, node.Second, 0, time.Local)
		case "static":
			files := node.File.renditions(base)
			if len(files) == 0 {
				continue
			}
			show.Slides = append(show.Slides, Slide{Static: true, Duration: duration, From: files})
		case "transition":
			from, to := node.From.renditions(base), node.To.renditions(base)
			if len(from) == 0 || len(to) == 0 {
				continue
			}
			show.Slides = append(show.Slides, Slide{Duration: duration, From: from, To: to})
		}
	}
	if len(show.Slides) == 0 {
		return nil, xerrors.New("slideshow has no slides")
	}
	return show, nil
}

func loadSlideshow(file string) (*Slideshow, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, err
	}
	return parseSlideshow(data, filepath.Dir(file))
}

// ChangesWithTime is true when more than one image is shown over time.
func (s *Slideshow) ChangesWithTime() bool {
	statics := 0
	for _, slide := range s.Slides {
		if !slide.Static {
			return true
		}
		statics++
	}
	return statics > 1
}

func (s *Slideshow) HasMultipleSizes() bool {
	for _, slide := range s.Slides {
		if len(slide.From) > 1 || len(slide.To) > 1 {
			return true
		}
	}
	return false
}

func (s *Slideshow) totalDuration() time.Duration {
	var total time.Duration
	for _, slide := range s.Slides {
		total += slide.Duration
	}
	return total
}

// current returns the slide shown at now and how far into it we are, in [0, 1].
func (s *Slideshow) current(now time.Time) (*Slide, float64) {
	total := s.totalDuration()
	if total <= 0 {
		return &s.Slides[0], 0
	}
	elapsed := now.Sub(s.StartTime) % total
	if elapsed < 0 {
		elapsed += total
	}
	for i := range s.Slides {
		slide := &s.Slides[i]
		if elapsed < slide.Duration {
			return slide, float64(elapsed) / float64(slide.Duration)
		}
		elapsed -= slide.Duration
	}
	return &s.Slides[len(s.Slides)-1], 1
}

// staticFrame returns the n-th static slide.
func (s *Slideshow) staticFrame(n int) *Slide {
	for i := range s.Slides {
		if !s.Slides[i].Static {
			continue
		}
		if n == 0 {
			return &s.Slides[i]
		}
		n--
	}
	return nil
}

// bestRendition picks the rendition whose size is closest to the screen.
func bestRendition(files []SlideFile, screenW, screenH int) SlideFile {
	best := files[0]
	bestDist := -1
	for _, f := range files {
		if f.Width == 0 || f.Height == 0 {
			continue
		}
		dist := abs(f.Width*f.Height - screenW*screenH)
		if bestDist < 0 || dist < bestDist {
			best, bestDist = f, dist
		}
	}
	return best
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
