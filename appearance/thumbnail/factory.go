// SPDX-FileCopyrightText: 2022 UnionTech Software Technology Co., Ltd.
//
// SPDX-License-Identifier: GPL-3.0-or-later

// Package thumbnail renders theme previews in a separate helper process
// and caches them by meta theme name.
package thumbnail

import (
	"bufio"
	"errors"
	"image"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/linuxdeepin/go-lib/log"
	"golang.org/x/image/draw"
	"golang.org/x/xerrors"

	"github.com/linuxdeepin/dde-appearance/appearance/subthemes"
)

var logger = log.NewLogger("daemon/appearance/thumbnail")

func SetLogger(value *log.Logger) {
	logger = value
}

var (
	ErrAsyncBusy   = errors.New("an asynchronous thumbnail request is already outstanding")
	ErrFactoryDead = errors.New("thumbnail helper is not available")
)

const DefaultMaxRestarts = 3

type Config struct {
	Framing Framing
	// how often a failed helper is respawned; 0 keeps it dead after the
	// first I/O error
	MaxRestarts int
}

func DefaultConfig() Config {
	return Config{Framing: FramingFramed, MaxRestarts: DefaultMaxRestarts}
}

// AsyncFunc receives the request ID handed out by PendingAsync and the
// downsampled preview, nil on failure.
type AsyncFunc func(id, name string, img *image.NRGBA)

type cacheEntry struct {
	full *image.NRGBA
	half *image.NRGBA
}

// Factory talks to one helper process. Requests are serialized on the
// pipe; at most one asynchronous request is outstanding.
type Factory struct {
	cfg   Config
	spawn Spawner

	mu       sync.Mutex
	proc     Process
	reader   *bufio.Reader
	restarts int
	dead     bool

	cacheMu sync.Mutex
	cache   map[string]cacheEntry

	asyncBusy atomic.Bool
	asyncMu   sync.Mutex
	asyncID   string
	wg        sync.WaitGroup
}

// New does not start the helper, the first request does.
func New(cfg Config, spawn Spawner) *Factory {
	if cfg.MaxRestarts < 0 {
		cfg.MaxRestarts = 0
	}
	return &Factory{
		cfg:   cfg,
		spawn: spawn,
		cache: make(map[string]cacheEntry),
	}
}

// MetaRequest describes the full preview of meta.
func MetaRequest(meta *subthemes.MetaTheme) Request {
	return Request{
		GtkTheme:  meta.GtkThemeName,
		WMTheme:   meta.MetacityThemeName,
		IconTheme: meta.IconThemeName,
		Font:      meta.ApplicationFont,
		Kind:      KindMeta,
	}
}

// GenerateThemeThumbnail returns the full size preview of meta, from the
// cache unless clearCache is set. It blocks until the helper answers.
func (f *Factory) GenerateThemeThumbnail(meta *subthemes.MetaTheme, clearCache bool) *image.NRGBA {
	if meta == nil {
		return nil
	}
	if clearCache {
		f.InvalidateCache(meta.Name)
	} else if entry, ok := f.cached(meta.Name); ok && entry.full != nil {
		return entry.full
	}

	img, err := f.Render(MetaRequest(meta))
	if err != nil {
		logger.Debugf("no thumbnail for %s: %v", meta.Name, err)
		return nil
	}
	f.store(meta.Name, func(e *cacheEntry) { e.full = img })
	return img
}

// GenerateThemeThumbnailAsync renders meta in the background and calls fn
// with the preview downsampled 2x. It fails with ErrAsyncBusy until the
// previous fn has been called.
func (f *Factory) GenerateThemeThumbnailAsync(meta *subthemes.MetaTheme, fn AsyncFunc) error {
	if meta == nil {
		return xerrors.New("nil meta theme")
	}
	if !f.asyncBusy.CompareAndSwap(false, true) {
		return ErrAsyncBusy
	}

	id := uuid.New().String()
	f.asyncMu.Lock()
	f.asyncID = id
	f.asyncMu.Unlock()
	name := meta.Name
	req := MetaRequest(meta)
	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		logger.Debugf("[%s] async thumbnail for %s", id, name)

		var half *image.NRGBA
		if entry, ok := f.cached(name); ok && entry.half != nil {
			half = entry.half
		} else if img, err := f.Render(req); err == nil {
			half = downsample(img)
			f.store(name, func(e *cacheEntry) { e.half = half })
		} else {
			logger.Debugf("[%s] failed: %v", id, err)
		}

		// fn may issue the next request
		f.asyncMu.Lock()
		f.asyncID = ""
		f.asyncMu.Unlock()
		f.asyncBusy.Store(false)
		if fn != nil {
			fn(id, name, half)
		}
	}()
	return nil
}

// PendingAsync returns the ID of the outstanding asynchronous request.
func (f *Factory) PendingAsync() (id string, ok bool) {
	f.asyncMu.Lock()
	defer f.asyncMu.Unlock()
	return f.asyncID, f.asyncID != ""
}

// InvalidateCache drops the previews of name. Requests in flight are not
// affected.
func (f *Factory) InvalidateCache(name string) {
	f.cacheMu.Lock()
	delete(f.cache, name)
	f.cacheMu.Unlock()
}

func (f *Factory) cached(name string) (cacheEntry, bool) {
	f.cacheMu.Lock()
	defer f.cacheMu.Unlock()
	entry, ok := f.cache[name]
	return entry, ok
}

func (f *Factory) store(name string, update func(*cacheEntry)) {
	f.cacheMu.Lock()
	entry := f.cache[name]
	update(&entry)
	f.cache[name] = entry
	f.cacheMu.Unlock()
}

// blankFrame reports a fully transparent image. Previews always paint an
// opaque window background.
func blankFrame(img *image.NRGBA) bool {
	for i := 3; i < len(img.Pix); i += Channels {
		if img.Pix[i] != 0 {
			return false
		}
	}
	return true
}

func downsample(img *image.NRGBA) *image.NRGBA {
	size := img.Bounds().Size()
	dst := image.NewNRGBA(image.Rect(0, 0, size.X/2, size.Y/2))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)
	return dst
}

// Render sends req to the helper without touching the cache. A broken
// helper is respawned up to MaxRestarts times over the factory lifetime,
// retrying req after each respawn.
func (f *Factory) Render(req Request) (*image.NRGBA, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for {
		if f.dead {
			return nil, ErrFactoryDead
		}
		if f.proc == nil {
			proc, err := f.spawn()
			if err != nil {
				if !f.failed(xerrors.Errorf("spawn helper: %w", err)) {
					return nil, ErrFactoryDead
				}
				continue
			}
			f.proc = proc
			f.reader = bufio.NewReaderSize(proc, frameSize)
		}

		img, err := f.roundTrip(req)
		if err == nil {
			return img, nil
		}
		var renderErr *RenderError
		if xerrors.As(err, &renderErr) {
			return nil, err
		}
		f.teardown()
		if !f.failed(err) {
			return nil, ErrFactoryDead
		}
	}
}

func (f *Factory) roundTrip(req Request) (*image.NRGBA, error) {
	if f.cfg.Framing == FramingLegacy {
		if err := writeLegacyRequest(f.proc, req); err != nil {
			return nil, xerrors.Errorf("write request: %w", err)
		}
		img, err := readLegacyFrame(f.reader)
		if err == nil && blankFrame(img) {
			// what the legacy helper sends when it could not render
			return nil, &RenderError{Message: "blank frame"}
		}
		return img, err
	}

	if err := writeMessage(f.proc, marshalRequest(req)); err != nil {
		return nil, xerrors.Errorf("write request: %w", err)
	}
	body, err := readMessage(f.reader)
	if err != nil {
		return nil, xerrors.Errorf("read response: %w", err)
	}
	return unmarshalResponse(body)
}

// failed records a helper failure and reports whether another spawn is
// allowed. Called with mu held.
func (f *Factory) failed(err error) bool {
	if f.restarts >= f.cfg.MaxRestarts {
		f.dead = true
		logger.Warning("thumbnail helper failed, no more previews:", err)
		return false
	}
	f.restarts++
	logger.Warningf("thumbnail helper failed, restarting (%d/%d): %v",
		f.restarts, f.cfg.MaxRestarts, err)
	return true
}

// teardown is called with mu held.
func (f *Factory) teardown() {
	if f.proc == nil {
		return
	}
	if err := f.proc.Close(); err != nil {
		logger.Debug("close helper:", err)
	}
	f.proc = nil
	f.reader = nil
}

// Close stops the helper and waits for the async request, if any.
func (f *Factory) Close() {
	f.mu.Lock()
	f.dead = true
	f.teardown()
	f.mu.Unlock()
	f.wg.Wait()
}
