package engine

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/vaist/studio"
)

// LoadAsset decodes the bytes read from r and caches the result under
// assetID. A failed decode is returned and nothing is cached, so a clip of
// that asset stays silent until a later load succeeds.
func (e *Engine) LoadAsset(ctx context.Context, assetID string, r io.Reader) error {
	if e.isClosed() {
		return ErrDisposed
	}
	if e.decoder == nil {
		return ErrNoDecoder
	}
	buf, err := e.decoder.Decode(ctx, r)
	if err != nil {
		e.log.Error().Err(err).Str("asset", assetID).Msg("decode failed")
		return fmt.Errorf("decoding asset %q: %w", assetID, err)
	}
	return e.AddBuffer(assetID, buf)
}

// AddBuffer caches an already decoded buffer.
func (e *Engine) AddBuffer(assetID string, buf *studio.AudioBuffer) error {
	if e.isClosed() {
		return ErrDisposed
	}
	e.cache.Set(assetID, buf)
	e.log.Debug().Str("asset", assetID).Int("frames", buf.Frames()).Msg("asset cached")
	return nil
}

// Preload loads every asset referenced by the session that is not cached yet,
// using at most the configured number of concurrent decodes. The first error
// cancels the remaining loads and is returned.
func (e *Engine) Preload(ctx context.Context, src studio.AssetSource, sess *studio.Session) error {
	if e.isClosed() {
		return ErrDisposed
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.workers, 1))
	for _, id := range sess.AssetIDs() {
		if e.cache.Has(id) {
			continue
		}
		g.Go(func() error {
			rc, err := src.Open(ctx, id)
			if err != nil {
				return fmt.Errorf("opening asset %q: %w", id, err)
			}
			defer rc.Close()
			return e.LoadAsset(ctx, id, rc)
		})
	}
	return g.Wait()
}

func (e *Engine) isClosed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}
