package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DirAssets opens assets as files below a directory. An asset id without an
// extension matches the first file named id plus one of Extensions.
type DirAssets struct {
	Root string
}

var Extensions = []string{".wav", ".mp3", ".flac", ".ogg", ".aif", ".aiff"}

func (d DirAssets) Open(ctx context.Context, assetID string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !filepath.IsLocal(assetID) {
		return nil, fmt.Errorf("asset id %q escapes the asset directory", assetID)
	}
	base := filepath.Join(d.Root, assetID)
	candidates := []string{base}
	if filepath.Ext(assetID) == "" {
		for _, ext := range Extensions {
			candidates = append(candidates, base+ext)
		}
	}
	for _, p := range candidates {
		f, err := os.Open(p)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("asset %q: %w", assetID, os.ErrNotExist)
}
