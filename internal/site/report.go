// © 2026 Ilya Mateyko. All rights reserved.
// Use of this source code is governed by the ISC
// license that can be found in the LICENSE.md file.

package site

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"
	"go.astrophena.name/base/logger"
)

// Files with these extensions are reported with their compressed size.
var compressible = map[string]bool{
	".css":  true,
	".html": true,
	".js":   true,
	".json": true,
	".map":  true,
	".mjs":  true,
	".svg":  true,
	".txt":  true,
	".xml":  true,
}

// report logs sizes of files written to dir.
func report(ctx context.Context, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		b, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		rel = filepath.ToSlash(rel)
		if !compressible[filepath.Ext(path)] {
			logger.Info(ctx, "wrote file", slog.String("path", rel), slog.Int("size", len(b)))
			return nil
		}
		n, err := gzipSize(b)
		if err != nil {
			return err
		}
		logger.Info(ctx, "wrote file", slog.String("path", rel), slog.Int("size", len(b)), slog.Int64("gzip", n))
		return nil
	})
}

// countingWriter counts bytes written to it.
type countingWriter int64

func (w *countingWriter) Write(p []byte) (int, error) {
	*w += countingWriter(len(p))
	return len(p), nil
}

func gzipSize(b []byte) (int64, error) {
	var n countingWriter
	zw, err := gzip.NewWriterLevel(&n, gzip.BestCompression)
	if err != nil {
		return 0, err
	}
	if _, err := zw.Write(b); err != nil {
		return 0, err
	}
	if err := zw.Close(); err != nil {
		return 0, err
	}
	return int64(n), nil
}
