package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes blobs to the local filesystem. Keys are paths, relative
// to Root when Root is set.
type FileSink struct {
	Root string
}

func (f FileSink) Put(ctx context.Context, key string, data []byte, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := key
	if f.Root != "" && !filepath.IsAbs(key) {
		path = filepath.Join(f.Root, key)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dirs: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
