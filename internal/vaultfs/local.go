package vaultfs

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

type localConfig struct {
	Dir string `json:"dir"`
}

type localProvider struct {
	dir string
}

func init() {
	Register("local", createLocalProvider)
}

func createLocalProvider(args interface{}) (Provider, error) {
	config := &localConfig{}
	if err := decodeConfig(args, config); err != nil {
		return nil, err
	}
	if config.Dir == "" {
		return nil, fmt.Errorf("local vault dir is required")
	}
	return &localProvider{dir: config.Dir}, nil
}

func (p *localProvider) List(ctx context.Context) ([]FileMeta, error) {
	if _, err := os.Stat(p.dir); err != nil {
		return nil, fmt.Errorf("vault root %s: %w", p.dir, err)
	}
	var out []FileMeta
	err := filepath.WalkDir(p.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(p.dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, FileMeta{
			Path:    filepath.ToSlash(rel),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (p *localProvider) Read(ctx context.Context, path string) ([]byte, error) {
	_ = ctx
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("invalid vault path: %s", path)
	}
	return os.ReadFile(filepath.Join(p.dir, clean))
}
