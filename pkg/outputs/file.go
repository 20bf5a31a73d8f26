// Package outputs holds the subscribers that forward persisted events
// outside of the store.
package outputs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/sentinelhq/sentinel/pkg/csconfig"
	"github.com/sentinelhq/sentinel/pkg/types"
)

// FileOutput appends one JSON object per event to a rotated file.
type FileOutput struct {
	path string
	mu   sync.Mutex
	out  *lumberjack.Logger
}

func NewFileOutput(cfg *csconfig.FileOutputCfg) (*FileOutput, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o750); err != nil {
		return nil, fmt.Errorf("unable to create log directory: %w", err)
	}

	compress := cfg.Compress != nil && *cfg.Compress

	return &FileOutput{
		path: cfg.Path,
		out: &lumberjack.Logger{
			Filename:   cfg.Path,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxFiles,
			MaxAge:     cfg.MaxAge,
			Compress:   compress,
		},
	}, nil
}

func (*FileOutput) Name() string { return "log_file" }

func (f *FileOutput) Path() string { return f.path }

func (f *FileOutput) OnEvent(_ context.Context, evt *types.AttackEvent) error {
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event %d: %w", evt.ID, err)
	}

	line = append(line, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()

	if _, err := f.out.Write(line); err != nil {
		return fmt.Errorf("write %s: %w", f.path, err)
	}

	return nil
}

// Reset truncates the current file. Rotated backups are kept.
func (f *FileOutput) Reset() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.out.Close(); err != nil {
		return err
	}

	if err := os.Truncate(f.path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("truncate %s: %w", f.path, err)
	}

	return nil
}

func (f *FileOutput) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.out.Close()
}
