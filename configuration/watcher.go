package configuration

import (
	"context"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the configuration file on every write and calls onChange with
// the parsed result. An unparsable file is logged and skipped. It blocks until
// ctx is done.
func Watch(ctx context.Context, path string, logger *zap.Logger, onChange func(*Configuration)) error {
	if path == "" {
		path = DefaultConfigurationPath
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	// Editors replace the file instead of writing it, watch the parent directory.
	if err = watcher.Add(filepath.Dir(absolute)); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != absolute || !(event.Has(fsnotify.Write) || event.Has(fsnotify.Create)) {
				continue
			}

			// Truncated while being written.
			if info, e := os.Stat(absolute); e != nil || info.Size() == 0 {
				continue
			}

			c, e := GetConfiguration(absolute)
			if e != nil {
				logger.Sugar().Errorf("Ignore the configuration change of %s: %v", absolute, e)
				continue
			}
			logger.Sugar().Infof("Configuration %s reloaded with the version %s", absolute, c.GetVersion())
			onChange(c)
		case e, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Sugar().Warnf("Configuration watcher error: %v", e)
		}
	}
}
