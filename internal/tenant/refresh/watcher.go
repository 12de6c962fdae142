package refresh

import (
	"bytes"
	"context"
	"crypto/sha256"
	"log/slog"
	"os"
	"time"
)

// Watcher polls the property file and reloads when its content changes.
// The modification time gates the read; the content hash decides.
type Watcher struct {
	path     string
	interval time.Duration
	reloader *Reloader
	logger   *slog.Logger

	modTime time.Time
	sum     []byte
}

// NewWatcher returns a Watcher for path. The file's current state is the
// baseline, so the first change after construction triggers a reload.
func NewWatcher(path string, interval time.Duration, reloader *Reloader, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	w := &Watcher{
		path:     path,
		interval: interval,
		reloader: reloader,
		logger:   logger,
	}
	w.modTime, w.sum, _ = w.stat()
	return w
}

// Run polls until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if w.interval <= 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll reloads when the file changed since the last poll. It reports whether
// a reload was attempted.
func (w *Watcher) poll(ctx context.Context) bool {
	info, err := os.Stat(w.path)
	if err != nil {
		w.logger.WarnContext(ctx, "tenant_properties_stat_failed", "path", w.path, "error", err)
		return false
	}
	if info.ModTime().Equal(w.modTime) {
		return false
	}
	modTime, sum, err := w.stat()
	if err != nil {
		w.logger.WarnContext(ctx, "tenant_properties_read_failed", "path", w.path, "error", err)
		return false
	}
	w.modTime = modTime
	if bytes.Equal(sum, w.sum) {
		return false
	}

	if _, err := w.reloader.Reload(ctx, TriggerWatcher); err != nil {
		// Forget the mtime so the next poll retries.
		w.modTime = time.Time{}
		return true
	}
	w.sum = sum
	return true
}

func (w *Watcher) stat() (time.Time, []byte, error) {
	info, err := os.Stat(w.path)
	if err != nil {
		return time.Time{}, nil, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return time.Time{}, nil, err
	}
	sum := sha256.Sum256(data)
	return info.ModTime(), sum[:], nil
}
