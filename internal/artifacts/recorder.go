// Package artifacts records numbered diagnostic screenshots for each
// automation run, with optional upload to S3-compatible storage.
package artifacts

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// Uploader pushes one artifact to remote storage.
type Uploader interface {
	Upload(ctx context.Context, key string, body []byte) error
}

// Recorder writes diagnostic screenshots for one user's run. Screenshot
// failures are logged and never affect control flow.
type Recorder struct {
	userID   string
	dir      string
	counter  int
	enabled  bool
	uploader Uploader
	log      *zap.SugaredLogger
}

// NewRecorder prepares the artifact directory for one run. Any screenshots
// from a previous run of the same user are removed so each run starts with a
// clean set.
func NewRecorder(baseDir, userID string, enabled bool, uploader Uploader, log *zap.SugaredLogger) *Recorder {
	r := &Recorder{
		userID:   userID,
		enabled:  enabled,
		uploader: uploader,
		log:      log,
	}
	if !enabled {
		return r
	}

	r.dir = filepath.Join(baseDir, fmt.Sprintf("user_%s", userID))
	if err := os.RemoveAll(r.dir); err != nil {
		log.Errorw("failed to purge previous screenshots", "dir", r.dir, "error", err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		log.Errorw("failed to create screenshot dir", "dir", r.dir, "error", err)
		r.enabled = false
		return r
	}
	log.Infow("screenshots will be saved", "dir", r.dir)
	return r
}

// Capture grabs a screenshot via take and stores it under a numbered,
// step-named filename.
func (r *Recorder) Capture(ctx context.Context, step string, take func(context.Context) ([]byte, error)) {
	if !r.enabled {
		return
	}

	png, err := take(ctx)
	if err != nil {
		r.log.Errorw("failed to take screenshot", "step", step, "error", err)
		return
	}

	r.counter++
	filename := fmt.Sprintf("%02d_%s.png", r.counter, step)
	path := filepath.Join(r.dir, filename)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		r.log.Errorw("failed to save screenshot", "step", step, "error", err)
		return
	}
	r.log.Debugw("screenshot saved", "file", filename)

	if r.uploader != nil {
		key := fmt.Sprintf("user_%s/%s", r.userID, filename)
		if err := r.uploader.Upload(ctx, key, png); err != nil {
			r.log.Errorw("failed to upload screenshot", "key", key, "error", err)
		}
	}
}

// Dir returns the local artifact directory, empty when disabled.
func (r *Recorder) Dir() string {
	return r.dir
}

// Count returns how many screenshots this run has taken so far.
func (r *Recorder) Count() int {
	return r.counter
}
