package artifacts

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func takePNG(data []byte) func(context.Context) ([]byte, error) {
	return func(context.Context) ([]byte, error) { return data, nil }
}

func TestRecorderNumbersScreenshots(t *testing.T) {
	base := t.TempDir()
	rec := NewRecorder(base, "u1", true, nil, zap.NewNop().Sugar())

	rec.Capture(context.Background(), "website_loaded", takePNG([]byte("png1")))
	rec.Capture(context.Background(), "login_page", takePNG([]byte("png2")))

	assert.Equal(t, 2, rec.Count())
	assert.FileExists(t, filepath.Join(base, "user_u1", "01_website_loaded.png"))
	assert.FileExists(t, filepath.Join(base, "user_u1", "02_login_page.png"))
}

func TestRecorderPurgesPreviousRun(t *testing.T) {
	base := t.TempDir()
	stale := filepath.Join(base, "user_u1", "07_old_step.png")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o755))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))

	rec := NewRecorder(base, "u1", true, nil, zap.NewNop().Sugar())
	rec.Capture(context.Background(), "fresh", takePNG([]byte("new")))

	assert.NoFileExists(t, stale)
	assert.FileExists(t, filepath.Join(base, "user_u1", "01_fresh.png"))
}

func TestRecorderDisabledIsNoop(t *testing.T) {
	base := t.TempDir()
	rec := NewRecorder(base, "u1", false, nil, zap.NewNop().Sugar())

	rec.Capture(context.Background(), "step", func(context.Context) ([]byte, error) {
		t.Fatal("screenshot should not be taken when disabled")
		return nil, nil
	})

	assert.Zero(t, rec.Count())
	assert.NoDirExists(t, filepath.Join(base, "user_u1"))
}

func TestRecorderSwallowsCaptureErrors(t *testing.T) {
	rec := NewRecorder(t.TempDir(), "u1", true, nil, zap.NewNop().Sugar())

	rec.Capture(context.Background(), "broken", func(context.Context) ([]byte, error) {
		return nil, errors.New("session gone")
	})

	assert.Zero(t, rec.Count())
}

type fakeUploader struct {
	keys []string
}

func (f *fakeUploader) Upload(_ context.Context, key string, _ []byte) error {
	f.keys = append(f.keys, key)
	return nil
}

func TestRecorderUploadsArtifacts(t *testing.T) {
	up := &fakeUploader{}
	rec := NewRecorder(t.TempDir(), "u9", true, up, zap.NewNop().Sugar())

	rec.Capture(context.Background(), "booked", takePNG([]byte("png")))

	require.Len(t, up.keys, 1)
	assert.Equal(t, "user_u9/01_booked.png", up.keys[0])
}
