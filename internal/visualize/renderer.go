package visualize

import (
	"context"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	aeerrors "github.com/23skdu/aematch/internal/errors"
	"github.com/23skdu/aematch/internal/metrics"
)

// FileRenderer shows grids by rewriting a single PNG file, the display
// surface. An image viewer that reloads on change (or the configured Viewer
// command, launched once on the first render) presents it to the operator.
type FileRenderer struct {
	Path   string
	Viewer string
	Logger zerolog.Logger

	launched bool
}

// DefaultGridPath is the display surface used when none is configured.
func DefaultGridPath() string {
	return filepath.Join(os.TempDir(), "aematch-grid.png")
}

// Render implements Renderer.
func (r *FileRenderer) Render(ctx context.Context, grid image.Image) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := r.write(grid); err != nil {
		metrics.GridRendersTotal.WithLabelValues("error").Inc()
		return err
	}
	metrics.GridRendersTotal.WithLabelValues("ok").Inc()
	r.Logger.Info().Str("path", r.Path).Int("width", grid.Bounds().Dx()).Int("height", grid.Bounds().Dy()).
		Msg("image grid ready, press a key to continue or Esc to stop")

	if strings.TrimSpace(r.Viewer) == "" || r.launched {
		return nil
	}
	return r.launch()
}

// write replaces the display file atomically so viewers never see a partial PNG.
func (r *FileRenderer) write(grid image.Image) error {
	dir := filepath.Dir(r.Path)
	tmp, err := os.CreateTemp(dir, ".aematch-grid-*.png")
	if err != nil {
		return aeerrors.WrapDisplayError(err, "render", "cannot create display file").WithContext("dir", dir)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if err := png.Encode(tmp, grid); err != nil {
		_ = tmp.Close()
		return aeerrors.WrapDisplayError(err, "render", "cannot encode grid")
	}
	if err := tmp.Close(); err != nil {
		return aeerrors.WrapDisplayError(err, "render", "cannot write display file")
	}
	if err := os.Rename(tmp.Name(), r.Path); err != nil {
		return aeerrors.WrapDisplayError(err, "render", "cannot replace display file").WithContext("path", r.Path)
	}
	return nil
}

func (r *FileRenderer) launch() error {
	args := strings.Fields(r.Viewer)
	cmd := exec.Command(args[0], append(args[1:], r.Path)...)
	if err := cmd.Start(); err != nil {
		return aeerrors.WrapDisplayError(err, "render", "cannot start viewer").WithContext("viewer", r.Viewer)
	}
	r.launched = true
	r.Logger.Debug().Str("viewer", r.Viewer).Int("pid", cmd.Process.Pid).Msg("viewer started")
	return cmd.Process.Release()
}
