package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/23skdu/aematch/internal/encoder"
	"github.com/23skdu/aematch/internal/imaging"
	"github.com/23skdu/aematch/internal/imaging/imagingtest"
)

// isolate keeps a developer .env or AEMATCH_* variables out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(envFileVar, filepath.Join(t.TempDir(), "none.env"))
	for _, kv := range os.Environ() {
		if key, _, _ := strings.Cut(kv, "="); strings.HasPrefix(key, EnvPrefix+"_") && key != envFileVar {
			t.Setenv(key, "")
			_ = os.Unsetenv(key)
		}
	}
}

// stdinWith returns a file whose content is replayed as key presses.
func stdinWith(t *testing.T, content string) *os.File {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f
}

// writeFolder creates n JPEGs and an infos.json describing them.
func writeFolder(t *testing.T, prefix string, n int) string {
	t.Helper()
	dir := t.TempDir()
	infos := map[string]map[string]float64{}
	for i := 0; i < n; i++ {
		name := fmt.Sprintf("%s_%02d", prefix, i)
		c := color.RGBA{R: uint8(20 + 45*i), G: uint8(len(prefix) * 30), B: 90, A: 255}
		require.NoError(t, imagingtest.WriteSolidJPEG(filepath.Join(dir, name+".jpg"), 16, 8, c))
		infos[name] = map[string]float64{"cte": float64(i) / 4, "throttle": 0.3}
	}
	data, err := json.Marshal(infos)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "infos.json"), data, 0o644))
	return dir
}

func run(t *testing.T, stdin string, args ...string) (int, string) {
	t.Helper()
	var out bytes.Buffer
	code := execute(context.Background(), args, stdinWith(t, stdin), &out)
	return code, out.String()
}

func TestExecute_InitEncoder(t *testing.T) {
	isolate(t)
	path := filepath.Join(t.TempDir(), "ae.arrow")

	code, out := run(t, "", "init-encoder", path, "--z-size", "12", "--width", "8", "--height", "4", "--channels", "3", "--seed", "5", "--name", "probe")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "encoder written")

	enc, err := encoder.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "probe", enc.Name())
	assert.Equal(t, 12, enc.LatentSize())
	assert.Equal(t, 8*4*3, enc.InputDim())
}

func TestExecute_InitEncoderRequiresOutput(t *testing.T) {
	isolate(t)
	code, _ := run(t, "", "init-encoder")
	assert.Equal(t, 1, code)
}

func TestExecute_InitEncoderBadChannels(t *testing.T) {
	isolate(t)
	code, out := run(t, "", "init-encoder", filepath.Join(t.TempDir(), "ae.arrow"), "--channels", "2")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "channels must be 1 or 3")
}

func TestExecute_Compare(t *testing.T) {
	isolate(t)
	work := t.TempDir()
	aePath := filepath.Join(work, "ae.arrow")
	maskPath := filepath.Join(work, "mask.arrow")
	gridPath := filepath.Join(work, "grid.png")
	metricsPath := filepath.Join(work, "metrics.prom")

	code, out := run(t, "", "init-encoder", aePath, "--z-size", "16", "--width", "8", "--height", "4")
	require.Equal(t, 0, code, out)
	code, out = run(t, "", "init-encoder", maskPath, "--z-size", "4", "--width", "8", "--height", "4", "--seed", "1")
	require.Equal(t, 0, code, out)

	ref := writeFolder(t, "ref", 5)
	qry := writeFolder(t, "query", 5)

	code, out = run(t, "\n\n",
		"-f", ref, "-f", qry,
		"--ae-path", aePath,
		"--ae-mask-path", maskPath,
		"-n", "4", "-k", "3", "--batch-rows", "2",
		"--normalize",
		"--grid-path", gridPath,
		"--metrics-file", metricsPath,
		"--log-format", "json", "--log-level", "debug",
	)
	require.Equal(t, 0, code, out)

	assert.Contains(t, out, `"message":"starting comparison"`)
	assert.Equal(t, 4, strings.Count(out, `"message":"matched"`))
	assert.Contains(t, out, `"message":"comparison finished"`)

	grid, err := imaging.Load(gridPath)
	require.NoError(t, err)
	assert.Equal(t, 16*4, grid.Bounds().Dx())
	assert.Equal(t, 8*2, grid.Bounds().Dy())

	prom, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(prom), "aematch_grid_renders_total")
	assert.Contains(t, string(prom), "aematch_images_encoded_total")
	assert.Contains(t, string(prom), "aematch_stage_duration_seconds")
}

func TestExecute_EscapeStops(t *testing.T) {
	isolate(t)
	work := t.TempDir()
	aePath := filepath.Join(work, "ae.arrow")
	code, out := run(t, "", "init-encoder", aePath, "--z-size", "8", "--width", "4", "--height", "4")
	require.Equal(t, 0, code, out)

	code, out = run(t, "\x1b\n",
		"-f", writeFolder(t, "ref", 4),
		"--ae-path", aePath,
		"--batch-rows", "1",
		"--index", "brute",
		"--grid-path", filepath.Join(work, "grid.png"),
		"--log-format", "json",
	)
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"stopped":true`)
	assert.Contains(t, out, `"renders":1`)
}

func TestExecute_Errors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"no folders", []string{"--ae-path", "ae.arrow"}, ErrNoFolders.Error()},
		{"no encoder", []string{"-f", "somewhere"}, ErrInvalidAEPath.Error()},
		{"bad index", []string{"-f", "x", "--ae-path", "y", "--index", "lsh"}, ErrInvalidIndex.Error()},
		{"bad log level", []string{"--log-level", "loud"}, ErrInvalidLogLevel.Error()},
		{"bad log format", []string{"--log-format", "xml"}, ErrInvalidLogFormat.Error()},
		{"unknown flag", []string{"--balltree"}, "unknown flag"},
		{"missing encoder file", []string{"-f", t.TempDir(), "--ae-path", filepath.Join(t.TempDir(), "nope.arrow")}, "cannot open encoder weights"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, out := run(t, "", tt.args...)
			assert.Equal(t, 1, code)
			assert.Contains(t, out, tt.want)
		})
	}
}

func TestExecute_InvalidEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("AEMATCH_BATCH_ROWS", "several")

	code, out := run(t, "", "--help")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "invalid configuration")
	assert.Contains(t, out, "BATCH_ROWS")
}

func TestExecute_FlagsOverrideEnvironment(t *testing.T) {
	isolate(t)
	t.Setenv("AEMATCH_N_SAMPLES", "50")
	t.Setenv("AEMATCH_INDEX", "brute")

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	a := &app{cfg: cfg}
	root := newRootCmd(a)
	require.NoError(t, root.ParseFlags([]string{"-n", "3"}))

	assert.Equal(t, 3, a.cfg.NSamples)
	assert.Equal(t, "brute", a.cfg.Index)
}
