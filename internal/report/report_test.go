package report

import (
	"bytes"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedWriter(t *testing.T, dir string) (*Writer, *bytes.Buffer) {
	t.Helper()

	var out bytes.Buffer
	w := NewWriter(dir, &out)
	w.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }

	return w, &out
}

func TestFileName(t *testing.T) {
	at := time.Date(2024, 12, 31, 23, 59, 1, 0, time.UTC)

	assert.Equal(t, "monitoring_data_20241231_235901.json", FileName(PrefixMonitoring, at))
	assert.Equal(t, "ec2-metadata_20241231_235901.json", FileName(PrefixMetadata, at))
}

func TestWriteStdoutAndFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "reports")
	w, out := fixedWriter(t, dir)

	doc := map[string]any{"InstanceId": "i-1", "Count": 2}
	path, err := w.Write(PrefixInstances, doc)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "instances_20240309_140507.json"), path)

	stored, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, out.String(), string(stored))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(stored, &decoded))
	assert.Equal(t, "i-1", decoded["InstanceId"])
	assert.Contains(t, out.String(), "\n  \"Count\": 2", "documents are indented")
}

func TestWriteEncodeFailure(t *testing.T) {
	w, out := fixedWriter(t, t.TempDir())

	_, err := w.Write(PrefixMonitoring, math.Inf(1))
	assert.Equal(t, ErrEncode, errors.CodeOf(err))
	assert.Zero(t, out.Len())
}

func TestWriteOutputDirFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	w, _ := fixedWriter(t, filepath.Join(blocker, "sub"))

	_, err := w.Write(PrefixMonitoring, struct{}{})
	assert.Equal(t, ErrOutputDir, errors.CodeOf(err))
}
