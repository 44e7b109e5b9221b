// Package report renders the documents a run produces.
package report

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"codeberg.org/mutker/hostwatch/internal/errors"
	"codeberg.org/mutker/hostwatch/internal/logger"
)

// File name prefixes, one per run mode.
const (
	PrefixMonitoring = "monitoring_data"
	PrefixMetadata   = "ec2-metadata"
	PrefixInstances  = "instances"

	timestampLayout = "20060102_150405"
	dirPerm         = 0o755
	filePerm        = 0o644
)

const (
	ErrEncode    = errors.ErrorCode("report_encode_failed")
	ErrOutputDir = errors.ErrorCode("report_output_dir_failed")
)

var log = logger.Component("report")

// Writer prints each document to stdout and stores a copy under dir.
type Writer struct {
	dir    string
	stdout io.Writer
	now    func() time.Time
}

func NewWriter(dir string, stdout io.Writer) *Writer {
	if dir == "" {
		dir = "."
	}
	if stdout == nil {
		stdout = os.Stdout
	}

	return &Writer{
		dir:    dir,
		stdout: stdout,
		now:    time.Now,
	}
}

// FileName returns the name a document with prefix gets at t.
func FileName(prefix string, t time.Time) string {
	return prefix + "_" + t.Format(timestampLayout) + ".json"
}

// Write encodes doc as indented JSON and returns the path of the stored
// file.
func (w *Writer) Write(prefix string, doc any) (string, error) {
	errFactory := errors.New()

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", errFactory.Wrap(ErrEncode, err)
	}
	data = append(data, '\n')

	if _, err := w.stdout.Write(data); err != nil {
		return "", errFactory.Wrap(errors.ErrWriteOutput, err)
	}

	if err := os.MkdirAll(w.dir, dirPerm); err != nil {
		return "", errFactory.Wrap(ErrOutputDir, err)
	}

	path := filepath.Join(w.dir, FileName(prefix, w.now()))
	if err := os.WriteFile(path, data, filePerm); err != nil {
		return "", errFactory.Wrap(errors.ErrWriteOutput, err).WithData(path)
	}

	log.Info().Str("path", path).Int("bytes", len(data)).Msg("Report written")

	return path, nil
}
