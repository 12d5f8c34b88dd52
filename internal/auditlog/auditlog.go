// Package auditlog provides the two append-only outcome streams of the
// ingestion pipeline: an audit stream with one line per committed batch and
// an error stream with one line per failed batch.
package auditlog

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

const (
	auditFileName = "ingest_audit.log"
	errorFileName = "ingest_errors.log"
)

// Sink holds the outcome streams. Exactly one line is written per processed
// batch, to exactly one of the two streams.
type Sink struct {
	Audit *logrus.Logger
	Error *logrus.Logger

	files []*os.File
}

// Open builds a sink writing to dir/ingest_audit.log and
// dir/ingest_errors.log. An empty dir sends both streams to stderr.
func Open(dir string) (*Sink, error) {
	s := &Sink{
		Audit: newLogger(logrus.InfoLevel),
		Error: newLogger(logrus.ErrorLevel),
	}
	if dir == "" {
		return s, nil
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	audit, err := s.openAppend(filepath.Join(dir, auditFileName))
	if err != nil {
		return nil, err
	}
	s.Audit.SetOutput(audit)

	errs, err := s.openAppend(filepath.Join(dir, errorFileName))
	if err != nil {
		s.Close()
		return nil, err
	}
	s.Error.SetOutput(errs)
	return s, nil
}

// Success records a committed batch and the number of rows it persisted.
func (s *Sink) Success(deviceID string, records int64) {
	s.Audit.WithFields(logrus.Fields{
		"device_id": deviceID,
		"records":   records,
	}).Info("ingest success")
}

// Failure records a dropped batch and the storage error that killed it.
func (s *Sink) Failure(deviceID string, err error) {
	s.Error.WithField("device_id", deviceID).WithError(err).Error("ingest failed")
}

func (s *Sink) Close() {
	for _, f := range s.files {
		_ = f.Close()
	}
	s.files = nil
}

func (s *Sink) openAppend(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	s.files = append(s.files, f)
	return f, nil
}

func newLogger(level logrus.Level) *logrus.Logger {
	l := logrus.New()
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	l.SetOutput(os.Stderr)
	return l
}
