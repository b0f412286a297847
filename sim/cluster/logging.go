package cluster

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// RankLogPath returns the log file of rank for a log-file template.
func RankLogPath(template string, rank int) string {
	return fmt.Sprintf("%s_%d", template, rank)
}

// OpenRankLog returns a logger writing to RankLogPath(template, rank) in
// append mode, at the process-wide logrus level. An empty template logs to
// stderr. The returned closer releases the file.
func OpenRankLog(template string, rank int) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.GetLevel())
	if template == "" {
		logger.SetOutput(os.Stderr)
		return logger, io.NopCloser(nil), nil
	}

	path := RankLogPath(template, rank)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, nil, fmt.Errorf("creating log directory: %w", err)
		}
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening rank %d log: %w", rank, err)
	}
	logger.SetOutput(f)
	logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
	return logger, f, nil
}
