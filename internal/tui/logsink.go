package tui

import "log/slog"

// LogSink reports progress through the logger when no terminal is
// attached.
type LogSink struct {
	logger *slog.Logger
}

func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) StartCounter(label string, total int) {
	s.logger.Info("progress counter started", "label", label, "total", total)
}

func (s *LogSink) Advance(label string, delta int) {
	s.logger.Debug("progress", "label", label, "delta", delta)
}

func (s *LogSink) SetStatus(text string, isError bool) {
	if isError {
		s.logger.Error(text)
		return
	}
	s.logger.Info(text)
}
