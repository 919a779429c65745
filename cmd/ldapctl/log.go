package main

import (
	"context"
	"os"

	"github.com/sirupsen/logrus"

	ldapclient "github.com/isometry/terraform-provider-ldap/internal/ldap"
)

func newLogger(disableTimestamp bool, logLevelString string) (logrus.FieldLogger, error) {
	logLevel, err := logrus.ParseLevel(logLevelString)
	if err != nil {
		return nil, err
	}

	return &logrus.Logger{
		Out: os.Stderr,
		Formatter: &logrus.TextFormatter{
			DisableTimestamp: disableTimestamp,
		},
		Hooks: make(logrus.LevelHooks),
		Level: logLevel,
	}, nil
}

// clientLogger forwards client log events to logrus.
type clientLogger struct {
	logger logrus.FieldLogger
}

var _ ldapclient.Logger = (*clientLogger)(nil)

func (l *clientLogger) entry(fields map[string]any) *logrus.Entry {
	return l.logger.WithFields(logrus.Fields(ldapclient.SanitizeFields(fields)))
}

func (l *clientLogger) Trace(_ context.Context, msg string, fields map[string]any) {
	l.entry(fields).Trace(msg)
}

func (l *clientLogger) Debug(_ context.Context, msg string, fields map[string]any) {
	l.entry(fields).Debug(msg)
}

func (l *clientLogger) Info(_ context.Context, msg string, fields map[string]any) {
	l.entry(fields).Info(msg)
}

func (l *clientLogger) Warn(_ context.Context, msg string, fields map[string]any) {
	l.entry(fields).Warn(msg)
}

func (l *clientLogger) Error(_ context.Context, msg string, fields map[string]any) {
	l.entry(fields).Error(msg)
}
