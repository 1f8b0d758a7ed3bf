package logging

import (
	"fmt"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
)

var levelsMap = map[logrus.Level]sentry.Level{
	logrus.TraceLevel: sentry.LevelDebug,
	logrus.DebugLevel: sentry.LevelDebug,
	logrus.InfoLevel:  sentry.LevelInfo,
	logrus.WarnLevel:  sentry.LevelWarning,
	logrus.ErrorLevel: sentry.LevelError,
	logrus.FatalLevel: sentry.LevelFatal,
	logrus.PanicLevel: sentry.LevelFatal,
}

// SentryHook forwards log entries of the given levels to sentry.
type SentryHook struct {
	levels []logrus.Level
	hub    *sentry.Hub
}

var _ logrus.Hook = (*SentryHook)(nil)

func NewSentryHook(levels []logrus.Level) *SentryHook {
	return &SentryHook{
		levels: levels,
		hub:    sentry.CurrentHub(),
	}
}

func (h *SentryHook) Levels() []logrus.Level {
	return h.levels
}

func (h *SentryHook) Fire(entry *logrus.Entry) error {
	// nil event id just means no client is bound or the event was dropped
	h.hub.CaptureEvent(toSentryEvent(entry))
	return nil
}

func toSentryEvent(entry *logrus.Entry) *sentry.Event {
	event := sentry.NewEvent()
	event.Level = levelsMap[entry.Level]
	event.Message = entry.Message
	event.Timestamp = entry.Time
	event.Logger = "logrus"

	for k, v := range entry.Data {
		if k == logrus.ErrorKey {
			if err, ok := v.(error); ok {
				event.Exception = append(event.Exception, sentry.Exception{
					Type:  fmt.Sprintf("%T", err),
					Value: err.Error(),
				})
				continue
			}
		}
		event.Extra[k] = v
	}

	return event
}
