package logging

import (
	"os"
	"strings"

	"github.com/2beens/notesbox/pkg"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type LoggerSetupParams struct {
	LogFileName      string
	LogToStdout      bool
	LogLevel         string
	LogFormatJSON    bool
	Environment      string
	SentryEnabled    bool
	SentryDSN        string
	SentryServerName string
}

func Setup(params LoggerSetupParams) {
	if params.LogFormatJSON {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	if params.SentryEnabled {
		setupSentry(params)
	}

	logrus.SetLevel(GetLevel(params.LogLevel))
	logrus.SetOutput(newOutput(params))
}

func setupSentry(params LoggerSetupParams) {
	if params.SentryDSN == "" {
		logrus.Warnln("sentry enabled, but DSN not set, use SENTRY_DSN env var")
		return
	}

	err := sentry.Init(sentry.ClientOptions{
		Environment:      params.Environment,
		Dsn:              params.SentryDSN,
		TracesSampleRate: 1.0,
		ServerName:       params.SentryServerName,
	})
	if err != nil {
		logrus.Errorf("sentry.Init: %s", err)
		return
	}

	logrus.AddHook(NewSentryHook([]logrus.Level{
		logrus.PanicLevel,
		logrus.FatalLevel,
		logrus.ErrorLevel,
	}))

	logrus.Infoln("sentry set up successfully")
}

func newOutput(params LoggerSetupParams) *pkg.CombinedWriter {
	if params.LogFileName == "" {
		logrus.Println("writing logs only to STDOUT")
		return pkg.NewCombinedWriter(os.Stdout)
	}

	if !strings.HasSuffix(params.LogFileName, ".log") {
		params.LogFileName += ".log"
	}

	lumberJackLogger := &lumberjack.Logger{
		Filename:   params.LogFileName,
		MaxSize:    50, // megabytes
		MaxBackups: 10,
		LocalTime:  false, // false -> use UTC
		Compress:   true,
	}

	if params.LogToStdout {
		logrus.Println("writing logs to file and STDOUT")
		return pkg.NewCombinedWriter(os.Stdout, lumberJackLogger)
	}

	return pkg.NewCombinedWriter(lumberJackLogger)
}

func GetLevel(level string) logrus.Level {
	switch strings.ToLower(level) {
	case "debug":
		return logrus.DebugLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "info":
		return logrus.InfoLevel
	case "trace":
		return logrus.TraceLevel
	case "warn", "warning":
		return logrus.WarnLevel
	default:
		return logrus.InfoLevel
	}
}
