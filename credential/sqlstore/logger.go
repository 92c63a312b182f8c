package sqlstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/kbukum/scribe/logger"
)

const slowQuery = 200 * time.Millisecond

// gormLogger routes gorm output to the module logger. Statements are never
// logged because they carry ciphertext.
type gormLogger struct {
	log   *logger.Logger
	level gormlogger.LogLevel
}

func newGormLogger(log *logger.Logger) gormlogger.Interface {
	return &gormLogger{log: log.WithComponent("gorm"), level: gormlogger.Warn}
}

func (l *gormLogger) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	return &gormLogger{log: l.log, level: level}
}

func (l *gormLogger) Info(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Info {
		l.log.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Warn {
		l.log.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(_ context.Context, msg string, data ...interface{}) {
	if l.level >= gormlogger.Error {
		l.log.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(_ context.Context, begin time.Time, fc func() (string, int64), err error) {
	if l.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	_, rows := fc()
	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		l.log.Error("query failed", logger.Fields(logger.FieldError, err.Error(), "rows", rows, logger.FieldDuration, elapsed.Milliseconds()))
	case elapsed > slowQuery && l.level >= gormlogger.Warn:
		l.log.Warn("slow query", logger.Fields("rows", rows, logger.FieldDuration, elapsed.Milliseconds()))
	}
}
