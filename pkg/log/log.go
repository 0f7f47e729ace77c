// Package log 提供基于 zerolog 的日志工具，支持 stderr 和文件输出（lumberjack 轮转）.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/natefinch/lumberjack"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/yeisme/vistoria/pkg/configs"
)

var (
	logger     zerolog.Logger
	initOnce   sync.Once
	components map[string]zerolog.Level
)

// Init 初始化全局 logger.
func Init() {
	initOnce.Do(initLogger)
}

func parseLevel(s string, fallback zerolog.Level) zerolog.Level {
	if s == "" {
		return fallback
	}

	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %q, using %s\n", s, fallback)

		return fallback
	}

	return lvl
}

func initLogger() {
	cfg := configs.GetConfig()
	logCfg := cfg.Log

	lvl := parseLevel(logCfg.Level, zerolog.InfoLevel)

	// 组件可以比全局更详细，全局级别取最低者，再由每个 logger 自己过滤
	components = make(map[string]zerolog.Level, len(logCfg.Components))
	minLvl := lvl

	for name, l := range logCfg.Components {
		cl := parseLevel(l, lvl)
		components[name] = cl

		if cl < minLvl {
			minLvl = cl
		}
	}

	zerolog.SetGlobalLevel(minLvl)
	zerolog.TimeFieldFormat = time.RFC3339

	var stderr io.Writer = os.Stderr
	if logCfg.Format != "json" {
		stderr = zerolog.NewConsoleWriter(func(w *zerolog.ConsoleWriter) {
			w.Out = os.Stderr
			w.TimeFormat = "15:04:05"
		})
	}

	writers := []io.Writer{stderr}

	if logCfg.EnableFile {
		writers = append(writers, &lumberjack.Logger{
			Filename:   logCfg.FilePath,
			MaxSize:    logCfg.MaxSize,
			MaxBackups: logCfg.MaxBackups,
			MaxAge:     logCfg.MaxAge,
			Compress:   logCfg.Compress,
		})
	}

	zctx := zerolog.New(io.MultiWriter(writers...)).With().Timestamp().Str("app", configs.AppName)

	if cfg.Server.Debug {
		zctx = zctx.Caller()

		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	logger = zctx.Logger().Level(lvl)
	log.Logger = logger
}

// Logger 返回全局 logger.
func Logger() *zerolog.Logger {
	initOnce.Do(initLogger)

	return &logger
}

// Component 返回带 component 字段的子 logger；log.components 中配置的级别优先于全局级别.
func Component(name string) zerolog.Logger {
	l := Logger().With().Str("component", name).Logger()
	if lvl, ok := components[name]; ok {
		l = l.Level(lvl)
	}

	return l
}

// GinWriter 把 Gin 文本行转发为 zerolog 事件.
type GinWriter struct {
	logger *zerolog.Logger
	level  zerolog.Level
}

func NewGinWriter(logger *zerolog.Logger, level zerolog.Level) *GinWriter {
	return &GinWriter{logger: logger, level: level}
}

func (w *GinWriter) Write(p []byte) (n int, err error) {
	msg := strings.TrimSpace(string(p))
	if msg == "" {
		return len(p), nil
	}

	switch w.level {
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		w.logger.Error().Msg(msg)
	case zerolog.WarnLevel:
		w.logger.Warn().Msg(msg)
	default:
		w.logger.Info().Msg(msg)
	}

	return len(p), nil
}
