/**
 * Package logger 提供结构化日志功能
 *
 * 基于 uber-go/zap 实现的结构化日志系统，文件输出通过 lumberjack 滚动。
 * 支持开发环境和生产环境的不同配置。
 */
package logger

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	// logger 全局日志实例
	logger *zap.Logger

	// once 确保日志只初始化一次
	once sync.Once

	// sugar 全局 sugared logger 实例
	sugar *zap.SugaredLogger
)

// Options 日志初始化选项
//
// 零值字段会回退到对应的环境变量，再回退到默认值。
type Options struct {
	// Env 环境类型（development/production）
	Env string

	// Level 日志级别（debug/info/warn/error）
	Level string

	// File 日志文件路径，为空时只输出到控制台
	File string

	// MaxSizeMB 单个日志文件最大尺寸（MB）
	MaxSizeMB int

	// MaxBackups 保留的旧日志文件数
	MaxBackups int

	// MaxAgeDays 旧日志文件最长保留天数
	MaxAgeDays int

	// Compress 是否压缩旧日志文件
	Compress bool
}

// InitLogger 初始化日志系统
//
// 根据环境变量配置日志系统：
//   - ENV: 环境类型（development/production），默认为 development
//   - LOG_LEVEL: 日志级别，默认根据环境自动设置
//   - LOG_FILE: 日志文件路径（可选），配合 LOG_MAX_SIZE/LOG_MAX_BACKUPS/LOG_MAX_AGE/LOG_COMPRESS
//
// Returns: error - 初始化失败时返回错误
func InitLogger() error {
	return InitLoggerWithOptions(Options{})
}

// InitLoggerWithOptions 使用显式选项初始化日志系统
//
// 只有第一次调用生效，后续调用直接返回。
//
// Parameters:
//   - opts: 日志选项，零值字段从环境变量读取
//
// Returns: error - 初始化失败时返回错误
func InitLoggerWithOptions(opts Options) error {
	var initErr error
	once.Do(func() {
		opts = resolveOptions(opts)

		if opts.Env == "production" {
			logger, initErr = initProductionLogger(opts)
		} else {
			logger, initErr = initDevelopmentLogger(opts)
		}

		if initErr != nil {
			return
		}

		sugar = logger.Sugar()
	})

	return initErr
}

// resolveOptions 用环境变量补全未设置的选项
func resolveOptions(opts Options) Options {
	if opts.Env == "" {
		opts.Env = getEnv("ENV", "development")
	}
	if opts.Level == "" {
		defaultLevel := "debug"
		if opts.Env == "production" {
			defaultLevel = "info"
		}
		opts.Level = getEnv("LOG_LEVEL", defaultLevel)
	}
	if opts.File == "" {
		opts.File = getEnv("LOG_FILE", "")
	}
	if opts.MaxSizeMB == 0 {
		opts.MaxSizeMB = getEnvInt("LOG_MAX_SIZE", 10)
	}
	if opts.MaxBackups == 0 {
		opts.MaxBackups = getEnvInt("LOG_MAX_BACKUPS", 3)
	}
	if opts.MaxAgeDays == 0 {
		opts.MaxAgeDays = getEnvInt("LOG_MAX_AGE", 14)
	}
	if !opts.Compress {
		opts.Compress = getEnvBool("LOG_COMPRESS", false)
	}
	return opts
}

// initDevelopmentLogger 初始化开发环境日志
//
// 开发环境配置：
//   - 控制台彩色输出，Debug 级别
//   - 友好的时间格式（2024-01-29 15:04:05.123）
//   - 指定日志文件时额外写入 JSON 格式的滚动文件
func initDevelopmentLogger(opts Options) (*zap.Logger, error) {
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "time",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    "",
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05.999"),
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := parseLevel(opts.Level, zapcore.DebugLevel)

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderConfig), zapcore.Lock(os.Stdout), level),
	}
	if opts.File != "" {
		cores = append(cores, newFileCore(opts, level))
	}

	return zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.Development()), nil
}

// initProductionLogger 初始化生产环境日志
//
// 生产环境配置：
//   - JSON 格式，Info 级别
//   - Error 级别以上附带堆栈
//   - 指定日志文件时只写入滚动文件
func initProductionLogger(opts Options) (*zap.Logger, error) {
	level := parseLevel(opts.Level, zapcore.InfoLevel)

	var core zapcore.Core
	if opts.File != "" {
		core = newFileCore(opts, level)
	} else {
		core = zapcore.NewCore(zapcore.NewJSONEncoder(productionEncoderConfig()), zapcore.Lock(os.Stdout), level)
	}

	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}

// newFileCore 创建写入滚动日志文件的 core
func newFileCore(opts Options, level zapcore.LevelEnabler) zapcore.Core {
	writer := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}

	return zapcore.NewCore(
		zapcore.NewJSONEncoder(productionEncoderConfig()),
		zapcore.AddSync(writer),
		level,
	)
}

func productionEncoderConfig() zapcore.EncoderConfig {
	config := zap.NewProductionEncoderConfig()
	config.TimeKey = "timestamp"
	config.EncodeLevel = zapcore.CapitalLevelEncoder
	config.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncodeCaller = zapcore.ShortCallerEncoder
	return config
}

func parseLevel(level string, fallback zapcore.Level) zap.AtomicLevel {
	parsed, err := zapcore.ParseLevel(level)
	if err != nil {
		parsed = fallback
	}
	return zap.NewAtomicLevelAt(parsed)
}

// GetLogger 获取全局 logger 实例
//
// 如果日志系统未初始化，会自动初始化（开发模式）。
func GetLogger() *zap.Logger {
	if logger == nil {
		_ = InitLogger()
	}
	return logger
}

// GetSugaredLogger 获取全局 sugared logger 实例
func GetSugaredLogger() *zap.SugaredLogger {
	if sugar == nil {
		_ = InitLogger()
	}
	return sugar
}

// ReplaceLogger 替换全局 logger
//
// 主要用于测试中注入 zaptest/observer 之类的 logger。
// Returns: func() - 恢复原 logger 的函数
func ReplaceLogger(l *zap.Logger) func() {
	prevLogger, prevSugar := logger, sugar
	once.Do(func() {})
	logger = l
	sugar = l.Sugar()
	return func() {
		logger = prevLogger
		sugar = prevSugar
	}
}

// Sync 刷新日志缓冲区
//
// 应用退出前应该调用此方法确保所有日志都已写入。
func Sync() error {
	if logger != nil {
		return logger.Sync()
	}
	return nil
}

// Debug 记录 Debug 级别日志
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Info 记录 Info 级别日志
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Warn 记录 Warn 级别日志
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error 记录 Error 级别日志
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// Fatal 记录 Fatal 级别日志后退出程序
func Fatal(msg string, fields ...zap.Field) {
	GetLogger().Fatal(msg, fields...)
}

// With 创建带有预设字段的 logger
//
// Parameters:
//   - fields: 预设的日志字段
//
// Returns: *zap.Logger - 带有预设字段的 logger
func With(fields ...zap.Field) *zap.Logger {
	return GetLogger().With(fields...)
}

// getEnv 获取环境变量，不存在时返回默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt 获取整数环境变量，无法解析时返回默认值
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// getEnvBool 获取布尔环境变量，无法解析时返回默认值
func getEnvBool(key string, defaultValue bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return defaultValue
	}
}
