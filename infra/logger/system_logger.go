package logger

import (
	"context"
	"io"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel represents the severity level of a log entry
type LogLevel string

const (
	LevelDebug LogLevel = "debug"
	LevelInfo  LogLevel = "info"
	LevelWarn  LogLevel = "warn"
	LevelError LogLevel = "error"
	LevelFatal LogLevel = "fatal"
)

// ParseLevel maps a configured level name to a LogLevel, defaulting to info
func ParseLevel(s string) LogLevel {
	switch LogLevel(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return LevelDebug
	case LevelWarn:
		return LevelWarn
	case LevelError:
		return LevelError
	case LevelFatal:
		return LevelFatal
	default:
		return LevelInfo
	}
}

// SystemLog represents a structured system log entry
type SystemLog struct {
	Timestamp   time.Time      `json:"timestamp"`
	Level       LogLevel       `json:"level"`
	Message     string         `json:"message"`
	Component   string         `json:"component"`
	Function    string         `json:"function"`
	File        string         `json:"file"`
	Line        int            `json:"line"`
	Merchant    string         `json:"merchant,omitempty"`
	Flow        string         `json:"flow,omitempty"`
	RequestID   string         `json:"request_id,omitempty"`
	Error       string         `json:"error,omitempty"`
	Fields      map[string]any `json:"fields,omitempty"`
	Environment string         `json:"environment"`
	Service     string         `json:"service"`
	Version     string         `json:"version"`
}

// EventSink stores structured log entries outside the process
type EventSink interface {
	LogSystemEvent(ctx context.Context, entry any) error
}

// SystemLogger writes structured logs to the console and, optionally, to an EventSink
type SystemLogger struct {
	sink          EventSink
	console       *zap.Logger
	enableConsole bool
	enableSink    bool
	minLevel      LogLevel
	service       string
	version       string
	environment   string
}

// SystemLoggerConfig represents configuration for system logger
type SystemLoggerConfig struct {
	EnableConsole    bool      `yaml:"enable_console"`
	EnableOpenSearch bool      `yaml:"enable_opensearch"`
	MinLevel         LogLevel  `yaml:"min_level"`
	Service          string    `yaml:"service"`
	Version          string    `yaml:"version"`
	Environment      string    `yaml:"environment"`
	Output           io.Writer `yaml:"-"`
}

// NewSystemLogger creates a new system logger
func NewSystemLogger(sink EventSink, config SystemLoggerConfig) *SystemLogger {
	if config.MinLevel == "" {
		config.MinLevel = LevelInfo
	}
	out := config.Output
	if out == nil {
		out = os.Stdout
	}

	return &SystemLogger{
		sink:          sink,
		console:       newConsole(out),
		enableConsole: config.EnableConsole,
		enableSink:    config.EnableOpenSearch && sink != nil,
		minLevel:      config.MinLevel,
		service:       config.Service,
		version:       config.Version,
		environment:   config.Environment,
	}
}

// newConsole builds the colored console backend. Level filtering happens in
// shouldLog, so the core itself accepts everything.
func newConsole(out io.Writer) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	core := zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.AddSync(out), zapcore.DebugLevel)
	return zap.New(core)
}

// LogContext holds contextual information for logging
type LogContext struct {
	Merchant  string
	Flow      string
	RequestID string
	Fields    map[string]any
}

// Debug logs a debug message
func (sl *SystemLogger) Debug(message string, ctx ...LogContext) {
	sl.log(LevelDebug, message, ctx...)
}

// Info logs an info message
func (sl *SystemLogger) Info(message string, ctx ...LogContext) {
	sl.log(LevelInfo, message, ctx...)
}

// Warn logs a warning message
func (sl *SystemLogger) Warn(message string, ctx ...LogContext) {
	sl.log(LevelWarn, message, ctx...)
}

// Error logs an error message
func (sl *SystemLogger) Error(message string, err error, ctx ...LogContext) {
	logCtx := LogContext{}
	if len(ctx) > 0 {
		logCtx = ctx[0]
	}

	fields := make(map[string]any, len(logCtx.Fields)+1)
	for k, v := range logCtx.Fields {
		fields[k] = v
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	logCtx.Fields = fields

	sl.log(LevelError, message, logCtx)
}

// Fatal logs a fatal message and exits
func (sl *SystemLogger) Fatal(message string, err error, ctx ...LogContext) {
	sl.Error(message, err, ctx...)
	_ = sl.console.Sync()
	os.Exit(1)
}

// log is the core logging function
func (sl *SystemLogger) log(level LogLevel, message string, ctx ...LogContext) {
	if !sl.shouldLog(level) {
		return
	}

	function := "unknown"
	pc, file, line, ok := runtime.Caller(3)
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			function = fn.Name()
			if idx := strings.LastIndex(function, "."); idx != -1 {
				function = function[idx+1:]
			}
		}
	} else {
		file = "unknown"
	}

	entry := SystemLog{
		Timestamp:   time.Now().UTC(),
		Level:       level,
		Message:     message,
		Component:   sl.extractComponent(file),
		Function:    function,
		File:        file,
		Line:        line,
		Environment: sl.environment,
		Service:     sl.service,
		Version:     sl.version,
	}

	if len(ctx) > 0 {
		logCtx := ctx[0]
		entry.Merchant = logCtx.Merchant
		entry.Flow = logCtx.Flow
		entry.RequestID = logCtx.RequestID
		entry.Fields = logCtx.Fields

		if errMsg, ok := logCtx.Fields["error"].(string); ok {
			entry.Error = errMsg
		}
	}

	if sl.enableConsole {
		sl.logToConsole(entry)
	}

	if sl.enableSink {
		go sl.logToSink(entry)
	}
}

// shouldLog checks if the log level should be logged
func (sl *SystemLogger) shouldLog(level LogLevel) bool {
	levelOrder := map[LogLevel]int{
		LevelDebug: 0,
		LevelInfo:  1,
		LevelWarn:  2,
		LevelError: 3,
		LevelFatal: 4,
	}

	return levelOrder[level] >= levelOrder[sl.minLevel]
}

// extractComponent extracts component name from file path
// e.g., /path/to/goesewa/provider/epay/epay.go -> provider/epay
func (sl *SystemLogger) extractComponent(file string) string {
	parts := strings.Split(file, "/")

	for i, part := range parts {
		if part == "goesewa" && i+1 < len(parts) {
			if i+2 < len(parts)-1 {
				return parts[i+1] + "/" + parts[i+2]
			}
			return parts[i+1]
		}
	}

	if len(parts) >= 2 {
		return parts[len(parts)-2]
	}

	return "unknown"
}

func (sl *SystemLogger) logToConsole(entry SystemLog) {
	fields := []zap.Field{zap.String("component", entry.Component)}
	if entry.Merchant != "" {
		fields = append(fields, zap.String("merchant", entry.Merchant))
	}
	if entry.Flow != "" {
		fields = append(fields, zap.String("flow", entry.Flow))
	}
	if entry.RequestID != "" {
		fields = append(fields, zap.String("req_id", entry.RequestID))
	}
	for key, value := range entry.Fields {
		if key != "error" {
			fields = append(fields, zap.Any(key, value))
		}
	}
	if entry.Error != "" {
		fields = append(fields, zap.String("error", entry.Error))
	}

	switch entry.Level {
	case LevelDebug:
		sl.console.Debug(entry.Message, fields...)
	case LevelWarn:
		sl.console.Warn(entry.Message, fields...)
	case LevelError, LevelFatal:
		sl.console.Error(entry.Message, fields...)
	default:
		sl.console.Info(entry.Message, fields...)
	}
}

// logToSink ships the entry asynchronously
func (sl *SystemLogger) logToSink(entry SystemLog) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sl.sink.LogSystemEvent(ctx, entry); err != nil {
		log.Printf("Failed to ship system log: %v", err)
	}
}

// WithContext creates a new logger with context
func (sl *SystemLogger) WithContext(ctx LogContext) *ContextLogger {
	return &ContextLogger{
		systemLogger: sl,
		context:      ctx,
	}
}

// ContextLogger wraps SystemLogger with context. The setters return a
// derived logger and never modify the receiver.
type ContextLogger struct {
	systemLogger *SystemLogger
	context      LogContext
}

// Debug logs a debug message with context
func (cl *ContextLogger) Debug(message string) {
	cl.systemLogger.Debug(message, cl.context)
}

// Info logs an info message with context
func (cl *ContextLogger) Info(message string) {
	cl.systemLogger.Info(message, cl.context)
}

// Warn logs a warning message with context
func (cl *ContextLogger) Warn(message string) {
	cl.systemLogger.Warn(message, cl.context)
}

// Error logs an error message with context
func (cl *ContextLogger) Error(message string, err error) {
	cl.systemLogger.Error(message, err, cl.context)
}

// Fatal logs a fatal message with context and exits
func (cl *ContextLogger) Fatal(message string, err error) {
	cl.systemLogger.Fatal(message, err, cl.context)
}

// AddField adds a field to the context
func (cl *ContextLogger) AddField(key string, value any) *ContextLogger {
	fields := make(map[string]any, len(cl.context.Fields)+1)
	for k, v := range cl.context.Fields {
		fields[k] = v
	}
	fields[key] = value
	ctx := cl.context
	ctx.Fields = fields
	return &ContextLogger{systemLogger: cl.systemLogger, context: ctx}
}

// SetMerchant sets the merchant in context
func (cl *ContextLogger) SetMerchant(merchant string) *ContextLogger {
	ctx := cl.context
	ctx.Merchant = merchant
	return &ContextLogger{systemLogger: cl.systemLogger, context: ctx}
}

// SetFlow sets the payment flow in context
func (cl *ContextLogger) SetFlow(flow string) *ContextLogger {
	ctx := cl.context
	ctx.Flow = flow
	return &ContextLogger{systemLogger: cl.systemLogger, context: ctx}
}

// SetRequestID sets the request ID in context
func (cl *ContextLogger) SetRequestID(requestID string) *ContextLogger {
	ctx := cl.context
	ctx.RequestID = requestID
	return &ContextLogger{systemLogger: cl.systemLogger, context: ctx}
}
