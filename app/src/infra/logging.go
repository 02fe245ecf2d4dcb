package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type contextKey string

const requestIDKey contextKey = "request_id"

type Logger struct {
	mu      sync.Mutex
	out     io.Writer
	service string
}

func NewLogger(out io.Writer, service string) *Logger {
	if out == nil {
		out = io.Discard
	}
	return &Logger{out: out, service: strings.TrimSpace(service)}
}

func WithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(id))
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

func (l *Logger) Printf(ctx context.Context, format string, v ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, v...)
	l.log(ctx, "info", msg)
}

func (l *Logger) Println(ctx context.Context, v ...any) {
	if l == nil {
		return
	}
	msg := strings.TrimSpace(fmt.Sprintln(v...))
	l.log(ctx, "info", msg)
}

func (l *Logger) Errorf(ctx context.Context, format string, v ...any) {
	if l == nil {
		return
	}
	msg := fmt.Sprintf(format, v...)
	l.log(ctx, "error", msg)
}

func (l *Logger) Fatalf(ctx context.Context, format string, v ...any) {
	if l == nil {
		os.Exit(1)
	}
	msg := fmt.Sprintf(format, v...)
	l.log(ctx, "fatal", msg)
	os.Exit(1)
}

type entry struct {
	Timestamp string `json:"timestamp"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Service   string `json:"service,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func (l *Logger) log(ctx context.Context, level, msg string) {
	requestID := RequestIDFromContext(ctx)
	rec := entry{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     level,
		Message:   msg,
		Service:   l.service,
		RequestID: requestID,
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(data, '\n'))
}
