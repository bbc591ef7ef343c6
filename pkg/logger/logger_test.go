package logger

import (
	"context"
	"fmt"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want zapcore.Level
	}{
		{"debug", zap.DebugLevel},
		{"INFO", zap.InfoLevel},
		{"warning", zap.WarnLevel},
		{"error", zap.ErrorLevel},
		{"", zap.InfoLevel},
		{"verbose", zap.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseLevel(tt.name); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.name, got, tt.want)
			}
		})
	}
}

func TestFromContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	prev := Logger
	Logger = zap.New(core)
	defer func() { Logger = prev }()

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithProductID(ctx, "3256809096800275")
	ctx = WithSessionID(ctx, "sess-1")

	FromContext(ctx).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	for key, want := range map[string]string{
		"request_id": "req-1",
		"product_id": "3256809096800275",
		"session_id": "sess-1",
	} {
		if fields[key] != want {
			t.Errorf("Expected %s=%s, got %v", key, want, fields[key])
		}
	}
	if RequestIDFrom(ctx) != "req-1" {
		t.Errorf("Expected request id req-1, got %q", RequestIDFrom(ctx))
	}
}

func TestPreviewTruncates(t *testing.T) {
	f := Preview("1e0f4c29b9d5ac89b1c5e6b2ca95e06f")
	if f.String != "1e0f4c29..." {
		t.Errorf("Expected truncated preview, got %q", f.String)
	}
	if short := Preview("abc"); short.String != "abc" {
		t.Errorf("Expected short value untouched, got %q", short.String)
	}
}

func TestFormatCallerPath(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"/src/aliscan/pkg/session/controller.go", "session/controller.go:42"},
		{"/src/aliscan/cmd/mtopctl/commands.go", "mtopctl/commands.go:42"},
		{"/src/aliscan/pkg/aliexpress/a_very_long_file_name.go", "..._long_file_name.go:42"},
	}

	for _, tt := range tests {
		got := formatCallerPath(zapcore.NewEntryCaller(0, tt.file, 42, true))
		if got != fmt.Sprintf("%-24s", tt.want) {
			t.Errorf("formatCallerPath(%s) = %q, want %q", tt.file, got, tt.want)
		}
	}
}
