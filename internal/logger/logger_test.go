package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		env, level string
		wantErr    bool
		enabled    zapcore.Level
	}{
		{env: "prod", enabled: zapcore.InfoLevel},
		{env: "local", enabled: zapcore.DebugLevel},
		{env: "prod", level: "warn", enabled: zapcore.WarnLevel},
		{env: "staging", wantErr: true},
		{env: "dev", level: "loud", wantErr: true},
	}
	for _, tc := range tests {
		t.Run(tc.env+"/"+tc.level, func(t *testing.T) {
			l, err := NewLogger(tc.env, tc.level)
			if tc.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !l.Core().Enabled(tc.enabled) {
				t.Errorf("level %s should be enabled", tc.enabled)
			}
			if tc.enabled > zapcore.DebugLevel && l.Core().Enabled(tc.enabled-1) {
				t.Errorf("level %s should be disabled", tc.enabled-1)
			}
		})
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger")
	}

	core, logs := observer.New(zapcore.InfoLevel)
	reqLogger := zap.New(core).With(zap.String("request_id", "r-1"))
	ctx := ContextWithLogger(context.Background(), reqLogger)

	FromContextOr(ctx, zap.NewNop()).Info("from request")
	if logs.Len() != 1 || logs.All()[0].ContextMap()["request_id"] != "r-1" {
		t.Fatalf("expected request logger, got %v", logs.All())
	}

	fallbackCore, fallbackLogs := observer.New(zapcore.InfoLevel)
	FromContextOr(context.Background(), zap.New(fallbackCore)).Info("fallback")
	if fallbackLogs.Len() != 1 {
		t.Fatal("expected fallback logger to be used")
	}
}
