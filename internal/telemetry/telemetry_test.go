package telemetry

import (
	"context"
	"testing"
	"time"
)

func TestNewProvider_RequiresEndpoint(t *testing.T) {
	_, err := NewProvider(context.Background(), Config{}, nil)
	if err == nil {
		t.Fatal("expected error for empty endpoint")
	}
}

func TestNewProvider_Valid(t *testing.T) {
	// The exporter is lazy: no collector needs to be listening.
	p, err := NewProvider(context.Background(), Config{
		Endpoint:       "localhost:4318",
		ServiceVersion: "test",
		SampleRatio:    0.5,
		Insecure:       true,
	}, nil)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}

	if tracer := p.Tracer("test"); tracer == nil {
		t.Error("Tracer returned nil")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown: %v", err)
	}
}

func TestNormalizeRatio(t *testing.T) {
	tests := []struct {
		name string
		in   float64
		want float64
	}{
		{"zero defaults to full sampling", 0, 1},
		{"negative defaults to full sampling", -0.5, 1},
		{"above one defaults to full sampling", 1.5, 1},
		{"valid ratio kept", 0.25, 0.25},
		{"exactly one kept", 1, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := normalizeRatio(tt.in); got != tt.want {
				t.Errorf("normalizeRatio(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
