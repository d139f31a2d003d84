package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	os.Unsetenv("RECOGNITION_THRESHOLD")
	os.Unsetenv("EMBEDDING_DIM")
	os.Unsetenv("ATTENDANCE_WINDOW")

	cfg := Load()

	if cfg.Recognition.Threshold != 0.60 {
		t.Errorf("expected default threshold 0.60, got %g", cfg.Recognition.Threshold)
	}

	if cfg.Recognition.Dim != 512 {
		t.Errorf("expected default embedding dim 512, got %d", cfg.Recognition.Dim)
	}

	if cfg.Attendance.Window != 24*time.Hour {
		t.Errorf("expected default window 24h, got %s", cfg.Attendance.Window)
	}

	if cfg.Attendance.DebounceHits != 1 {
		t.Errorf("expected default debounce hits 1, got %d", cfg.Attendance.DebounceHits)
	}

	if cfg.Index.HNSWThreshold != 10000 {
		t.Errorf("expected default HNSW threshold 10000, got %d", cfg.Index.HNSWThreshold)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RECOGNITION_THRESHOLD", "0.45")
	t.Setenv("EMBEDDING_DIM", "768")
	t.Setenv("ATTENDANCE_WINDOW", "8h")
	t.Setenv("ATTENDANCE_DEBOUNCE_HITS", "3")
	t.Setenv("ATTENDANCE_PER_CAMERA", "true")

	cfg := Load()

	if cfg.Recognition.Threshold != 0.45 {
		t.Errorf("expected threshold 0.45, got %g", cfg.Recognition.Threshold)
	}

	if cfg.Recognition.Dim != 768 {
		t.Errorf("expected embedding dim 768, got %d", cfg.Recognition.Dim)
	}

	if cfg.Attendance.Window != 8*time.Hour {
		t.Errorf("expected window 8h, got %s", cfg.Attendance.Window)
	}

	if cfg.Attendance.DebounceHits != 3 {
		t.Errorf("expected debounce hits 3, got %d", cfg.Attendance.DebounceHits)
	}

	if !cfg.Attendance.PerCamera {
		t.Error("expected per-camera dedup to be enabled")
	}
}

func TestLoad_InvalidEnvFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "not-a-number")
	t.Setenv("ATTENDANCE_WINDOW", "soon")

	cfg := Load()

	if cfg.Recognition.Dim != 512 {
		t.Errorf("expected fallback dim 512 for invalid input, got %d", cfg.Recognition.Dim)
	}

	if cfg.Attendance.Window != 24*time.Hour {
		t.Errorf("expected fallback window 24h for invalid input, got %s", cfg.Attendance.Window)
	}
}

func TestLoad_NegativeDimFallsBack(t *testing.T) {
	t.Setenv("EMBEDDING_DIM", "-100")

	cfg := Load()

	if cfg.Recognition.Dim != 512 {
		t.Errorf("expected fallback dim 512 for negative input, got %d", cfg.Recognition.Dim)
	}
}

func TestValidate_OK(t *testing.T) {
	cfg := Load()

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected default config to validate, got %v", err)
	}
}

func TestValidate_ThresholdRange(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantErr   bool
	}{
		{"zero", 0, true},
		{"negative", -0.5, true},
		{"above one", 1.1, true},
		{"exactly one", 1.0, false},
		{"typical", 0.6, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Load()
			cfg.Recognition.Threshold = tt.threshold
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Errorf("expected validation error for threshold %g", tt.threshold)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error for threshold %g: %v", tt.threshold, err)
			}
		})
	}
}

func TestValidate_Dimension(t *testing.T) {
	cfg := Load()
	cfg.Recognition.Dim = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero embedding dimension")
	}
}

func TestValidate_Window(t *testing.T) {
	cfg := Load()
	cfg.Attendance.Window = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero attendance window")
	}
}

func TestValidate_DebounceHits(t *testing.T) {
	cfg := Load()
	cfg.Attendance.DebounceHits = 0

	if err := cfg.Validate(); err == nil {
		t.Error("expected validation error for zero debounce hits")
	}
}
