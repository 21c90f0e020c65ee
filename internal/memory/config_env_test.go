package memory

import (
	"os"
	"runtime/debug"
	"testing"
)

// setMemEnv pins the three configuration variables for one test. t.Setenv
// restores the originals; unset variables are cleared explicitly.
func setMemEnv(t *testing.T, goMemLimit, memLimit, memRatio string) {
	t.Helper()
	for key, val := range map[string]string{
		"GOMEMLIMIT":   goMemLimit,
		"MEMORY_LIMIT": memLimit,
		"MEMORY_RATIO": memRatio,
	} {
		if val == "" {
			old, had := os.LookupEnv(key)
			os.Unsetenv(key)
			if had {
				t.Cleanup(func() { os.Setenv(key, old) })
			}
		} else {
			t.Setenv(key, val)
		}
	}
	t.Cleanup(func() { debug.SetMemoryLimit(-1) })
}

func TestConfigureFromEnvNoVariables(t *testing.T) {
	setMemEnv(t, "", "", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected Configured to be false when no env vars set")
	}

	if result.Source != "none" {
		t.Errorf("Expected Source to be 'none', got %q", result.Source)
	}

	if result.ContainerLimit != 0 || result.GoMemLimit != 0 || result.Ratio != 0 {
		t.Errorf("Expected zero result, got %+v", result)
	}
}

func TestConfigureFromEnvGOMEMLIMIT(t *testing.T) {
	setMemEnv(t, "500MiB", "1073741824", "")

	// GOMEMLIMIT is consumed by the runtime at startup; simulate its effect.
	debug.SetMemoryLimit(500 * 1024 * 1024)

	result := ConfigureFromEnv()

	if result.Configured {
		if result.Source != sourceGOMEMLIMIT {
			t.Errorf("Expected Source to be %q, got %q", sourceGOMEMLIMIT, result.Source)
		}
		if result.GoMemLimit <= 0 {
			t.Error("Expected GoMemLimit to be positive when Configured is true")
		}
	}
}

func TestConfigureFromEnvMemoryLimit(t *testing.T) {
	setMemEnv(t, "", "1073741824", "")

	result := ConfigureFromEnv()

	if !result.Configured {
		t.Error("Expected Configured to be true when MEMORY_LIMIT is set")
	}

	if result.Source != sourceMEMORYLIMIT {
		t.Errorf("Expected Source to be %q, got %q", sourceMEMORYLIMIT, result.Source)
	}

	if result.ContainerLimit != 1073741824 {
		t.Errorf("Expected ContainerLimit to be 1073741824, got %d", result.ContainerLimit)
	}

	containerLimit := int64(1073741824)
	expected := int64(float64(containerLimit) * DefaultMemoryRatio)
	if result.GoMemLimit != expected {
		t.Errorf("Expected GoMemLimit to be %d, got %d", expected, result.GoMemLimit)
	}

	if result.Ratio != DefaultMemoryRatio {
		t.Errorf("Expected Ratio to be %f, got %f", DefaultMemoryRatio, result.Ratio)
	}
}

func TestConfigureFromEnvCustomRatio(t *testing.T) {
	setMemEnv(t, "", "2147483648", "0.75")

	result := ConfigureFromEnv()

	if !result.Configured {
		t.Error("Expected Configured to be true")
	}

	if result.Ratio != 0.75 {
		t.Errorf("Expected Ratio to be 0.75, got %f", result.Ratio)
	}

	expected := int64(float64(2147483648) * 0.75)
	if result.GoMemLimit != expected {
		t.Errorf("Expected GoMemLimit to be %d, got %d", expected, result.GoMemLimit)
	}
}

func TestConfigureFromEnvInvalidMemoryLimit(t *testing.T) {
	setMemEnv(t, "", "not-a-number", "")

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected Configured to be false when MEMORY_LIMIT is invalid")
	}

	if result.Source != "none" {
		t.Errorf("Expected Source to be 'none', got %q", result.Source)
	}
}

func TestConfigureFromEnvRatioValidation(t *testing.T) {
	tests := []struct {
		name        string
		ratio       string
		expectRatio float64
	}{
		{name: "Not a number falls back", ratio: "garbage", expectRatio: DefaultMemoryRatio},
		{name: "Zero falls back", ratio: "0", expectRatio: DefaultMemoryRatio},
		{name: "Negative falls back", ratio: "-0.5", expectRatio: DefaultMemoryRatio},
		{name: "Above one falls back", ratio: "1.5", expectRatio: DefaultMemoryRatio},
		{name: "Boundary 1.0 accepted", ratio: "1.0", expectRatio: 1.0},
		{name: "Near zero accepted", ratio: "0.01", expectRatio: 0.01},
		{name: "Mid-range accepted", ratio: "0.5", expectRatio: 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setMemEnv(t, "", "1073741824", tt.ratio)

			result := ConfigureFromEnv()

			if !result.Configured {
				t.Error("Expected Configured to be true regardless of ratio validity")
			}

			if result.Ratio != tt.expectRatio {
				t.Errorf("Expected ratio %f, got %f", tt.expectRatio, result.Ratio)
			}
		})
	}
}

func TestConfigureFromEnvEmptyEqualsUnset(t *testing.T) {
	t.Setenv("MEMORY_LIMIT", "")
	old, had := os.LookupEnv("GOMEMLIMIT")
	os.Unsetenv("GOMEMLIMIT")
	if had {
		t.Cleanup(func() { os.Setenv("GOMEMLIMIT", old) })
	}

	result := ConfigureFromEnv()

	if result.Configured {
		t.Error("Expected Configured to be false for an empty MEMORY_LIMIT")
	}

	if result.Source != "none" {
		t.Errorf("Expected Source to be 'none', got %q", result.Source)
	}
}

func TestConfigureFromEnvIdempotent(t *testing.T) {
	setMemEnv(t, "", "1073741824", "")

	result1 := ConfigureFromEnv()
	result2 := ConfigureFromEnv()

	if result1.Configured != result2.Configured {
		t.Error("Multiple calls should return same Configured value")
	}

	if result1.Source != result2.Source {
		t.Error("Multiple calls should return same Source value")
	}

	if result1.ContainerLimit != result2.ContainerLimit {
		t.Error("Multiple calls should return same ContainerLimit value")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		bytes    int64
		expected string
	}{
		{name: "Zero bytes", bytes: 0, expected: "0 B"},
		{name: "Under 1KiB", bytes: 512, expected: "512 B"},
		{name: "Exactly 1KiB", bytes: 1024, expected: "1.0 KiB"},
		{name: "Fractional KiB", bytes: 1536, expected: "1.5 KiB"},
		{name: "Exactly 1MiB", bytes: 1048576, expected: "1.0 MiB"},
		{name: "Exactly 1GiB", bytes: 1073741824, expected: "1.0 GiB"},
		{name: "Fractional GiB", bytes: 1610612736, expected: "1.5 GiB"},
		{name: "Exactly 1TiB", bytes: 1099511627776, expected: "1.0 TiB"},
		{name: "Large value", bytes: 123456789012, expected: "115.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := formatBytes(tt.bytes)
			if result != tt.expected {
				t.Errorf("formatBytes(%d) = %q, expected %q", tt.bytes, result, tt.expected)
			}
		})
	}
}

func TestDefaultMemoryRatioConstant(t *testing.T) {
	if DefaultMemoryRatio != 0.85 {
		t.Errorf("Expected DefaultMemoryRatio to be 0.85, got %f", DefaultMemoryRatio)
	}
}

func BenchmarkFormatBytes(b *testing.B) {
	testBytes := int64(1234567890)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = formatBytes(testBytes)
	}
}
