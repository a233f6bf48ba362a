package ranking

import "testing"

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{KFactor: 32, SampleSize: 3, PoolLimit: 100}, false},
		{"minimum sample", Config{KFactor: 16, SampleSize: 2, PoolLimit: 2}, false},
		{"zero k-factor", Config{KFactor: 0, SampleSize: 3, PoolLimit: 100}, true},
		{"negative k-factor", Config{KFactor: -1, SampleSize: 3, PoolLimit: 100}, true},
		{"sample too small", Config{KFactor: 32, SampleSize: 1, PoolLimit: 100}, true},
		{"pool below sample", Config{KFactor: 32, SampleSize: 5, PoolLimit: 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}
