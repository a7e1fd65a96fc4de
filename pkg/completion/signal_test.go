package completion

import (
	"errors"
	"testing"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestSignalerFromEnv(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr error
		noop    bool
	}{
		{name: "no parent", env: map[string]string{}, noop: true},
		{name: "json channel", env: map[string]string{EnvNodeChannelFD: "3", EnvNodeChannelSerialization: "json"}},
		{name: "default serialization", env: map[string]string{EnvNodeChannelFD: "3"}},
		{name: "advanced serialization", env: map[string]string{EnvNodeChannelFD: "3", EnvNodeChannelSerialization: "advanced"}, wantErr: ErrUnsupportedSerialization},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig, err := signalerFromEnv(env(tt.env))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			_, isNoop := sig.(NoopSignaler)
			if isNoop != tt.noop {
				t.Errorf("noop = %v, want %v", isNoop, tt.noop)
			}
		})
	}
}

func TestSignalerFromEnv_InvalidFD(t *testing.T) {
	if _, err := signalerFromEnv(env(map[string]string{EnvNodeChannelFD: "abc"})); err == nil {
		t.Error("expected error for non-numeric fd")
	}
}
