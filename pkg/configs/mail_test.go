package configs_test

import (
	"testing"
	"time"

	"github.com/yeisme/vistoria/pkg/configs"
	"github.com/yeisme/vistoria/pkg/rule"
)

func TestMailPacingLowerBound(t *testing.T) {
	tests := []struct {
		name    string
		pacing  time.Duration
		wantErr bool
	}{
		{"default", configs.DefaultMailPacing, false},
		{"slower", 2 * time.Second, false},
		{"zero", 0, true},
		{"too fast", 100 * time.Millisecond, true},
		{"negative", -time.Second, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := configs.Defaults().Mail
			cfg.Pacing = tt.pacing

			err := rule.ValidateStruct(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("pacing %s: err = %v, wantErr %v", tt.pacing, err, tt.wantErr)
			}
		})
	}
}
