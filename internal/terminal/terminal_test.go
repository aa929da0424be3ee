package terminal

import "testing"

func TestInfoCapabilities(t *testing.T) {
	tests := []struct {
		name        string
		info        Info
		color       bool
		interactive bool
		spinners    bool
		fullScreen  bool
	}{
		{
			name: "interactive tty",
			info: Info{IsTTY: true, StdinIsTTY: true, Width: 120},
			color: true, interactive: true, spinners: true, fullScreen: true,
		},
		{
			name: "piped stdin",
			info: Info{IsTTY: true, Width: 120},
			color: true, spinners: true,
		},
		{
			name: "no color env",
			info: Info{IsTTY: true, StdinIsTTY: true, NoColor: true, Width: 120},
			interactive: true, fullScreen: true,
		},
		{
			name: "no color flag",
			info: Info{IsTTY: true, StdinIsTTY: true, ForceFlag: true, Width: 40},
			interactive: true, spinners: true,
		},
		{
			name: "redirected",
			info: Info{Width: 80},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.info.ColorEnabled(); got != tt.color {
				t.Errorf("ColorEnabled() = %v, want %v", got, tt.color)
			}

			if got := tt.info.InteractiveEnabled(); got != tt.interactive {
				t.Errorf("InteractiveEnabled() = %v, want %v", got, tt.interactive)
			}

			if got := tt.info.SpinnersEnabled(); got != tt.spinners {
				t.Errorf("SpinnersEnabled() = %v, want %v", got, tt.spinners)
			}

			if got := tt.info.FullScreenEnabled(); got != tt.fullScreen {
				t.Errorf("FullScreenEnabled() = %v, want %v", got, tt.fullScreen)
			}
		})
	}
}
