package domain

import "testing"

func TestParameterRangeCount(t *testing.T) {
	tests := []struct {
		name string
		r    ParameterRange
		want int
	}{
		{"atr grid", ParameterRange{Min: 0.5, Max: 1.5, Step: 0.1}, 11},
		{"tp grid", ParameterRange{Min: 0.8, Max: 2.0, Step: 0.2}, 7},
		{"integer grid", ParameterRange{Min: 10, Max: 20, Step: 2}, 6},
		{"single value", ParameterRange{Min: 5, Max: 5, Step: 1}, 1},
		{"step overshoots max", ParameterRange{Min: 0, Max: 3, Step: 2}, 2},
		{"zero step", ParameterRange{Min: 0, Max: 10, Step: 0}, 0},
		{"negative step", ParameterRange{Min: 0, Max: 10, Step: -1}, 0},
		{"max below min", ParameterRange{Min: 10, Max: 5, Step: 1}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.r.Count(); got != tt.want {
				t.Errorf("Count() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestIsTunableParameter(t *testing.T) {
	for _, name := range []string{"coherence_threshold", "adx_len", "snr_len", "atr_mult", "tp_mult", "qqe_rsi_len", "qqe_smooth"} {
		if !IsTunableParameter(name) {
			t.Errorf("Expected %s to be tunable", name)
		}
	}
	for _, name := range []string{"", "leverage", "win_rate", "ADX_LEN"} {
		if IsTunableParameter(name) {
			t.Errorf("Expected %s to be rejected", name)
		}
	}
}

func TestCloneParametersIsIndependent(t *testing.T) {
	cfg := &StrategyConfig{Parameters: map[string]float64{"adx_len": 14}}

	clone := cfg.CloneParameters()
	clone["adx_len"] = 99

	if cfg.Parameters["adx_len"] != 14 {
		t.Errorf("Clone mutation leaked into original: got %g", cfg.Parameters["adx_len"])
	}
}

func TestSideValid(t *testing.T) {
	if !SideLong.Valid() || !SideShort.Valid() {
		t.Error("Expected long and short to be valid")
	}
	if Side("buy").Valid() || Side("").Valid() || Side("Long").Valid() {
		t.Error("Expected unknown sides to be invalid")
	}
}

func TestHasClosureData(t *testing.T) {
	pnl := 12.5
	exit := int64(1700000000000)

	sig := &TradeSignal{}
	if sig.HasClosureData() {
		t.Error("Empty signal should not have closure data")
	}

	sig.PnL = &pnl
	if sig.HasClosureData() {
		t.Error("PnL alone should not count as closure data")
	}

	sig.ExitTime = &exit
	if !sig.HasClosureData() {
		t.Error("PnL + ExitTime should count as closure data")
	}
}
