package xp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultPolicyValid(t *testing.T) {
	if err := DefaultPolicy().Validate(); err != nil {
		t.Fatalf("default policy invalid: %v", err)
	}
}

func TestPolicyForPresets(t *testing.T) {
	for _, s := range []Strictness{StrictnessLenient, StrictnessBalanced, StrictnessStrict} {
		p, err := PolicyFor(s)
		if err != nil {
			t.Fatalf("PolicyFor(%s): %v", s, err)
		}
		if p.Strictness != s {
			t.Errorf("Strictness = %q, want %q", p.Strictness, s)
		}
		if err := p.Validate(); err != nil {
			t.Errorf("%s preset invalid: %v", s, err)
		}
	}

	lenient, _ := PolicyFor(StrictnessLenient)
	strict, _ := PolicyFor(StrictnessStrict)
	if lenient.MinEffectiveMinutes >= strict.MinEffectiveMinutes {
		t.Errorf("lenient threshold %v should be below strict %v", lenient.MinEffectiveMinutes, strict.MinEffectiveMinutes)
	}

	if _, err := PolicyFor("chaotic"); err == nil {
		t.Error("expected error for unknown strictness")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Policy)
	}{
		{"negative base", func(p *Policy) { p.BaseXPPerMinute = -1 }},
		{"zero divisor", func(p *Policy) { p.StreakDivisor = 0 }},
		{"pet ratio above one", func(p *Policy) { p.PetXPRatio = 1.5 }},
		{"unknown strictness", func(p *Policy) { p.Strictness = "loose" }},
		{"inverted work range", func(p *Policy) { p.WorkMinutes = MinutesRange{Min: 60, Max: 10} }},
		{"zero history", func(p *Policy) { p.HistoryLimit = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultPolicy()
			tt.mutate(&p)
			err := p.Validate()
			if !errors.Is(err, ErrInvalidPolicy) {
				t.Errorf("err = %v, want ErrInvalidPolicy", err)
			}
		})
	}
}

func TestLoadPolicyOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "policy.yaml")
	content := "strictness: strict\nbaseXpPerMinute: 12\nstreakBonusEnabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := LoadPolicy(path, DefaultPolicy())
	if err != nil {
		t.Fatalf("LoadPolicy: %v", err)
	}
	if p.Strictness != StrictnessStrict {
		t.Errorf("Strictness = %q, want strict", p.Strictness)
	}
	if p.MinEffectiveMinutes != 10 {
		t.Errorf("MinEffectiveMinutes = %v, want strict preset 10", p.MinEffectiveMinutes)
	}
	if p.BaseXPPerMinute != 12 {
		t.Errorf("BaseXPPerMinute = %v, want 12", p.BaseXPPerMinute)
	}
	if p.StreakBonusEnabled {
		t.Error("StreakBonusEnabled = true, want false")
	}
	if p.PetXPRatio != 0.5 {
		t.Errorf("PetXPRatio = %v, want untouched 0.5", p.PetXPRatio)
	}
}

func TestLoadPolicyInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte("petXpRatio: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPolicy(path, DefaultPolicy()); !errors.Is(err, ErrInvalidPolicy) {
		t.Errorf("err = %v, want ErrInvalidPolicy", err)
	}
}
