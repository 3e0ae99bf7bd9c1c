package config_test

import (
	"testing"

	"github.com/five82/seqstack/internal/config"
)

func TestNewConfigValidatesClean(t *testing.T) {
	if err := config.NewConfig().Validate(); err != nil {
		t.Fatalf("default Config should validate: %v", err)
	}
}

func TestConfigRejectsNegativeWorkers(t *testing.T) {
	c := config.NewConfig()
	c.Workers = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative Workers")
	}
}

func TestConfigRejectsNegativeMaxActiveBlocks(t *testing.T) {
	c := config.NewConfig()
	c.MaxActiveBlocks = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative MaxActiveBlocks")
	}
}

func TestNewStackConfigValidatesClean(t *testing.T) {
	if err := config.NewStackConfig().Validate(); err != nil {
		t.Fatalf("default StackConfig should validate: %v", err)
	}
}

func TestStackConfigRejectsNonPositiveSigma(t *testing.T) {
	c := config.NewStackConfig()
	c.SigmaLow = 0
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for zero SigmaLow")
	}

	c = config.NewStackConfig()
	c.SigmaHigh = -1
	if err := c.Validate(); err == nil {
		t.Fatal("expected error for negative SigmaHigh")
	}
}

func TestMemoryBudgetRowsForMegapixelsTiers(t *testing.T) {
	cases := []struct {
		w, h int
		want int
	}{
		{1000, 1000, config.MemoryBudgetRowsSmall},  // 1 MP
		{3000, 2000, config.MemoryBudgetRowsMedium}, // 6 MP
		{6000, 5000, config.MemoryBudgetRowsLarge},  // 30 MP
	}
	for _, c := range cases {
		got := config.MemoryBudgetRowsForMegapixels(c.w, c.h)
		if got != c.want {
			t.Fatalf("MemoryBudgetRowsForMegapixels(%d,%d) = %d, want %d", c.w, c.h, got, c.want)
		}
	}
}
