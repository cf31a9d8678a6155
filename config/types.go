package config

import (
	"propchain/core/types"
	"propchain/native/common"
	"propchain/native/pricing"
)

// Pricing mirrors pricing.Policy in configuration form.
type Pricing struct {
	DemandThreshold        uint64 `toml:"DemandThreshold" yaml:"demandThreshold"`
	DemandMultiplier       uint64 `toml:"DemandMultiplier" yaml:"demandMultiplier" validate:"gt=0"`
	DiscountScoreThreshold uint64 `toml:"DiscountScoreThreshold" yaml:"discountScoreThreshold"`
	DiscountPercent        uint64 `toml:"DiscountPercent" yaml:"discountPercent" validate:"lte=100"`
	LatePenaltyPercent     uint64 `toml:"LatePenaltyPercent" yaml:"latePenaltyPercent" validate:"lte=100"`
}

// DefaultPricing returns the reference pricing policy.
func DefaultPricing() Pricing {
	p := pricing.DefaultPolicy()
	return Pricing{
		DemandThreshold:        p.DemandThreshold,
		DemandMultiplier:       p.DemandMultiplier,
		DiscountScoreThreshold: p.DiscountScoreThreshold,
		DiscountPercent:        p.DiscountPercent,
		LatePenaltyPercent:     p.LatePenaltyPercent,
	}
}

// Policy converts the configuration into the runtime pricing policy.
func (p Pricing) Policy() pricing.Policy {
	return pricing.Policy{
		DemandThreshold:        p.DemandThreshold,
		DemandMultiplier:       p.DemandMultiplier,
		DiscountScoreThreshold: p.DiscountScoreThreshold,
		DiscountPercent:        p.DiscountPercent,
		LatePenaltyPercent:     p.LatePenaltyPercent,
	}
}

// Telemetry configures OTLP export. Both signals are off by default.
type Telemetry struct {
	Endpoint string `toml:"Endpoint" yaml:"endpoint" validate:"omitempty,hostname_port"`
	Insecure bool   `toml:"Insecure" yaml:"insecure"`
	// Headers uses the "key=value,key2=value2" form of OTEL_EXPORTER_OTLP_HEADERS.
	Headers string `toml:"Headers" yaml:"headers"`
	Traces  bool   `toml:"Traces" yaml:"traces"`
	Metrics bool   `toml:"Metrics" yaml:"metrics"`
}

// Vault returns the parsed escrow vault principal.
func (c *Config) Vault() (types.Principal, error) {
	return types.ParsePrincipal(c.EscrowVault)
}

// Pauses returns the pause view for the configured module list.
func (c *Config) Pauses() common.PauseView {
	return common.NewStaticPauses(c.PausedModules)
}
