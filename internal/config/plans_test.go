package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanCatalog_Resolve(t *testing.T) {
	holder, err := NewPlanCatalogHolderFrom(DefaultPlanCatalog())
	require.NoError(t, err)

	plus := holder.Resolve("plus")
	assert.Equal(t, "438fb589-63da-411c-9802-09f8bdc0a8ae", plus.ReferenceCode)

	// Name is normalized.
	assert.Equal(t, plus, holder.Resolve("  PLUS "))

	// Unknown plans sell the default rather than failing checkout.
	solo := holder.Resolve("solo")
	assert.Equal(t, solo, holder.Resolve("enterprise"))
	assert.Equal(t, solo, holder.Resolve(""))
}

func TestPlanCatalog_Validation(t *testing.T) {
	_, err := NewPlanCatalogHolderFrom(PlanCatalog{})
	assert.Error(t, err)

	_, err = NewPlanCatalogHolderFrom(PlanCatalog{
		DefaultPlan: "missing",
		Plans:       map[string]Plan{"solo": {ReferenceCode: "ref"}},
	})
	assert.Error(t, err)

	_, err = NewPlanCatalogHolderFrom(PlanCatalog{
		DefaultPlan: "solo",
		Plans:       map[string]Plan{"solo": {ReferenceCode: "  "}},
	})
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	cfg := Load()
	cfg.GatewayAPIKey = "k"
	cfg.GatewaySecretKey = "s"
	require.NoError(t, cfg.Validate())

	cfg.GatewayAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg.GatewayAPIKey = "k"
	cfg.BatchSize = 0
	assert.Error(t, cfg.Validate())
}
