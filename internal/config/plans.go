package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Plan maps a checkout plan name to the gateway pricing-plan reference
// code that creates its subscription.
type Plan struct {
	ReferenceCode string  `mapstructure:"referenceCode"`
	Price         float64 `mapstructure:"price"`
	Currency      string  `mapstructure:"currency"`
}

// PlanCatalog is the set of sellable plans plus the fallback used when
// checkout sends an unknown plan name.
type PlanCatalog struct {
	Plans       map[string]Plan `mapstructure:"plans"`
	DefaultPlan string          `mapstructure:"defaultPlan"`
}

func DefaultPlanCatalog() PlanCatalog {
	return PlanCatalog{
		DefaultPlan: "solo",
		Plans: map[string]Plan{
			"test":    {ReferenceCode: "6a2c1cfa-67f0-4af0-8ec0-39b2a1c5c9da", Price: 1.00, Currency: "USD"},
			"solo":    {ReferenceCode: "decef24c-4ee5-4407-94bf-6c64b096660f", Price: 9.99, Currency: "USD"},
			"plus":    {ReferenceCode: "438fb589-63da-411c-9802-09f8bdc0a8ae", Price: 19.99, Currency: "USD"},
			"premium": {ReferenceCode: "fd5fc9cb-06f7-4079-92c7-5d25adc0f6b4", Price: 29.99, Currency: "USD"},
		},
	}
}

// PlanCatalogHolder serves the current catalog and hot-reloads it when
// the backing YAML file changes.
type PlanCatalogHolder struct {
	current atomic.Value // holds PlanCatalog
}

func NewPlanCatalogHolder() (*PlanCatalogHolder, error) {
	v := viper.New()

	v.SetConfigName("plans")
	v.SetConfigType("yml")
	v.AddConfigPath("/etc/rebill")
	v.AddConfigPath(".")

	v.SetEnvPrefix("REBILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultPlanCatalog()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		v.SetDefault("catalog.plans", defaults.Plans)
		v.SetDefault("catalog.defaultPlan", defaults.DefaultPlan)
	}

	var catalog PlanCatalog
	if err := v.UnmarshalKey("catalog", &catalog); err != nil {
		return nil, err
	}
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}

	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated PlanCatalog
		if err := v.UnmarshalKey("catalog", &updated); err != nil {
			log.Printf("[plan-catalog] reload failed: %v", err)
			return
		}
		if err := validatePlanCatalog(updated); err != nil {
			log.Printf("[plan-catalog] invalid catalog ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[plan-catalog] reloaded from %s", e.Name)
	})

	return holder, nil
}

func NewPlanCatalogHolderFrom(catalog PlanCatalog) (*PlanCatalogHolder, error) {
	if err := validatePlanCatalog(catalog); err != nil {
		return nil, err
	}
	holder := &PlanCatalogHolder{}
	holder.current.Store(catalog)
	return holder, nil
}

func (h *PlanCatalogHolder) Get() PlanCatalog {
	return h.current.Load().(PlanCatalog)
}

// Resolve returns the plan for name, falling back to the default plan
// for unknown names so a stale checkout page cannot strand a subscriber.
func (h *PlanCatalogHolder) Resolve(name string) Plan {
	catalog := h.Get()
	if plan, ok := catalog.Plans[strings.ToLower(strings.TrimSpace(name))]; ok {
		return plan
	}
	return catalog.Plans[catalog.DefaultPlan]
}

func validatePlanCatalog(catalog PlanCatalog) error {
	if len(catalog.Plans) == 0 {
		return errors.New("catalog.plans cannot be empty")
	}
	if _, ok := catalog.Plans[catalog.DefaultPlan]; !ok {
		return errors.New("catalog.defaultPlan must name an existing plan")
	}
	for name, plan := range catalog.Plans {
		if strings.TrimSpace(plan.ReferenceCode) == "" {
			return errors.New("plan " + name + " has no referenceCode")
		}
	}
	return nil
}
