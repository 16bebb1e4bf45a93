// Package billing implements the subscription state core: the plan registry,
// the local/remote reconciler, and the plan-change orchestrator. The billing
// provider (Stripe) is authoritative for subscription status and period
// bounds; the local database is a mirror kept in agreement by reconciliation.
package billing

import (
	"context"
	"fmt"

	"alathletics/internal/config"
	"alathletics/internal/types"
)

// planDisplayNames maps plan ids to their customer-facing names.
var planDisplayNames = map[types.PlanID]string{
	types.PlanFoundation: "Foundation",
	types.PlanGrowth:     "Growth",
	types.PlanElite:      "Elite",
}

// planKey is the composite lookup key for the forward mapping.
type planKey struct {
	plan   types.PlanID
	period types.BillingPeriod
}

// Registry is the immutable plan catalog: a bidirectional mapping between
// (plan, billing period) pairs and provider price ids. It is constructed once
// at startup from configuration and never mutated, so lookups are safe from
// any goroutine without locking.
type Registry struct {
	priceByKey  map[planKey]string
	planByPrice map[string]types.PlanID
}

// NewRegistry builds the registry from the configured price ids. It rejects
// empty and duplicate price ids so that the reverse mapping is total and
// unambiguous.
func NewRegistry(cfg config.BillingConfig) (*Registry, error) {
	entries := []struct {
		plan    types.PlanID
		period  types.BillingPeriod
		priceID string
	}{
		{types.PlanFoundation, types.PeriodMonthly, cfg.FoundationMonthlyPriceID},
		{types.PlanFoundation, types.PeriodSemiannual, cfg.FoundationSemiannualPriceID},
		{types.PlanFoundation, types.PeriodAnnual, cfg.FoundationAnnualPriceID},
		{types.PlanGrowth, types.PeriodMonthly, cfg.GrowthMonthlyPriceID},
		{types.PlanGrowth, types.PeriodSemiannual, cfg.GrowthSemiannualPriceID},
		{types.PlanGrowth, types.PeriodAnnual, cfg.GrowthAnnualPriceID},
		{types.PlanElite, types.PeriodMonthly, cfg.EliteMonthlyPriceID},
		{types.PlanElite, types.PeriodSemiannual, cfg.EliteSemiannualPriceID},
		{types.PlanElite, types.PeriodAnnual, cfg.EliteAnnualPriceID},
	}

	r := &Registry{
		priceByKey:  make(map[planKey]string, len(entries)),
		planByPrice: make(map[string]types.PlanID, len(entries)),
	}

	for _, e := range entries {
		if e.priceID == "" {
			return nil, fmt.Errorf("billing registry: empty price id for plan %s period %s", e.plan, e.period)
		}
		if existing, dup := r.planByPrice[e.priceID]; dup {
			return nil, fmt.Errorf("billing registry: price id %s assigned to both %s and %s", e.priceID, existing, e.plan)
		}
		r.priceByKey[planKey{e.plan, e.period}] = e.priceID
		r.planByPrice[e.priceID] = e.plan
	}

	return r, nil
}

// PriceID resolves a (plan, period) pair to its provider price id.
// Unknown pairs return billing_unknown_plan.
func (r *Registry) PriceID(plan types.PlanID, period types.BillingPeriod) (string, error) {
	priceID, ok := r.priceByKey[planKey{plan, period}]
	if !ok {
		return "", types.NewAppError(
			types.ErrCodeBillingUnknownPlan,
			fmt.Sprintf("no price configured for plan %q with billing period %q", plan, period),
			nil,
		)
	}
	return priceID, nil
}

// PlanForPriceID resolves a provider price id back to plan information.
// The billing period is not recoverable from this direction; the provider
// subscription carries it in its own recurring interval.
func (r *Registry) PlanForPriceID(priceID string) (*types.PlanInfo, error) {
	plan, ok := r.planByPrice[priceID]
	if !ok {
		return nil, types.NewAppError(
			types.ErrCodeBillingUnknownPrice,
			fmt.Sprintf("price id %q does not belong to the plan catalog", priceID),
			nil,
		)
	}
	return &types.PlanInfo{
		PlanID:      plan,
		DisplayName: planDisplayNames[plan],
	}, nil
}

// DisplayName returns the customer-facing name for a plan id, or the raw id
// when the plan is not in the catalog.
func (r *Registry) DisplayName(plan types.PlanID) string {
	if name, ok := planDisplayNames[plan]; ok {
		return name
	}
	return string(plan)
}

// PriceIDs returns every configured price id. Order is unspecified.
func (r *Registry) PriceIDs() []string {
	ids := make([]string, 0, len(r.planByPrice))
	for id := range r.planByPrice {
		ids = append(ids, id)
	}
	return ids
}

// PriceFetcher retrieves a catalog price from the billing provider.
// Satisfied by *external.StripeClient.
type PriceFetcher interface {
	GetPrice(ctx context.Context, priceID string) (*types.RemotePrice, error)
}

// ValidateCatalog verifies that every configured price id exists in the
// provider catalog and is active. Called once at startup so that catalog
// drift fails the deploy instead of surfacing as runtime plan-change errors.
func (r *Registry) ValidateCatalog(ctx context.Context, fetcher PriceFetcher) error {
	for _, priceID := range r.PriceIDs() {
		price, err := fetcher.GetPrice(ctx, priceID)
		if err != nil {
			return fmt.Errorf("catalog validation failed for price %s: %w", priceID, err)
		}
		if !price.Active {
			return fmt.Errorf("catalog validation failed: price %s exists but is not active", priceID)
		}
	}
	return nil
}
