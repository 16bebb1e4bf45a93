package billing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"alathletics/internal/config"
	"alathletics/internal/types"
)

func testBillingConfig() config.BillingConfig {
	return config.BillingConfig{
		FoundationMonthlyPriceID:    "price_fnd_m",
		FoundationSemiannualPriceID: "price_fnd_s",
		FoundationAnnualPriceID:     "price_fnd_a",
		GrowthMonthlyPriceID:        "price_gro_m",
		GrowthSemiannualPriceID:     "price_gro_s",
		GrowthAnnualPriceID:         "price_gro_a",
		EliteMonthlyPriceID:         "price_eli_m",
		EliteSemiannualPriceID:      "price_eli_s",
		EliteAnnualPriceID:          "price_eli_a",
	}
}

func TestNewRegistry_RoundTrip(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	plans := []types.PlanID{types.PlanFoundation, types.PlanGrowth, types.PlanElite}
	periods := []types.BillingPeriod{types.PeriodMonthly, types.PeriodSemiannual, types.PeriodAnnual}

	seen := map[string]bool{}
	for _, plan := range plans {
		for _, period := range periods {
			priceID, err := reg.PriceID(plan, period)
			require.NoError(t, err)
			assert.False(t, seen[priceID], "price id %s issued twice", priceID)
			seen[priceID] = true

			info, err := reg.PlanForPriceID(priceID)
			require.NoError(t, err)
			assert.Equal(t, plan, info.PlanID)
		}
	}
	assert.Len(t, seen, 9)
}

func TestNewRegistry_RejectsEmptyPriceID(t *testing.T) {
	cfg := testBillingConfig()
	cfg.GrowthAnnualPriceID = ""

	_, err := NewRegistry(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty price id")
}

func TestNewRegistry_RejectsDuplicatePriceID(t *testing.T) {
	cfg := testBillingConfig()
	cfg.EliteMonthlyPriceID = cfg.FoundationMonthlyPriceID

	_, err := NewRegistry(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "assigned to both")
}

func TestRegistry_PriceID_UnknownPlan(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	_, err = reg.PriceID(types.PlanID("platinum"), types.PeriodMonthly)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeBillingUnknownPlan, appErr.Code)
}

func TestRegistry_PlanForPriceID_UnknownPrice(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	_, err = reg.PlanForPriceID("price_not_ours")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeBillingUnknownPrice, appErr.Code)
}

func TestRegistry_DisplayName(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	assert.Equal(t, "Growth", reg.DisplayName(types.PlanGrowth))
	assert.Equal(t, "legacy_plan", reg.DisplayName(types.PlanID("legacy_plan")))
}

type stubPriceFetcher struct {
	prices map[string]*types.RemotePrice
	err    error
	calls  int
}

func (s *stubPriceFetcher) GetPrice(_ context.Context, priceID string) (*types.RemotePrice, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if p, ok := s.prices[priceID]; ok {
		return p, nil
	}
	return &types.RemotePrice{ID: priceID, Active: true}, nil
}

func TestRegistry_ValidateCatalog_AllActive(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	fetcher := &stubPriceFetcher{}
	require.NoError(t, reg.ValidateCatalog(context.Background(), fetcher))
	assert.Equal(t, 9, fetcher.calls)
}

func TestRegistry_ValidateCatalog_InactivePrice(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	fetcher := &stubPriceFetcher{
		prices: map[string]*types.RemotePrice{
			"price_eli_a": {ID: "price_eli_a", Active: false},
		},
	}
	err = reg.ValidateCatalog(context.Background(), fetcher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not active")
}

func TestRegistry_ValidateCatalog_FetchError(t *testing.T) {
	reg, err := NewRegistry(testBillingConfig())
	require.NoError(t, err)

	fetcher := &stubPriceFetcher{err: errors.New("stripe down")}
	err = reg.ValidateCatalog(context.Background(), fetcher)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "catalog validation failed")
}
