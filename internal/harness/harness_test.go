package harness

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/cartsync/internal/fakecart"
)

func intPtr(v int) *int { return &v }

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func demoCatalog() []fakecart.CatalogEntry {
	return []fakecart.CatalogEntry{
		{ProductID: 1001, Title: "iPhone 1", Price: "499.00", Image: "iphone1.jpeg"},
		{ProductID: 2001, Title: "Charger", Price: "19.99", Image: "charger.jpeg"},
	}
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{"update_and_remove", "anonymous_redirect", "add_rejected"} {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario("testdata/scenarios/" + name + ".yaml")
			require.NoError(t, err)

			result, err := Run(context.Background(), s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
			assert.Len(t, result.Steps, len(s.Steps))
		})
	}
}

func TestRun_TraceFromJournal(t *testing.T) {
	s := &Scenario{
		Name:        "trace",
		Description: "one refresh",
		Catalog:     demoCatalog(),
		Seed:        []fakecart.SeedEntry{{ProductID: 2001, Quantity: 2}},
		Steps:       []Step{{Op: OpRefresh}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	require.Len(t, result.Trace, 2)
	in, out := result.Trace[0], result.Trace[1]

	assert.Equal(t, EventIntent, in.Type)
	assert.Equal(t, int64(1), in.Seq)
	assert.Equal(t, "intent-0001", in.IntentID)
	assert.Equal(t, "refresh", in.Op)
	assert.Empty(t, in.Data)

	assert.Equal(t, EventOutcome, out.Type)
	assert.Equal(t, int64(2), out.Seq)
	assert.Equal(t, "intent-0001", out.IntentID)
	assert.Equal(t, "ok", out.Kind)
	assert.Equal(t, int64(2), out.Data["count"])
	assert.Equal(t, "39.98", out.Data["total"])

	assert.Equal(t, 2, result.Final.Count)
	assert.True(t, decimal.RequireFromString("39.98").Equal(result.Final.Total))
}

func TestRun_StepExpectationFailuresAreReported(t *testing.T) {
	s := &Scenario{
		Name:        "wrong",
		Description: "expectations that do not hold",
		Catalog:     demoCatalog(),
		Seed:        []fakecart.SeedEntry{{ProductID: 1001, Quantity: 1}},
		Steps: []Step{
			{Op: OpRefresh, Expect: &StepExpect{Outcome: "rejected", Count: intPtr(3), Total: "1.00"}},
		},
		Expect: &FinalExpect{Empty: boolPtr(true)},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 4)
	assert.Contains(t, result.Errors[0], "expected outcome rejected, got ok")
	assert.Contains(t, result.Errors[1], "expected count 3, got 1")
	assert.Contains(t, result.Errors[2], "expected total 1.00, got 499.00")
	assert.Contains(t, result.Errors[3], "final: expected empty true, got false")
}

func TestRun_DeclinedRemovalKeepsRow(t *testing.T) {
	s := &Scenario{
		Name:        "declined",
		Description: "the user says no to the removal prompt",
		Catalog:     demoCatalog(),
		Seed:        []fakecart.SeedEntry{{ProductID: 1001, Quantity: 1}},
		Steps: []Step{
			{Op: OpRefresh},
			{Op: OpRemove, ProductID: 1001, Confirm: boolPtr(false), Expect: &StepExpect{Outcome: "cancelled"}},
		},
		Expect: &FinalExpect{Count: intPtr(1), Items: []ItemLine{{ProductID: 1001, Quantity: 1}}},
		Assertions: []Assertion{
			{Type: AssertTraceCount, Op: "remove", Count: 0},
			{Type: AssertRequestCount, Op: fakecart.OpRemove, Count: 0},
		},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "Removal cancelled", result.Steps[1].Message)
}

func TestRun_LogoutMidSession(t *testing.T) {
	s := &Scenario{
		Name:        "logout",
		Description: "the session ends server-side",
		CurrentPath: "/cart",
		Catalog:     demoCatalog(),
		Seed:        []fakecart.SeedEntry{{ProductID: 1001, Quantity: 2}},
		Steps: []Step{
			{Op: OpRefresh},
			{Op: OpLogout},
			{Op: OpIncrement, ProductID: 1001, Expect: &StepExpect{Outcome: "redirect", Count: intPtr(2)}},
			{Op: OpRefresh, Expect: &StepExpect{Outcome: "ok", Count: intPtr(0), Empty: boolPtr(true)}},
		},
		Expect: &FinalExpect{Empty: boolPtr(true), Redirect: strPtr("/cart")},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

func TestRun_Notifications(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/update_and_remove.yaml")
	require.NoError(t, err)

	result, err := Run(context.Background(), s)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"success: Quantity updated",
		"error: Network error. Please try again.",
		"success: Item removed from cart",
	}, result.Notifications)
}

func TestRun_BadCatalog(t *testing.T) {
	s := &Scenario{
		Name:        "bad",
		Description: "price is not a number",
		Catalog:     []fakecart.CatalogEntry{{ProductID: 1, Title: "x", Price: "free"}},
		Steps:       []Step{{Op: OpRefresh}},
	}

	_, err := Run(context.Background(), s)
	require.Error(t, err)
}

func TestRun_Deterministic(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/add_rejected.yaml")
	require.NoError(t, err)

	first, err := Run(context.Background(), s)
	require.NoError(t, err)
	second, err := Run(context.Background(), s)
	require.NoError(t, err)

	a, err := TraceBytes(s.Name, first)
	require.NoError(t, err)
	b, err := TraceBytes(s.Name, second)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(b))
}

func TestRun_FinalItemsMismatchShowsDiff(t *testing.T) {
	s := &Scenario{
		Name:        "items",
		Description: "final rows differ",
		Catalog:     demoCatalog(),
		Seed:        []fakecart.SeedEntry{{ProductID: 1001, Quantity: 2}},
		Steps:       []Step{{Op: OpRefresh}},
		Expect:      &FinalExpect{Items: []ItemLine{{ProductID: 1001, Quantity: 3}}},
	}

	result, err := Run(context.Background(), s)
	require.NoError(t, err)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "items mismatch (-want +got)")
	assert.Contains(t, result.Errors[0], "Quantity")
}
