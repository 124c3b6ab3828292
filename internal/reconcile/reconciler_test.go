package reconcile

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"supplier-import-service/internal/models"
)

func newTestReconciler(t *testing.T) *Reconciler {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return New(Config{}, logger)
}

func intPtr(v int) *int { return &v }

func TestReconcileEndToEnd(t *testing.T) {
	r := newTestReconciler(t)

	variants := []models.SupplierVariant{
		{VariantID: "v1", SKU: "SKU-001", Attributes: "Red-M", CostPrice: 3.50},
		{VariantID: "v2", SKU: "SKU-002", Attributes: "Blue-L", CostPrice: 3.50},
	}
	// Inventory feed only knows the first variant, under different casing
	// and spacing.
	inventory := []models.InventorySignal{
		{AltIdentifiers: []string{"RED-M", "SKU 001"}, WarehouseQty: intPtr(20)},
	}
	freight := map[string]models.FreightResult{
		"v1": {Quotes: []models.FreightQuote{{Carrier: "YunExpress", Price: 4.0, MinDays: 7, MaxDays: 15}}},
		"v2": {Error: "freight quote timed out"},
	}

	out := r.Reconcile(variants, inventory, freight)
	require.Len(t, out, 2)

	first := out[0]
	require.NotNil(t, first.Color)
	assert.Equal(t, "Red", *first.Color)
	require.NotNil(t, first.Size)
	assert.Equal(t, "M", *first.Size)
	require.NotNil(t, first.Stock)
	assert.Equal(t, 15, *first.Stock, "buffer of 5 subtracted from reported 20")
	assert.True(t, first.ShippingAvailable)
	require.NotNil(t, first.ShippingCost)
	assert.Equal(t, 4.0, *first.ShippingCost)

	second := out[1]
	require.NotNil(t, second.Color)
	assert.Equal(t, "Blue", *second.Color)
	require.NotNil(t, second.Size)
	assert.Equal(t, "L", *second.Size)
	assert.Nil(t, second.Stock, "unmatched variant stock stays unknown")
	assert.False(t, second.ShippingAvailable)
	assert.Equal(t, "freight quote timed out", second.Error)
}

func TestStockBufferFloorsAtZero(t *testing.T) {
	r := newTestReconciler(t)

	variants := []models.SupplierVariant{
		{VariantID: "v1", SKU: "SKU-LOW", Attributes: "Red-M"},
		{VariantID: "v2", SKU: "SKU-ZERO", Attributes: "Red-L"},
	}
	inventory := []models.InventorySignal{
		{SKU: "SKU-LOW", WarehouseQty: intPtr(3)},
		{SKU: "SKU-ZERO", WarehouseQty: intPtr(0)},
	}

	out := r.Reconcile(variants, inventory, nil)
	require.Len(t, out, 2)
	require.NotNil(t, out[0].Stock)
	assert.Equal(t, 0, *out[0].Stock, "3 - 5 floors at 0, never negative")
	require.NotNil(t, out[1].Stock)
	assert.Equal(t, 0, *out[1].Stock)
}

func TestFactoryQtyUsedWhenWarehouseUnknown(t *testing.T) {
	r := newTestReconciler(t)

	out := r.Reconcile(
		[]models.SupplierVariant{{VariantID: "v1", SKU: "SKU-F"}},
		[]models.InventorySignal{{SKU: "SKU-F", FactoryQty: intPtr(50)}},
		nil,
	)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Stock)
	assert.Equal(t, 45, *out[0].Stock)
}

func TestAggregateStock(t *testing.T) {
	allUnknown := []models.PricedVariant{{Stock: nil}, {Stock: nil}}
	assert.Nil(t, AggregateStock(allUnknown), "all-unknown aggregates to nil, not 0")

	partial := []models.PricedVariant{{Stock: intPtr(10)}, {Stock: nil}}
	total := AggregateStock(partial)
	require.NotNil(t, total)
	assert.Equal(t, 10, *total, "only known stocks are summed")

	zeros := []models.PricedVariant{{Stock: intPtr(0)}}
	total = AggregateStock(zeros)
	require.NotNil(t, total)
	assert.Equal(t, 0, *total, "known zero is zero, not unknown")
}

func TestSubstringFallbackMatching(t *testing.T) {
	r := newTestReconciler(t)

	// The feed pads the identifier with a warehouse prefix; only the
	// substring pass can connect it.
	out := r.Reconcile(
		[]models.SupplierVariant{{VariantID: "v1", SKU: "ABCD-1234"}},
		[]models.InventorySignal{{AltIdentifiers: []string{"WH-ABCD-1234-CN"}, WarehouseQty: intPtr(30)}},
		nil,
	)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Stock)
	assert.Equal(t, 25, *out[0].Stock)
}

func TestSubstringFallbackGatedOnShortKeys(t *testing.T) {
	r := newTestReconciler(t)

	// "12" is contained in "123456" but is far too short to trust; the
	// fallback must not fire.
	out := r.Reconcile(
		[]models.SupplierVariant{{VariantID: "12"}},
		[]models.InventorySignal{{AltIdentifiers: []string{"123456"}, WarehouseQty: intPtr(99)}},
		nil,
	)
	require.Len(t, out, 1)
	assert.Nil(t, out[0].Stock)
}

func TestExactMatchWinsOverSubstring(t *testing.T) {
	r := newTestReconciler(t)

	out := r.Reconcile(
		[]models.SupplierVariant{{VariantID: "v1", SKU: "SHIRT-RED-M"}},
		[]models.InventorySignal{
			{AltIdentifiers: []string{"SHIRT-RED-M-EXTRA"}, WarehouseQty: intPtr(100)},
			{AltIdentifiers: []string{"SHIRT RED M"}, WarehouseQty: intPtr(40)},
		},
		nil,
	)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Stock)
	assert.Equal(t, 35, *out[0].Stock, "exact pass over all candidates runs before any substring check")
}

func TestPreferredCarrierSelection(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	r := New(Config{PreferredCarrierPattern: "yun"}, logger)

	out := r.Reconcile(
		[]models.SupplierVariant{{VariantID: "v1", SKU: "SKU-1"}},
		nil,
		map[string]models.FreightResult{
			"v1": {Quotes: []models.FreightQuote{
				{Carrier: "China Post", Price: 2.0, MinDays: 20, MaxDays: 40},
				{Carrier: "YunExpress", Price: 4.5, MinDays: 7, MaxDays: 15},
			}},
		},
	)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].Carrier)
	assert.Equal(t, "YunExpress", *out[0].Carrier, "preferred carrier beats feed order")
	assert.Equal(t, 4.5, *out[0].ShippingCost)
}

func TestFirstFreightOptionWhenNoPreferredMatch(t *testing.T) {
	r := newTestReconciler(t)

	out := r.Reconcile(
		[]models.SupplierVariant{{VariantID: "v1", SKU: "SKU-1"}},
		nil,
		map[string]models.FreightResult{
			"v1": {Quotes: []models.FreightQuote{
				{Carrier: "China Post", Price: 2.0, MinDays: 20, MaxDays: 40},
				{Carrier: "DHL", Price: 9.0, MinDays: 3, MaxDays: 7},
			}},
		},
	)
	require.Len(t, out, 1)
	assert.Equal(t, "China Post", *out[0].Carrier, "feed order is pre-ranked by the supplier")
}

func TestClassifyToken(t *testing.T) {
	hc := NewHeuristicClassifier()

	tests := []struct {
		token    string
		expected TokenClass
	}{
		{"Red", TokenColor},
		{"navy", TokenColor},
		{"iPhone 14 Pro", TokenModel},
		{"Samsung Galaxy S23", TokenModel},
		{"XL", TokenSize},
		{"One Size", TokenSize},
		{"42", TokenSize},
		{"short-ish token", TokenSize}, // <20 chars defaults to size
		{"an attribute token that is much too long to be a size", TokenUnknown},
		{"", TokenUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, hc.ClassifyToken(tt.token), "token %q", tt.token)
	}
}

func TestClassifierCheckedOrder(t *testing.T) {
	hc := NewHeuristicClassifier()
	// "Rose Gold iPhone" matches both the color set and the model pattern;
	// color is checked first and wins.
	assert.Equal(t, TokenColor, hc.ClassifyToken("Rose Gold iPhone"))
}

func TestSplitAttributes(t *testing.T) {
	assert.Equal(t, []string{"Red", "M"}, SplitAttributes("Red-M"))
	assert.Equal(t, []string{"Blue", "XL"}, SplitAttributes("Blue/XL"))
	assert.Equal(t, []string{"iPhone 14", "Black"}, SplitAttributes("iPhone 14|Black"))
	assert.Empty(t, SplitAttributes(""))
}
