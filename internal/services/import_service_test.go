package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"supplier-import-service/internal/categorylink"
	"supplier-import-service/internal/models"
	"supplier-import-service/internal/pricing"
	"supplier-import-service/internal/reconcile"
	"supplier-import-service/internal/repository"
)

// MockQueueRepository is a mock implementation of QueueRepositoryInterface
type MockQueueRepository struct {
	mock.Mock
}

var _ repository.QueueRepositoryInterface = (*MockQueueRepository)(nil)

func (m *MockQueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.QueuedProduct, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueuedProduct), args.Error(1)
}

func (m *MockQueueRepository) GetBySupplierProductID(ctx context.Context, supplierProductID string) (*models.QueuedProduct, error) {
	args := m.Called(ctx, supplierProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueuedProduct), args.Error(1)
}

func (m *MockQueueRepository) List(ctx context.Context, status models.QueueStatus, batchID string, limit, offset int) ([]models.QueuedProduct, int64, error) {
	args := m.Called(ctx, status, batchID, limit, offset)
	return args.Get(0).([]models.QueuedProduct), args.Get(1).(int64), args.Error(2)
}

func (m *MockQueueRepository) Create(ctx context.Context, item *models.QueuedProduct) error {
	args := m.Called(ctx, item)
	if args.Error(0) == nil {
		item.ID = uuid.New()
		item.CreatedAt = time.Now()
	}
	return args.Error(0)
}

func (m *MockQueueRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to models.QueueStatus, reviewedBy string) error {
	args := m.Called(ctx, id, from, to, reviewedBy)
	return args.Error(0)
}

func (m *MockQueueRepository) MarkImported(ctx context.Context, id uuid.UUID, catalogProductID uuid.UUID) error {
	args := m.Called(ctx, id, catalogProductID)
	return args.Error(0)
}

func (m *MockQueueRepository) UpdatePrice(ctx context.Context, id uuid.UUID, price float64) error {
	args := m.Called(ctx, id, price)
	return args.Error(0)
}

func (m *MockQueueRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockQueueRepository) Stats(ctx context.Context) (*models.QueueStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.QueueStats), args.Error(1)
}

func (m *MockQueueRepository) ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]models.QueuedProduct, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).([]models.QueuedProduct), args.Error(1)
}

// MockCatalogRepository is a mock implementation of CatalogRepositoryInterface
type MockCatalogRepository struct {
	mock.Mock
}

var _ repository.CatalogRepositoryInterface = (*MockCatalogRepository)(nil)

func (m *MockCatalogRepository) InsertProduct(ctx context.Context, product *models.Product, variants []models.ProductVariant) (*models.Product, error) {
	args := m.Called(ctx, product, variants)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockCatalogRepository) FindBySupplierProductID(ctx context.Context, supplierProductID string) (*models.Product, error) {
	args := m.Called(ctx, supplierProductID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

// MockSupplierClient is a mock implementation of clients.SupplierClient
type MockSupplierClient struct {
	mock.Mock
}

func (m *MockSupplierClient) FetchProductDetails(ctx context.Context, productID string) (*models.SupplierProductRecord, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.SupplierProductRecord), args.Error(1)
}

func (m *MockSupplierClient) FetchVariants(ctx context.Context, productID string) ([]models.SupplierVariant, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.SupplierVariant), args.Error(1)
}

func (m *MockSupplierClient) FetchInventory(ctx context.Context, productID string) ([]models.InventorySignal, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.InventorySignal), args.Error(1)
}

func (m *MockSupplierClient) FetchFreightQuotes(ctx context.Context, variantID, destinationCountry string, qty int) ([]models.FreightQuote, error) {
	args := m.Called(ctx, variantID, destinationCountry, qty)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FreightQuote), args.Error(1)
}

// MockCategoryStore is a mock implementation of categorylink.CategoryStore
type MockCategoryStore struct {
	mock.Mock
}

var _ categorylink.CategoryStore = (*MockCategoryStore)(nil)

func (m *MockCategoryStore) FindByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryStore) FindByName(ctx context.Context, name string) (*models.Category, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryStore) FindBySlug(ctx context.Context, slug string) (*models.Category, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryStore) FindMapping(ctx context.Context, supplierCategoryID string) (*models.Category, error) {
	args := m.Called(ctx, supplierCategoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryStore) FindByNameContains(ctx context.Context, token string) (*models.Category, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryStore) ReplaceProductLinks(ctx context.Context, productID uuid.UUID, categoryIDs []uuid.UUID, primaryID uuid.UUID) error {
	args := m.Called(ctx, productID, categoryIDs, primaryID)
	return args.Error(0)
}

type serviceFixture struct {
	queueRepo   *MockQueueRepository
	catalogRepo *MockCatalogRepository
	supplier    *MockSupplierClient
	categories  *MockCategoryStore
	service     *ImportService
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	queueRepo := &MockQueueRepository{}
	catalogRepo := &MockCatalogRepository{}
	supplier := &MockSupplierClient{}
	categories := &MockCategoryStore{}

	reconciler := reconcile.New(reconcile.Config{}, logger)
	previewSvc := NewPreviewService(supplier, reconciler, PricingConfig{
		DefaultRule: pricing.DefaultRule(),
		DefaultRate: 1.0,
		Destination: "SA",
		FreightQty:  1,
	}, 2, logger)
	linker := categorylink.NewLinker(categories, logger)

	return &serviceFixture{
		queueRepo:   queueRepo,
		catalogRepo: catalogRepo,
		supplier:    supplier,
		categories:  categories,
		service:     NewImportService(queueRepo, catalogRepo, previewSvc, linker, nil, 2, logger),
	}
}

func pendingItem(supplierProductID string) *models.QueuedProduct {
	return &models.QueuedProduct{
		ID:                uuid.New(),
		SupplierProductID: supplierProductID,
		Name:              "Wireless Earbuds",
		CostPrice:         10,
		Currency:          "USD",
		Status:            models.QueueStatusPending,
	}
}

func TestEnqueueCreatesPendingItem(t *testing.T) {
	f := newServiceFixture(t)
	record := &models.SupplierProductRecord{
		ID:        "SP-100",
		Name:      "Wireless Earbuds",
		CostPrice: 10,
		Currency:  "USD",
		Images:    []string{"https://cdn.example.com/a.jpg"},
		Variants:  []models.SupplierVariant{{VariantID: "V1", SKU: "SKU-1", CostPrice: 10}},
	}

	f.queueRepo.On("GetBySupplierProductID", mock.Anything, "SP-100").
		Return(nil, repository.ErrQueueItemNotFound)
	f.queueRepo.On("Create", mock.Anything, mock.MatchedBy(func(item *models.QueuedProduct) bool {
		return item.SupplierProductID == "SP-100" && item.Status == models.QueueStatusPending
	})).Return(nil)

	item, err := f.service.Enqueue(context.Background(), record, "batch-1")
	require.NoError(t, err)
	assert.Equal(t, models.QueueStatusPending, item.Status)
	assert.Equal(t, "SKU-1", item.SupplierSKU)
	require.NotNil(t, item.ImageURL)
	assert.Equal(t, "https://cdn.example.com/a.jpg", *item.ImageURL)
	require.NotNil(t, item.Margin)
	assert.Equal(t, pricing.DefaultRule().MarginPercent, *item.Margin)

	var snapshot models.SupplierProductRecord
	require.NoError(t, json.Unmarshal(item.Snapshot, &snapshot))
	assert.Equal(t, "SP-100", snapshot.ID)

	f.queueRepo.AssertExpectations(t)
}

func TestEnqueueReturnsExistingRow(t *testing.T) {
	f := newServiceFixture(t)
	existing := pendingItem("SP-100")

	f.queueRepo.On("GetBySupplierProductID", mock.Anything, "SP-100").Return(existing, nil)

	item, err := f.service.Enqueue(context.Background(), &models.SupplierProductRecord{ID: "SP-100", Name: "Dup"}, "")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, item.ID)
	f.queueRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestApproveBulkIsolatesFailures(t *testing.T) {
	f := newServiceFixture(t)
	okItem := pendingItem("SP-1")
	badItem := pendingItem("SP-2")
	badItem.Status = models.QueueStatusImported

	f.queueRepo.On("GetByID", mock.Anything, okItem.ID).Return(okItem, nil)
	f.queueRepo.On("GetByID", mock.Anything, badItem.ID).Return(badItem, nil)
	f.queueRepo.On("UpdateStatus", mock.Anything, okItem.ID, models.QueueStatusPending, models.QueueStatusApproved, "admin").Return(nil)
	f.queueRepo.On("UpdateStatus", mock.Anything, badItem.ID, models.QueueStatusPending, models.QueueStatusApproved, "admin").
		Return(repository.ErrInvalidTransition)

	result := f.service.Approve(context.Background(), models.BulkActionRequest{
		IDs:        []uuid.UUID{okItem.ID, badItem.ID},
		ReviewedBy: "admin",
	})

	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 2)
	assert.Equal(t, okItem.ID, result.Results[0].ID)
	assert.True(t, result.Results[0].Success)
	assert.Equal(t, badItem.ID, result.Results[1].ID)
	assert.Contains(t, result.Results[1].Error, "invalid queue status transition")
}

func TestRestoreMovesRejectedBackToPending(t *testing.T) {
	f := newServiceFixture(t)
	id := uuid.New()

	f.queueRepo.On("UpdateStatus", mock.Anything, id, models.QueueStatusRejected, models.QueueStatusPending, "admin").Return(nil)

	result := f.service.Restore(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{id}, ReviewedBy: "admin"})
	assert.Equal(t, 1, result.Succeeded)
	f.queueRepo.AssertExpectations(t)
}

func TestImportAlreadyImportedIsIdempotent(t *testing.T) {
	f := newServiceFixture(t)
	catalogID := uuid.New()
	item := pendingItem("SP-1")
	item.Status = models.QueueStatusImported
	item.CatalogProductID = &catalogID

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)

	result := f.service.Import(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{item.ID}})
	require.Equal(t, 1, result.Succeeded)
	require.NotNil(t, result.Results[0].CatalogProductID)
	assert.Equal(t, catalogID, *result.Results[0].CatalogProductID)
	f.catalogRepo.AssertNotCalled(t, "InsertProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestImportRejectsNonApprovedItem(t *testing.T) {
	f := newServiceFixture(t)
	item := pendingItem("SP-1")

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.catalogRepo.On("FindBySupplierProductID", mock.Anything, "SP-1").
		Return(nil, repository.ErrProductNotFound).Maybe()

	result := f.service.Import(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{item.ID}})
	require.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Results[0].Error, "invalid queue status transition")
}

func TestImportShortCircuitsOnExistingCatalogRow(t *testing.T) {
	f := newServiceFixture(t)
	item := pendingItem("SP-1")
	item.Status = models.QueueStatusApproved
	existing := &models.Product{ID: uuid.New(), SupplierProductID: "SP-1"}

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.catalogRepo.On("FindBySupplierProductID", mock.Anything, "SP-1").Return(existing, nil)
	f.queueRepo.On("MarkImported", mock.Anything, item.ID, existing.ID).Return(nil)

	result := f.service.Import(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{item.ID}})
	require.Equal(t, 1, result.Succeeded)
	assert.Equal(t, existing.ID, *result.Results[0].CatalogProductID)
	f.catalogRepo.AssertNotCalled(t, "InsertProduct", mock.Anything, mock.Anything, mock.Anything)
	f.supplier.AssertNotCalled(t, "FetchProductDetails", mock.Anything, mock.Anything)
}

func TestImportCommitsApprovedItem(t *testing.T) {
	f := newServiceFixture(t)
	item := pendingItem("SP-1")
	item.Status = models.QueueStatusApproved

	record := &models.SupplierProductRecord{
		ID:            "SP-1",
		Name:          "Wireless Earbuds",
		CostPrice:     10,
		Currency:      "USD",
		CategoryLabel: "Electronics",
		Variants: []models.SupplierVariant{
			{VariantID: "V1", SKU: "SKU-1", Attributes: "Black", CostPrice: 10},
		},
	}
	inventory := []models.InventorySignal{{SKU: "SKU-1", WarehouseQty: intPtr(25)}}
	quotes := []models.FreightQuote{{Carrier: "aramex", Price: 4, MinDays: 5, MaxDays: 9}}

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.catalogRepo.On("FindBySupplierProductID", mock.Anything, "SP-1").
		Return(nil, repository.ErrProductNotFound)
	f.supplier.On("FetchProductDetails", mock.Anything, "SP-1").Return(record, nil)
	f.supplier.On("FetchInventory", mock.Anything, "SP-1").Return(inventory, nil)
	f.supplier.On("FetchFreightQuotes", mock.Anything, "V1", "SA", 1).Return(quotes, nil)

	created := &models.Product{ID: uuid.New(), Name: "Wireless Earbuds", SupplierProductID: "SP-1"}
	f.catalogRepo.On("InsertProduct", mock.Anything, mock.MatchedBy(func(p *models.Product) bool {
		// Stock buffer of 5 applied to the warehouse quantity.
		return p.SupplierProductID == "SP-1" && p.Stock != nil && *p.Stock == 20
	}), mock.MatchedBy(func(variants []models.ProductVariant) bool {
		return len(variants) == 1 && variants[0].SKU == "SKU-1" && variants[0].Price > 0
	})).Return(created, nil)
	f.queueRepo.On("MarkImported", mock.Anything, item.ID, created.ID).Return(nil)

	// Category cascade finds nothing; import still succeeds.
	f.categories.On("FindByName", mock.Anything, mock.Anything).Return(nil, nil)
	f.categories.On("FindBySlug", mock.Anything, mock.Anything).Return(nil, nil)
	f.categories.On("FindByNameContains", mock.Anything, mock.Anything).Return(nil, nil)

	result := f.service.Import(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{item.ID}})
	require.Equal(t, 1, result.Succeeded, "import failed: %+v", result.Results)
	assert.Equal(t, created.ID, *result.Results[0].CatalogProductID)
	f.queueRepo.AssertExpectations(t)
	f.catalogRepo.AssertExpectations(t)
}

func TestEnqueueRejectsRecordWithoutID(t *testing.T) {
	f := newServiceFixture(t)

	_, err := f.service.Enqueue(context.Background(), &models.SupplierProductRecord{Name: "No ID"}, "batch-1")
	assert.ErrorIs(t, err, ErrInvalidSupplierRecord)

	_, err = f.service.Enqueue(context.Background(), nil, "batch-1")
	assert.ErrorIs(t, err, ErrInvalidSupplierRecord)

	f.queueRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestImportPriceOverrideRecomputesProfit(t *testing.T) {
	f := newServiceFixture(t)
	item := pendingItem("SP-1")
	item.Status = models.QueueStatusApproved
	override := 49.99
	item.Price = &override

	record := &models.SupplierProductRecord{
		ID:        "SP-1",
		Name:      "Wireless Earbuds",
		CostPrice: 10,
		Currency:  "USD",
		Variants: []models.SupplierVariant{
			{VariantID: "V1", SKU: "SKU-1", CostPrice: 10},
		},
	}
	quotes := []models.FreightQuote{{Carrier: "aramex", Price: 4, MinDays: 5, MaxDays: 9}}

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.catalogRepo.On("FindBySupplierProductID", mock.Anything, "SP-1").
		Return(nil, repository.ErrProductNotFound)
	f.supplier.On("FetchProductDetails", mock.Anything, "SP-1").Return(record, nil)
	f.supplier.On("FetchInventory", mock.Anything, "SP-1").Return([]models.InventorySignal{}, nil)
	f.supplier.On("FetchFreightQuotes", mock.Anything, "V1", "SA", 1).Return(quotes, nil)

	created := &models.Product{ID: uuid.New(), Name: "Wireless Earbuds", SupplierProductID: "SP-1"}
	var inserted []models.ProductVariant
	f.catalogRepo.On("InsertProduct", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			inserted = args.Get(2).([]models.ProductVariant)
		}).Return(created, nil)
	f.queueRepo.On("MarkImported", mock.Anything, item.ID, created.ID).Return(nil)

	f.categories.On("FindByName", mock.Anything, mock.Anything).Return(nil, nil)
	f.categories.On("FindBySlug", mock.Anything, mock.Anything).Return(nil, nil)
	f.categories.On("FindByNameContains", mock.Anything, mock.Anything).Return(nil, nil)

	result := f.service.Import(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{item.ID}})
	require.Equal(t, 1, result.Succeeded, "import failed: %+v", result.Results)

	// Landed cost: (10 cost + 4 freight) * 2.9% payment fee = 14.41.
	require.Len(t, inserted, 1)
	assert.Equal(t, override, inserted[0].Price)
	assert.InDelta(t, override-14.41, inserted[0].Profit, 0.005)
}

func TestImportFailsWhenNoVariantShippable(t *testing.T) {
	f := newServiceFixture(t)
	item := pendingItem("SP-1")
	item.Status = models.QueueStatusApproved

	record := &models.SupplierProductRecord{
		ID:        "SP-1",
		Name:      "Wireless Earbuds",
		CostPrice: 10,
		Variants:  []models.SupplierVariant{{VariantID: "V1", SKU: "SKU-1", CostPrice: 10}},
	}

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.catalogRepo.On("FindBySupplierProductID", mock.Anything, "SP-1").
		Return(nil, repository.ErrProductNotFound)
	f.supplier.On("FetchProductDetails", mock.Anything, "SP-1").Return(record, nil)
	f.supplier.On("FetchInventory", mock.Anything, "SP-1").Return([]models.InventorySignal{}, nil)
	f.supplier.On("FetchFreightQuotes", mock.Anything, "V1", "SA", 1).
		Return(nil, errors.New("no routes to destination"))

	result := f.service.Import(context.Background(), models.BulkActionRequest{IDs: []uuid.UUID{item.ID}})
	require.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Results[0].Error, "no shippable variants")
	f.catalogRepo.AssertNotCalled(t, "InsertProduct", mock.Anything, mock.Anything, mock.Anything)
}

func TestPreviewFallsBackToSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	record := models.SupplierProductRecord{
		ID:        "SP-9",
		Name:      "Ceramic Mug",
		CostPrice: 4,
		Variants:  []models.SupplierVariant{{VariantID: "V9", SKU: "SKU-9", CostPrice: 4}},
	}
	snapshot, err := json.Marshal(record)
	require.NoError(t, err)

	item := pendingItem("SP-9")
	item.Snapshot = snapshot

	f.queueRepo.On("GetByID", mock.Anything, item.ID).Return(item, nil)
	f.supplier.On("FetchProductDetails", mock.Anything, "SP-9").
		Return(nil, errors.New("supplier api down"))
	f.supplier.On("FetchInventory", mock.Anything, "SP-9").
		Return(nil, errors.New("supplier api down"))
	f.supplier.On("FetchFreightQuotes", mock.Anything, "V9", "SA", 1).
		Return([]models.FreightQuote{{Carrier: "dhl", Price: 2, MinDays: 3, MaxDays: 6}}, nil)

	preview, err := f.service.Preview(context.Background(), item.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ceramic Mug", preview.Name)
	assert.Nil(t, preview.Stock, "unfetchable inventory must stay unknown, not zero")
	assert.NotEmpty(t, preview.Warnings)
	require.Len(t, preview.Variants, 1)
	assert.Greater(t, preview.Variants[0].ShelfPrice, 0.0)
}

func intPtr(v int) *int { return &v }
