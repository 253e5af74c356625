package ingestion

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"fizko/internal/config"
	"fizko/internal/credentials"
	"fizko/internal/cryptovault"
	fizkoerrors "fizko/internal/errors"
	"fizko/internal/models"
	"fizko/internal/portal"
)

func setupCoordinatorTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.Company{},
		&models.TaxPayer{},
		&models.TaxpayerSiiCredentials{},
		&models.DocumentType{},
		&models.Document{},
		&models.Contact{},
		&models.SIISyncLog{},
	))
	return db
}

func seedTaxpayer(t *testing.T, db *gorm.DB, vault *cryptovault.Vault) models.TaxPayer {
	company := models.Company{Name: "Empresa de Prueba", TaxID: "76999888-7"}
	require.NoError(t, db.Create(&company).Error)

	taxpayer := models.TaxPayer{CompanyID: company.ID, TaxID: "76999888-7", BusinessName: "Empresa de Prueba"}
	require.NoError(t, db.Create(&taxpayer).Error)

	store := credentials.New(db, vault)
	require.NoError(t, store.Set(context.Background(), taxpayer.ID, "user1", "pass1"))

	return taxpayer
}

func fixturePurchase(folio string) portal.RawDocument {
	return portal.RawDocument{
		"folio":        folio,
		"fechaEmis":    "15/03/2024",
		"tipoDoc":      "Factura Electronica",
		"rutEmisor":    "76123456-K",
		"rznSocEmisor": "Proveedor SPA",
		"montoNeto":    "100000",
		"montoIVA":     "19000",
		"montoTotal":   "119000",
	}
}

func fixturePurchaseTyped(folio string, typeCode int) portal.RawDocument {
	return portal.RawDocument{
		"folio":        folio,
		"fechaEmis":    "15/03/2024",
		"tipoDoc":      typeCode,
		"rutEmisor":    "76123456-K",
		"rznSocEmisor": "Proveedor SPA",
		"montoNeto":    "100000",
		"montoIVA":     "19000",
		"montoTotal":   "119000",
	}
}

// cancelingAdapter wraps a Mock and flips the running SIISyncLog for
// taxpayerID to cancelled right after the period named cancelAfter is
// summarized, simulating an external writer racing the coordinator.
type cancelingAdapter struct {
	*portal.Mock
	db          *gorm.DB
	taxpayerID  uuid.UUID
	cancelAfter string
}

func (c *cancelingAdapter) SummaryPurchasesSales(ctx context.Context, period string) ([]portal.DocumentSummary, []portal.DocumentSummary, error) {
	purchases, sales, err := c.Mock.SummaryPurchasesSales(ctx, period)
	if period == c.cancelAfter {
		c.db.Model(&models.SIISyncLog{}).
			Where("taxpayer_id = ? AND status = ?", c.taxpayerID, models.SyncStatusRunning).
			Update("status", models.SyncStatusCancelled)
	}
	return purchases, sales, err
}

func TestCoordinator_SyncTaxpayer_ScenarioS1_BasicSync(t *testing.T) {
	db := setupCoordinatorTestDB(t)
	vault := cryptovault.New("test-master-secret")
	taxpayer := seedTaxpayer(t, db, vault)

	mockAdapter := portal.NewMock()
	mockAdapter.Purchases_["202403"] = []portal.RawDocument{fixturePurchase("1"), fixturePurchase("2")}

	cfg := &config.Config{PortalTimeoutSecs: 30, PortalTimeout: 30 * time.Second, SyncBatchSize: 1000, SyncProgressIntervalPeriods: 10, PortalMode: "mock"}
	store := credentials.New(db, vault)
	coord := New(db, store, cfg, func(cfg *config.Config) portal.Adapter { return mockAdapter })

	syncLog, err := coord.SyncTaxpayer(context.Background(), taxpayer.ID, "202403", "202403")
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, syncLog.Status)
	assert.Equal(t, 2, syncLog.DocumentsProcessed)
	assert.Equal(t, 2, syncLog.DocumentsCreated)
	assert.Equal(t, 100, syncLog.ProgressPercentage)
	assert.Equal(t, syncLog.DocumentsProcessed, syncLog.DocumentsCreated+syncLog.DocumentsUpdated+syncLog.DocumentsErrored)

	var count int64
	db.Model(&models.Document{}).Count(&count)
	assert.EqualValues(t, 2, count)
}

func TestCoordinator_SyncTaxpayer_ScenarioS2_IdempotentRerun(t *testing.T) {
	db := setupCoordinatorTestDB(t)
	vault := cryptovault.New("test-master-secret")
	taxpayer := seedTaxpayer(t, db, vault)

	mockAdapter := portal.NewMock()
	mockAdapter.Purchases_["202403"] = []portal.RawDocument{fixturePurchase("1")}

	cfg := &config.Config{PortalTimeout: 30 * time.Second, SyncBatchSize: 1000, SyncProgressIntervalPeriods: 10, PortalMode: "mock"}
	store := credentials.New(db, vault)
	coord := New(db, store, cfg, func(cfg *config.Config) portal.Adapter { return mockAdapter })

	_, err := coord.SyncTaxpayer(context.Background(), taxpayer.ID, "202403", "202403")
	require.NoError(t, err)

	second, err := coord.SyncTaxpayer(context.Background(), taxpayer.ID, "202403", "202403")
	require.NoError(t, err)

	assert.Equal(t, 0, second.DocumentsCreated, "re-running the same period must not create duplicate documents")
	assert.Equal(t, 1, second.DocumentsUpdated)

	var count int64
	db.Model(&models.Document{}).Count(&count)
	assert.EqualValues(t, 1, count, "idempotent upsert must not duplicate rows across runs")
}

func TestCoordinator_SyncTaxpayer_NoCredentialsFails(t *testing.T) {
	db := setupCoordinatorTestDB(t)
	vault := cryptovault.New("test-master-secret")

	company := models.Company{Name: "Sin Credenciales", TaxID: "76000111-2"}
	require.NoError(t, db.Create(&company).Error)
	taxpayer := models.TaxPayer{CompanyID: company.ID, TaxID: "76000111-2", BusinessName: "Sin Credenciales"}
	require.NoError(t, db.Create(&taxpayer).Error)

	cfg := &config.Config{PortalTimeout: 30 * time.Second, SyncBatchSize: 1000, SyncProgressIntervalPeriods: 10}
	store := credentials.New(db, vault)
	coord := New(db, store, cfg, func(cfg *config.Config) portal.Adapter { return portal.NewMock() })

	syncLog, err := coord.SyncTaxpayer(context.Background(), taxpayer.ID, "202403", "202403")
	require.Error(t, err)
	assert.Equal(t, models.SyncStatusFailed, syncLog.Status)
}

func TestCoordinator_SyncTaxpayer_ScenarioS1_MixedTypeCodesAutoCreatesUnseenType(t *testing.T) {
	db := setupCoordinatorTestDB(t)
	vault := cryptovault.New("test-master-secret")
	taxpayer := seedTaxpayer(t, db, vault)

	mockAdapter := portal.NewMock()
	mockAdapter.Purchases_["202401"] = []portal.RawDocument{
		fixturePurchaseTyped("1", 33),
		fixturePurchaseTyped("2", 33),
		fixturePurchaseTyped("3", 99),
	}
	mockAdapter.Sales_["202401"] = []portal.RawDocument{fixturePurchaseTyped("4", 33)}

	cfg := &config.Config{PortalTimeout: 30 * time.Second, SyncBatchSize: 1000, SyncProgressIntervalPeriods: 10, PortalMode: "mock"}
	store := credentials.New(db, vault)
	coord := New(db, store, cfg, func(cfg *config.Config) portal.Adapter { return mockAdapter })

	syncLog, err := coord.SyncTaxpayer(context.Background(), taxpayer.ID, "202401", "202401")
	require.NoError(t, err)

	assert.Equal(t, models.SyncStatusCompleted, syncLog.Status)
	assert.Equal(t, 4, syncLog.DocumentsProcessed)
	assert.Equal(t, 4, syncLog.DocumentsCreated)
	assert.Equal(t, 0, syncLog.DocumentsErrored)
	assert.Equal(t, 100, syncLog.ProgressPercentage)

	var unseenType models.DocumentType
	require.NoError(t, db.Where("code = ?", "99").First(&unseenType).Error, "an unseen numeric type code must auto-create its DocumentType")

	var count int64
	db.Model(&models.Document{}).Count(&count)
	assert.EqualValues(t, 4, count)
}

func TestCoordinator_SyncTaxpayer_ScenarioS3_CancellationMidJob(t *testing.T) {
	db := setupCoordinatorTestDB(t)
	vault := cryptovault.New("test-master-secret")
	taxpayer := seedTaxpayer(t, db, vault)

	periods := MonthRange("202401", "202412")
	base := portal.NewMock()
	for _, p := range periods {
		base.Purchases_[p] = []portal.RawDocument{fixturePurchase(p)} // distinct folio per period keeps sii_track_id unique
	}
	adapter := &cancelingAdapter{Mock: base, db: db, taxpayerID: taxpayer.ID, cancelAfter: periods[7]}

	cfg := &config.Config{PortalTimeout: 30 * time.Second, SyncBatchSize: 1000, SyncProgressIntervalPeriods: 100, PortalMode: "mock"}
	store := credentials.New(db, vault)
	coord := New(db, store, cfg, func(cfg *config.Config) portal.Adapter { return adapter })

	syncLog, err := coord.SyncTaxpayer(context.Background(), taxpayer.ID, periods[0], periods[len(periods)-1])
	require.ErrorIs(t, err, fizkoerrors.ErrCancelled)

	assert.Equal(t, models.SyncStatusCancelled, syncLog.Status)
	assert.Equal(t, periods[7], syncLog.LastPeriodProcessed, "the coordinator exits at the next period boundary, after finishing the period that saw the cancellation")
	assert.Equal(t, 8, syncLog.DocumentsProcessed, "counters must reflect only the periods processed before cancellation")

	var count int64
	db.Model(&models.Document{}).Count(&count)
	assert.EqualValues(t, 8, count, "no partial mid-batch writes beyond the periods already completed")
}

func TestMonthRange(t *testing.T) {
	got := MonthRange("202401", "202403")
	want := []string{"202401", "202402", "202403"}
	assert.Equal(t, want, got)
}

func TestMonthRange_SinglePeriod(t *testing.T) {
	got := MonthRange("202406", "202406")
	assert.Equal(t, []string{"202406"}, got)
}
