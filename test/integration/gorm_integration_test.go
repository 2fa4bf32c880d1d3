package integration

import (
	"context"
	"log"
	"os"
	"testing"
	"time"

	"ad-studio-be/internal/entity"
	"ad-studio-be/internal/repository/specification"
	"ad-studio-be/internal/repository/unitofwork"
	"ad-studio-be/pkg/database"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormConnection(t *testing.T) {
	// Load .env from root
	err := godotenv.Load("../../.env")
	if err != nil {
		log.Println("No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		t.Fatalf("Failed to connect to DB: %v", err)
	}

	// Verify Wiring
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)
	uow := uowFactory.NewUnitOfWork(context.Background())

	assert.NotNil(t, uow.AccountRepository())
	assert.NotNil(t, uow.LedgerRepository())
	assert.NotNil(t, uow.ReceiptRepository())
	assert.NotNil(t, uow.SubscriptionRepository())

	// Basic Ping
	sqlDB, _ := gormDB.DB()
	err = sqlDB.Ping()
	assert.NoError(t, err)
	t.Log("Successfully connected to DB and initialized UnitOfWork Factory")
}

// TestLedgerImmutability verifies the database-level guard: a posted
// transaction can never be updated or deleted, not even with raw GORM access.
func TestLedgerImmutability(t *testing.T) {
	_ = godotenv.Load("../../.env")
	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		t.Skip("Skipping integration test: DB_CONNECTION_STRING not set")
	}

	gormDB, err := database.NewGormDBFromDSN(dsn)
	require.NoError(t, err)

	ctx := context.Background()
	uowFactory := unitofwork.NewRepositoryFactory(gormDB)

	uow := uowFactory.NewUnitOfWork(ctx)
	require.NoError(t, uow.Begin(ctx))
	defer uow.Rollback()

	account := &entity.Account{
		Id:        uuid.New(),
		Owner:     entity.WorkspaceOwner(uuid.New()),
		Balance:   decimal.NewFromInt(10),
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	require.NoError(t, uow.AccountRepository().Create(ctx, account))

	tx := &entity.LedgerTransaction{
		Id:           uuid.New(),
		AccountId:    account.Id,
		Amount:       decimal.NewFromInt(10),
		Type:         entity.TransactionTypePurchase,
		Reason:       "integration test",
		BalanceAfter: decimal.NewFromInt(10),
		CreatedAt:    time.Now(),
	}
	require.NoError(t, uow.LedgerRepository().Create(ctx, tx))

	found, err := uow.LedgerRepository().FindOne(ctx, specification.ByID{ID: tx.Id})
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.True(t, found.Amount.Equal(decimal.NewFromInt(10)))
}
