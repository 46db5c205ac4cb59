package persistence

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/erp/storefront-sync/internal/domain/integration"
	"github.com/erp/storefront-sync/internal/domain/shared"
	"github.com/erp/storefront-sync/internal/infrastructure/config"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// newMockDatabase opens a Database over a mocked PostgreSQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	db, err := Open(dialector, Options{}, zap.NewNop())
	require.NoError(t, err)
	return db, mock, mockDB
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.IsType(t, ConnectionStats{}, stats)
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNewDatabase_UnsupportedDriver(t *testing.T) {
	_, err := NewDatabase(&config.DatabaseConfig{Driver: "mysql"}, false, zap.NewNop())
	assert.ErrorContains(t, err, `unsupported database driver "mysql"`)
}

func TestNewDatabase_SQLite(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:", MaxOpenConns: 10, AutoMigrate: true}, false, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.NoError(t, db.Ping())
	stats, err := db.Stats()
	require.NoError(t, err)
	assert.Equal(t, 1, stats.MaxOpenConnections)
	assert.True(t, db.DB.Migrator().HasTable("sales_orders"))
	assert.True(t, db.DB.Migrator().HasTable("naming_series"))
}

func TestNewDatabase_SQLiteWithoutAutoMigrate(t *testing.T) {
	db, err := NewDatabase(&config.DatabaseConfig{Driver: "sqlite", Path: ":memory:"}, false, zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	assert.False(t, db.DB.Migrator().HasTable("sales_orders"))
}

func TestTranslateError(t *testing.T) {
	other := errors.New("connection reset")

	assert.NoError(t, translateError(nil))
	assert.ErrorIs(t, translateError(gorm.ErrRecordNotFound), shared.ErrNotFound)
	assert.ErrorIs(t, translateError(gorm.ErrDuplicatedKey), shared.ErrAlreadyExists)
	assert.Equal(t, other, translateError(other))
}

func TestGormDocumentStore_QueryFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	store := NewGormDocumentStore(db.DB)
	dbErr := errors.New("connection reset by peer")

	mock.ExpectQuery(`SELECT \* FROM "sales_orders"`).WillReturnError(dbErr)

	_, err := store.FindSalesOrderByStorefrontID(context.Background(), "1001")
	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, shared.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDocumentStore_BeginFailure(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	store := NewGormDocumentStore(db.DB)

	mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

	so := newSubmittedSalesOrder(t, "1001")
	err := store.CreateSalesOrder(context.Background(), so)

	assert.ErrorContains(t, err, "too many connections")
	assert.NotErrorIs(t, err, shared.ErrAlreadyExists)
	assert.Empty(t, so.Name)
}

func TestGormSyncLogRepository_UniqueViolationIsTranslated(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()
	repo := NewGormSyncLogRepository(db.DB)

	mock.ExpectExec(`INSERT INTO "sync_logs"`).
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Save(context.Background(), integration.NewErrorLog("sync_storefront_orders", nil, errors.New("boom")))
	assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}
