package store

import (
	"context"

	"github.com/DomeLiquid/lending/config"
	"github.com/DomeLiquid/lending/core"
	"github.com/glebarez/sqlite"
	"github.com/gofrs/uuid"
	"github.com/pkg/errors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store persists the ledger through gorm. A Store returned by Transaction
// is bound to that transaction.
type Store struct {
	db *gorm.DB
}

var _ core.Store = (*Store)(nil)

// Open connects to the configured database and migrates the schema.
func Open(cfg config.DatabaseConfig) (*Store, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, errors.Errorf("unsupported driver %q", cfg.Driver)
	}

	gormCfg := &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	}
	if cfg.Debug {
		gormCfg.Logger = logger.Default.LogMode(logger.Info)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.Wrap(err, "database handle")
	}
	maxOpen := cfg.MaxOpenConns
	if cfg.Driver == config.DriverSQLite {
		// one writer at a time; also keeps in-memory databases alive
		maxOpen = 1
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}

	s := New(db)
	if err := s.Migrate(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return s, nil
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(
		&core.Bank{},
		&core.UserAccount{},
		&core.Position{},
		&core.Operation{},
		&core.Asset{},
	); err != nil {
		return errors.Wrap(err, "migrate")
	}
	return nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) Transaction(ctx context.Context, fn func(tx core.Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx})
	})
}

func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(core.ErrNotFound, what)
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return errors.Wrap(core.ErrAlreadyInitialized, what)
	default:
		return errors.Wrap(err, what)
	}
}

func (s *Store) CreateBank(ctx context.Context, bank *core.Bank) error {
	return translate(s.db.WithContext(ctx).Create(bank).Error, "create bank "+bank.AssetId)
}

func (s *Store) UpdateBank(ctx context.Context, bank *core.Bank) error {
	return translate(s.db.WithContext(ctx).Save(bank).Error, "update bank "+bank.AssetId)
}

func (s *Store) GetBankById(ctx context.Context, bankId uuid.UUID) (*core.Bank, error) {
	var bank core.Bank
	if err := s.db.WithContext(ctx).Where("id = ?", bankId).Take(&bank).Error; err != nil {
		return nil, translate(err, "bank "+bankId.String())
	}
	return &bank, nil
}

func (s *Store) GetBankByAssetId(ctx context.Context, assetId string) (*core.Bank, error) {
	var bank core.Bank
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetId).Take(&bank).Error; err != nil {
		return nil, translate(err, "bank "+assetId)
	}
	return &bank, nil
}

func (s *Store) ListBanks(ctx context.Context) ([]*core.Bank, error) {
	var banks []*core.Bank
	if err := s.db.WithContext(ctx).Order("asset_id").Find(&banks).Error; err != nil {
		return nil, translate(err, "list banks")
	}
	return banks, nil
}

func (s *Store) CreateUser(ctx context.Context, user *core.UserAccount) error {
	return translate(s.db.WithContext(ctx).Create(user).Error, "create user "+user.OwnerId)
}

func (s *Store) GetUserById(ctx context.Context, userId uuid.UUID) (*core.UserAccount, error) {
	var user core.UserAccount
	if err := s.db.WithContext(ctx).Where("id = ?", userId).Take(&user).Error; err != nil {
		return nil, translate(err, "user "+userId.String())
	}
	return &user, nil
}

func (s *Store) GetUserByOwnerId(ctx context.Context, ownerId string) (*core.UserAccount, error) {
	var user core.UserAccount
	if err := s.db.WithContext(ctx).Where("owner_id = ?", ownerId).Take(&user).Error; err != nil {
		return nil, translate(err, "user "+ownerId)
	}
	return &user, nil
}

func (s *Store) GetPosition(ctx context.Context, userId uuid.UUID, assetId string) (*core.Position, error) {
	var position core.Position
	if err := s.db.WithContext(ctx).Where("user_id = ? AND asset_id = ?", userId, assetId).Take(&position).Error; err != nil {
		return nil, translate(err, "position "+assetId)
	}
	return &position, nil
}

func (s *Store) UpsertPosition(ctx context.Context, position *core.Position) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "asset_id"}},
		UpdateAll: true,
	}).Create(position).Error
	return translate(err, "upsert position "+position.AssetId)
}

func (s *Store) ListPositions(ctx context.Context, userId uuid.UUID) ([]*core.Position, error) {
	var positions []*core.Position
	if err := s.db.WithContext(ctx).Where("user_id = ?", userId).Order("asset_id").Find(&positions).Error; err != nil {
		return nil, translate(err, "list positions")
	}
	return positions, nil
}

func (s *Store) CreateOperation(ctx context.Context, operation *core.Operation) error {
	return translate(s.db.WithContext(ctx).Create(operation).Error, "create operation")
}

// ListOperations returns the newest operations of ownerId first.
func (s *Store) ListOperations(ctx context.Context, ownerId string, limit int) ([]*core.Operation, error) {
	var operations []*core.Operation
	q := s.db.WithContext(ctx).Where("owner_id = ?", ownerId).Order("seq DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&operations).Error; err != nil {
		return nil, translate(err, "list operations")
	}
	return operations, nil
}

func (s *Store) GetAsset(ctx context.Context, assetId string) (*core.Asset, error) {
	var asset core.Asset
	if err := s.db.WithContext(ctx).Where("asset_id = ?", assetId).Take(&asset).Error; err != nil {
		return nil, translate(err, "asset "+assetId)
	}
	return &asset, nil
}

func (s *Store) ListAssets(ctx context.Context) ([]*core.Asset, error) {
	var assets []*core.Asset
	if err := s.db.WithContext(ctx).Order("asset_id").Find(&assets).Error; err != nil {
		return nil, translate(err, "list assets")
	}
	return assets, nil
}

func (s *Store) UpsertAsset(ctx context.Context, asset *core.Asset) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "asset_id"}},
		UpdateAll: true,
	}).Create(asset).Error
	return translate(err, "upsert asset "+asset.AssetId)
}
