package gormstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"aurum/internal/account"
	"aurum/internal/store"
	"aurum/internal/store/model"
)

// Store implements store.AccountStore on Gorm + SQLite.
type Store struct {
	db    *gorm.DB
	clock func() time.Time
}

// New opens (and migrates) the account database at path.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.AccountModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: keep contention low, allow a reader next to the writer.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db, clock: time.Now}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// SetClock overrides the timestamp source, for tests.
func (s *Store) SetClock(clock func() time.Time) {
	if clock != nil {
		s.clock = clock
	}
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

var _ store.AccountStore = (*Store)(nil)

func (s *Store) Get(ctx context.Context, auth string) (*account.Account, error) {
	var m model.AccountModel
	err := s.db.WithContext(ctx).Where("auth = ?", auth).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load account %s: %w", auth, err)
	}
	return fromModel(m)
}

// Save applies a compare-and-set on the version column. A row changed by
// another writer since the read surfaces as store.ErrConflict.
func (s *Store) Save(ctx context.Context, a *account.Account, expectedVersion int64) error {
	m, err := toModel(a)
	if err != nil {
		return err
	}
	now := s.clock().Unix()
	res := s.db.WithContext(ctx).Model(&model.AccountModel{}).
		Where("auth = ? AND version = ?", a.Auth, expectedVersion).
		Updates(map[string]any{
			"expire_time":        m.ExpireTimeUnix,
			"status":             m.Status,
			"start_minute":       m.StartMinute,
			"end_minute":         m.EndMinute,
			"switched":           m.Switched,
			"total_cost":         m.TotalCost,
			"total_shares":       m.TotalShares,
			"history_max_profit": m.HistoryMaxProfit,
			"last_total_profit":  m.LastTotalProfit,
			"position":           m.Position,
			"trade_history":      m.TradeHistory,
			"last_trade_date":    m.LastTradeDateUnix,
			"updater":            a.Updater,
			"update_time":        now,
			"version":            expectedVersion + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("save account %s: %w", a.Auth, res.Error)
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := s.db.WithContext(ctx).Model(&model.AccountModel{}).
			Where("auth = ?", a.Auth).Count(&count).Error; err != nil {
			return fmt.Errorf("save account %s: %w", a.Auth, err)
		}
		if count == 0 {
			return store.ErrNotFound
		}
		return store.ErrConflict
	}
	a.Version = expectedVersion + 1
	a.UpdateTime = time.Unix(now, 0)
	return nil
}

// RegisterOrSync is the explicit bootstrap operation. Creating is a full
// seed; syncing touches only totalCost, totalShares and the update stamp,
// never position or trade history.
func (s *Store) RegisterOrSync(ctx context.Context, auth string, totalCost decimal.Decimal, totalShares int64, opts store.RegisterOptions) (*account.Account, error) {
	auth = strings.TrimSpace(auth)
	if auth == "" {
		return nil, fmt.Errorf("register: auth cannot be empty")
	}
	if totalCost.Sign() < 0 || totalShares < 0 {
		return nil, fmt.Errorf("register: totalCost and totalShares must be >= 0")
	}
	if err := opts.Window.Validate(); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	now := s.clock()
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.AccountModel
		err := tx.Where("auth = ?", auth).First(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			a := account.New(auth)
			a.ExpireTime = opts.ExpireTime
			a.Window = opts.Window
			a.Switched = opts.Switched
			a.TotalCost = totalCost
			a.TotalShares = totalShares
			a.Creator = opts.Creator
			a.Updater = opts.Creator
			a.CreateTime = now
			a.UpdateTime = now
			a.Version = 1
			m, merr := toModel(a)
			if merr != nil {
				return merr
			}
			return tx.Create(&m).Error
		case err != nil:
			return err
		default:
			return tx.Model(&model.AccountModel{}).
				Where("auth = ?", auth).
				Updates(map[string]any{
					"total_cost":   totalCost,
					"total_shares": totalShares,
					"update_time":  now.Unix(),
					"version":      existing.Version + 1,
				}).Error
		}
	})
	if err != nil {
		return nil, fmt.Errorf("register %s: %w", auth, err)
	}
	return s.Get(ctx, auth)
}

func (s *Store) SoftDelete(ctx context.Context, auth, updater string) error {
	res := s.db.WithContext(ctx).Model(&model.AccountModel{}).
		Where("auth = ?", auth).
		Updates(map[string]any{
			"status":      int(account.StatusDeleted),
			"updater":     updater,
			"update_time": s.clock().Unix(),
		})
	if res.Error != nil {
		return fmt.Errorf("soft delete %s: %w", auth, res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (s *Store) List(ctx context.Context, includeDeleted bool) ([]*account.Account, error) {
	q := s.db.WithContext(ctx).Model(&model.AccountModel{}).Order("id ASC")
	if !includeDeleted {
		q = q.Where("status = ?", int(account.StatusActive))
	}
	var rows []model.AccountModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]*account.Account, 0, len(rows))
	for _, m := range rows {
		a, err := fromModel(m)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}
