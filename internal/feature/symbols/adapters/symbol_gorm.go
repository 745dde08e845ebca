// Package adapters はsymbolsフィーチャーのリポジトリ実装を提供します。
package adapters

import (
	"context"

	"gorm.io/gorm"

	"stock_feed/internal/feature/symbols/domain/entity"
	"stock_feed/internal/feature/symbols/usecase"
)

// symbolGorm はSymbolRepositoryインターフェースのgorm実装です。
type symbolGorm struct {
	db *gorm.DB
}

var _ usecase.SymbolRepository = (*symbolGorm)(nil)

// NewSymbolRepository は指定されたDB接続でsymbolGormリポジトリの新しいインスタンスを生成します。
func NewSymbolRepository(db *gorm.DB) *symbolGorm {
	return &symbolGorm{db: db}
}

// ListActive はsort_key順にすべてのアクティブな銘柄を返します。
func (r *symbolGorm) ListActive(ctx context.Context) ([]entity.Symbol, error) {
	var symbols []entity.Symbol
	if err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("sort_key ASC").
		Find(&symbols).Error; err != nil {
		return nil, err
	}
	return symbols, nil
}

// ExistsActive は指定ティッカーのアクティブな銘柄が存在するかを返します。
func (r *symbolGorm) ExistsActive(ctx context.Context, ticker string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&entity.Symbol{}).
		Where("ticker = ? AND is_active = ?", ticker, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
