// Package usecase implements the business logic for symbol directory operations.
package usecase

import (
	"context"

	"stock_feed/internal/feature/symbols/domain/entity"
)

// SymbolRepository abstracts the persistence layer for the symbol directory.
// Following Go convention: interfaces are defined by the consumer (usecase), not the provider (adapters).
type SymbolRepository interface {
	ListActive(ctx context.Context) ([]entity.Symbol, error)
	ExistsActive(ctx context.Context, ticker string) (bool, error)
}

// SymbolUsecase provides business logic for symbol directory operations.
type SymbolUsecase struct {
	repo SymbolRepository
}

// NewSymbolUsecase creates a new SymbolUsecase with the given repository.
func NewSymbolUsecase(r SymbolRepository) *SymbolUsecase {
	return &SymbolUsecase{repo: r}
}

// ListActiveSymbols returns all active symbols from the repository.
func (u *SymbolUsecase) ListActiveSymbols(ctx context.Context) ([]entity.Symbol, error) {
	return u.repo.ListActive(ctx)
}

// Exists reports whether the ticker is registered and active. It is the
// subscribe-time validation hook for the streaming transport.
func (u *SymbolUsecase) Exists(ctx context.Context, ticker string) (bool, error) {
	return u.repo.ExistsActive(ctx, ticker)
}
