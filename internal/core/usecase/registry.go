package usecase

import (
	"context"
	"fmt"

	"github.com/mvolkov/firmscope/internal/core/domain"
	"github.com/mvolkov/firmscope/internal/core/ports"
)

// SourceRegistryUseCase exposes the registered sources and their
// ingestion state to the API layer.
type SourceRegistryUseCase struct {
	repo ports.SourceRepository
}

func NewSourceRegistryUseCase(repo ports.SourceRepository) *SourceRegistryUseCase {
	return &SourceRegistryUseCase{repo: repo}
}

func (uc *SourceRegistryUseCase) List(ctx context.Context) ([]domain.Source, error) {
	sources, err := uc.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return sources, nil
}
