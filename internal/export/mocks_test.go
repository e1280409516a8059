package export

import (
	"context"

	"github.com/joseph-ayodele/lumo-backend/internal/entity"
)

type fakeLister struct {
	rows []*entity.Analysis
	err  error
}

func (f *fakeLister) ListByUser(_ context.Context, _ string) ([]*entity.Analysis, error) {
	return f.rows, f.err
}
