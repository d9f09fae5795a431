package orchestrator

import "context"

// suppressionRepo is the narrow slice of Repository the suppression
// adapter wraps; satisfied by *repository.Repository.
type suppressionRepo interface {
	GetSuppression(ctx context.Context, address string) (bool, error)
}

// suppressionAdapter adapts the repository's GetSuppression to the email
// package's SuppressionChecker interface — the two describe the same
// lookup but were named from each package's own vocabulary (the repository
// speaks in terms of what's stored, the email package in terms of what the
// check means to a send), so a thin rename-only wrapper bridges them.
type suppressionAdapter struct {
	repo suppressionRepo
}

func newSuppressionAdapter(repo suppressionRepo) *suppressionAdapter {
	return &suppressionAdapter{repo: repo}
}

func (s *suppressionAdapter) IsSuppressed(ctx context.Context, address string) (bool, error) {
	return s.repo.GetSuppression(ctx, address)
}
