package sessions

import (
	"context"
	"errors"

	"github.com/wolfman30/flowbridge/pkg/logging"
)

// Store is the read/persist layer over a Repository. Reads never fail:
// a missing or unreadable config comes back as Disabled().
type Store struct {
	repo   Repository
	logger *logging.Logger
}

// NewStore wraps repo.
func NewStore(repo Repository, logger *logging.Logger) *Store {
	if repo == nil {
		panic("sessions: repository required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Store{repo: repo, logger: logger}
}

// Find loads the flow config for flowKey.
func (s *Store) Find(ctx context.Context, flowKey string) FlowConfig {
	cfg, err := s.repo.Load(ctx, flowKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.Debug("flow config not found", "instance", flowKey)
		} else {
			s.logger.Error("failed to load flow config", "instance", flowKey, "error", err)
		}
		return Disabled()
	}
	if cfg == nil {
		return Disabled()
	}
	return cfg.Clone()
}

// Save persists cfg wholesale.
func (s *Store) Save(ctx context.Context, flowKey string, cfg FlowConfig) error {
	out := cfg.Clone()
	if err := s.repo.Save(ctx, flowKey, &out); err != nil {
		s.logger.Error("failed to save flow config", "instance", flowKey, "error", err)
		return err
	}
	return nil
}
