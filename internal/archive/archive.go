package archive

import (
	"context"

	"codeberg.org/mutker/mperf/internal/errors"
	"codeberg.org/mutker/mperf/internal/logger"
)

type service struct {
	repo Repository
}

// No-op implementation
type noopArchiver struct{}

func NewService(cfg Config) (Archiver, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Archiving disabled, using no-op archiver")
		return &noopArchiver{}, nil
	}

	repo, err := NewRepository(cfg)
	if err != nil {
		logger.Debug().Err(err).Msg("Failed to create archive repository")
		return nil, err
	}

	return &service{repo: repo}, nil
}

func (s *service) Record(ctx context.Context, records []Record) error {
	errFactory := errors.New()

	if len(records) == 0 {
		return nil
	}

	select {
	case <-ctx.Done():
		return errFactory.Wrap(ErrTransactionFailed, ctx.Err())
	default:
		if err := s.repo.Store(records); err != nil {
			return errFactory.Wrap(ErrTransactionFailed, err)
		}
	}

	return nil
}

func (s *service) Close() error {
	return s.repo.Close()
}

func (*noopArchiver) Record(_ context.Context, _ []Record) error {
	return nil
}

func (*noopArchiver) Close() error {
	return nil
}
