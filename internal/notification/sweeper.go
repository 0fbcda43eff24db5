package notification

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"go.uber.org/fx"
)

// Dispatcher sends every scheduled communication whose time has passed.
type Dispatcher interface {
	DispatchDue(ctx context.Context) int
}

// Sweeper runs the two background jobs the engine needs: a minutely sweep
// that dispatches due scheduled communications, and an hourly purge of
// expired notification entries (backstop for the storage TTL index).
type Sweeper struct {
	cron       *cron.Cron
	dispatcher Dispatcher
	service    *NotificationService
	logger     *zerolog.Logger
}

func NewSweeper(dispatcher Dispatcher, service *NotificationService, logger *zerolog.Logger) *Sweeper {
	return &Sweeper{
		cron:       cron.New(),
		dispatcher: dispatcher,
		service:    service,
		logger:     logger,
	}
}

// Start registers the jobs and runs the cron loop under the fx lifecycle.
func (s *Sweeper) Start(lc fx.Lifecycle) error {
	if _, err := s.cron.AddFunc("* * * * *", s.dispatchDue); err != nil {
		return err
	}
	if _, err := s.cron.AddFunc("@hourly", s.purgeExpired); err != nil {
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			s.logger.Info().Msg("starting dispatch and expiry sweeps")
			s.cron.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			s.logger.Info().Msg("stopping sweeps")
			stopped := s.cron.Stop()
			select {
			case <-stopped.Done():
			case <-ctx.Done():
			}
			return nil
		},
	})
	return nil
}

func (s *Sweeper) dispatchDue() {
	ctx := context.Background()
	if n := s.dispatcher.DispatchDue(ctx); n > 0 {
		s.logger.Info().Int("dispatched", n).Msg("dispatched scheduled communications")
	}
}

func (s *Sweeper) purgeExpired() {
	ctx := context.Background()
	n, err := s.service.PurgeExpired(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to purge expired notifications")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("purged", n).Msg("purged expired notifications")
	}
}
