// Package keepalive periodically probes the portal session so expiry is
// noticed before the next tool request trips over it.
package keepalive

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// probeTimeout bounds one probe run
const probeTimeout = 30 * time.Second

// Keepalive schedules a recurring session probe
type Keepalive struct {
	cron     *cron.Cron
	interval time.Duration
	probe    func(ctx context.Context) error
}

// New creates a keepalive that calls probe every interval. The probe is
// expected to be serialized by the caller (it runs on the dispatch
// queue).
func New(interval time.Duration, probe func(ctx context.Context) error) *Keepalive {
	return &Keepalive{
		cron:     cron.New(),
		interval: interval,
		probe:    probe,
	}
}

// Start begins probing. A zero interval disables the keepalive.
func (k *Keepalive) Start() error {
	if k.interval <= 0 {
		log.Info().Msg("Session keepalive disabled")
		return nil
	}

	spec := fmt.Sprintf("@every %s", k.interval)
	if _, err := k.cron.AddFunc(spec, k.runProbe); err != nil {
		return fmt.Errorf("failed to schedule keepalive: %w", err)
	}

	k.cron.Start()
	log.Info().Dur("interval", k.interval).Msg("Session keepalive started")
	return nil
}

func (k *Keepalive) runProbe() {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	if err := k.probe(ctx); err != nil {
		log.Warn().Err(err).Msg("Keepalive probe failed")
	}
}

// Stop halts probing, waiting for an in-flight probe to finish
func (k *Keepalive) Stop() {
	ctx := k.cron.Stop()
	<-ctx.Done()
}
