package gameserver

import (
	"context"
	"fmt"
	"time"

	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/metrics"
	"github.com/iM5LB/dbot/internal/minecraft"
)

// Poller periodically pings every active server and records a status
// snapshot. One unreachable server never stops the others from being
// polled.
type Poller struct {
	servers  Registry
	querier  minecraft.StatusQuerier
	interval time.Duration
}

func NewPoller(servers Registry, querier minecraft.StatusQuerier, interval time.Duration) *Poller {
	return &Poller{servers: servers, querier: querier, interval: interval}
}

// Start runs the poll loop until ctx is cancelled. The first poll
// happens immediately rather than one interval in.
func (p *Poller) Start(ctx context.Context) {
	go func() {
		p.PollOnce(ctx)

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("Status poller stopped")
				return
			case <-ticker.C:
				p.PollOnce(ctx)
			}
		}
	}()
}

// PollOnce pings every active server once.
func (p *Poller) PollOnce(ctx context.Context) {
	servers, err := p.servers.ListActive(ctx)
	if err != nil {
		logger.WithError(err).Error("Status poll: listing servers failed")
		return
	}

	for _, s := range servers {
		st := p.querier.QueryStatus(ctx, s.Host, s.Port)
		metrics.RecordServerOnline(s.Name, st.Online)

		if err := p.servers.InsertSnapshot(ctx, s.ID, st); err != nil {
			logger.WithError(err).Error(fmt.Sprintf("Status poll: recording snapshot for %s failed", s.Name))
			continue
		}
		logger.Debugf("Status poll: %s online=%v players=%d/%d",
			s.Name, st.Online, st.PlayersOnline, st.MaxPlayers)
	}
}
