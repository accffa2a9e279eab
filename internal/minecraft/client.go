// Package minecraft wraps the two external game-server protocols: the
// server list ping for status and RCON for command execution. Both are
// lossy boundaries: timeouts and connection failures surface as
// offline/false, never as errors, so callers cannot crash on an
// unreachable server.
package minecraft

import (
	"context"
	"fmt"
	"time"

	"github.com/dreamscached/minequery/v2"
	"github.com/gorcon/rcon"

	"github.com/iM5LB/dbot/internal/logger"
	"github.com/iM5LB/dbot/internal/metrics"
)

const (
	StatusTimeout  = 10 * time.Second
	CommandTimeout = 30 * time.Second
)

// Status is one observation of a server.
type Status struct {
	Online        bool   `json:"online"`
	PlayersOnline int    `json:"players_online"`
	MaxPlayers    int    `json:"max_players"`
	Version       string `json:"version"`
	LatencyMS     int64  `json:"latency_ms"`
	Host          string `json:"host"`
	Port          int    `json:"port"`
}

type Client struct {
	statusTimeout  time.Duration
	commandTimeout time.Duration
}

func NewClient() *Client {
	return &Client{
		statusTimeout:  StatusTimeout,
		commandTimeout: CommandTimeout,
	}
}

// QueryStatus pings the server. Any failure within the timeout is an
// offline observation, not an error.
func (c *Client) QueryStatus(ctx context.Context, host string, port int) Status {
	result := Status{Host: host, Port: port}

	pinger := minequery.NewPinger(minequery.WithTimeout(c.statusTimeout))

	start := time.Now()
	status, err := pinger.Ping17(host, port)
	if err != nil {
		logger.Debugf("Status ping failed for %s:%d: %v", host, port, err)
		return result
	}

	result.Online = true
	result.PlayersOnline = status.OnlinePlayers
	result.MaxPlayers = status.MaxPlayers
	result.Version = status.VersionName
	result.LatencyMS = time.Since(start).Milliseconds()
	return result
}

// ExecuteCommand opens one RCON session, authenticates, sends a single
// command and closes. RCON servers in this domain are commonly
// single-session, so the connection is never pooled or reused.
func (c *Client) ExecuteCommand(ctx context.Context, command, host string, port int, password string) bool {
	if password == "" {
		logger.Error("RCON password not configured")
		return false
	}

	addr := fmt.Sprintf("%s:%d", host, port)

	start := time.Now()
	conn, err := rcon.Dial(addr, password,
		rcon.SetDialTimeout(c.commandTimeout),
		rcon.SetDeadline(c.commandTimeout),
	)
	if err != nil {
		logger.Errorf("RCON connect to %s failed: %v", addr, err)
		metrics.RecordRCONCommand("error", time.Since(start).Seconds())
		return false
	}
	defer conn.Close()

	response, err := conn.Execute(command)
	if err != nil {
		logger.Errorf("RCON command %q failed: %v", command, err)
		metrics.RecordRCONCommand("error", time.Since(start).Seconds())
		return false
	}

	logger.Infof("RCON command executed: %s", command)
	logger.Debugf("RCON response: %s", response)
	metrics.RecordRCONCommand("ok", time.Since(start).Seconds())
	return true
}

// TestConnection checks both protocols against the given endpoints. The
// RCON probe uses the harmless `list` command.
func (c *Client) TestConnection(ctx context.Context, host string, port int, rconHost string, rconPort int, rconPassword string) (statusOK, rconOK bool) {
	statusOK = c.QueryStatus(ctx, host, port).Online
	rconOK = c.ExecuteCommand(ctx, "list", rconHost, rconPort, rconPassword)
	return statusOK, rconOK
}
