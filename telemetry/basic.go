package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net"

	gnet "github.com/shirou/gopsutil/v4/net"
	"go.uber.org/zap"
)

// BasicCollector monta o relatório básico de uso de rede: conectividade com
// localhost e com a internet + contadores agregados de tráfego.
type BasicCollector struct {
	logger *zap.Logger

	// injetáveis nos testes; em produção apontam para net.LookupHost e gopsutil
	lookupHost func(host string) ([]string, error)
	ioCounters func(ctx context.Context, pernic bool) ([]gnet.IOCountersStat, error)
}

func NewBasicCollector(logger *zap.Logger) *BasicCollector {
	return &BasicCollector{
		logger:     logger,
		lookupHost: net.LookupHost,
		ioCounters: gnet.IOCountersWithContext,
	}
}

func (c *BasicCollector) Collect(ctx context.Context) (any, error) {
	c.logger.Debug("generating basic network report")

	localhost := "PC is connected to localhost."
	if _, err := c.lookupHost("127.0.0.1"); err != nil {
		localhost = "PC isn't connected to localhost."
	}

	internet := "PC is connected to the internet."
	if _, err := c.lookupHost("www.google.com"); err != nil {
		internet = "PC isn't connected to the internet."
	}

	traffic, err := c.networkTraffic(ctx)
	if err != nil {
		c.logger.Error("network traffic counters unavailable", zap.Error(err))
		return nil, fmt.Errorf("collect traffic counters: %w", err)
	}

	return map[string]any{
		"Network Usage Statistics": map[string]any{
			"Localhost Connectivity": localhost,
			"Network Connectivity":   internet,
			"Network Traffic":        traffic,
		},
	}, nil
}

func (c *BasicCollector) networkTraffic(ctx context.Context) (map[string]any, error) {
	counters, err := c.ioCounters(ctx, false)
	if err != nil {
		return nil, err
	}
	if len(counters) == 0 {
		return nil, errors.New("no aggregate io counters")
	}

	n := counters[0]
	return map[string]any{
		"Network Traffic Information": map[string]string{
			"Send":     fmt.Sprintf("%.2f Mbps", float64(n.BytesSent)/(1024*1024)),
			"Received": fmt.Sprintf("%.2f Mbps", float64(n.BytesRecv)/(1024*1024)),
		},
		"Extra Information": map[string]string{
			"Packets Sent":    fmt.Sprintf("%d", n.PacketsSent),
			"Packet Received": fmt.Sprintf("%d", n.PacketsRecv),
			"ErrorIn":         fmt.Sprintf("%d", n.Errin),
			"ErrorOut":        fmt.Sprintf("%d", n.Errout),
			"DropIn":          fmt.Sprintf("%d", n.Dropin),
			"DropOut":         fmt.Sprintf("%d", n.Dropout),
		},
	}, nil
}
