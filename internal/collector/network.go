package collector

import (
	"context"
	"fmt"
	"strings"

	"codeberg.org/mutker/hostwatch/internal/sampler"
)

// NetworkCollector reports throughput and packet error rates per interface.
type NetworkCollector struct {
	reader sampler.Reader
	rates  *sampler.RateSampler
}

func NewNetworkCollector(reader sampler.Reader, rates *sampler.RateSampler) *NetworkCollector {
	return &NetworkCollector{reader: reader, rates: rates}
}

func (c *NetworkCollector) Collect(ctx context.Context) NetworkMetrics {
	metrics := NetworkMetrics{Interfaces: []NetworkInterfaceInfo{}}

	ifaces, err := c.reader.Instances(ctx, sampler.CategoryNetwork)
	if err != nil {
		metrics.ErrorMessage = collectionError(DomainNetwork, err)
		return metrics
	}

	var alerted []string
	for _, iface := range ifaces {
		values := sampleAllOr(ctx, c.rates,
			sampler.BytesTotalRate(iface),
			sampler.PacketsOutboundErrors(iface),
			sampler.PacketsReceivedErrors(iface),
			sampler.PacketsSentRate(iface),
			sampler.PacketsReceivedRate(iface),
		)

		info := NetworkInterfaceInfo{
			InterfaceName:         iface,
			BytesTotalPerSec:      round2(values[0]),
			PacketsOutboundErrors: round2(values[1]),
			PacketsReceivedErrors: round2(values[2]),
			TotalPackets:          round2(values[3] + values[4]),
		}

		if info.TotalPackets > 0 {
			errorPct := round4((info.PacketsOutboundErrors + info.PacketsReceivedErrors) / info.TotalPackets * 100)
			info.ErrorPercentage = &errorPct

			if errorPct > NetworkErrorPercentLimit {
				info.AlertTriggered = true
				metrics.AlertTriggered = true
				alerted = append(alerted, iface)
			}
		}

		metrics.Interfaces = append(metrics.Interfaces, info)
	}

	if metrics.AlertTriggered {
		metrics.AlertMessage = fmt.Sprintf(
			"Network Issues Alert: High packet error rate on interfaces: %s. Packet errors > %s%% of total packets",
			strings.Join(alerted, ", "), num(NetworkErrorPercentLimit))
	}

	return metrics
}
