package signal

import "github.com/pion/webrtc/v4"

// ConnectionStats aggregates transport-level counters across the inbound and
// outbound media reports of the peer connection.
type ConnectionStats struct {
	BytesSent       uint64 `json:"bytes_sent"`
	BytesReceived   uint64 `json:"bytes_received"`
	PacketsSent     uint32 `json:"packets_sent"`
	PacketsReceived uint32 `json:"packets_received"`
	PacketsLost     int32  `json:"packets_lost"`
}

// ConnectionStats collects the current counters, or nil when no peer
// connection exists.
func (c *Client) ConnectionStats() *ConnectionStats {
	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil {
		return nil
	}

	report := pc.GetStats()
	stats := &ConnectionStats{}
	for _, entry := range report {
		switch s := entry.(type) {
		case webrtc.OutboundRTPStreamStats:
			stats.BytesSent += s.BytesSent
			stats.PacketsSent += s.PacketsSent
		case webrtc.InboundRTPStreamStats:
			stats.BytesReceived += s.BytesReceived
			stats.PacketsReceived += s.PacketsReceived
			stats.PacketsLost += s.PacketsLost
		}
	}
	return stats
}
