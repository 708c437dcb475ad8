package realtime

import "time"

type Config struct {
	ICEServers       []ICEServerConfig
	PortRange        PortRange
	MaxSDPSize       int
	KeyframeInterval time.Duration
	GatherTimeout    time.Duration
}

type ICEServerConfig struct {
	URLs       []string
	Username   string
	Credential string
}

type PortRange struct {
	Min int
	Max int
}

const (
	defaultMaxSDPSize       = 64 * 1024
	defaultKeyframeInterval = 3 * time.Second
	defaultGatherTimeout    = 5 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxSDPSize <= 0 {
		c.MaxSDPSize = defaultMaxSDPSize
	}
	if c.KeyframeInterval <= 0 {
		c.KeyframeInterval = defaultKeyframeInterval
	}
	if c.GatherTimeout <= 0 {
		c.GatherTimeout = defaultGatherTimeout
	}
	return c
}
