package probe

import (
	"net"
	"strconv"
	"time"

	"github.com/stack-tools/stackup/pkg/logging"
)

// DefaultConnectTimeout bounds a single probe attempt at the OS connect level
const DefaultConnectTimeout = 1 * time.Second

// Prober reports whether a service endpoint currently accepts connections
type Prober interface {
	Probe(host string, port int) bool
}

type Options struct {
	ConnectTimeout time.Duration
}

type tcpProber struct {
	options Options
	logger  logging.Logger
}

// NewTCPProber creates a prober that attempts a TCP connection to host:port.
// Connection refused, timeout and unreachable host all collapse to "not
// ready"; a probe never returns an error.
func NewTCPProber(options Options, logger logging.Logger) Prober {
	if options.ConnectTimeout <= 0 {
		options.ConnectTimeout = DefaultConnectTimeout
	}
	return &tcpProber{
		options: options,
		logger:  logger,
	}
}

func (p *tcpProber) Probe(host string, port int) bool {
	address := net.JoinHostPort(host, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", address, p.options.ConnectTimeout)
	if err != nil {
		p.logger.Debugf("Probe failed, address: %s, error: %v", address, err)
		return false
	}

	if err := conn.Close(); err != nil {
		p.logger.Debugf("Failed to close probe connection, address: %s, error: %v", address, err)
	}

	return true
}
