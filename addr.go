package rmi

import (
	"fmt"
	"net"
)

// controllerAddr resolves a Config's addr/port (and, if set,
// statusPort) into dialable "host:port" strings, the TCP-native
// counterpart to the teacher's URL/SAS Endpoint parsing.
type controllerAddr struct {
	host string
	port int
}

func newControllerAddr(host string, port int) controllerAddr {
	return controllerAddr{host: host, port: port}
}

func (a controllerAddr) String() string {
	return net.JoinHostPort(a.host, fmt.Sprintf("%d", a.port))
}

// primaryAddr returns the dial address for the main RMI connection.
func (c *Config) primaryAddr() controllerAddr { return newControllerAddr(c.addr, c.port) }

// hasStatusPort reports whether a secondary out-of-band status port
// was configured via WithStatusPort.
func (c *Config) hasStatusPort() bool { return c.statusPort != 0 }

// statusAddr returns the dial address for the secondary status port.
// Only meaningful when hasStatusPort() is true.
func (c *Config) statusAddr() controllerAddr { return newControllerAddr(c.addr, c.statusPort) }
