package registry

import (
	"net"
	"strconv"
	"time"
)

const probeTimeout = 250 * time.Millisecond

// portFree reports whether nothing answers on the loopback port. Deployed
// containers bind loopback only, so a refused dial means the port is
// available.
func portFree(port int) bool {
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, probeTimeout)
	if err != nil {
		return true
	}
	conn.Close()
	return false
}
