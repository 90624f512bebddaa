package bloomberg

import (
	"net"
	"os"
	"strings"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/aristath/marketdata/config"
)

// IsAvailable reports whether a Bloomberg terminal appears to be running on
// this machine: either the communication daemon (bbcomm by default) shows up
// in the process table, or the gateway port accepts a connection. Probe
// failures mean unavailable, never an error.
func IsAvailable() bool {
	if processRunning(processName()) {
		return true
	}
	return portOpen(gatewayAddr())
}

func processName() string {
	if name := os.Getenv(config.EnvBloombergProcess); name != "" {
		return name
	}
	return config.DefaultBloombergProcess
}

func gatewayAddr() string {
	if addr := os.Getenv(config.EnvBloombergGateway); addr != "" {
		return addr
	}
	return config.DefaultBloombergGateway
}

func processRunning(name string) bool {
	procs, err := process.Processes()
	if err != nil {
		return false
	}
	name = strings.ToLower(name)
	for _, p := range procs {
		pname, err := p.Name()
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(pname), name) {
			return true
		}
	}
	return false
}

func portOpen(addr string) bool {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
