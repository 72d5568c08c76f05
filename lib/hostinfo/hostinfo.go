// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

// Package hostinfo probes host identity for heartbeat announcements:
// OS and kernel, hostname, non-loopback IPv4 addresses, and the parent
// process ID.
package hostinfo

import (
	"context"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v4/host"

	"github.com/spool-works/spool/lib/telemetry"
)

// Probe collects instance properties for a full announcement. It never
// returns an error: anything unreadable is simply absent from the map.
// A container with no resolvable hostname and no routable address is
// still a valid instance that should announce itself.
//
// Callers must probe fresh on every report rather than caching; the
// parent PID changes when the daemon is reparented and addresses
// change when interfaces come and go.
func Probe(ctx context.Context) map[string]string {
	properties := map[string]string{
		telemetry.PropertyProcessNo: strconv.Itoa(os.Getppid()),
	}

	if info, err := host.InfoWithContext(ctx); err == nil && info != nil {
		if info.OS != "" {
			properties[telemetry.PropertyOSName] = info.OS
		}
		if info.KernelVersion != "" {
			properties[telemetry.PropertyKernel] = info.KernelVersion
		}
		if info.Hostname != "" {
			properties[telemetry.PropertyHostname] = info.Hostname
		}
	}
	if _, ok := properties[telemetry.PropertyHostname]; !ok {
		if hostname, err := os.Hostname(); err == nil && hostname != "" {
			properties[telemetry.PropertyHostname] = hostname
		}
	}

	if addrs, err := net.InterfaceAddrs(); err == nil {
		if ips := ipv4List(addrs); len(ips) > 0 {
			properties[telemetry.PropertyIPv4] = strings.Join(ips, ",")
		}
	}

	return properties
}

// ipv4List filters interface addresses down to non-loopback IPv4
// strings, in interface order.
func ipv4List(addrs []net.Addr) []string {
	var ips []string
	for _, addr := range addrs {
		network, ok := addr.(*net.IPNet)
		if !ok {
			continue
		}
		ip := network.IP.To4()
		if ip == nil || ip.IsLoopback() {
			continue
		}
		ips = append(ips, ip.String())
	}
	return ips
}
