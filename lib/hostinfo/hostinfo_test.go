// Copyright 2026 The Spool Authors
// SPDX-License-Identifier: Apache-2.0

package hostinfo

import (
	"context"
	"net"
	"os"
	"strconv"
	"testing"

	"github.com/spool-works/spool/lib/telemetry"
)

func TestProbeReportsParentPID(t *testing.T) {
	t.Parallel()
	properties := Probe(context.Background())

	got, ok := properties[telemetry.PropertyProcessNo]
	if !ok {
		t.Fatal("no process number property")
	}
	if got != strconv.Itoa(os.Getppid()) {
		t.Errorf("process number: got %s, want %d", got, os.Getppid())
	}
}

func TestProbeNeverEmpty(t *testing.T) {
	t.Parallel()
	// Whatever the host looks like, the parent PID is always known, so
	// Probe always produces at least one property.
	properties := Probe(context.Background())
	if len(properties) == 0 {
		t.Fatal("Probe returned no properties")
	}
}

func mustCIDR(t *testing.T, cidr string) net.Addr {
	t.Helper()
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		t.Fatalf("ParseCIDR(%q): %v", cidr, err)
	}
	return network
}

func TestIPv4ListFiltersLoopbackAndIPv6(t *testing.T) {
	t.Parallel()
	addrs := []net.Addr{
		mustCIDR(t, "127.0.0.1/8"),
		mustCIDR(t, "10.20.30.0/24"),
		mustCIDR(t, "fe80::/64"),
		mustCIDR(t, "192.168.1.0/24"),
		&net.UnixAddr{Name: "/tmp/ignored.sock", Net: "unix"},
	}

	got := ipv4List(addrs)
	want := []string{"10.20.30.0", "192.168.1.0"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for index := range want {
		if got[index] != want[index] {
			t.Errorf("ip[%d]: got %q, want %q", index, got[index], want[index])
		}
	}
}

func TestIPv4ListEmptyInput(t *testing.T) {
	t.Parallel()
	if got := ipv4List(nil); got != nil {
		t.Errorf("got %v, want nil", got)
	}
}
