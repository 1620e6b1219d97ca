package net

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/hashicorp/mdns"
	"github.com/pkg/errors"
)

const serviceType = "_localboard._tcp"

// Advertise announces a board host on the LAN. The TXT record carries the
// shared room so browsers can build a link without asking.
func Advertise(port int, roomID string) (*mdns.Server, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, errors.Wrap(err, "could not get hostname")
	}
	service, err := mdns.NewMDNSService(host, serviceType, "", "", port, nil, []string{"CollabBoard", "room=" + roomID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create mDNS service")
	}
	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, errors.Wrap(err, "failed to start mDNS server")
	}
	return server, nil
}

// Host is a board host found on the LAN.
type Host struct {
	Name string
	Addr string
	Room string
}

// Browse looks for hosts for up to timeout and returns every one that
// answered with an IPv4 address.
func Browse(ctx context.Context, timeout time.Duration) ([]Host, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	collected := make(chan []Host, 1)
	go func() {
		var hosts []Host
		seen := make(map[string]bool)
		for e := range entries {
			if e.AddrV4 == nil || e.Port == 0 {
				continue
			}
			addr := fmt.Sprintf("%s:%d", e.AddrV4, e.Port)
			if seen[addr] {
				continue
			}
			seen[addr] = true
			hosts = append(hosts, Host{Name: e.Host, Addr: addr, Room: roomFromTXT(e.InfoFields)})
		}
		collected <- hosts
	}()

	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	if timeout <= 0 {
		close(entries)
		<-collected
		return nil, ctx.Err()
	}
	params := mdns.DefaultParams(serviceType)
	params.Entries = entries
	params.Timeout = timeout
	params.DisableIPv6 = true
	err := mdns.Query(params)
	close(entries)
	hosts := <-collected
	if err != nil {
		return hosts, errors.Wrap(err, "mDNS query")
	}
	return hosts, nil
}

func roomFromTXT(fields []string) string {
	for _, f := range fields {
		if len(f) > 5 && f[:5] == "room=" {
			return f[5:]
		}
	}
	return ""
}
