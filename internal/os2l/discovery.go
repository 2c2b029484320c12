package os2l

import (
	"fmt"
	"net"
	"time"

	"github.com/hashicorp/mdns"
)

const serviceType = "_os2l._tcp"
const discoveryWindow = 3 * time.Second

// Discover browses for the lighting host's OS2L service and returns the
// host:port of the first answer whose address matches a local interface,
// per spec §6.
func Discover() (host string, port int, err error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	done := make(chan struct{})

	var found *mdns.ServiceEntry
	go func() {
		defer close(done)
		locals, localErr := localAddrs()
		for e := range entries {
			if localErr == nil && !addrIsLocal(e.AddrV4, locals) {
				continue
			}
			found = e
			return
		}
	}()

	params := &mdns.QueryParam{
		Service: serviceType,
		Domain:  "local",
		Timeout: discoveryWindow,
		Entries: entries,
	}
	if err := mdns.Query(params); err != nil {
		close(entries)
		<-done
		return "", 0, fmt.Errorf("os2l discovery: %w", err)
	}
	close(entries)
	<-done

	if found == nil {
		return "", 0, fmt.Errorf("os2l discovery: no service found within %s", discoveryWindow)
	}
	return found.AddrV4.String(), found.Port, nil
}

func localAddrs() ([]net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, err
	}
	var ips []net.IP
	for _, a := range addrs {
		if ipNet, ok := a.(*net.IPNet); ok {
			ips = append(ips, ipNet.IP)
		}
	}
	return ips, nil
}

func addrIsLocal(addr net.IP, locals []net.IP) bool {
	if addr == nil {
		return false
	}
	for _, l := range locals {
		if l.Equal(addr) {
			return true
		}
	}
	return false
}
