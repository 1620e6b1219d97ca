package net

import (
	"fmt"
	"net"
	"strings"

	"github.com/pkg/errors"
)

// Scheme prefixes share links.
const Scheme = "localboard://"

// OutgoingIP finds the local address other machines on the LAN can reach.
// No packet is sent; dialing UDP only picks the route.
func OutgoingIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return localIPFallback()
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}

// localIPFallback is used on networks without a default route.
func localIPFallback() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", errors.Wrap(err, "listing interface addresses")
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "127.0.0.1", nil
}

// ShareLink builds localboard://<ip>:<port>/<room>.
func ShareLink(ip string, port int, roomID string) string {
	return fmt.Sprintf("%s%s/%s", Scheme, net.JoinHostPort(ip, fmt.Sprint(port)), roomID)
}

// ParseLink splits a share link into the host address and room. A link
// without a room names the empty room, which the host maps to its default.
func ParseLink(link string) (addr, roomID string, err error) {
	rest, ok := strings.CutPrefix(link, Scheme)
	if !ok {
		return "", "", errors.Errorf("not a %s link: %q", Scheme, link)
	}
	addr, roomID, _ = strings.Cut(rest, "/")
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return "", "", errors.Wrapf(err, "bad host in link %q", link)
	}
	return addr, strings.TrimSuffix(roomID, "/"), nil
}

// WebsocketURL is the transport endpoint of a host.
func WebsocketURL(addr string) string { return "ws://" + addr + "/ws" }
