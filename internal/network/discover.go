package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/enbility/zeroconf/v3"
	"github.com/sirupsen/logrus"
)

// MQTT broker service advertised over mDNS.
const (
	BrokerService = "_mqtt._tcp"
	Domain        = "local."
)

// DefaultDiscoverTimeout bounds one broker lookup.
const DefaultDiscoverTimeout = 5 * time.Second

// ErrNoBroker is returned when no broker answered before the timeout.
var ErrNoBroker = errors.New("no mqtt broker advertised")

// browse is replaced in tests.
var browse = func(ctx context.Context, service, domain string, entries, removed chan<- *zeroconf.ServiceEntry) error {
	return zeroconf.Browse(ctx, service, domain, entries, removed)
}

// DiscoverBroker browses for an MQTT broker and returns its URL in the
// form tcp://host:port. IPv4 addresses are preferred.
func DiscoverBroker(ctx context.Context, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	errc := make(chan error, 1)
	go func() {
		errc <- browse(ctx, BrokerService, Domain, entries, removed)
	}()

	for {
		select {
		case entry, ok := <-entries:
			if !ok {
				return "", ErrNoBroker
			}
			if url, ok := brokerURL(entry); ok {
				logrus.Infof("mdns: found broker %s (%s)", url, entry.Instance)
				return url, nil
			}
		case <-removed:
		case err := <-errc:
			if err != nil {
				return "", fmt.Errorf("browse %s: %w", BrokerService, err)
			}
			// Browse returned without error; wait for entries or the timeout.
			errc = nil
		case <-ctx.Done():
			return "", ErrNoBroker
		}
	}
}

func brokerURL(entry *zeroconf.ServiceEntry) (string, bool) {
	if entry == nil || entry.Port == 0 {
		return "", false
	}
	var ip net.IP
	switch {
	case len(entry.AddrIPv4) > 0:
		ip = entry.AddrIPv4[0]
	case len(entry.AddrIPv6) > 0:
		ip = entry.AddrIPv6[0]
	default:
		return "", false
	}
	return "tcp://" + net.JoinHostPort(ip.String(), strconv.Itoa(entry.Port)), true
}
