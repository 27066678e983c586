package network

import (
	"net"
	"strconv"

	"github.com/pkg/errors"
)

// NormalizeAddresses returns a new slice with all the passed peer addresses
// normalized with the given default port, and all duplicates removed.
func NormalizeAddresses(addrs []string, defaultPort string) ([]string, error) {
	normalized := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		addrWithPort, err := NormalizeAddress(addr, defaultPort)
		if err != nil {
			return nil, err
		}
		normalized = append(normalized, addrWithPort)
	}

	return removeDuplicateAddresses(normalized), nil
}

// NormalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func NormalizeAddress(addr, defaultPort string) (string, error) {
	_, _, err := net.SplitHostPort(addr)
	// net.SplitHostPort returns an error if the given host is missing a
	// port, but theoretically it can return an error for other reasons,
	// and this is why we check addrWithPort for validity.
	if err != nil {
		addrWithPort := net.JoinHostPort(addr, defaultPort)
		_, _, err := net.SplitHostPort(addrWithPort)
		if err != nil {
			return "", errors.WithStack(err)
		}

		return addrWithPort, nil
	}
	return addr, nil
}

// SplitAddress splits a host:port address into its host and numeric port
func SplitAddress(addr string) (host string, port uint16, err error) {
	host, portString, err := net.SplitHostPort(addr)
	if err != nil {
		return "", 0, errors.WithStack(err)
	}
	portNumber, err := strconv.ParseUint(portString, 10, 16)
	if err != nil {
		return "", 0, errors.Wrapf(err, "invalid port in address %s", addr)
	}
	return host, uint16(portNumber), nil
}

// removeDuplicateAddresses returns a new slice with all duplicate entries in
// addrs removed.
func removeDuplicateAddresses(addrs []string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, val := range addrs {
		if _, ok := seen[val]; !ok {
			result = append(result, val)
			seen[val] = struct{}{}
		}
	}
	return result
}
