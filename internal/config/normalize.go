package config

import (
	"errors"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrInvalidServiceURL indicates the service URL cannot be used as a request root.
	ErrInvalidServiceURL = errors.New("invalid service URL")
)

// NormalizeServiceURL returns the canonical form of a service root URL.
// It trims whitespace and trailing slashes, lowercases the scheme, and
// converts an internationalized host to its ASCII (Punycode) form.
// Examples:
//
//	"https://Example.com/api/" -> "https://example.com/api"
//	"https://café.example/api" -> "https://xn--caf-dma.example/api"
func NormalizeServiceURL(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrInvalidServiceURL
	}
	u, err := url.Parse(s)
	if err != nil {
		return "", ErrInvalidServiceURL
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidServiceURL
	}
	host, err := HostToASCII(u.Hostname())
	if err != nil {
		return "", err
	}
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	u.Host = host
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	u.Fragment = ""
	return u.String(), nil
}

// HostToASCII converts a host name to its ASCII (Punycode) form using the
// IDNA Lookup profile.
func HostToASCII(host string) (string, error) {
	if host == "" {
		return "", ErrInvalidServiceURL
	}
	if ip := net.ParseIP(host); ip != nil {
		if ip.To4() == nil {
			return "[" + host + "]", nil
		}
		return host, nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", ErrInvalidServiceURL
	}
	// host names are case-insensitive
	return strings.ToLower(ascii), nil
}
