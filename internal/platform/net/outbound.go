// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package net holds URL and outbound-address checks for fetches made on
// behalf of remote clients.
package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/net/idna"
)

// ErrOutboundNotAllowed indicates the target resolved to a blocked address
// or port.
var ErrOutboundNotAllowed = errors.New("outbound url not allowed")

// OutboundPolicy restricts where the relay endpoint may connect. Public
// addresses are always allowed; loopback, link-local, unspecified and
// multicast addresses are refused unless covered by AllowCIDRs.
type OutboundPolicy struct {
	// AllowCIDRs re-admits otherwise blocked ranges (CIDR or bare IP).
	AllowCIDRs []string
	// AllowPrivate admits RFC 1918 and unique-local ranges.
	AllowPrivate bool
	// Ports limits target ports; empty allows any.
	Ports []int
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateOutboundURL checks u against policy, resolving its host, and
// returns the URL with a normalized host.
func ValidateOutboundURL(ctx context.Context, u *url.URL, policy OutboundPolicy) (*url.URL, error) {
	scheme := strings.ToLower(u.Scheme)
	port, err := urlPort(u, scheme)
	if err != nil {
		return nil, err
	}
	if len(policy.Ports) > 0 && !portAllowed(policy.Ports, port) {
		return nil, fmt.Errorf("%w: port %d", ErrOutboundNotAllowed, port)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return nil, err
	}
	allowedCIDRs, err := ParseCIDRs(policy.AllowCIDRs)
	if err != nil {
		return nil, err
	}
	ips, err := resolveHostIPs(ctx, host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if ipInCIDRs(ip, allowedCIDRs) {
			continue
		}
		if isBlockedIP(ip) || (!policy.AllowPrivate && ip.IsPrivate()) {
			return nil, fmt.Errorf("%w: blocked ip %s", ErrOutboundNotAllowed, ip.String())
		}
	}

	out := *u
	out.Host = joinHostPort(host, u.Port())
	return &out, nil
}

func portAllowed(allowed []int, port int) bool {
	for _, p := range allowed {
		if p == port {
			return true
		}
	}
	return false
}

func urlPort(u *url.URL, scheme string) (int, error) {
	if u.Port() == "" {
		switch scheme {
		case "http":
			return 80, nil
		case "https":
			return 443, nil
		default:
			return 0, fmt.Errorf("unknown scheme %q", scheme)
		}
	}
	portStr := u.Port()
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q: %w", portStr, err)
	}
	return port, nil
}

// ParseCIDRs parses CIDR blocks and bare IPs; blank entries are skipped.
func ParseCIDRs(entries []string) ([]*net.IPNet, error) {
	var nets []*net.IPNet
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		ip, ipnet, err := net.ParseCIDR(entry)
		if err == nil {
			ipnet.IP = ip
			nets = append(nets, ipnet)
			continue
		}
		ip = net.ParseIP(entry)
		if ip == nil {
			return nil, fmt.Errorf("invalid CIDR or IP: %s", entry)
		}
		bits := 32
		if ip.To4() == nil {
			bits = 128
		}
		nets = append(nets, &net.IPNet{
			IP:   ip,
			Mask: net.CIDRMask(bits, bits),
		})
	}
	return nets, nil
}

func resolveHostIPs(ctx context.Context, host string) ([]net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return []net.IP{ip}, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve host %q: %w", host, err)
	}
	ips := make([]net.IP, 0, len(addrs))
	for _, addr := range addrs {
		if addr.IP != nil {
			ips = append(ips, addr.IP)
		}
	}
	if len(ips) == 0 {
		return nil, fmt.Errorf("resolve host %q: no addresses", host)
	}
	return ips, nil
}

func isBlockedIP(ip net.IP) bool {
	if ip == nil {
		return true
	}
	return ip.IsLoopback() ||
		ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() ||
		ip.IsMulticast()
}

func ipInCIDRs(ip net.IP, cidrs []*net.IPNet) bool {
	for _, n := range cidrs {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
