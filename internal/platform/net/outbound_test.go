// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package net

import (
	"context"
	"errors"
	"net/url"
	"testing"
)

func TestValidateOutboundURL(t *testing.T) {
	cases := []struct {
		name    string
		policy  OutboundPolicy
		rawURL  string
		wantErr bool
		want    string
	}{
		{name: "public ip", rawURL: "http://192.0.2.10/api", want: "http://192.0.2.10/api"},
		{name: "trailing dot normalized", rawURL: "http://192.0.2.10./x", want: "http://192.0.2.10/x"},
		{name: "metadata ip", rawURL: "http://169.254.169.254/latest", wantErr: true},
		{name: "loopback", rawURL: "http://127.0.0.1:8088/relay", wantErr: true},
		{name: "unspecified", rawURL: "http://0.0.0.0/", wantErr: true},
		{name: "IPv6 loopback", rawURL: "http://[::1]/", wantErr: true},
		{name: "IPv4-mapped loopback", rawURL: "http://[::ffff:127.0.0.1]/", wantErr: true},
		{name: "IPv6 link-local", rawURL: "http://[fe80::1]/", wantErr: true},
		{name: "private refused", rawURL: "http://10.10.55.64/", wantErr: true},
		{name: "private admitted", policy: OutboundPolicy{AllowPrivate: true}, rawURL: "http://10.10.55.64/", want: "http://10.10.55.64/"},
		{name: "cidr re-admits loopback", policy: OutboundPolicy{AllowCIDRs: []string{"127.0.0.0/8"}}, rawURL: "http://127.0.0.1:9000/", want: "http://127.0.0.1:9000/"},
		{name: "bare ip allow entry", policy: OutboundPolicy{AllowCIDRs: []string{"::1"}}, rawURL: "http://[::1]:9000/", want: "http://[::1]:9000/"},
		{name: "port allowed", policy: OutboundPolicy{Ports: []int{443}}, rawURL: "https://192.0.2.10/", want: "https://192.0.2.10/"},
		{name: "port refused", policy: OutboundPolicy{Ports: []int{443}}, rawURL: "http://192.0.2.10:8080/", wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			u, err := url.Parse(tc.rawURL)
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			got, err := ValidateOutboundURL(context.Background(), u, tc.policy)
			if tc.wantErr {
				if !errors.Is(err, ErrOutboundNotAllowed) {
					t.Fatalf("expected ErrOutboundNotAllowed, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got.String() != tc.want {
				t.Fatalf("got %q, want %q", got.String(), tc.want)
			}
		})
	}
}

func TestParseCIDRs(t *testing.T) {
	nets, err := ParseCIDRs([]string{"10.0.0.0/8", " ", "192.0.2.1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(nets) != 2 {
		t.Fatalf("got %d nets, want 2", len(nets))
	}
	if _, err := ParseCIDRs([]string{"not-an-ip"}); err == nil {
		t.Fatal("expected error for invalid entry")
	}
}

func TestNormalizeHost(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Example.COM.", want: "example.com"},
		{in: "[::1]", want: "::1"},
		{in: "bücher.example", want: "xn--bcher-kva.example"},
		{in: "http://x", wantErr: true},
		{in: "user@x", wantErr: true},
		{in: "x:80", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeHost(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("NormalizeHost(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeHost(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
