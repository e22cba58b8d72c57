package main

import (
	"fmt"
	"net"

	"github.com/yl2chen/cidranger"
)

// AccessList gates the server front-end on a set of allowed client
// CIDRs, adapted from the teacher's main.go accesslist construction.
type AccessList struct {
	ranger cidranger.Ranger
}

// NewAccessList builds an AccessList from a list of CIDR strings.
func NewAccessList(cidrs []string) (*AccessList, error) {
	ranger := cidranger.NewPCTrieRanger()

	for _, cidr := range cidrs {
		_, ipnet, err := net.ParseCIDR(cidr)
		if err != nil {
			return nil, fmt.Errorf("accesslist: parse cidr %q: %w", cidr, err)
		}
		if err := ranger.Insert(cidranger.NewBasicRangerEntry(*ipnet)); err != nil {
			return nil, fmt.Errorf("accesslist: insert cidr %q: %w", cidr, err)
		}
	}

	return &AccessList{ranger: ranger}, nil
}

// Allowed reports whether ip is covered by any configured CIDR.
func (a *AccessList) Allowed(ip net.IP) bool {
	ok, err := a.ranger.Contains(ip)
	if err != nil {
		return false
	}
	return ok
}
