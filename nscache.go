package main

import "sync"

// NSCache is the process-wide nameserver cache from spec.md §4.1: two
// monotonically-growing mappings, zonecut -> nameserver names and
// nameserver name -> addresses. Nothing is ever removed for the life of
// the process, so readers never need to worry about a torn or stale
// composite value beyond the usual happens-before guarantees a mutex
// gives.
type NSCache struct {
	mu       sync.RWMutex
	nsByZone map[Name]map[Name]struct{}
	addrByNS map[Name]map[Address]struct{}
}

// NewNSCache returns an empty cache.
func NewNSCache() *NSCache {
	return &NSCache{
		nsByZone: make(map[Name]map[Name]struct{}),
		addrByNS: make(map[Name]map[Address]struct{}),
	}
}

// Save inserts name into the nameserver set for zone, and, if address is
// known, inserts address into name's address set.
func (c *NSCache) Save(zone, name Name, address Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.nsByZone[zone] == nil {
		c.nsByZone[zone] = make(map[Name]struct{})
	}
	c.nsByZone[zone][name] = struct{}{}

	if address != NoAddress {
		if c.addrByNS[name] == nil {
			c.addrByNS[name] = make(map[Address]struct{})
		}
		c.addrByNS[name][address] = struct{}{}
	} else if c.addrByNS[name] == nil {
		// A nameserver name may appear with no known addresses; it gets
		// an empty address set, and Lookup (which lists names from
		// nsByZone) reports it with NoAddress.
		c.addrByNS[name] = make(map[Address]struct{})
	}
}

// Server is a (nameserver name, address) pair, exactly as spec.md's
// "Server" type. Two servers are equal iff both fields are equal.
type Server struct {
	Name    Name
	Address Address
}

// Lookup returns one Server per known address of each nameserver
// registered under zone; a nameserver with no known address yet
// contributes a single Server with NoAddress. An absent zonecut returns
// an empty slice, never an error. Order is unspecified.
func (c *NSCache) Lookup(zone Name) []Server {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := c.nsByZone[zone]
	if len(names) == 0 {
		return nil
	}

	var out []Server
	for name := range names {
		addrs := c.addrByNS[name]
		if len(addrs) == 0 {
			out = append(out, Server{Name: name, Address: NoAddress})
			continue
		}
		for addr := range addrs {
			out = append(out, Server{Name: name, Address: addr})
		}
	}
	return out
}

// IsResolved reports whether name has at least one known address.
func (c *NSCache) IsResolved(name Name) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.addrByNS[name]) > 0
}
