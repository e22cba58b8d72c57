package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"strings"
)

// RootHint is one parsed entry from a root-hints file: a root
// nameserver name and one of its addresses.
type RootHint struct {
	Name    Name
	Address Address
}

// LoadRootHints parses a root-hints file of the form described in
// spec.md §6: comment lines starting with ';', otherwise
// whitespace-separated "name IN A|AAAA address" tokens.
func LoadRootHints(r io.Reader) ([]RootHint, error) {
	var hints []RootHint

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}

		name, class, rtype, addr := fields[0], fields[1], fields[2], fields[3]
		if !strings.EqualFold(class, "IN") {
			continue
		}
		if !strings.EqualFold(rtype, "A") && !strings.EqualFold(rtype, "AAAA") {
			continue
		}

		ip := net.ParseIP(addr)
		if ip == nil {
			return nil, fmt.Errorf("roothints: invalid address %q for %s", addr, name)
		}

		hints = append(hints, RootHint{Name: NewName(name), Address: NewAddress(ip, 53)})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return hints, nil
}

// Prime seeds nscache's "." zonecut with the parsed root hints, per
// spec.md §6's "one priming NS query at '.'" note — here a direct
// cache seed rather than a wire round-trip, since the hints file
// already carries authoritative address data.
func Prime(nscache *NSCache, hints []RootHint) {
	for _, h := range hints {
		nscache.Save(RootName, h.Name, h.Address)
	}
}
