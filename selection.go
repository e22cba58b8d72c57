package main

import (
	"math/rand"
	"sort"
)

// Transport is a prepared single-query descriptor, per spec.md §3.
type Transport struct {
	Server  Server
	TCP     bool
	Timeout int64 // microseconds
}

// Selection is the per-resolution, per-zonecut epsilon-greedy bandit of
// spec.md §4.3. Each recursive step creates one, scoped to the zonecut
// it is resolving at.
type Selection struct {
	zonecut Name
	nscache *NSCache
	global  *GlobalServerState
	local   *LocalState
	doTCP   bool
	epsilon float64
	rng     *rand.Rand
}

// NewSelection returns a Selection scoped to zonecut. nscache and
// global are process-wide; local is the caller's per-resolution state,
// which the engine passes on to the Selections of its CNAME and
// delegation sub-resolutions.
func NewSelection(zonecut Name, nscache *NSCache, global *GlobalServerState, local *LocalState) *Selection {
	return &Selection{
		zonecut: zonecut,
		nscache: nscache,
		global:  global,
		local:   local,
		epsilon: 0.5,
		rng:     rand.New(rand.NewSource(rand.Int63())),
	}
}

// GetTransport chooses the next server to query at s's zonecut, per
// spec.md §4.3's epsilon-greedy policy. It returns errNoCandidates
// wrapped in a *ResolveError of kind KindSelectionExhausted if nothing
// viable remains.
func (s *Selection) GetTransport() (Transport, error) {
	all := s.nscache.Lookup(s.zonecut)

	var servers []Server
	for _, srv := range all {
		if s.local.For(srv).CannotResolveName() {
			continue
		}
		servers = append(servers, srv)
	}
	if len(servers) == 0 {
		return Transport{}, newResolveError(KindSelectionExhausted, s.zonecut, 0, errNoCandidates)
	}

	var withAddr, withoutAddr []Server
	for _, srv := range servers {
		if srv.Address == NoAddress {
			withoutAddr = append(withoutAddr, srv)
		} else {
			withAddr = append(withAddr, srv)
		}
	}

	if s.rng.Float64() > s.epsilon && len(withAddr) > 0 {
		return s.exploit(withAddr), nil
	}
	return s.explore(servers), nil
}

func (s *Selection) exploit(withAddr []Server) Transport {
	shuffled := make([]Server, len(withAddr))
	copy(shuffled, withAddr)
	s.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

	sortStableBy(shuffled, func(srv Server) int64 { return s.global.TimeoutFor(srv.Address) })
	sortStableBy(shuffled, func(srv Server) int64 { return int64(s.local.For(srv).Errors) })

	chosen := shuffled[0]
	return Transport{
		Server:  chosen,
		TCP:     s.doTCP,
		Timeout: s.global.TimeoutFor(chosen.Address),
	}
}

func (s *Selection) explore(servers []Server) Transport {
	chosen := servers[s.rng.Intn(len(servers))]
	return Transport{
		Server:  chosen,
		TCP:     s.doTCP,
		Timeout: s.global.TimeoutFor(chosen.Address),
	}
}

// sortStableBy stable-sorts srvs ascending by key.
func sortStableBy(srvs []Server, key func(Server) int64) {
	sort.SliceStable(srvs, func(i, j int) bool {
		return key(srvs[i]) < key(srvs[j])
	})
}

// OnSuccess is a no-op reserved for future success-rate tracking.
func (s *Selection) OnSuccess(t Transport) {}

// OnTimeout records a timeout observation against t's address.
func (s *Selection) OnTimeout(t Transport) {
	s.global.PacketLost(t.Server.Address)
}

// OnRTT records an RTT observation of elapsedUS microseconds for t's
// address.
func (s *Selection) OnRTT(t Transport, elapsedUS int64) {
	s.global.Update(t.Server.Address, elapsedUS)
}

// OnError applies kind's effect on t's local server state, per
// spec.md §4.3.
func (s *Selection) OnError(t Transport, kind Kind) {
	switch kind {
	case KindTimeout:
		// handled by OnTimeout
	case KindTruncated:
		s.doTCP = true
	case KindCantResolveA:
		s.local.For(t.Server).NoA = true
	case KindCantResolveAAAA:
		s.local.For(t.Server).NoAAAA = true
	default:
		s.local.For(t.Server).Errors++
	}
}
