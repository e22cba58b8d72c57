package main

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

// scriptedSocket answers each query by address, consulting a
// per-address handler function. It never touches a real network.
type scriptedSocket struct {
	handlers map[string]func(req *dns.Msg) *dns.Msg
	queries  int
	noReply  bool
}

func (s *scriptedSocket) exchange(addr Address, payload []byte) ([]byte, error) {
	s.queries++
	if s.noReply {
		return nil, fakeTimeoutErr{}
	}
	req := new(dns.Msg)
	if err := req.Unpack(payload); err != nil {
		return nil, err
	}
	h, ok := s.handlers[addr.Host()]
	if !ok {
		return nil, fakeTimeoutErr{}
	}
	resp := h(req)
	return resp.Pack()
}

func (s *scriptedSocket) ExchangeUDP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error) {
	return s.exchange(addr, payload)
}

func (s *scriptedSocket) ExchangeTCP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error) {
	return s.exchange(addr, payload)
}

func mustRR(t *testing.T, s string) dns.RR {
	rr, err := dns.NewRR(s)
	assert.NoError(t, err)
	return rr
}

func Test_EngineDirectALookupWithGlue(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(RootName, NewName("a.root-servers.net"), Address("198.41.0.4:53"))

	sock := &scriptedSocket{handlers: map[string]func(*dns.Msg) *dns.Msg{
		"198.41.0.4": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = true
			resp.Answer = append(resp.Answer, mustRR(t, "a.root-servers.net. 3600 IN A 198.41.0.4"))
			return resp
		},
	}}
	global := NewGlobalServerStateWithClock(clockwork.NewFakeClock())
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 100, MaxDepth: 10})

	qc := NewQueryCounter(100, NewName("a.root-servers.net"), dns.TypeA)
	res, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("a.root-servers.net"), dns.TypeA, RootName, 0)
	assert.NoError(t, err)
	assert.Len(t, res.Res, 1)
	assert.Empty(t, res.Intermediate)
	assert.Equal(t, 1, sock.queries)
}

func Test_EngineOneDelegation(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(RootName, NewName("a.root-servers.net"), Address("198.41.0.4:53"))

	sock := &scriptedSocket{handlers: map[string]func(*dns.Msg) *dns.Msg{
		"198.41.0.4": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = false
			resp.Ns = append(resp.Ns, mustRR(t, "com. 3600 IN NS a.gtld-servers.net."))
			resp.Extra = append(resp.Extra, mustRR(t, "a.gtld-servers.net. 3600 IN A 192.5.6.30"))
			return resp
		},
		"192.5.6.30": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = false
			resp.Ns = append(resp.Ns, mustRR(t, "example.com. 3600 IN NS ns1.example.com."))
			resp.Extra = append(resp.Extra, mustRR(t, "ns1.example.com. 3600 IN A 199.43.135.53"))
			return resp
		},
		"199.43.135.53": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = true
			resp.Answer = append(resp.Answer, mustRR(t, "example.com. 3600 IN A 93.184.216.34"))
			return resp
		},
	}}

	global := NewGlobalServerStateWithClock(clockwork.NewFakeClock())
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 100, MaxDepth: 10})

	qc := NewQueryCounter(100, NewName("example.com"), dns.TypeA)
	res, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("example.com"), dns.TypeA, RootName, 0)
	assert.NoError(t, err)
	assert.Len(t, res.Res, 1)
	assert.Empty(t, res.Intermediate)
	assert.Equal(t, 3, sock.queries)

	assert.NotEmpty(t, nscache.Lookup(RootName))
	assert.NotEmpty(t, nscache.Lookup(NewName("com.")))
	assert.NotEmpty(t, nscache.Lookup(NewName("example.com.")))
}

func Test_EngineCNAMEChaseWithinBailiwick(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(NewName("example.com"), NewName("ns1.example.com"), Address("203.0.113.1:53"))

	sock := &scriptedSocket{handlers: map[string]func(*dns.Msg) *dns.Msg{
		"203.0.113.1": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = true
			resp.Answer = append(resp.Answer,
				mustRR(t, "www.example.com. 3600 IN CNAME cdn.example.com."),
				mustRR(t, "cdn.example.com. 3600 IN A 93.184.216.34"),
			)
			return resp
		},
	}}

	global := NewGlobalServerStateWithClock(clockwork.NewFakeClock())
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 100, MaxDepth: 10})

	qc := NewQueryCounter(100, NewName("www.example.com"), dns.TypeA)
	res, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("www.example.com"), dns.TypeA, NewName("example.com"), 0)
	assert.NoError(t, err)
	assert.Len(t, res.Res, 1)
	assert.Len(t, res.Intermediate, 1)
	assert.Equal(t, 1, sock.queries)
}

func Test_EngineCNAMEChaseAcrossZone(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(NewName("example.com"), NewName("ns1.example.com"), Address("203.0.113.1:53"))
	nscache.Save(RootName, NewName("a.root-servers.net"), Address("198.41.0.4:53"))
	nscache.Save(NewName("other.net"), NewName("ns1.other.net"), Address("203.0.113.2:53"))

	sock := &scriptedSocket{handlers: map[string]func(*dns.Msg) *dns.Msg{
		"203.0.113.1": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = true
			resp.Answer = append(resp.Answer,
				mustRR(t, "www.example.com. 3600 IN CNAME cdn.other.net."),
			)
			return resp
		},
		// The cross-zone CNAME restarts resolution at the root, so the
		// fixture root server must delegate to other.net. like a real
		// root server would.
		"198.41.0.4": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = false
			resp.Ns = append(resp.Ns, mustRR(t, "other.net. 3600 IN NS ns1.other.net."))
			resp.Extra = append(resp.Extra, mustRR(t, "ns1.other.net. 3600 IN A 203.0.113.2"))
			return resp
		},
		"203.0.113.2": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = true
			resp.Answer = append(resp.Answer, mustRR(t, "cdn.other.net. 3600 IN A 192.0.2.10"))
			return resp
		},
	}}

	global := NewGlobalServerStateWithClock(clockwork.NewFakeClock())
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 100, MaxDepth: 10})

	qc := NewQueryCounter(100, NewName("www.example.com"), dns.TypeA)
	res, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("www.example.com"), dns.TypeA, NewName("example.com"), 0)
	assert.NoError(t, err)
	assert.Len(t, res.Intermediate, 1)
	assert.Len(t, res.Res, 1)
}

func Test_EngineNXDomain(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(NewName("example.com"), NewName("ns1.example.com"), Address("203.0.113.1:53"))

	sock := &scriptedSocket{handlers: map[string]func(*dns.Msg) *dns.Msg{
		"203.0.113.1": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetRcode(req, dns.RcodeNameError)
			resp.Authoritative = true
			return resp
		},
	}}

	global := NewGlobalServerStateWithClock(clockwork.NewFakeClock())
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 100, MaxDepth: 10})

	qc := NewQueryCounter(100, NewName("nope.example.com"), dns.TypeA)
	_, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("nope.example.com"), dns.TypeA, NewName("example.com"), 0)
	assert.Equal(t, KindNXDomain, KindOf(err))
}

func Test_EngineTimeoutBackoffThenSelectionExhausted(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(NewName("example.com"), NewName("ns1.example.com"), Address("203.0.113.1:53"))

	sock := &scriptedSocket{noReply: true}

	clock := clockwork.NewFakeClock()
	global := NewGlobalServerStateWithClock(clock)
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 100, MaxDepth: 10})

	qc := NewQueryCounter(100, NewName("www.example.com"), dns.TypeA)
	_, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("www.example.com"), dns.TypeA, NewName("example.com"), 0)

	kind := KindOf(err)
	assert.True(t, kind == KindSelectionExhausted || kind == KindTooManyQueries)
	assert.GreaterOrEqual(t, global.TimeoutFor(Address("203.0.113.1:53")), int64(MinTimeoutUS*2))
}

func Test_EngineTooManyQueries(t *testing.T) {
	nscache := NewNSCache()
	nscache.Save(NewName("example.com"), NewName("ns1.example.com"), Address("203.0.113.1:53"))

	sock := &scriptedSocket{handlers: map[string]func(*dns.Msg) *dns.Msg{
		"203.0.113.1": func(req *dns.Msg) *dns.Msg {
			resp := new(dns.Msg)
			resp.SetReply(req)
			resp.Authoritative = false
			return resp
		},
	}}

	global := NewGlobalServerStateWithClock(clockwork.NewFakeClock())
	r := NewResolver(nscache, global, sock, nil, EngineConfig{MaxQueries: 3, MaxDepth: 10})

	qc := NewQueryCounter(3, NewName("www.example.com"), dns.TypeA)
	_, err := r.Resolve(context.Background(), qc, NewLocalState(), NewName("www.example.com"), dns.TypeA, NewName("example.com"), 0)
	assert.Equal(t, KindTooManyQueries, KindOf(err))
}
