package main

import (
	"context"
	"errors"
	"time"

	"github.com/miekg/dns"
)

// ResolveResult is the outcome of a resolution, per spec.md §3: the
// ordered answer records the caller asked for and the ordered CNAME
// chain traversed to reach them.
type ResolveResult struct {
	Res          []dns.RR
	Intermediate []dns.RR
}

// EngineConfig bundles the resolver's tunables and collaborators.
type EngineConfig struct {
	MaxQueries int // per-resolution query ceiling, default 100
	MaxDepth   int // recursion depth guard against pathological zones
}

// Resolver is the resolution engine of spec.md §4.5. One Resolver is
// shared by every in-flight resolution; it owns no per-resolution
// state itself, only references to the process-wide collaborators.
type Resolver struct {
	NSCache *NSCache
	Global  *GlobalServerState
	Socket  Socket
	Sink    Sink
	Config  EngineConfig
}

// NewResolver returns a Resolver wired to nscache/global/socket, with
// MaxQueries and MaxDepth defaulted per spec.md if unset in cfg.
func NewResolver(nscache *NSCache, global *GlobalServerState, socket Socket, sink Sink, cfg EngineConfig) *Resolver {
	if cfg.MaxQueries == 0 {
		cfg.MaxQueries = 100
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 30
	}
	if sink == nil {
		sink = NopSink{}
	}
	return &Resolver{NSCache: nscache, Global: global, Socket: socket, Sink: sink, Config: cfg}
}

// Resolve runs spec.md §4.5's recursive iterative-resolution algorithm
// for (qname, qtype) starting at zonecut auth. qc is the shared
// per-top-level-resolution query counter; depth guards against
// pathological delegation/CNAME loops.
func (r *Resolver) Resolve(ctx context.Context, qc *QueryCounter, local *LocalState, qname Name, qtype uint16, auth Name, depth int) (ResolveResult, error) {
	if depth > r.Config.MaxDepth {
		return ResolveResult{}, newResolveError(KindSelectionExhausted, qname, qtype, errMaxDepthExceeded)
	}

	sel := NewSelection(auth, r.NSCache, r.Global, local)

	for {
		transport, err := sel.GetTransport()
		if err != nil {
			return ResolveResult{}, err
		}

		if transport.Server.Address == NoAddress {
			r.resolveNameserverAddress(ctx, qc, local, sel, transport, auth, depth)
			continue
		}

		r.Sink.Emit(TraceEvent{Kind: TraceQuery, Depth: depth, Qname: qname, Qtype: qtype, Server: transport.Server})

		dest := transport.Server.Address.WithPort(53)
		timeout := time.Duration(transport.Timeout) * time.Microsecond

		start := WallClock.Now()
		reply, qerr := Query(ctx, r.Socket, qc, dest, qname, qtype, timeout, transport.TCP)
		elapsed := WallClock.Now().Sub(start).Microseconds()

		if qerr != nil {
			kind := KindOf(qerr)
			if kind == KindTooManyQueries {
				return ResolveResult{}, qerr
			}
			if kind == KindTimeout || kind == KindSocket {
				sel.OnError(transport, kind)
				sel.OnRTT(transport, elapsed)
				if kind == KindTimeout {
					sel.OnTimeout(transport)
				}
			} else {
				sel.OnError(transport, kind)
			}
			continue
		}

		sel.OnSuccess(transport)
		sel.OnRTT(transport, elapsed)

		result, newAuth, delegated, matched := r.interpretReply(reply, qname, qtype, auth, depth)
		if !matched {
			continue
		}
		if result.failNXDomain {
			return ResolveResult{}, newResolveError(KindNXDomain, qname, qtype, nil)
		}
		if len(result.res.Res) > 0 {
			return result.res, nil
		}
		if reply.AA {
			if result.cnameTarget != "" {
				sub, suberr := r.Resolve(ctx, qc, local, result.cnameTarget, qtype, RootName, depth+1)
				if suberr != nil {
					return ResolveResult{}, suberr
				}
				sub.Intermediate = append(append([]dns.RR{}, result.res.Intermediate...), sub.Intermediate...)
				return sub, nil
			}
			return ResolveResult{}, newResolveError(KindNoData, qname, qtype, nil)
		}
		if delegated {
			r.Sink.Emit(TraceEvent{Kind: TraceDelegation, Depth: depth, Qname: qname, To: newAuth})
			sub, suberr := r.Resolve(ctx, qc, local, qname, qtype, newAuth, depth+1)
			if suberr == nil && len(sub.Res) > 0 {
				return sub, nil
			}
		}
	}
}

var errMaxDepthExceeded = errors.New("tres: recursion depth exceeded")

type replyInterp struct {
	res          ResolveResult
	failNXDomain bool
	cnameTarget  Name
}

// resolveNameserverAddress implements §4.5 step 2: recursively resolve
// a NO_ADDRESS server's A/AAAA records and feed the outcome back into
// the cache and selection state.
func (r *Resolver) resolveNameserverAddress(ctx context.Context, qc *QueryCounter, local *LocalState, sel *Selection, transport Transport, auth Name, depth int) {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		subLocal := NewLocalState()
		sub, err := r.Resolve(ctx, qc, subLocal, transport.Server.Name, qtype, RootName, depth+1)
		if err != nil {
			if qtype == dns.TypeA {
				sel.OnError(transport, KindCantResolveA)
			} else {
				sel.OnError(transport, KindCantResolveAAAA)
			}
			continue
		}
		for _, rr := range sub.Res {
			addr := addressFromRR(rr)
			if addr != NoAddress {
				r.NSCache.Save(auth, transport.Server.Name, addr)
			}
		}
	}
}

func addressFromRR(rr dns.RR) Address {
	switch v := rr.(type) {
	case *dns.A:
		return NewAddress(v.A, 53)
	case *dns.AAAA:
		return NewAddress(v.AAAA, 53)
	default:
		return NoAddress
	}
}

// interpretReply implements §4.5's "Reply interpretation" section.
func (r *Resolver) interpretReply(reply *Reply, qname Name, qtype uint16, auth Name, depth int) (replyInterp, Name, bool, bool) {
	msg := reply.Msg
	if len(msg.Question) == 0 || !NewName(msg.Question[0].Name).Equal(qname) || msg.Question[0].Qtype != qtype {
		return replyInterp{}, "", false, false
	}

	if msg.Rcode == dns.RcodeNameError {
		return replyInterp{failNXDomain: true}, "", false, true
	}
	if msg.Rcode != dns.RcodeSuccess {
		return replyInterp{}, "", false, false
	}

	out := replyInterp{}
	var newAuth Name
	delegated := false
	nsNames := make(map[Name]struct{})

	if reply.AA {
		for _, rr := range msg.Answer {
			if NewName(rr.Header().Name).Equal(qname) {
				if rr.Header().Rrtype == qtype {
					out.res.Res = append(out.res.Res, rr)
				} else if cname, ok := rr.(*dns.CNAME); ok {
					out.res.Intermediate = append(out.res.Intermediate, rr)
					r.Sink.Emit(TraceEvent{Kind: TraceCName, Depth: depth, From: qname, To: NewName(cname.Target)})
					target := NewName(cname.Target)
					if target.IsSubdomainOf(auth) {
						for _, arr := range msg.Answer {
							if NewName(arr.Header().Name).Equal(target) && arr.Header().Rrtype == qtype {
								out.res.Res = append(out.res.Res, arr)
							}
						}
					}
					if len(out.res.Res) == 0 {
						out.cnameTarget = target
					}
				}
			}
		}
		r.Sink.Emit(TraceEvent{Kind: TraceAnswer, Depth: depth, Qname: qname, Qtype: qtype})
		return out, "", false, true
	}

	for _, rr := range msg.Ns {
		ns, ok := rr.(*dns.NS)
		if !ok {
			continue
		}
		zone := NewName(rr.Header().Name)
		if !qname.IsSubdomainOf(zone) {
			continue
		}
		nsName := NewName(ns.Ns)
		r.NSCache.Save(zone, nsName, NoAddress)
		nsNames[nsName] = struct{}{}
		newAuth = zone
		delegated = true
	}

	for _, rr := range msg.Extra {
		owner := NewName(rr.Header().Name)
		if _, ok := nsNames[owner]; !ok {
			continue
		}
		if !owner.IsSubdomainOf(auth) {
			continue
		}
		if addr := addressFromRR(rr); addr != NoAddress {
			r.NSCache.Save(newAuth, owner, addr)
		}
	}

	return out, newAuth, delegated, true
}
