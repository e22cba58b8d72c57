package main

import (
	"context"
	"net"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
)

// Handler dispatches each inbound query to a fresh resolution, per
// spec.md §5: one goroutine per query, a fresh LocalState and
// QueryCounter, sharing the process-wide nscache and global state via
// resolver.
type Handler struct {
	resolver   *Resolver
	queue      *LQueue
	limiter    *ClientRateLimiter
	accessList *AccessList
}

// NewHandler wires a Handler around resolver.
func NewHandler(resolver *Resolver, limiter *ClientRateLimiter, accessList *AccessList) *Handler {
	return &Handler{
		resolver:   resolver,
		queue:      NewLookupQueue(),
		limiter:    limiter,
		accessList: accessList,
	}
}

// TCP begins a TCP query in its own goroutine.
func (h *Handler) TCP(w dns.ResponseWriter, req *dns.Msg) {
	go h.do(w, req)
}

// UDP begins a UDP query in its own goroutine.
func (h *Handler) UDP(w dns.ResponseWriter, req *dns.Msg) {
	go h.do(w, req)
}

func (h *Handler) do(w dns.ResponseWriter, req *dns.Msg) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Recovered from panic in query handler", "panic", r)
		}
	}()

	if len(req.Question) != 1 {
		h.fail(w, req, dns.RcodeFormatError)
		return
	}
	q := req.Question[0]

	remote, _, _ := net.SplitHostPort(w.RemoteAddr().String())
	clientIP := net.ParseIP(remote)
	if clientIP != nil {
		if !h.checkAccess(clientIP) {
			h.fail(w, req, dns.RcodeRefused)
			return
		}
		if !h.limiter.Allow(clientIP.String()) {
			log.Warn("Query rate limited", "client", clientIP.String())
			h.fail(w, req, dns.RcodeRefused)
			return
		}
	}

	qname := NewName(q.Name)
	key := QuestionKey(qname, q.Qtype)

	if cond := h.queue.Get(key); cond != nil {
		cond.L.Lock()
		cond.Wait()
		cond.L.Unlock()
	}

	h.queue.Set(key)
	defer h.queue.Remove(key)

	qc := NewQueryCounter(h.resolver.Config.MaxQueries, qname, q.Qtype)
	local := NewLocalState()

	start := WallClock.Now()
	result, err := h.resolver.Resolve(context.Background(), qc, local, qname, q.Qtype, RootName, 0)
	ResolveSeconds.Observe(WallClock.Now().Sub(start).Seconds())

	resp := new(dns.Msg)
	resp.SetReply(req)

	switch KindOf(err) {
	case KindNone:
		resp.Answer = result.Res
		resp.Rcode = dns.RcodeSuccess
	case KindNoData, KindSelectionExhausted:
		resp.Rcode = dns.RcodeSuccess
	case KindNXDomain:
		resp.Rcode = dns.RcodeNameError
	default:
		if err != nil {
			log.Debug("Resolution failed", "qname", qname.String(), "qtype", dns.TypeToString[q.Qtype], "error", err.Error())
		}
		resp.Rcode = dns.RcodeServerFailure
	}

	ObserveQuery(q.Qtype, resp.Rcode)
	h.writeReply(w, resp)
}

func (h *Handler) checkAccess(ip net.IP) bool {
	if h.accessList == nil {
		return true
	}
	return h.accessList.Allowed(ip)
}

func (h *Handler) fail(w dns.ResponseWriter, req *dns.Msg, rcode int) {
	m := new(dns.Msg)
	m.SetRcode(req, rcode)
	h.writeReply(w, m)
}

func (h *Handler) writeReply(w dns.ResponseWriter, m *dns.Msg) {
	if err := w.WriteMsg(m); err != nil {
		log.Error("Writing reply failed", "error", err.Error())
	}
}
