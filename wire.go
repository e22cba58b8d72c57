package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/rand"
	"net"
	"sync/atomic"
	"time"

	"github.com/miekg/dns"
)

// EDNS buffer size advertised on every outgoing query, with DNSSEC OK
// left false (DNSSEC validation is out of scope).
const ednsBufferSize = 1500

// Reply is the parsed, classified result of one wire-level query.
type Reply struct {
	Msg *dns.Msg
	AA  bool
}

// Socket is the blocking send/receive collaborator the wire executor
// consumes, named in spec.md §6. netSocket (see NewNetSocket), built on
// the net package, is the production implementation; tests supply a fixture.
type Socket interface {
	// ExchangeUDP sends payload to addr from a socket bound to
	// localPort and waits up to timeout for one reply datagram.
	ExchangeUDP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error)
	// ExchangeTCP connects to addr from localPort, writes the
	// length-prefixed payload, and reads one length-prefixed reply.
	ExchangeTCP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error)
}

// netSocket is the production Socket, implemented directly over the
// net package. IP4Src/IP6Src, if non-empty, pin the outbound source
// address for the matching address family (the CLI's IP4_SRC/IP6_SRC
// arguments); the per-call port still comes from the port counter.
type netSocket struct {
	IP4Src string
	IP6Src string
}

// NewNetSocket returns the real-network Socket implementation, binding
// outbound queries to ip4src/ip6src when given (empty strings mean the
// wildcard address for that family).
func NewNetSocket(ip4src, ip6src string) Socket { return netSocket{IP4Src: ip4src, IP6Src: ip6src} }

func (s netSocket) localIP(addr Address) net.IP {
	ip := net.ParseIP(addr.Host())
	if ip != nil && ip.To4() != nil && s.IP4Src != "" {
		return net.ParseIP(s.IP4Src)
	}
	if ip != nil && ip.To4() == nil && s.IP6Src != "" {
		return net.ParseIP(s.IP6Src)
	}
	return nil
}

func (s netSocket) ExchangeUDP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error) {
	raddr, err := net.ResolveUDPAddr("udp", string(addr))
	if err != nil {
		return nil, err
	}
	laddr := &net.UDPAddr{IP: s.localIP(addr), Port: localPort}

	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	deadline := time.Now().Add(timeout)
	conn.SetDeadline(deadline)

	if _, err := conn.Write(payload); err != nil {
		return nil, err
	}

	buf := make([]byte, dns.MaxMsgSize)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (s netSocket) ExchangeTCP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error) {
	laddr := &net.TCPAddr{IP: s.localIP(addr), Port: localPort}
	dialer := net.Dialer{LocalAddr: laddr, Timeout: timeout}

	conn, err := dialer.DialContext(ctx, "tcp", string(addr))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	conn.SetDeadline(time.Now().Add(timeout))

	var lenPrefix [2]byte
	binary.BigEndian.PutUint16(lenPrefix[:], uint16(len(payload)))
	if _, err := conn.Write(append(lenPrefix[:], payload...)); err != nil {
		return nil, err
	}

	var respLen [2]byte
	if _, err := readFull(conn, respLen[:]); err != nil {
		return nil, err
	}
	body := make([]byte, binary.BigEndian.Uint16(respLen[:]))
	if _, err := readFull(conn, body); err != nil {
		return nil, err
	}
	return body, nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// portCounters implement the two process-wide, per-address-family
// source-port counters from spec.md §5: deliberately weak
// randomization-via-binding preserved from the source, not a substitute
// for a real PRNG.
var (
	portCounter4 uint32 = uint32(1024 + rand.Intn(65535-1024))
	portCounter6 uint32 = uint32(1024 + rand.Intn(65535-1024))
)

func nextPort(addr Address) int {
	host := addr.Host()
	ip := net.ParseIP(host)
	var ctr *uint32
	if ip != nil && ip.To4() != nil {
		ctr = &portCounter4
	} else {
		ctr = &portCounter6
	}
	v := atomic.AddUint32(ctr, 1)
	return int(1024 + v%(65535-1024))
}

// Query is the single-attempt wire-level executor of spec.md §4.4. It
// is a pure function of its arguments plus the shared query counter
// qc: bind a fresh ephemeral port, build a request with RD=false and a
// random ID, send once over UDP (or TCP if tcp is true), and classify
// the reply.
func Query(ctx context.Context, sock Socket, qc *QueryCounter, addr Address, qname Name, qtype uint16, timeout time.Duration, tcp bool) (*Reply, error) {
	if err := qc.Increment(); err != nil {
		return nil, err
	}

	req := new(dns.Msg)
	req.Id = dns.Id()
	req.RecursionDesired = false
	req.SetQuestion(qname.String(), qtype)
	req.SetEdns0(ednsBufferSize, false)

	payload, err := req.Pack()
	if err != nil {
		return nil, newResolveError(KindInvalidAnswer, qname, qtype, err)
	}

	port := nextPort(addr)
	dest := addr.WithPort(53)

	var raw []byte
	if tcp {
		raw, err = sock.ExchangeTCP(ctx, dest, port, payload, timeout)
	} else {
		raw, err = sock.ExchangeUDP(ctx, dest, port, payload, timeout)
	}
	if err != nil {
		if isTimeout(err) {
			return nil, newResolveError(KindTimeout, qname, qtype, err)
		}
		return nil, newResolveError(KindSocket, qname, qtype, err)
	}

	resp := new(dns.Msg)
	if err := resp.Unpack(raw); err != nil {
		return nil, newResolveError(KindInvalidAnswer, qname, qtype, err)
	}
	if resp.Id != req.Id {
		return nil, newResolveError(KindInvalidAnswer, qname, qtype, fmt.Errorf("id mismatch"))
	}
	if !resp.Response {
		return nil, newResolveError(KindInvalidAnswer, qname, qtype, fmt.Errorf("qr bit not set"))
	}
	if resp.Rcode == dns.RcodeFormatError {
		return nil, newResolveError(KindFormError, qname, qtype, nil)
	}
	if resp.Truncated {
		return nil, newResolveError(KindTruncated, qname, qtype, nil)
	}

	return &Reply{Msg: resp, AA: resp.Authoritative}, nil
}

func isTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	te, ok := err.(timeouter)
	return ok && te.Timeout()
}

// QueryCounter enforces the per-resolution query ceiling of spec.md
// §4.4 (default 100). It is not safe for concurrent use across
// resolutions; each resolution owns its own instance.
type QueryCounter struct {
	count   int
	ceiling int
	qname   Name
	qtype   uint16
}

// NewQueryCounter returns a counter with the given ceiling, reporting
// TooManyQueries against (qname, qtype) once exceeded.
func NewQueryCounter(ceiling int, qname Name, qtype uint16) *QueryCounter {
	return &QueryCounter{ceiling: ceiling, qname: qname, qtype: qtype}
}

// Increment advances the counter, returning a *ResolveError of kind
// KindTooManyQueries once the ceiling is exceeded.
func (qc *QueryCounter) Increment() error {
	qc.count++
	if qc.count > qc.ceiling {
		return newResolveError(KindTooManyQueries, qc.qname, qc.qtype, nil)
	}
	return nil
}
