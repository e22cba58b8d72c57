package main

import (
	"context"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
)

// fixtureSocket is a fake Socket that replies with a canned *dns.Msg
// built from the request it receives, so wire_test never touches a
// real network.
type fixtureSocket struct {
	build   func(req *dns.Msg) *dns.Msg
	timeout bool
}

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return true }

func (f fixtureSocket) exchange(payload []byte) ([]byte, error) {
	if f.timeout {
		return nil, fakeTimeoutErr{}
	}
	req := new(dns.Msg)
	if err := req.Unpack(payload); err != nil {
		return nil, err
	}
	resp := f.build(req)
	return resp.Pack()
}

func (f fixtureSocket) ExchangeUDP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error) {
	return f.exchange(payload)
}

func (f fixtureSocket) ExchangeTCP(ctx context.Context, addr Address, localPort int, payload []byte, timeout time.Duration) ([]byte, error) {
	return f.exchange(payload)
}

func Test_QueryClassifiesSuccess(t *testing.T) {
	sock := fixtureSocket{build: func(req *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetReply(req)
		resp.Authoritative = true
		rr, _ := dns.NewRR("example.com. 300 IN A 93.184.216.34")
		resp.Answer = append(resp.Answer, rr)
		return resp
	}}

	qc := NewQueryCounter(100, NewName("example.com"), dns.TypeA)
	reply, err := Query(context.Background(), sock, qc, Address("198.41.0.4:53"), NewName("example.com"), dns.TypeA, time.Second, false)
	assert.NoError(t, err)
	assert.True(t, reply.AA)
	assert.Len(t, reply.Msg.Answer, 1)
}

func Test_QueryClassifiesTruncated(t *testing.T) {
	sock := fixtureSocket{build: func(req *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetReply(req)
		resp.Truncated = true
		return resp
	}}

	qc := NewQueryCounter(100, NewName("example.com"), dns.TypeA)
	_, err := Query(context.Background(), sock, qc, Address("198.41.0.4:53"), NewName("example.com"), dns.TypeA, time.Second, false)
	assert.Equal(t, KindTruncated, KindOf(err))
}

func Test_QueryClassifiesFormError(t *testing.T) {
	sock := fixtureSocket{build: func(req *dns.Msg) *dns.Msg {
		resp := new(dns.Msg)
		resp.SetRcode(req, dns.RcodeFormatError)
		return resp
	}}

	qc := NewQueryCounter(100, NewName("example.com"), dns.TypeA)
	_, err := Query(context.Background(), sock, qc, Address("198.41.0.4:53"), NewName("example.com"), dns.TypeA, time.Second, false)
	assert.Equal(t, KindFormError, KindOf(err))
}

func Test_QueryClassifiesTimeout(t *testing.T) {
	sock := fixtureSocket{timeout: true}

	qc := NewQueryCounter(100, NewName("example.com"), dns.TypeA)
	_, err := Query(context.Background(), sock, qc, Address("198.41.0.4:53"), NewName("example.com"), dns.TypeA, time.Millisecond, false)
	assert.Equal(t, KindTimeout, KindOf(err))
}

func Test_QueryCounterTooManyQueries(t *testing.T) {
	qc := NewQueryCounter(2, NewName("example.com"), dns.TypeA)
	assert.NoError(t, qc.Increment())
	assert.NoError(t, qc.Increment())
	err := qc.Increment()
	assert.Equal(t, KindTooManyQueries, KindOf(err))
}

func Test_NextPortStaysInEphemeralRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		port := nextPort(Address("198.41.0.4:53"))
		assert.GreaterOrEqual(t, port, 1024)
		assert.Less(t, port, 65535)
	}
}
