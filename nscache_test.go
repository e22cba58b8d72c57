package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_NSCacheSaveLookup(t *testing.T) {
	c := NewNSCache()

	c.Save(RootName, NewName("a.gtld-servers.net"), Address("192.5.6.30:53"))
	servers := c.Lookup(RootName)
	assert.Len(t, servers, 1)
	assert.Equal(t, NewName("a.gtld-servers.net"), servers[0].Name)
	assert.Equal(t, Address("192.5.6.30:53"), servers[0].Address)
}

func Test_NSCacheUnresolvedNameStillReturned(t *testing.T) {
	c := NewNSCache()

	c.Save(RootName, NewName("ns1.example.net"), NoAddress)
	servers := c.Lookup(RootName)
	assert.Len(t, servers, 1)
	assert.Equal(t, NoAddress, servers[0].Address)
	assert.False(t, c.IsResolved(NewName("ns1.example.net")))

	c.Save(RootName, NewName("ns1.example.net"), Address("1.2.3.4:53"))
	assert.True(t, c.IsResolved(NewName("ns1.example.net")))

	servers = c.Lookup(RootName)
	assert.Len(t, servers, 1)
	assert.Equal(t, Address("1.2.3.4:53"), servers[0].Address)
}

func Test_NSCacheAbsentZoneReturnsEmpty(t *testing.T) {
	c := NewNSCache()
	assert.Empty(t, c.Lookup(NewName("nowhere.test")))
}

func Test_NSCacheMonotonicAccumulation(t *testing.T) {
	c := NewNSCache()

	c.Save(NewName("example.com"), NewName("ns1.example.com"), Address("10.0.0.1:53"))
	before := len(c.Lookup(NewName("example.com")))

	c.Save(NewName("example.com"), NewName("ns2.example.com"), Address("10.0.0.2:53"))
	after := len(c.Lookup(NewName("example.com")))

	assert.Greater(t, after, before)
}
