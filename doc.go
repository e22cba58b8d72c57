/*
Package main implements tres, a teachable recursive DNS resolver.

tres walks the DNS hierarchy from the root down to an authoritative
server, following delegations and CNAME chains, and returns the
resulting records. It does not validate DNSSEC, cache answers, or
retry a server after a timeout; the only state kept across queries is
nameserver identity/address and per-server RTT/timeout estimates.

Usage:

	tres resolve NAME TYPE IP4_SRC IP6_SRC HINTS_FILE
	tres serve LISTEN_IP:PORT IP4_SRC IP6_SRC HINTS_FILE

Configuration is read from tres.toml in the working directory,
generating a default one on first run.
*/
package main
