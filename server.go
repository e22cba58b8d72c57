package main

import (
	"time"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
)

// Listener is the UDP/TCP listener front-end, adapted from the teacher's
// server.go and trimmed of the DoT/DoH listeners (out of scope here).
type Listener struct {
	host     string
	handler  *Handler
	rTimeout time.Duration
	wTimeout time.Duration
}

// NewListener returns a Listener listening on host and dispatching to handler.
func NewListener(host string, handler *Handler) *Listener {
	return &Listener{
		host:     host,
		handler:  handler,
		rTimeout: 5 * time.Second,
		wTimeout: 5 * time.Second,
	}
}

// Run starts the UDP and TCP listeners, each in its own goroutine.
func (s *Listener) Run() {
	tcpMux := dns.NewServeMux()
	tcpMux.HandleFunc(".", s.handler.TCP)

	udpMux := dns.NewServeMux()
	udpMux.HandleFunc(".", s.handler.UDP)

	tcpServer := &dns.Server{
		Addr:         s.host,
		Net:          "tcp",
		Handler:      tcpMux,
		ReadTimeout:  s.rTimeout,
		WriteTimeout: s.wTimeout,
	}

	udpServer := &dns.Server{
		Addr:         s.host,
		Net:          "udp",
		Handler:      udpMux,
		UDPSize:      dns.DefaultMsgSize,
		ReadTimeout:  s.rTimeout,
		WriteTimeout: s.wTimeout,
	}

	go s.start(udpServer)
	go s.start(tcpServer)
}

func (s *Listener) start(ds *dns.Server) {
	log.Info("DNS server listening...", "net", ds.Net, "addr", ds.Addr)

	if err := ds.ListenAndServe(); err != nil {
		log.Crit("DNS listener failed", "net", ds.Net, "addr", ds.Addr, "error", err.Error())
	}
}
