package main

import (
	"context"
	"fmt"
	"os"

	"github.com/miekg/dns"
	"github.com/semihalev/log"
	"github.com/spf13/cobra"
)

// newRootCmd builds the tres CLI surface of spec.md §6: a "resolve"
// one-shot subcommand and a "serve" server subcommand, both taking the
// same positional (IP4_SRC, IP6_SRC, HINTS_FILE) triple.
func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "tres",
		Short: "A teachable recursive DNS resolver",
	}

	root.AddCommand(newResolveCmd(), newServeCmd())
	return root
}

func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve NAME TYPE IP4_SRC IP6_SRC HINTS_FILE",
		Short: "Resolve one name and exit",
		Args:  cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			name, typ, ip4src, ip6src, hintsFile := args[0], args[1], args[2], args[3], args[4]

			qtype, ok := dns.StringToType[typ]
			if !ok {
				return fmt.Errorf("unknown query type %q", typ)
			}

			resolver, err := buildResolver(ip4src, ip6src, hintsFile)
			if err != nil {
				return err
			}

			qname := NewName(name)
			qc := NewQueryCounter(resolver.Config.MaxQueries, qname, qtype)
			result, err := resolver.Resolve(context.Background(), qc, NewLocalState(), qname, qtype, RootName, 0)

			switch KindOf(err) {
			case KindNone:
				for _, rr := range result.Res {
					fmt.Println(rr.String())
				}
				return nil
			case KindNoData, KindSelectionExhausted:
				return nil
			case KindNXDomain:
				fmt.Fprintln(os.Stderr, "NXDOMAIN")
				os.Exit(1)
			default:
				if err != nil {
					fmt.Fprintln(os.Stderr, err.Error())
				}
				os.Exit(1)
			}
			return nil
		},
	}
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve LISTEN_IP:PORT IP4_SRC IP6_SRC HINTS_FILE",
		Short: "Run the recursive resolver as a UDP/TCP server",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			listen, ip4src, ip6src, hintsFile := args[0], args[1], args[2], args[3]

			resolver, err := buildResolver(ip4src, ip6src, hintsFile)
			if err != nil {
				return err
			}

			limiter := NewClientRateLimiter(Config.RateLimit)
			accessList, err := NewAccessList(Config.AccessList)
			if err != nil {
				return err
			}

			handler := NewHandler(resolver, limiter, accessList)
			listener := NewListener(listen, handler)
			listener.Run()

			log.Info("tres serving", "addr", listen)
			select {}
		},
	}
}

func buildResolver(ip4src, ip6src, hintsFile string) (*Resolver, error) {
	f, err := os.Open(hintsFile)
	if err != nil {
		return nil, fmt.Errorf("opening hints file: %w", err)
	}
	defer f.Close()

	hints, err := LoadRootHints(f)
	if err != nil {
		return nil, fmt.Errorf("parsing hints file: %w", err)
	}

	nscache := NewNSCache()
	Prime(nscache, hints)

	global := NewGlobalServerState()
	socket := NewNetSocket(ip4src, ip6src)

	cfg := EngineConfig{MaxQueries: Config.MaxQueries, MaxDepth: Config.MaxDepth}
	if cfg.MaxQueries == 0 {
		cfg.MaxQueries = 100
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 30
	}

	return NewResolver(nscache, global, socket, NopSink{}, cfg), nil
}
