package main

import (
	"fmt"
	"io"
)

// TraceEventKind is one of the four event kinds the engine emits,
// per spec.md §6.
type TraceEventKind int

const (
	TraceQuery TraceEventKind = iota
	TraceAnswer
	TraceCName
	TraceDelegation
)

func (k TraceEventKind) String() string {
	switch k {
	case TraceQuery:
		return "query"
	case TraceAnswer:
		return "answer"
	case TraceCName:
		return "cname"
	case TraceDelegation:
		return "delegation"
	default:
		return "unknown"
	}
}

// TraceEvent is one emission from the resolution engine. Query events
// carry Qname, Qtype and Server; answer events carry Qname and Qtype;
// cname events carry From and To; delegation events carry Qname and To
// (the new zonecut).
type TraceEvent struct {
	Kind   TraceEventKind
	Depth  int
	Qname  Name
	Qtype  uint16
	Server Server
	From   Name
	To     Name
}

// Sink is the opaque trace collaborator the engine accepts, per
// spec.md §6. The engine treats both the text and DOT sinks uniformly
// through this interface.
type Sink interface {
	Emit(TraceEvent)
}

// NopSink discards every event; it is the default when no tracing is
// requested.
type NopSink struct{}

func (NopSink) Emit(TraceEvent) {}

// LogSink writes one line per event to w, in the teacher's plain
// key=value log style.
type LogSink struct {
	w io.Writer
}

// NewLogSink returns a LogSink writing to w.
func NewLogSink(w io.Writer) *LogSink {
	return &LogSink{w: w}
}

func (s *LogSink) Emit(e TraceEvent) {
	switch e.Kind {
	case TraceQuery:
		fmt.Fprintf(s.w, "depth=%d kind=query qname=%s qtype=%d server=%s addr=%s\n",
			e.Depth, e.Qname, e.Qtype, e.Server.Name, e.Server.Address)
	case TraceAnswer:
		fmt.Fprintf(s.w, "depth=%d kind=answer qname=%s qtype=%d server=%s\n",
			e.Depth, e.Qname, e.Qtype, e.Server.Name)
	case TraceCName:
		fmt.Fprintf(s.w, "depth=%d kind=cname from=%s to=%s\n", e.Depth, e.From, e.To)
	case TraceDelegation:
		fmt.Fprintf(s.w, "depth=%d kind=delegation zone=%s\n", e.Depth, e.To)
	}
}

// DOTSink accumulates events and renders them as a Graphviz DOT graph
// on Close: one node per zonecut/name involved, one edge per query,
// delegation or cname event. Answer events are not drawn.
type DOTSink struct {
	w     io.Writer
	edges []dotEdge
}

type dotEdge struct {
	from, to, label string
}

// NewDOTSink returns a DOTSink that will render its accumulated graph
// to w when Close is called.
func NewDOTSink(w io.Writer) *DOTSink {
	return &DOTSink{w: w}
}

func (s *DOTSink) Emit(e TraceEvent) {
	switch e.Kind {
	case TraceCName:
		s.edges = append(s.edges, dotEdge{from: e.From.String(), to: e.To.String(), label: "cname"})
	case TraceDelegation:
		s.edges = append(s.edges, dotEdge{from: e.Qname.String(), to: e.To.String(), label: "delegation"})
	case TraceQuery:
		s.edges = append(s.edges, dotEdge{from: e.Qname.String(), to: e.Server.Name.String(), label: "query"})
	}
}

// Close renders the accumulated graph. It is the caller's
// responsibility to call this once tracing for a resolution is
// complete.
func (s *DOTSink) Close() error {
	fmt.Fprintln(s.w, "digraph tres {")
	for _, edge := range s.edges {
		fmt.Fprintf(s.w, "  %q -> %q [label=%q];\n", edge.from, edge.to, edge.label)
	}
	fmt.Fprintln(s.w, "}")
	return nil
}
