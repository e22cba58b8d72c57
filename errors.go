package main

import "errors"

// Kind is the closed error taxonomy from spec.md §7. The wire executor
// and selection policy classify every failure into one of these instead
// of returning ad hoc errors, so the resolution engine can match on kind
// rather than string-sniffing.
type Kind int

const (
	// KindNone means no error occurred.
	KindNone Kind = iota
	// KindNXDomain is an authoritative denial of existence.
	KindNXDomain
	// KindNoData means the name exists but has no records of the asked type.
	KindNoData
	// KindTooManyQueries is the per-resolution query ceiling being hit.
	KindTooManyQueries
	// KindSelectionExhausted means no viable server remains at the current zonecut.
	KindSelectionExhausted
	// KindSocket is a transport-layer failure (dial/send/receive error).
	KindSocket
	// KindTimeout is a wire-executor deadline expiry.
	KindTimeout
	// KindTruncated is a UDP reply with the TC bit set.
	KindTruncated
	// KindFormError is an RCODE=FORMERR reply.
	KindFormError
	// KindInvalidAnswer covers parse errors, ID mismatch, and QR-not-set replies.
	KindInvalidAnswer
	// KindCantResolveA means sub-resolution of a nameserver's A record failed.
	KindCantResolveA
	// KindCantResolveAAAA means sub-resolution of a nameserver's AAAA record failed.
	KindCantResolveAAAA
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNXDomain:
		return "nxdomain"
	case KindNoData:
		return "nodata"
	case KindTooManyQueries:
		return "too_many_queries"
	case KindSelectionExhausted:
		return "selection_exhausted"
	case KindSocket:
		return "socket"
	case KindTimeout:
		return "timeout"
	case KindTruncated:
		return "truncated"
	case KindFormError:
		return "formerror"
	case KindInvalidAnswer:
		return "invalid_answer"
	case KindCantResolveA:
		return "cant_resolve_a"
	case KindCantResolveAAAA:
		return "cant_resolve_aaaa"
	default:
		return "unknown"
	}
}

// ResolveError wraps a Kind with the question it occurred for.
type ResolveError struct {
	Kind  Kind
	Qname Name
	Qtype uint16
	Cause error
}

func (e *ResolveError) Error() string {
	msg := "tres: " + e.Kind.String() + ": " + e.Qname.String()
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ResolveError) Unwrap() error { return e.Cause }

func newResolveError(kind Kind, qname Name, qtype uint16, cause error) *ResolveError {
	return &ResolveError{Kind: kind, Qname: qname, Qtype: qtype, Cause: cause}
}

// KindOf extracts the Kind carried by err, or KindNone if err does not
// wrap a *ResolveError.
func KindOf(err error) Kind {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindNone
}

var errNoCandidates = errors.New("tres: no candidate servers remain at this zonecut")
