package pool

import (
	"fmt"

	"github.com/xiaolou86/ckb/util"
)

// RejectCode names a kind in the pool's single rejection enum (spec.md 7).
// The iota block follows the shape of the teacher's PoolRemovalReason
// (holys-copernicus/mempool/txmempool.go), generalized from "why a tx left
// the mempool" to the full admission+removal taxonomy the pool needs.
type RejectCode int

const (
	// RejectDuplicated: entry or status transition already present.
	RejectDuplicated RejectCode = iota
	// RejectMalformed: unknown short_id or invalid request.
	RejectMalformed
	// RejectResolve: input/dep resolution failure from the overlay.
	RejectResolve
	// RejectExpiry: entry exceeded expiry.
	RejectExpiry
	// RejectFull: evicted by size pressure.
	RejectFull
	// RejectRBF: rejected by one of the RBF rules.
	RejectRBF
	// RejectExceededMaxAncestors: admission would violate the ancestor bound.
	RejectExceededMaxAncestors
)

func (c RejectCode) String() string {
	switch c {
	case RejectDuplicated:
		return "Duplicated"
	case RejectMalformed:
		return "Malformed"
	case RejectResolve:
		return "Resolve"
	case RejectExpiry:
		return "Expiry"
	case RejectFull:
		return "Full"
	case RejectRBF:
		return "RBFRejected"
	case RejectExceededMaxAncestors:
		return "ExceededMaximumAncestorsCount"
	default:
		return "Unknown"
	}
}

// Reject is the pool's single error type (spec.md 7), carrying whatever
// context each kind needs.
type Reject struct {
	Code      RejectCode
	Hash      util.Hash
	Timestamp int64
	Reason    string
	Err       error
}

func (r *Reject) Error() string {
	switch r.Code {
	case RejectDuplicated:
		return fmt.Sprintf("Duplicated(%s)", r.Hash)
	case RejectMalformed:
		return fmt.Sprintf("Malformed(%s)", r.Reason)
	case RejectResolve:
		if r.Err != nil {
			return fmt.Sprintf("Resolve(%s)", r.Err.Error())
		}
		return "Resolve"
	case RejectExpiry:
		return fmt.Sprintf("Expiry(%d)", r.Timestamp)
	case RejectFull:
		return fmt.Sprintf("Full(%s)", r.Reason)
	case RejectRBF:
		return fmt.Sprintf("RBFRejected(%s)", r.Reason)
	case RejectExceededMaxAncestors:
		return "ExceededMaximumAncestorsCount"
	default:
		return "Reject(unknown)"
	}
}

func (r *Reject) Unwrap() error { return r.Err }

func errDuplicated(hash util.Hash) *Reject {
	return &Reject{Code: RejectDuplicated, Hash: hash}
}

func errMalformed(reason string) *Reject {
	return &Reject{Code: RejectMalformed, Reason: reason}
}

func errResolve(err error) *Reject {
	return &Reject{Code: RejectResolve, Err: err}
}

func errExpiry(ts int64) *Reject {
	return &Reject{Code: RejectExpiry, Timestamp: ts}
}

func errFull(reason string) *Reject {
	return &Reject{Code: RejectFull, Reason: reason}
}

func errRBFRejected(reason string) *Reject {
	return &Reject{Code: RejectRBF, Reason: reason}
}

func errExceededMaxAncestors() *Reject {
	return &Reject{Code: RejectExceededMaxAncestors}
}
