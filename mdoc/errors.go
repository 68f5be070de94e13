package mdoc

import (
	"fmt"

	"github.com/kokukuma/mdoc-rssp/pkg/signererr"
)

// Reason is the category of a rejected document. Signature and Integrity
// mark a document that may have been tampered with.
type Reason int

const (
	ReasonDefault Reason = iota
	ReasonSignature
	ReasonIntegrity
)

func (r Reason) String() string {
	switch r {
	case ReasonSignature:
		return "signature"
	case ReasonIntegrity:
		return "integrity"
	default:
		return "default"
	}
}

// Rejection is the only error Verifier.Verify returns.
type Rejection struct {
	Reason Reason
	Err    *signererr.Error
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("document rejected (%s): %v", r.Reason, r.Err)
}

func (r *Rejection) Unwrap() error {
	return r.Err
}

func (r *Rejection) Code() signererr.Code {
	return r.Err.Code
}

func reject(reason Reason, code signererr.Code, err error, format string, args ...interface{}) *Rejection {
	return &Rejection{
		Reason: reason,
		Err:    signererr.Wrap(err, code, fmt.Sprintf(format, args...)),
	}
}
