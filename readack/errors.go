package readack

import "errors"

// ErrBadSignature is returned by Batcher.Add for an ack whose signature
// does not verify.
var ErrBadSignature = errors.New("readack: signature verification failed")
