// Package jwt encodes and decodes HMAC-signed session tokens.
//
// A Manager owns one signing secret and one algorithm. Decode rejects any
// token whose header names a different algorithm before the signature is
// considered, then recomputes the signature over the raw segments, and only
// then interprets claims against the injected clock. Callers map the three
// sentinel errors (ErrMalformed, ErrBadSignature, ErrExpired) to their own
// taxonomy.
//
// # What this package must NOT do
//
// It must not consult revocation state or any other storage. Whether a
// well-formed, unexpired token is still honored is decided by the caller.
package jwt
