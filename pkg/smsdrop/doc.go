// Package smsdrop is a client for the smsdrop.net SMS campaign API.
//
// A Client authenticates with an account email and password, caches the
// bearer token in a tokenstore.Store, and exposes profile, subscription,
// single-message and campaign operations. Every authenticated call that is
// rejected with 401 clears the cached token, logs in again and is retried
// exactly once.
//
// Launch and Refresh update the *Campaign they are given in place. This is
// part of their contract: the caller keeps one Campaign value for the whole
// lifecycle and observes server-assigned fields (ID, Status, counters) on it.
//
// Errors can be matched with errors.Is against ErrValidation, ErrAuth,
// ErrAuthExpired, ErrNotFound, ErrRemote, ErrTransport and
// ErrInsufficientCredits, or unpacked with errors.As into the typed errors
// that carry the server payload.
package smsdrop
