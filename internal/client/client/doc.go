// Package client talks to the GophSync backend over gRPC.
//
// GRPCClient manages the connection, attaches the access token to every
// call, refreshes it transparently when the server reports it expired and
// maps gRPC status codes to the errors the sync engine understands:
// Unavailable and DeadlineExceeded become ErrUnavailable (retried),
// InvalidArgument, NotFound and FailedPrecondition on a mutation become
// *common.ValidationError (not retried).
//
// Remote returns the remote.Remote of one model, which is what the sync
// engine is configured with.
package client
