// Package common contains shared constants and sentinel errors used across
// GophSync components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// Field names every synchronised entity carries.
const (
	FieldID        = "id"
	FieldAccountID = "accountId"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
	FieldDeleted   = "deleted"
)
