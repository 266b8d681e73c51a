// Package common contains shared constants and sentinel errors used across
// whattodo components.
package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// CacheVersion names the current generation of the routing layer's
// response cache. Entries stored under any other name are dropped on activation.
const CacheVersion = "whattodo-v1"

// ExportVersion is written into every data export document.
const ExportVersion = "1.0"
