// Package identity maps inbound request attributes to the stable keys under
// which request counts are tracked.
//
// Two strategies are provided:
//
//   - Address: a sha256 digest of the normalized source address. Anonymous
//     clients are tracked per network address.
//   - Credential: an API-key style credential combined with the source
//     address, so the same key used from two machines accumulates two
//     independent windows.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

// Identity is the opaque key under which an actor's requests are counted.
// Equal actors always resolve to the same Identity within a window.
type Identity string

// Attributes carries the transport-level facts a resolver may consult.
// The transport adapter fills it in; resolvers never touch the request itself.
type Attributes struct {
	// RemoteAddr is the client's source address, with or without a port.
	RemoteAddr string
	// Credential is the presented API key, empty if none was sent.
	Credential string
}

// Resolver turns request attributes into an Identity, or fails with a
// ResolutionError describing what the caller must fix.
type Resolver interface {
	Resolve(attrs Attributes) (Identity, error)
}

// AddressResolver derives identities from the source address alone.
type AddressResolver struct{}

// NewAddressResolver creates a resolver that hashes the source address.
func NewAddressResolver() *AddressResolver {
	return &AddressResolver{}
}

// Resolve hashes the normalized source address. It fails only when the
// request carries no address at all, which a well-formed transport never
// produces.
func (r *AddressResolver) Resolve(attrs Attributes) (Identity, error) {
	host := normalizeAddr(attrs.RemoteAddr)
	if host == "" {
		return "", &ResolutionError{
			Reason:  ReasonMissingAddress,
			Message: "request has no source address",
		}
	}
	sum := sha256.Sum256([]byte(host))
	return Identity(hex.EncodeToString(sum[:])), nil
}

// CredentialResolver derives identities from a presented credential plus the
// source address. The credential must belong to the configured known set.
type CredentialResolver struct {
	known map[string]struct{}
}

// NewCredentialResolver creates a resolver accepting the given credentials.
// The set is copied; later mutation of the argument has no effect.
func NewCredentialResolver(credentials []string) *CredentialResolver {
	known := make(map[string]struct{}, len(credentials))
	for _, c := range credentials {
		c = strings.TrimSpace(c)
		if c != "" {
			known[c] = struct{}{}
		}
	}
	return &CredentialResolver{known: known}
}

// Knows reports whether the credential is in the configured set.
func (r *CredentialResolver) Knows(credential string) bool {
	_, ok := r.known[credential]
	return ok
}

// Resolve validates the credential and combines it with the source address.
func (r *CredentialResolver) Resolve(attrs Attributes) (Identity, error) {
	credential := strings.TrimSpace(attrs.Credential)
	if credential == "" {
		return "", &ResolutionError{
			Reason:  ReasonCredentialMissing,
			Message: "no credential presented",
		}
	}
	if !r.Knows(credential) {
		return "", &ResolutionError{
			Reason:  ReasonCredentialInvalid,
			Message: "credential is not recognized",
		}
	}

	host := normalizeAddr(attrs.RemoteAddr)
	if host == "" {
		return "", &ResolutionError{
			Reason:  ReasonMissingAddress,
			Message: "request has no source address",
		}
	}

	return Identity(credential + ":" + host), nil
}

// normalizeAddr reduces a remote address to a canonical host string.
// "192.168.0.1:5432", "192.168.0.1" and "::ffff:192.168.0.1" all normalize to
// "192.168.0.1"; IPv6 zone identifiers are dropped.
func normalizeAddr(remoteAddr string) string {
	addr := strings.TrimSpace(remoteAddr)
	if addr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr); err == nil && host != "" {
		addr = host
	}

	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}

	if ip := net.ParseIP(addr); ip != nil {
		if v4 := ip.To4(); v4 != nil {
			return v4.String()
		}
		return ip.String()
	}

	// Not an IP literal (e.g. a unix socket peer); use it as-is.
	return addr
}
