// Package identity derives the client identifier used to key spam tracking
// records and stamped on every message.
//
// The address comes from the first X-Forwarded-For entry when forwarding
// headers are trusted, otherwise from the TCP peer. It is then optionally
// reduced to a one-way BLAKE2b digest so raw addresses are never persisted.
package identity

import (
	"encoding/hex"
	"net"
	"net/http"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Unknown is returned when a request carries no usable address at all.
const Unknown = "unknown"

// Redacted is stored in place of the origin of the exempt identity.
const Redacted = "hidden"

// Config controls how a Resolver derives identifiers.
type Config struct {
	// Hash enables BLAKE2b-256 digests of client addresses.
	Hash bool

	// HashKey keys the digest when non-empty.
	HashKey string

	// ExemptHash is the identifier whose messages carry Redacted as origin.
	ExemptHash string

	// TrustedProxies restricts which peers may set forwarding headers.
	// Empty trusts every peer.
	TrustedProxies []string
}

// Resolver turns request metadata into client identifiers. It has no state
// beyond its configuration and is safe for concurrent use.
type Resolver struct {
	hash       bool
	hashKey    []byte
	exemptHash string
	trusted    []*net.IPNet
	trustAll   bool
}

// NewResolver builds a Resolver. Invalid CIDRs are skipped here;
// config.Load rejects them before a Resolver is built.
func NewResolver(cfg Config) *Resolver {
	r := &Resolver{
		hash:       cfg.Hash,
		exemptHash: strings.ToLower(cfg.ExemptHash),
		trustAll:   len(cfg.TrustedProxies) == 0,
	}
	if cfg.HashKey != "" {
		r.hashKey = []byte(cfg.HashKey)
	}
	for _, cidr := range cfg.TrustedProxies {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			continue
		}
		r.trusted = append(r.trusted, network)
	}
	return r
}

// ClientAddress returns the originating client address of a request in
// canonical IP form. It is shaped as an echo.IPExtractor so c.RealIP()
// resolves through it. A forwarded entry that is not an IP address is
// ignored in favour of the peer.
func (r *Resolver) ClientAddress(req *http.Request) string {
	peer := parseAddr(peerHost(req.RemoteAddr))

	if r.trustAll || r.isTrusted(peer) {
		// Leftmost entry is the original client.
		if xff := req.Header.Get("X-Forwarded-For"); xff != "" {
			first, _, _ := strings.Cut(xff, ",")
			if addr := parseAddr(first); addr != "" {
				return addr
			}
		}
	}

	if peer == "" {
		return Unknown
	}
	return peer
}

// Key returns the storage key for an address: its hex digest when hashing is
// enabled, otherwise the address itself.
func (r *Resolver) Key(addr string) string {
	if !r.hash {
		return addr
	}
	return Digest(addr, r.hashKey)
}

// Origin returns what is persisted as a message's origin for a key.
func (r *Resolver) Origin(key string) string {
	if r.exemptHash != "" && key == r.exemptHash {
		return Redacted
	}
	return key
}

// Digest returns the lowercase hex BLAKE2b-256 of addr, keyed when key is
// non-empty. Exposed for cmd/hashid so operators can compute exempt hashes.
func Digest(addr string, key []byte) string {
	if len(key) == 0 {
		sum := blake2b.Sum256([]byte(addr))
		return hex.EncodeToString(sum[:])
	}
	// New256 only fails for keys longer than 64 bytes.
	h, err := blake2b.New256(truncateKey(key))
	if err != nil {
		sum := blake2b.Sum256([]byte(addr))
		return hex.EncodeToString(sum[:])
	}
	h.Write([]byte(addr))
	return hex.EncodeToString(h.Sum(nil))
}

// truncateKey caps a key at BLAKE2b's 64-byte maximum.
func truncateKey(key []byte) []byte {
	if len(key) > blake2b.Size {
		return key[:blake2b.Size]
	}
	return key
}

// peerHost extracts the host part of a "host:port" RemoteAddr.
func peerHost(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return strings.TrimSpace(remoteAddr)
	}
	return host
}

// parseAddr returns s as a canonical IP string, accepting an optional port.
// Anything else yields "".
func parseAddr(s string) string {
	s = strings.TrimSpace(s)
	ip := net.ParseIP(s)
	if ip == nil {
		host, _, err := net.SplitHostPort(s)
		if err != nil {
			return ""
		}
		if ip = net.ParseIP(host); ip == nil {
			return ""
		}
	}
	return ip.String()
}

// isTrusted returns true if ip falls within any trusted CIDR.
func (r *Resolver) isTrusted(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	if ip == nil {
		return false
	}
	for _, network := range r.trusted {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}
