package services

import (
	"encoding/hex"
	"net"
	"regexp"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// IPHasher turns uploader IP addresses into keyed, non-reversible hashes so
// abuse can be correlated without storing addresses
type IPHasher struct {
	key       []byte
	hashRegex *regexp.Regexp
}

// NewIPHasher creates an IPHasher keyed by salt. Salts of any length are
// accepted; the key is derived from them.
func NewIPHasher(salt string) *IPHasher {
	key := blake2b.Sum256([]byte(salt))
	return &IPHasher{
		key:       key[:],
		hashRegex: regexp.MustCompile(`^[a-f0-9]{64}$`),
	}
}

// Hash returns the hex hash of the normalized address, or "" when remoteAddr
// is empty
func (h *IPHasher) Hash(remoteAddr string) string {
	addr := NormalizeIP(remoteAddr)
	if addr == "" {
		return ""
	}

	mac, err := blake2b.New256(h.key)
	if err != nil {
		// Only returned for keys over 64 bytes
		panic(err)
	}
	mac.Write([]byte(addr))
	return hex.EncodeToString(mac.Sum(nil))
}

// IsValidHash checks if a string looks like an output of Hash
func (h *IPHasher) IsValidHash(hash string) bool {
	return h.hashRegex.MatchString(hash)
}

// NormalizeIP strips ports, brackets and zones and returns the canonical
// form of the address. Unparseable input is returned trimmed and lowercased.
func NormalizeIP(remoteAddr string) string {
	addr := strings.TrimSpace(remoteAddr)
	if addr == "" {
		return ""
	}

	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	addr = strings.Trim(addr, "[]")
	if i := strings.IndexByte(addr, '%'); i >= 0 {
		addr = addr[:i]
	}

	if ip := net.ParseIP(addr); ip != nil {
		return ip.String()
	}
	return strings.ToLower(addr)
}
