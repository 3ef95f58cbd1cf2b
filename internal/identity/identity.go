// Package identity normalises caller identities. Stakers, creators, and
// resolvers are identified by EVM addresses; all addresses are stored and
// compared in their EIP-55 checksum form so mixed-case input cannot split one
// identity into several escrow accounts.
package identity

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/wagerbook/internal/domain"
)

// Parse validates s as a hex EVM address and returns its checksum form.
func Parse(s string) (string, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: %q is not a valid address", domain.ErrInvalidInput, s)
	}
	return common.HexToAddress(s).Hex(), nil
}

// Equal reports whether two address strings denote the same identity,
// ignoring case and checksum differences.
func Equal(a, b string) bool {
	if !common.IsHexAddress(a) || !common.IsHexAddress(b) {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return common.HexToAddress(a) == common.HexToAddress(b)
}

// Allowlist implements domain.Authorizer from two static identity sets.
type Allowlist struct {
	resolvers map[common.Address]bool
	admins    map[common.Address]bool
}

// NewAllowlist builds an Allowlist from resolver and administrator address
// lists. Invalid entries are skipped; config validation reports them before
// this point.
func NewAllowlist(resolvers, admins []string) *Allowlist {
	al := &Allowlist{
		resolvers: make(map[common.Address]bool, len(resolvers)),
		admins:    make(map[common.Address]bool, len(admins)),
	}
	for _, r := range resolvers {
		if common.IsHexAddress(r) {
			al.resolvers[common.HexToAddress(r)] = true
		}
	}
	for _, a := range admins {
		if common.IsHexAddress(a) {
			al.admins[common.HexToAddress(a)] = true
		}
	}
	return al
}

// CanResolve reports whether the identity is a designated resolver.
func (al *Allowlist) CanResolve(id string) bool {
	if !common.IsHexAddress(id) {
		return false
	}
	return al.resolvers[common.HexToAddress(id)]
}

// CanAdminister reports whether the identity is an administrator. Resolvers
// are implicitly administrators.
func (al *Allowlist) CanAdminister(id string) bool {
	if !common.IsHexAddress(id) {
		return false
	}
	addr := common.HexToAddress(id)
	return al.admins[addr] || al.resolvers[addr]
}

// Compile-time interface check.
var _ domain.Authorizer = (*Allowlist)(nil)
