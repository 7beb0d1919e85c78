// Package naming implements the deterministic hostname scheme of a swarm.
//
// Hostnames are "<prefix>-<role><index>" ("manager<index>" without a prefix).
// Allowed hostname characters are 0-9a-zA-Z, '.' and '-'.
package naming

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cuemby/herd/pkg/types"
)

// Scheme generates and classifies hostnames for one cluster prefix
type Scheme struct {
	Prefix string
}

// NewScheme creates a scheme for prefix
func NewScheme(prefix string) Scheme {
	return Scheme{Prefix: prefix}
}

// Validate checks that the prefix only holds hostname characters
func (s Scheme) Validate() error {
	for _, r := range s.Prefix {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '.', r == '-':
		default:
			return fmt.Errorf("invalid character %q in host prefix %q", r, s.Prefix)
		}
	}
	return nil
}

// Basename returns the hostname of role without the index
func (s Scheme) Basename(role types.Role) string {
	return types.NodeID{Prefix: s.Prefix, Role: role}.Basename()
}

// ID builds the identity of the idx-th node of role
func (s Scheme) ID(role types.Role, idx int) types.NodeID {
	return types.NodeID{Prefix: s.Prefix, Role: role, Index: idx}
}

// Parse decodes a hostname. ok is false for hosts outside the scheme.
func (s Scheme) Parse(hostname string) (types.NodeID, bool) {
	for _, role := range types.Roles {
		rest, found := strings.CutPrefix(hostname, s.Basename(role))
		if !found || rest == "" {
			continue
		}
		idx, err := strconv.Atoi(rest)
		if err != nil || idx < 1 || strconv.Itoa(idx) != rest {
			continue
		}
		return s.ID(role, idx), true
	}
	return types.NodeID{}, false
}

// Classify returns the role encoded in hostname
func (s Scheme) Classify(hostname string) (types.Role, bool) {
	id, ok := s.Parse(hostname)
	if !ok {
		return "", false
	}
	return id.Role, true
}

// Qualify re-applies the prefix to a user supplied node name so that
// "worker1" and "lab-worker1" address the same node. Names that already
// carry the prefix are returned unchanged.
func (s Scheme) Qualify(name string) string {
	if s.Prefix == "" {
		return name
	}
	if _, ok := s.Parse(name); ok {
		return name
	}
	return s.Prefix + "-" + name
}

// QualifyAll qualifies every name, preserving order
func (s Scheme) QualifyAll(names []string) []string {
	qualified := make([]string, 0, len(names))
	for _, name := range names {
		qualified = append(qualified, s.Qualify(name))
	}
	return qualified
}

// Next returns the identity for a new node of role. The search starts at the
// number of existing nodes of that role plus one and skips taken indexes, so
// gaps left by removals are not reused below that count.
func (s Scheme) Next(role types.Role, existing []string) types.NodeID {
	taken := make(map[string]bool, len(existing))
	count := 0
	for _, hostname := range existing {
		taken[hostname] = true
		if r, ok := s.Classify(hostname); ok && r == role {
			count++
		}
	}

	idx := count + 1
	for taken[s.ID(role, idx).String()] {
		idx++
	}
	return s.ID(role, idx)
}

// Filter returns the identities of the hostnames inside the scheme, in order
func (s Scheme) Filter(hostnames []string) []types.NodeID {
	var ids []types.NodeID
	for _, hostname := range hostnames {
		if id, ok := s.Parse(hostname); ok {
			ids = append(ids, id)
		}
	}
	return ids
}
