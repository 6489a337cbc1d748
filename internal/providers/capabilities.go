package providers

import (
	"fmt"
	"sort"
	"strings"
)

// Capability is a canonical provider-side tool name.
type Capability string

const (
	Grounding     Capability = "grounding"
	CodeExecution Capability = "code_execution"
	URLContext    Capability = "url_context"
)

// canonicalOrder fixes how known capabilities are listed.
var canonicalOrder = []Capability{Grounding, CodeExecution, URLContext}

var aliases = map[string]Capability{
	"grounding":        Grounding,
	"search":           Grounding,
	"web_search":       Grounding,
	"google_search":    Grounding,
	"code_execution":   CodeExecution,
	"code":             CodeExecution,
	"code_interpreter": CodeExecution,
	"url_context":      URLContext,
	"url":              URLContext,
	"fetch":            URLContext,
	"web_fetch":        URLContext,
}

const allCapabilities = "all"

// CapabilitySet is the set of capabilities a provider supports.
type CapabilitySet map[Capability]struct{}

func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = struct{}{}
	}
	return s
}

func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// List returns the set in canonical order, unknown names last and sorted.
func (s CapabilitySet) List() []Capability {
	out := make([]Capability, 0, len(s))
	for _, c := range canonicalOrder {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	var extra []Capability
	for c := range s {
		if _, known := aliases[string(c)]; !known {
			extra = append(extra, c)
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i] < extra[j] })
	return append(out, extra...)
}

// Canonicalize maps requested tool names onto canonical capabilities.
// Aliases collapse, "all" expands to the provider's set, and unknown names
// pass through lowercased so negotiation can report them. Order follows
// first appearance; duplicates are dropped.
func Canonicalize(requested []string, supported CapabilitySet) []Capability {
	var out []Capability
	seen := make(map[Capability]bool)
	add := func(c Capability) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, raw := range requested {
		name := strings.ToLower(strings.TrimSpace(raw))
		if name == "" {
			continue
		}
		if name == allCapabilities {
			for _, c := range supported.List() {
				add(c)
			}
			continue
		}
		if c, ok := aliases[name]; ok {
			add(c)
			continue
		}
		add(Capability(name))
	}
	return out
}

// Negotiate splits requested into what supported covers and what it does not.
func Negotiate(requested []Capability, supported CapabilitySet) (accepted, unsupported []Capability) {
	for _, c := range requested {
		if supported.Has(c) {
			accepted = append(accepted, c)
		} else {
			unsupported = append(unsupported, c)
		}
	}
	return accepted, unsupported
}

// UnsupportedError reports capabilities a provider cannot serve.
type UnsupportedError struct {
	Provider string
	Names    []Capability
}

func (e *UnsupportedError) Error() string {
	names := make([]string, len(e.Names))
	for i, c := range e.Names {
		names[i] = string(c)
	}
	return fmt.Sprintf("Tool(s) not supported by %s: [%s]", e.Provider, strings.Join(names, ", "))
}
