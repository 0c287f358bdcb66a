// Package resolver turns the controller's flat symbol table and raw
// structure definitions into a canonical tag tree.
package resolver

import (
	"context"
	"fmt"
	"strings"

	"tagscan/logging"
	"tagscan/logix"
	"tagscan/session"
	"tagscan/tagerr"
)

// MaxDepth caps structure recursion. Definitions deeper than this (or
// cyclic ones) degrade to leaves instead of looping.
const MaxDepth = 64

// TagNode is one node of the resolved tree. A leaf has nil Members.
type TagNode struct {
	Name       string     `json:"name"`
	Path       string     `json:"path"`
	TypeName   string     `json:"type_name"`
	TypeCode   uint16     `json:"type_code"`
	Dimensions []int      `json:"dimensions,omitempty"`
	Members    []*TagNode `json:"members,omitempty"`
}

// IsLeaf reports whether the node has no expandable members.
func (n *TagNode) IsLeaf() bool {
	return n == nil || n.Members == nil
}

// ScopeFailure records one scope whose enumeration failed.
type ScopeFailure struct {
	Scope string // "" for controller scope
	Err   error
}

// TagFailure records one tag whose definition could not be resolved.
// The tag still appears in the tree as a leaf.
type TagFailure struct {
	Tag string
	Err error
}

// ControllerTags is the result of a full scan: the resolved tree plus
// everything that went wrong along the way.
type ControllerTags struct {
	Roots        []*TagNode
	FailedScopes []ScopeFailure
	FailedTags   []TagFailure
}

// Options tune a Resolve run.
type Options struct {
	// MaxDepth overrides the recursion cap. Zero means MaxDepth.
	MaxDepth int
}

func (o Options) maxDepth() int {
	if o.MaxDepth > 0 {
		return o.MaxDepth
	}
	return MaxDepth
}

// definitionLookup fetches the structure definition for a type code.
// Resolve backs it with the session and a template cache; tests supply
// a map.
type definitionLookup func(typeCode uint16) (*session.RawDefinition, error)

// Resolve scans every scope of the controller behind sess and builds
// the tag tree. One failing scope or tag never aborts the walk; the
// failures are collected in the result.
func Resolve(ctx context.Context, sess session.Session, opts Options) (*ControllerTags, error) {
	if sess == nil {
		return nil, fmt.Errorf("Resolve: nil session")
	}

	result := &ControllerTags{}

	// Definition cache keyed by template ID so shared UDTs are fetched
	// once per scan.
	defs := make(map[uint16]*session.RawDefinition)
	lookup := func(typeCode uint16) (*session.RawDefinition, error) {
		id := logix.TemplateID(typeCode)
		if def, ok := defs[id]; ok {
			return def, nil
		}
		def, err := sess.TagDefinition(ctx, session.RawTag{TypeCode: typeCode})
		if err != nil {
			return nil, err
		}
		defs[id] = def
		return def, nil
	}

	scopes := []string{""}
	programs, err := sess.Programs(ctx)
	if err != nil {
		// Program enumeration failing still leaves controller scope.
		result.FailedScopes = append(result.FailedScopes, ScopeFailure{Scope: "programs", Err: err})
	} else {
		scopes = append(scopes, programs...)
	}

	for _, scope := range scopes {
		if err := ctx.Err(); err != nil {
			return nil, &tagerr.ScopeEnumerationError{Scope: scope, Err: err}
		}

		tags, err := sess.ListTags(ctx, scope)
		if err != nil {
			logging.DebugLog("resolver", "scope %q enumeration failed: %v", scope, err)
			result.FailedScopes = append(result.FailedScopes, ScopeFailure{Scope: scope, Err: err})
			continue
		}

		for _, tag := range tags {
			if reservedTag(tag) {
				continue
			}

			node, failures := buildNode(tag.Name, tag.Name, tag.TypeCode, tag.Dimensions, lookup, opts.maxDepth(), 0)
			result.Roots = append(result.Roots, node)
			result.FailedTags = append(result.FailedTags, failures...)
		}
	}

	logging.DebugLog("resolver", "resolved %d roots, %d failed scopes, %d failed tags",
		len(result.Roots), len(result.FailedScopes), len(result.FailedTags))

	// Partial results are fine, but a scan that retrieved nothing while
	// scopes were erroring must not look like an empty controller: a
	// caller persisting it would wipe the last good snapshot.
	if len(result.Roots) == 0 && len(result.FailedScopes) > 0 {
		first := result.FailedScopes[0]
		return nil, fmt.Errorf("Resolve: no tags retrieved, %d scopes failed: %w",
			len(result.FailedScopes), &tagerr.ScopeEnumerationError{Scope: first.Scope, Err: first.Err})
	}

	return result, nil
}

// reservedTag reports whether a top-level symbol is internal
// bookkeeping rather than user data.
func reservedTag(tag session.RawTag) bool {
	name := tag.Name
	// Program-scoped names carry "Program:x." legitimately; check the
	// final component.
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		name = name[idx+1:]
	}
	if strings.HasPrefix(name, "__") {
		return true
	}
	if strings.Contains(name, ":") && !strings.HasPrefix(tag.Name, "Program:") {
		return true
	}
	return logix.IsSystemType(tag.TypeCode)
}

// reservedMember reports whether a structure member is filtered from
// the visible shape.
func reservedMember(m session.RawMember) bool {
	if m.Hidden || m.Name == "" {
		return true
	}
	if strings.HasPrefix(m.Name, "__") || strings.Contains(m.Name, ":") {
		return true
	}
	return logix.IsSystemType(m.TypeCode)
}

// buildNode constructs the node for one tag or member, recursively
// expanding structures through lookup. It is pure given the lookup and
// never fails: unresolvable definitions degrade the node to a leaf and
// are reported in the returned failures.
func buildNode(name, path string, typeCode uint16, dims []int, lookup definitionLookup, maxDepth, depth int) (*TagNode, []TagFailure) {
	node := &TagNode{
		Name:       name,
		Path:       path,
		TypeName:   logix.TypeName(typeCode),
		TypeCode:   typeCode,
		Dimensions: dims,
	}

	if !logix.IsStructure(typeCode) {
		return node, nil
	}

	if depth >= maxDepth {
		return node, []TagFailure{{Tag: path, Err: fmt.Errorf("structure nesting exceeds depth %d", maxDepth)}}
	}

	def, err := lookup(typeCode)
	if err != nil {
		// Degrade to a leaf with the raw type name; the scan goes on.
		return node, []TagFailure{{Tag: path, Err: err}}
	}

	if def.Name != "" {
		node.TypeName = def.Name
		if logix.IsArray(typeCode) {
			node.TypeName += "[]"
		}
	}

	var failures []TagFailure
	var members []*TagNode
	for _, m := range def.Members {
		if reservedMember(m) {
			continue
		}
		child, childFailures := buildNode(m.Name, path+"."+m.Name, m.TypeCode, m.Dimensions, lookup, maxDepth, depth+1)
		members = append(members, child)
		failures = append(failures, childFailures...)
	}

	// All members filtered away: the struct collapses to a leaf.
	node.Members = members

	return node, failures
}
