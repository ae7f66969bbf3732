package topic

import (
	"strings"
)

const (
	sharePrefix = "$share"

	// Wildcard matches exactly one topic level.
	Wildcard = "+"
	// MultiWildcard matches the remaining levels and must come last.
	MultiWildcard = "#"
)

// Builder constructs topic strings of the form {root}/{segment}/{identifier}.
// A Builder created through Shared produces shared-subscription filters
// ($share/{group}/...) so a subscription is load-balanced across a group.
type Builder struct {
	root  string
	group string
}

// NewBuilder returns a Builder rooted at root (e.g. "seawatch/v1").
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.TrimSuffix(root, "/")}
}

// Root returns the namespace every topic is built under.
func (b *Builder) Root() string {
	return b.root
}

// Shared returns a copy of the builder that prefixes every topic with the
// shared subscription group. An empty group returns the builder unchanged.
func (b *Builder) Shared(group string) *Builder {
	if group == "" {
		return b
	}
	return &Builder{root: b.root, group: group}
}

// Build returns {root}/{segment}/{id}.
func (b *Builder) Build(segment, id string) string {
	t := b.root + "/" + segment + "/" + id
	if b.group != "" {
		return sharePrefix + "/" + b.group + "/" + t
	}
	return t
}

// BuildWildcard returns the filter matching segment for every identifier.
func (b *Builder) BuildWildcard(segment string) string {
	return b.Build(segment, Wildcard)
}

// Parse extracts the identifier from a concrete topic built for segment.
// It reports false when the topic does not belong to segment.
func (b *Builder) Parse(segment, topic string) (string, bool) {
	prefix := b.root + "/" + segment + "/"
	if !strings.HasPrefix(topic, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(topic, prefix)
	if id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}
