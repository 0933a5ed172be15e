// Package difficulty maps (course, topic) pairs to difficulty tiers.
//
// Resolution is a chain of strategies tried in order; the first one that
// recognises the pair wins, and a configured fallback covers the rest.
package difficulty

import (
	"strings"

	"github.com/okian/coachlens/internal/domain/thresholds"
)

// Resolver maps a course and topic to a difficulty tier.
type Resolver interface {
	Name() string
	// Resolve returns the tier and true when the pair is recognised.
	Resolve(course, topic string) (string, bool)
}

// TableResolver answers from an explicit lookup table.
type TableResolver struct {
	topics  map[string]map[string]string // course -> topic -> tier
	courses map[string]string            // course -> tier
}

// NewTableResolver builds a table resolver. Keys are matched case-insensitively.
func NewTableResolver(topics map[string]map[string]string, courses map[string]string) *TableResolver {
	r := &TableResolver{
		topics:  make(map[string]map[string]string, len(topics)),
		courses: make(map[string]string, len(courses)),
	}
	for course, byTopic := range topics {
		m := make(map[string]string, len(byTopic))
		for topic, tier := range byTopic {
			m[normalize(topic)] = tier
		}
		r.topics[normalize(course)] = m
	}
	for course, tier := range courses {
		r.courses[normalize(course)] = tier
	}
	return r
}

func (r *TableResolver) Name() string { return "table" }

func (r *TableResolver) Resolve(course, topic string) (string, bool) {
	c := normalize(course)
	if byTopic, ok := r.topics[c]; ok {
		if tier, ok := byTopic[normalize(topic)]; ok {
			return tier, true
		}
	}
	tier, ok := r.courses[c]
	return tier, ok
}

// rule maps a name to a tier when it contains one of the words or phrases.
type rule struct {
	tier    string
	words   []string
	phrases []string
}

func (rl rule) matches(name string) bool {
	for _, p := range rl.phrases {
		if strings.Contains(name, p) {
			return true
		}
	}
	for _, w := range strings.Fields(name) {
		for _, want := range rl.words {
			if w == want {
				return true
			}
		}
	}
	return false
}

// HeuristicResolver classifies by markers in course and topic names.
type HeuristicResolver struct {
	rules []rule
}

// NewHeuristicResolver returns the default marker rules. AP rules are
// checked before high-school ones so "AP Calculus" is not read as HS.
func NewHeuristicResolver() *HeuristicResolver {
	return &HeuristicResolver{rules: []rule{
		{tier: thresholds.TierAP, words: []string{"ap"}, phrases: []string{"advanced placement"}},
		{tier: thresholds.TierHS, phrases: []string{
			"algebra 2", "algebra ii", "calculus", "trigonometry", "geometry",
			"chemistry", "physics", "biology", "high school", "statistics",
		}},
		{tier: thresholds.TierK8, phrases: []string{
			"grade", "kindergarten", "elementary", "middle school", "pre-algebra",
			"fractions", "arithmetic", "multiplication", "place value",
		}},
	}}
}

func (r *HeuristicResolver) Name() string { return "heuristic" }

// Resolve checks the course name first, then the topic.
func (r *HeuristicResolver) Resolve(course, topic string) (string, bool) {
	for _, name := range []string{normalize(course), normalize(topic)} {
		if name == "" {
			continue
		}
		for _, rl := range r.rules {
			if rl.matches(name) {
				return rl.tier, true
			}
		}
	}
	return "", false
}

// Chain tries resolvers in order and falls back to a default tier.
type Chain struct {
	resolvers []Resolver
	fallback  string
}

// NewChain builds a chain. An empty fallback defaults to HS.
func NewChain(fallback string, resolvers ...Resolver) *Chain {
	if fallback == "" {
		fallback = thresholds.TierHS
	}
	return &Chain{resolvers: resolvers, fallback: fallback}
}

// Default returns a chain over an optional lookup table and the heuristic rules.
func Default(table *TableResolver) *Chain {
	if table == nil {
		return NewChain("", NewHeuristicResolver())
	}
	return NewChain("", table, NewHeuristicResolver())
}

func (c *Chain) Name() string { return "chain" }

// Resolve always succeeds; the bool is false when the fallback was used.
func (c *Chain) Resolve(course, topic string) (string, bool) {
	tier, _, ok := c.ResolveWithSource(course, topic)
	return tier, ok
}

// ResolveWithSource also reports which resolver answered.
func (c *Chain) ResolveWithSource(course, topic string) (string, string, bool) {
	for _, r := range c.resolvers {
		if tier, ok := r.Resolve(course, topic); ok {
			return tier, r.Name(), true
		}
	}
	return c.fallback, "fallback", false
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
