// Package classify maps bank-statement lines to process kinds through an
// ordered regex-plus-account-role rule table.
package classify

import (
	"fmt"
	"regexp"

	"github.com/rmorelos/reconbank/internal/config"
	"github.com/rmorelos/reconbank/internal/core/domain"
)

type compiledRule struct {
	re        *regexp.Regexp
	role      string
	kind      domain.ProcessKind
	destGroup int
}

// Classifier is a pure function over classified movements: the table is
// compiled once at startup and read-only afterwards.
type Classifier struct {
	rules    []compiledRule
	registry *config.Registry
}

// New compiles a rule table against the account registry.
func New(registry *config.Registry, rules []Rule) (*Classifier, error) {
	c := &Classifier{registry: registry, rules: make([]compiledRule, 0, len(rules))}
	for i, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("classifier rule %d (%s): %w", i, r.Kind, err)
		}
		if r.DestGroup > re.NumSubexp() {
			return nil, fmt.Errorf("classifier rule %d (%s): capture group %d out of range", i, r.Kind, r.DestGroup)
		}
		c.rules = append(c.rules, compiledRule{
			re:        re,
			role:      r.Role,
			kind:      r.Kind,
			destGroup: r.DestGroup,
		})
	}
	return c, nil
}

// NewDefault compiles the production rule table.
func NewDefault(registry *config.Registry) (*Classifier, error) {
	return New(registry, DefaultRules())
}

// Classify returns the first matching rule's kind plus the captured
// transfer destination, or UNKNOWN when nothing matches. First match
// wins; rule order encodes all disambiguation.
func (c *Classifier) Classify(m domain.BankMovement) (domain.ProcessKind, string) {
	role := ""
	if acc, ok := c.registry.ByNumber(m.Account); ok {
		role = acc.Role
	}

	for _, r := range c.rules {
		if r.role != "" && r.role != role {
			continue
		}
		if r.destGroup > 0 {
			groups := r.re.FindStringSubmatch(m.Description)
			if groups == nil {
				continue
			}
			return r.kind, groups[r.destGroup]
		}
		if r.re.MatchString(m.Description) {
			return r.kind, ""
		}
	}
	return domain.KindUnknown, ""
}

// Apply classifies a batch in place, attaching Kind and DestAccount.
func (c *Classifier) Apply(movements []domain.BankMovement) {
	for i := range movements {
		kind, dest := c.Classify(movements[i])
		movements[i].Kind = kind
		movements[i].DestAccount = dest
	}
}
