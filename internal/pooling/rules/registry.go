// internal/pooling/rules/registry.go
package rules

import (
	"errors"
	"fmt"
	"strings"

	"tranche-workers/internal/models"
)

var (
	ErrUnknownCriterion = errors.New("unknown criterion")
	ErrUnknownSuboption = errors.New("unknown suboption")
	ErrDuplicateRule    = errors.New("rule already registered")
)

// Criterion names a selection dimension, e.g. "Duration".
type Criterion string

// Suboption names one band within a criterion, e.g. "Short-Term".
type Suboption string

// Predicate decides whether a normalized loan belongs to a suboption. The
// threshold snapshot may be nil, in which case every bound uses its fallback.
type Predicate func(loan *models.LoanRecord, t *models.ThresholdConfig) bool

// Registry is a two-level map criterion -> suboption -> predicate that also
// remembers registration order for catalog listings. It is not safe for
// concurrent registration; build it once and share it read-only.
type Registry struct {
	rules     map[Criterion]map[Suboption]Predicate
	criteria  []Criterion
	suboption map[Criterion][]Suboption
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		rules:     make(map[Criterion]map[Suboption]Predicate),
		suboption: make(map[Criterion][]Suboption),
	}
}

// Register adds p under c/s. Registering the same pair twice is an error.
func (r *Registry) Register(c Criterion, s Suboption, p Predicate) error {
	if p == nil {
		return fmt.Errorf("nil predicate for %s/%s", c, s)
	}
	subs, ok := r.rules[c]
	if !ok {
		subs = make(map[Suboption]Predicate)
		r.rules[c] = subs
		r.criteria = append(r.criteria, c)
	}
	if _, exists := subs[s]; exists {
		return fmt.Errorf("%w: %s/%s", ErrDuplicateRule, c, s)
	}
	subs[s] = p
	r.suboption[c] = append(r.suboption[c], s)
	return nil
}

func (r *Registry) mustRegister(c Criterion, s Suboption, p Predicate) {
	if err := r.Register(c, s, p); err != nil {
		panic(err)
	}
}

// Lookup returns the predicate for c/s, or ErrUnknownCriterion / ErrUnknownSuboption.
func (r *Registry) Lookup(c Criterion, s Suboption) (Predicate, error) {
	subs, ok := r.rules[c]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCriterion, c)
	}
	p, ok := subs[s]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrUnknownSuboption, c, s)
	}
	return p, nil
}

// Valid reports whether c/s is registered.
func (r *Registry) Valid(c Criterion, s Suboption) bool {
	_, err := r.Lookup(c, s)
	return err == nil
}

// Criteria lists registered criteria in registration order.
func (r *Registry) Criteria() []Criterion {
	out := make([]Criterion, len(r.criteria))
	copy(out, r.criteria)
	return out
}

// Suboptions lists the suboptions of c in registration order, nil when c is unknown.
func (r *Registry) Suboptions(c Criterion) []Suboption {
	subs, ok := r.suboption[c]
	if !ok {
		return nil
	}
	out := make([]Suboption, len(subs))
	copy(out, subs)
	return out
}

// Catalog maps every criterion to its suboption labels.
func (r *Registry) Catalog() map[string][]string {
	out := make(map[string][]string, len(r.criteria))
	for _, c := range r.criteria {
		labels := make([]string, 0, len(r.suboption[c]))
		for _, s := range r.suboption[c] {
			labels = append(labels, string(s))
		}
		out[string(c)] = labels
	}
	return out
}

// Select returns the loans matching c/s in input order. An unknown selector
// yields an empty, non-nil slice.
func (r *Registry) Select(loans []*models.LoanRecord, c Criterion, s Suboption, t *models.ThresholdConfig) []*models.LoanRecord {
	out := make([]*models.LoanRecord, 0)
	p, err := r.Lookup(c, s)
	if err != nil {
		return out
	}
	for _, l := range loans {
		if p(l, t) {
			out = append(out, l)
		}
	}
	return out
}

// Default returns a registry holding every built-in criterion.
func Default() *Registry {
	r := NewRegistry()
	registerDuration(r)
	registerCreditworthiness(r)
	registerMLRisk(r)
	registerLiquidity(r)
	registerDebt(r)
	registerLiabilities(r)
	registerAge(r)
	registerFinancialStatus(r)
	return r
}

// employmentIn matches status against allow ignoring case, spaces, hyphens and underscores.
func employmentIn(status string, allow []string) bool {
	key := normalizeStatus(status)
	for _, a := range allow {
		if normalizeStatus(a) == key {
			return true
		}
	}
	return false
}

func normalizeStatus(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
