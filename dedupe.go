package xsdfix

import (
	"slices"
	"strconv"
	"strings"

	"github.com/beevik/etree"
)

// DefaultConservative lists the elements whose conflicting duplicates are
// resolved by keeping the smaller value.
var DefaultConservative = []string{"AnnualSavingsSourceEnergy"}

// DedupePolicy configures DedupeAdjacent.
type DedupePolicy struct {
	// Conservative holds local names for which two adjacent siblings with
	// different numeric text collapse to the smaller value.
	Conservative []string
}

// DefaultDedupePolicy returns the policy used unless configured otherwise.
func DefaultDedupePolicy() DedupePolicy {
	return DedupePolicy{Conservative: slices.Clone(DefaultConservative)}
}

func (p DedupePolicy) conservative(local string) bool {
	return slices.Contains(p.Conservative, local)
}

// DedupeAdjacent removes duplicate element children of e. Only adjacent
// elements are compared, pairwise from left to right, so e should already be
// sorted. Non-element tokens are skipped and do not break adjacency.
func DedupeAdjacent(e *etree.Element, policy DedupePolicy) error {
	var (
		prev     *etree.Element
		prevName QName
		prevText string
	)

	for _, cur := range e.ChildElements() {
		name := ElementName(cur)
		text := strings.TrimSpace(cur.Text())

		if prev == nil || name != prevName {
			prev, prevName, prevText = cur, name, text
			continue
		}

		switch {
		case text == prevText:
			e.RemoveChild(cur)
			continue
		case policy.conservative(name.Local):
			p, err := strconv.ParseFloat(prevText, 64)
			if err != nil {
				return &NumericDuplicateError{Name: name, Previous: prevText, Current: text, Err: err}
			}
			c, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return &NumericDuplicateError{Name: name, Previous: prevText, Current: text, Err: err}
			}
			if p < c {
				e.RemoveChild(cur)
				continue
			}
			e.RemoveChild(prev)
		}
		prev, prevText = cur, text
	}
	return nil
}
