package topicmap

import (
	"fmt"

	"go.uber.org/zap"
)

// DuplicateStats counts the constructs removed by a duplicate-removal pass.
// Roles only counts duplicate roles inside one association; the roles of a
// removed duplicate association are folded into the survivor and not counted.
type DuplicateStats struct {
	Names        int
	Occurrences  int
	Variants     int
	Associations int
	Roles        int
}

// Total returns the number of removed constructs.
func (s DuplicateStats) Total() int {
	return s.Names + s.Occurrences + s.Variants + s.Associations + s.Roles
}

func (s DuplicateStats) String() string {
	return fmt.Sprintf("names=%d occurrences=%d variants=%d associations=%d roles=%d",
		s.Names, s.Occurrences, s.Variants, s.Associations, s.Roles)
}

func (s *DuplicateStats) count(k Kind) {
	switch k {
	case KindName:
		s.Names++
	case KindOccurrence:
		s.Occurrences++
	case KindVariant:
		s.Variants++
	case KindAssociation:
		s.Associations++
	case KindRole:
		s.Roles++
	}
}

// RemoveDuplicates removes structurally equal names, occurrences, variants,
// roles and associations across the whole topic map. Item identifiers and
// reifiers of removed duplicates move to the survivor, which is always the
// older construct.
//
// Running the pass twice yields an empty second result.
func (tm *TopicMap) RemoveDuplicates() (DuplicateStats, error) {
	if err := tm.check(); err != nil {
		return DuplicateStats{}, err
	}
	m := tm.newMerger()
	for _, t := range tm.Topics() {
		if err := m.topicDuplicates(t); err != nil {
			return m.stats, err
		}
	}
	for _, key := range tm.typeIndex.associationKeys() {
		group := resolveAll[*Association](tm, tm.typeIndex.associations[key])
		if err := m.associationDuplicates(group); err != nil {
			return m.stats, err
		}
	}
	err := m.settle()
	if m.stats.Total() > 0 {
		tm.logger.Info("duplicates removed", zap.Stringer("stats", m.stats))
	}
	return m.stats, err
}

// RemoveDuplicates removes duplicate names (with their duplicate variants)
// and occurrences of the topic.
func (t *Topic) RemoveDuplicates() (DuplicateStats, error) {
	if err := t.check(); err != nil {
		return DuplicateStats{}, err
	}
	m := t.tm.newMerger()
	if err := m.topicDuplicates(t); err != nil {
		return m.stats, err
	}
	err := m.settle()
	return m.stats, err
}

// RemoveDuplicates removes duplicate roles of the association.
func (a *Association) RemoveDuplicates() (DuplicateStats, error) {
	if err := a.check(); err != nil {
		return DuplicateStats{}, err
	}
	m := a.tm.newMerger()
	if err := dedupe(m, a.Roles()); err != nil {
		return m.stats, err
	}
	err := m.settle()
	return m.stats, err
}

// RemoveDuplicates removes duplicate variants of the name.
func (n *Name) RemoveDuplicates() (DuplicateStats, error) {
	if err := n.check(); err != nil {
		return DuplicateStats{}, err
	}
	m := n.tm.newMerger()
	if err := dedupe(m, n.Variants()); err != nil {
		return m.stats, err
	}
	err := m.settle()
	return m.stats, err
}

func (m *merger) topicDuplicates(t *Topic) error {
	if t.removed {
		return nil
	}
	for _, n := range t.Names() {
		if err := dedupe(m, n.Variants()); err != nil {
			return err
		}
	}
	if err := dedupe(m, t.Names()); err != nil {
		return err
	}
	return dedupe(m, t.Occurrences())
}

func (m *merger) associationDuplicates(group []*Association) error {
	for _, a := range group {
		if err := dedupe(m, a.Roles()); err != nil {
			return err
		}
	}
	return dedupe(m, group)
}

// dedupe collapses structurally equal members of items onto the first one
// seen. items must be in creation order.
func dedupe[T Construct](m *merger, items []T) error {
	return dedupeIf(m, items, nil)
}

// dedupeIf is dedupe restricted to the items fold accepts; the others only
// serve as survivors. A nil fold accepts every item.
func dedupeIf[T Construct](m *merger, items []T, fold func(Construct) bool) error {
	seen := make(map[Signature][]T)
	for _, it := range items {
		if it.IsRemoved() {
			continue
		}
		sig := SignatureOf(it)
		var keep Construct
		for _, cand := range seen[sig] {
			if !cand.IsRemoved() && equivalent(cand, it) {
				keep = cand
				break
			}
		}
		if keep == nil || (fold != nil && !fold(it)) {
			seen[sig] = append(seen[sig], it)
			continue
		}
		if err := m.collapse(keep, it); err != nil {
			return err
		}
	}
	return nil
}
