package topicmap

// ScopedIndex files scoped constructs under each of their themes, and
// unconstrained constructs under the null key. A nil theme argument selects
// the unconstrained bucket.
//
// Variants are filed under their effective scope.
type ScopedIndex struct {
	tm           *TopicMap
	associations buckets
	occurrences  buckets
	names        buckets
	variants     buckets
}

func newScopedIndex(tm *TopicMap) *ScopedIndex {
	ix := &ScopedIndex{tm: tm}
	ix.reset()
	return ix
}

func (ix *ScopedIndex) reset() {
	ix.associations = make(buckets)
	ix.occurrences = make(buckets)
	ix.names = make(buckets)
	ix.variants = make(buckets)
}

// Reindex rebuilds the index from the topic map.
func (ix *ScopedIndex) Reindex() {
	ix.reset()
	for _, c := range ix.tm.identity.byID {
		if s := scopeOf(c); s != nil {
			ix.file(ix.bucketsOf(c), s, c.ID())
		}
	}
}

func (ix *ScopedIndex) handle(ev Event) error {
	c := ev.Construct
	b := ix.bucketsOf(c)
	if b == nil {
		return nil
	}
	switch ev.Kind {
	case EventConstructAdded:
		ix.file(b, scopeOf(c), c.ID())
	case EventConstructRemoving:
		ix.unfile(b, scopeOf(c), c.ID())
	case EventScopeChanged:
		ix.unfile(b, ev.Old.(*Scope), c.ID())
		ix.file(b, ev.New.(*Scope), c.ID())
	}
	return nil
}

func (ix *ScopedIndex) bucketsOf(c Construct) buckets {
	switch c.Kind() {
	case KindAssociation:
		return ix.associations
	case KindOccurrence:
		return ix.occurrences
	case KindName:
		return ix.names
	case KindVariant:
		return ix.variants
	}
	return nil
}

func scopeOf(c Construct) *Scope {
	switch c := c.(type) {
	case *Association:
		return c.scope
	case *Occurrence:
		return c.scope
	case *Name:
		return c.scope
	case *Variant:
		return c.scope
	}
	return nil
}

func (ix *ScopedIndex) file(b buckets, s *Scope, id ID) {
	if s.IsUnconstrained() {
		b.add(0, id)
		return
	}
	for _, theme := range s.themes {
		b.add(theme, id)
	}
}

func (ix *ScopedIndex) unfile(b buckets, s *Scope, id ID) {
	if s.IsUnconstrained() {
		b.remove(0, id)
		return
	}
	for _, theme := range s.themes {
		b.remove(theme, id)
	}
}

// usedAsTheme reports whether id is a theme of any scoped construct.
func (ix *ScopedIndex) usedAsTheme(id ID) bool {
	return ix.associations.used(id) || ix.occurrences.used(id) || ix.names.used(id) || ix.variants.used(id)
}

// scopedBy returns every scoped construct with theme id. Names come before
// their variants so a name's scope is updated first.
func (ix *ScopedIndex) scopedBy(id ID) []Construct {
	var out []Construct
	for _, b := range []buckets{ix.associations, ix.occurrences, ix.names, ix.variants} {
		for _, cid := range b[id].sorted() {
			if c := ix.tm.lookup(cid); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

// Associations returns the associations with theme in scope; nil selects
// unconstrained associations.
func (ix *ScopedIndex) Associations(theme *Topic) []*Association {
	return resolveAll[*Association](ix.tm, ix.associations.lookup(theme))
}

// AssociationsByThemes returns the associations scoped by any of themes, or
// by all of them when matchAll is set.
func (ix *ScopedIndex) AssociationsByThemes(themes []*Topic, matchAll bool) []*Association {
	return resolveAll[*Association](ix.tm, ix.associations.combine(themes, matchAll))
}

// Occurrences returns the occurrences with theme in scope.
func (ix *ScopedIndex) Occurrences(theme *Topic) []*Occurrence {
	return resolveAll[*Occurrence](ix.tm, ix.occurrences.lookup(theme))
}

// OccurrencesByThemes returns the occurrences scoped by any (or all) of themes.
func (ix *ScopedIndex) OccurrencesByThemes(themes []*Topic, matchAll bool) []*Occurrence {
	return resolveAll[*Occurrence](ix.tm, ix.occurrences.combine(themes, matchAll))
}

// Names returns the names with theme in scope.
func (ix *ScopedIndex) Names(theme *Topic) []*Name {
	return resolveAll[*Name](ix.tm, ix.names.lookup(theme))
}

// NamesByThemes returns the names scoped by any (or all) of themes.
func (ix *ScopedIndex) NamesByThemes(themes []*Topic, matchAll bool) []*Name {
	return resolveAll[*Name](ix.tm, ix.names.combine(themes, matchAll))
}

// Variants returns the variants with theme in their effective scope.
func (ix *ScopedIndex) Variants(theme *Topic) []*Variant {
	return resolveAll[*Variant](ix.tm, ix.variants.lookup(theme))
}

// VariantsByThemes returns the variants scoped by any (or all) of themes.
func (ix *ScopedIndex) VariantsByThemes(themes []*Topic, matchAll bool) []*Variant {
	return resolveAll[*Variant](ix.tm, ix.variants.combine(themes, matchAll))
}

// AssociationThemes returns every topic used as an association theme.
func (ix *ScopedIndex) AssociationThemes() []*Topic { return ix.associations.keys(ix.tm) }

// OccurrenceThemes returns every topic used as an occurrence theme.
func (ix *ScopedIndex) OccurrenceThemes() []*Topic { return ix.occurrences.keys(ix.tm) }

// NameThemes returns every topic used as a name theme.
func (ix *ScopedIndex) NameThemes() []*Topic { return ix.names.keys(ix.tm) }

// VariantThemes returns every topic used as a variant theme.
func (ix *ScopedIndex) VariantThemes() []*Topic { return ix.variants.keys(ix.tm) }
