package topicmap

// buckets maps a key topic (type or theme) to the constructs filed under it.
// Key 0 holds untyped topics and associations, or unconstrained constructs.
// Empty buckets are deleted so key listings stay exact.
type buckets map[ID]idSet

func (b buckets) add(key, id ID) {
	set := b[key]
	if set == nil {
		set = make(idSet)
		b[key] = set
	}
	set.add(id)
}

func (b buckets) remove(key, id ID) {
	set := b[key]
	if set == nil {
		return
	}
	set.remove(id)
	if len(set) == 0 {
		delete(b, key)
	}
}

func (b buckets) used(key ID) bool {
	return len(b[key]) > 0
}

// keys returns the non-null keys as topics.
func (b buckets) keys(tm *TopicMap) []*Topic {
	set := make(idSet, len(b))
	for k := range b {
		if k != 0 {
			set.add(k)
		}
	}
	return resolveAll[*Topic](tm, set)
}

// combine unions the buckets of keys, or intersects them seeded from the
// first key when matchAll is set. A nil topic selects the null bucket.
func (b buckets) combine(keys []*Topic, matchAll bool) idSet {
	out := make(idSet)
	if len(keys) == 0 {
		return out
	}
	if !matchAll {
		for _, k := range keys {
			for id := range b[idOf(k)] {
				out.add(id)
			}
		}
		return out
	}
	for id := range b[idOf(keys[0])] {
		out.add(id)
	}
	for _, k := range keys[1:] {
		set := b[idOf(k)]
		for id := range out {
			if !set.has(id) {
				out.remove(id)
			}
		}
	}
	return out
}

func (b buckets) lookup(key *Topic) idSet {
	return b[idOf(key)]
}
