package fixture

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/ingest"
	"github.com/orneryd/tmengine/pkg/literal"
	"github.com/orneryd/tmengine/pkg/topicmap"
)

// Load creates a topic map in sys for doc and replays doc into it.
// fallbackBase is used when the document does not name a base.
func Load(sys *topicmap.System, doc *Document, fallbackBase string, opts ingest.Options) (*topicmap.TopicMap, ingest.Summary, error) {
	base := doc.Base
	if base == "" {
		base = fallbackBase
	}
	tm, err := sys.CreateTopicMap(base)
	if err != nil {
		return nil, ingest.Summary{}, err
	}
	h := ingest.NewHandler(tm, opts)
	if err := doc.Replay(h); err != nil {
		_ = tm.Close()
		return nil, ingest.Summary{}, err
	}
	return tm, h.Summary(), nil
}

// Replay sends the document to h as one topic map, from StartTopicMap to
// EndTopicMap. Errors name the entry they came from.
func (d *Document) Replay(h *ingest.Handler) error {
	r := &replayer{h: h, base: h.TopicMap().BaseLocator()}
	if err := h.StartTopicMap(); err != nil {
		return err
	}
	if err := r.identifiers(d.ItemIdentifiers); err != nil {
		return fmt.Errorf("item_identifiers: %w", err)
	}
	if err := r.reifier(d.Reifier); err != nil {
		return fmt.Errorf("reifier: %w", err)
	}
	for i := range d.Topics {
		if err := r.topic(&d.Topics[i]); err != nil {
			return fmt.Errorf("topics[%d]: %w", i, err)
		}
	}
	for i := range d.Associations {
		if err := r.association(&d.Associations[i]); err != nil {
			return fmt.Errorf("associations[%d]: %w", i, err)
		}
	}
	if err := h.EndTopicMap(); err != nil {
		return err
	}
	h.TopicMap().Logger().Debug("fixture replayed",
		zap.Int("topics", len(d.Topics)), zap.Int("associations", len(d.Associations)))
	return nil
}

type replayer struct {
	h    *ingest.Handler
	base literal.Literal
}

func (r *replayer) iri(ref string) (literal.Literal, error) {
	return literal.Resolve(r.base, ref)
}

// ref emits start, a TopicRef for s, and end.
func (r *replayer) ref(start, end func() error, s string) error {
	ref, err := ParseRef(r.base, s)
	if err != nil {
		return err
	}
	if ref.Kind == ingest.RefNone {
		return fmt.Errorf("empty topic reference")
	}
	if err := start(); err != nil {
		return err
	}
	if err := r.h.TopicRef(ref); err != nil {
		return err
	}
	return end()
}

func (r *replayer) optionalRef(start, end func() error, s string) error {
	if s == "" {
		return nil
	}
	return r.ref(start, end, s)
}

func (r *replayer) reifier(s string) error {
	return r.optionalRef(r.h.StartReifier, r.h.EndReifier, s)
}

func (r *replayer) typ(s string) error {
	return r.optionalRef(r.h.StartType, r.h.EndType, s)
}

func (r *replayer) identifiers(refs Refs) error {
	return r.each(refs, r.h.ItemIdentifier)
}

func (r *replayer) each(refs Refs, add func(literal.Literal) error) error {
	for _, s := range refs {
		iri, err := r.iri(s)
		if err != nil {
			return err
		}
		if err := add(iri); err != nil {
			return err
		}
	}
	return nil
}

func (r *replayer) scope(themes Refs) error {
	if len(themes) == 0 {
		return nil
	}
	if err := r.h.StartScope(); err != nil {
		return err
	}
	for _, s := range themes {
		if err := r.ref(r.h.StartTheme, r.h.EndTheme, s); err != nil {
			return err
		}
	}
	return r.h.EndScope()
}

func (r *replayer) topic(t *Topic) error {
	ref, err := ParseRef(r.base, t.Ref)
	if err != nil {
		return err
	}
	if err := r.h.StartTopic(ref); err != nil {
		return err
	}
	if err := r.each(t.SubjectIdentifiers, r.h.SubjectIdentifier); err != nil {
		return fmt.Errorf("subject_identifiers: %w", err)
	}
	if err := r.each(t.SubjectLocators, r.h.SubjectLocator); err != nil {
		return fmt.Errorf("subject_locators: %w", err)
	}
	if err := r.identifiers(t.ItemIdentifiers); err != nil {
		return fmt.Errorf("item_identifiers: %w", err)
	}
	for _, typ := range t.Types {
		if err := r.ref(r.h.StartIsa, r.h.EndIsa, typ); err != nil {
			return fmt.Errorf("types: %w", err)
		}
	}
	for i := range t.Names {
		if err := r.name(&t.Names[i]); err != nil {
			return fmt.Errorf("names[%d]: %w", i, err)
		}
	}
	for i := range t.Occurrences {
		if err := r.occurrence(&t.Occurrences[i]); err != nil {
			return fmt.Errorf("occurrences[%d]: %w", i, err)
		}
	}
	return r.h.EndTopic()
}

func (r *replayer) name(n *Name) error {
	if err := r.h.StartName(); err != nil {
		return err
	}
	if err := r.typ(n.Type); err != nil {
		return err
	}
	if err := r.h.Value(literal.String(n.Value)); err != nil {
		return err
	}
	if err := r.scope(n.Scope); err != nil {
		return err
	}
	if err := r.identifiers(n.ItemIdentifiers); err != nil {
		return err
	}
	if err := r.reifier(n.Reifier); err != nil {
		return err
	}
	for i := range n.Variants {
		if err := r.variant(&n.Variants[i]); err != nil {
			return fmt.Errorf("variants[%d]: %w", i, err)
		}
	}
	return r.h.EndName()
}

func (r *replayer) variant(v *Variant) error {
	if err := r.h.StartVariant(); err != nil {
		return err
	}
	lit, err := value(r.base, v.Value, v.Datatype)
	if err != nil {
		return err
	}
	if err := r.h.Value(lit); err != nil {
		return err
	}
	if err := r.scope(v.Scope); err != nil {
		return err
	}
	if err := r.identifiers(v.ItemIdentifiers); err != nil {
		return err
	}
	if err := r.reifier(v.Reifier); err != nil {
		return err
	}
	return r.h.EndVariant()
}

func (r *replayer) occurrence(o *Occurrence) error {
	if err := r.h.StartOccurrence(); err != nil {
		return err
	}
	if o.Type == "" {
		return fmt.Errorf("occurrence needs a type")
	}
	if err := r.typ(o.Type); err != nil {
		return err
	}
	lit, err := value(r.base, o.Value, o.Datatype)
	if err != nil {
		return err
	}
	if err := r.h.Value(lit); err != nil {
		return err
	}
	if err := r.scope(o.Scope); err != nil {
		return err
	}
	if err := r.identifiers(o.ItemIdentifiers); err != nil {
		return err
	}
	if err := r.reifier(o.Reifier); err != nil {
		return err
	}
	return r.h.EndOccurrence()
}

func (r *replayer) association(a *Association) error {
	if err := r.h.StartAssociation(); err != nil {
		return err
	}
	if err := r.typ(a.Type); err != nil {
		return err
	}
	if err := r.scope(a.Scope); err != nil {
		return err
	}
	if err := r.identifiers(a.ItemIdentifiers); err != nil {
		return err
	}
	if err := r.reifier(a.Reifier); err != nil {
		return err
	}
	for i := range a.Roles {
		if err := r.role(&a.Roles[i]); err != nil {
			return fmt.Errorf("roles[%d]: %w", i, err)
		}
	}
	return r.h.EndAssociation()
}

func (r *replayer) role(role *Role) error {
	if err := r.h.StartRole(); err != nil {
		return err
	}
	if err := r.ref(r.h.StartType, r.h.EndType, role.Type); err != nil {
		return fmt.Errorf("type: %w", err)
	}
	if err := r.ref(r.h.StartPlayer, r.h.EndPlayer, role.Player); err != nil {
		return fmt.Errorf("player: %w", err)
	}
	if err := r.identifiers(role.ItemIdentifiers); err != nil {
		return err
	}
	if err := r.reifier(role.Reifier); err != nil {
		return err
	}
	return r.h.EndRole()
}
