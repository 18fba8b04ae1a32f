// Package ingest implements the event protocol readers use to build a topic
// map.
//
// A reader walks its source document and reports what it sees as a bracketed
// sequence of calls on a Handler:
//
//	h := ingest.NewHandler(tm, ingest.DefaultOptions())
//	h.StartTopicMap()
//	h.StartTopic(ingest.SubjectRef(puccini))
//	h.StartName()
//	h.Value(literal.String("Puccini"))
//	h.EndName()
//	h.EndTopic()
//	h.StartAssociation()
//	h.StartType(); h.TopicRef(ingest.SubjectRef(composedBy)); h.EndType()
//	h.StartRole()
//	h.StartType(); h.TopicRef(ingest.SubjectRef(composer)); h.EndType()
//	h.StartPlayer(); h.TopicRef(ingest.SubjectRef(puccini)); h.EndPlayer()
//	h.EndRole()
//	h.EndAssociation()
//	h.EndTopicMap()
//
// Topics are created or resolved as soon as they are referenced. Every other
// construct is buffered until its end event and committed in one step, so the
// engine never sees a half-built association, occurrence or name. Roles, and
// the reifiers and item identifiers attached to them, are applied only after
// their association exists. A construct that fails to commit is removed
// again.
//
// When an identifier added to an open topic is already held by another topic
// the two are merged, whether or not the topic map has auto-merge enabled. A
// merge the engine refuses because both topics reify different constructs is
// reported as a *MergeConflictError.
package ingest

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/orneryd/tmengine/pkg/config"
	"github.com/orneryd/tmengine/pkg/literal"
	"github.com/orneryd/tmengine/pkg/topicmap"
)

// RefKind says how a Ref identifies a topic.
type RefKind uint8

const (
	// RefNone asks for a fresh topic with a generated item identifier.
	RefNone RefKind = iota
	RefItemIdentifier
	RefSubjectIdentifier
	RefSubjectLocator
)

func (k RefKind) String() string {
	switch k {
	case RefItemIdentifier:
		return "item-identifier"
	case RefSubjectIdentifier:
		return "subject-identifier"
	case RefSubjectLocator:
		return "subject-locator"
	}
	return "none"
}

// Ref is a topic reference as it appears in a source document.
type Ref struct {
	Kind RefKind
	IRI  literal.Literal
}

// ItemRef references a topic by item identifier.
func ItemRef(iri literal.Literal) Ref { return Ref{Kind: RefItemIdentifier, IRI: iri} }

// SubjectRef references a topic by subject identifier.
func SubjectRef(iri literal.Literal) Ref { return Ref{Kind: RefSubjectIdentifier, IRI: iri} }

// LocatorRef references a topic by subject locator.
func LocatorRef(iri literal.Literal) Ref { return Ref{Kind: RefSubjectLocator, IRI: iri} }

func (r Ref) String() string {
	if r.Kind == RefNone {
		return "anonymous"
	}
	return r.Kind.String() + ":" + r.IRI.Value()
}

// Options controls the passes run when the topic map ends.
type Options struct {
	// ConvertTypeInstance rewrites unscoped, unreified type-instance
	// associations into topic types.
	ConvertTypeInstance bool

	// RemoveDuplicatesOnEnd folds duplicate characteristics and
	// associations.
	RemoveDuplicatesOnEnd bool

	Logger *zap.Logger
}

// DefaultOptions enables both end-of-map passes.
func DefaultOptions() Options {
	return Options{ConvertTypeInstance: true, RemoveDuplicatesOnEnd: true, Logger: zap.NewNop()}
}

// OptionsFromConfig derives Options from the engine configuration.
func OptionsFromConfig(cfg config.EngineConfig, logger *zap.Logger) Options {
	opts := DefaultOptions()
	opts.ConvertTypeInstance = cfg.ConvertTypeInstance
	opts.RemoveDuplicatesOnEnd = cfg.RemoveDuplicatesOnEnd
	if logger != nil {
		opts.Logger = logger
	}
	return opts
}

// Summary describes what the end-of-map passes did.
type Summary struct {
	Converted  int
	Duplicates topicmap.DuplicateStats
	// Merges counts collisions the handler resolved itself. Merges done by
	// an auto-merging topic map are not included.
	Merges int
}

type state uint8

const (
	stateInitial state = iota
	stateTopicMap
	stateTopic
	stateAssociation
	stateRole
	stateOccurrence
	stateName
	stateVariant
	stateScope
	stateTheme
	stateType
	statePlayer
	stateReifier
	stateIsa
	stateDone
)

var stateNames = [...]string{
	stateInitial:     "initial",
	stateTopicMap:    "topic map",
	stateTopic:       "topic",
	stateAssociation: "association",
	stateRole:        "role",
	stateOccurrence:  "occurrence",
	stateName:        "name",
	stateVariant:     "variant",
	stateScope:       "scope",
	stateTheme:       "theme",
	stateType:        "type",
	statePlayer:      "player",
	stateReifier:     "reifier",
	stateIsa:         "isa",
	stateDone:        "done",
}

func (s state) String() string { return stateNames[s] }

// pending is a buffered association, role, occurrence, name or variant.
type pending struct {
	kind     topicmap.Kind
	typ      *topicmap.Topic
	player   *topicmap.Topic
	reifier  *topicmap.Topic
	themes   []*topicmap.Topic
	value    literal.Literal
	iids     []literal.Literal
	children []*pending
}

type frame struct {
	state state
	topic *topicmap.Topic
	p     *pending
}

// Handler receives ingestion events for one topic map. It is single-use and,
// like the topic map it writes to, not safe for concurrent use.
type Handler struct {
	tm      *topicmap.TopicMap
	opts    Options
	logger  *zap.Logger
	stack   []frame
	summary Summary
}

// NewHandler returns a Handler that writes into tm.
func NewHandler(tm *topicmap.TopicMap, opts Options) *Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Handler{
		tm:     tm,
		opts:   opts,
		logger: opts.Logger.With(zap.String("base", tm.BaseLocator().Value())),
		stack:  []frame{{state: stateInitial}},
	}
}

// TopicMap returns the topic map being built.
func (h *Handler) TopicMap() *topicmap.TopicMap { return h.tm }

// Summary returns the result of the end-of-map passes. It is zero until
// EndTopicMap has returned.
func (h *Handler) Summary() Summary { return h.summary }

func (h *Handler) top() *frame { return &h.stack[len(h.stack)-1] }

// below returns the frame under the top one.
func (h *Handler) below() *frame { return &h.stack[len(h.stack)-2] }

func (h *Handler) push(f frame) { h.stack = append(h.stack, f) }

func (h *Handler) pop() frame {
	f := h.stack[len(h.stack)-1]
	h.stack = h.stack[:len(h.stack)-1]
	return f
}

func (h *Handler) expect(event string, allowed ...state) error {
	cur := h.top().state
	for _, s := range allowed {
		if cur == s {
			return nil
		}
	}
	return fmt.Errorf("%w: %s in %s state", ErrUnexpectedEvent, event, cur)
}

// StartTopicMap opens the topic map. It must be the first event.
func (h *Handler) StartTopicMap() error {
	if err := h.expect("StartTopicMap", stateInitial); err != nil {
		return err
	}
	h.push(frame{state: stateTopicMap})
	return nil
}

// EndTopicMap closes the topic map and runs the configured end-of-map passes.
func (h *Handler) EndTopicMap() error {
	if err := h.expect("EndTopicMap", stateTopicMap); err != nil {
		return err
	}
	h.pop()
	h.top().state = stateDone

	if h.opts.ConvertTypeInstance {
		n, err := topicmap.ConvertAssociationsToTypes(h.tm)
		if err != nil {
			return fmt.Errorf("converting type-instance associations: %w", err)
		}
		h.summary.Converted = n
	}
	if h.opts.RemoveDuplicatesOnEnd {
		stats, err := h.tm.RemoveDuplicates()
		if err != nil {
			return fmt.Errorf("removing duplicates: %w", err)
		}
		h.summary.Duplicates = stats
	}
	h.logger.Info("topic map ingested",
		zap.Int("converted", h.summary.Converted),
		zap.Int("duplicates", h.summary.Duplicates.Total()),
		zap.Int("merges", h.summary.Merges),
		zap.Stringer("stats", h.tm.Stats()),
	)
	return nil
}

// StartTopic opens a topic, creating it if ref does not resolve to one.
func (h *Handler) StartTopic(ref Ref) error {
	if err := h.expect("StartTopic", stateTopicMap); err != nil {
		return err
	}
	t, err := h.resolve(ref)
	if err != nil {
		return err
	}
	h.push(frame{state: stateTopic, topic: t})
	return nil
}

// EndTopic closes the current topic.
func (h *Handler) EndTopic() error {
	if err := h.expect("EndTopic", stateTopic); err != nil {
		return err
	}
	h.pop()
	return nil
}

// SubjectIdentifier adds iri to the open topic, merging with the topic that
// already carries it.
func (h *Handler) SubjectIdentifier(iri literal.Literal) error {
	if err := h.expect("SubjectIdentifier", stateTopic); err != nil {
		return err
	}
	return h.addTopicIdentifier(iri, (*topicmap.Topic).AddSubjectIdentifier)
}

// SubjectLocator adds iri to the open topic, merging with the topic that
// already carries it.
func (h *Handler) SubjectLocator(iri literal.Literal) error {
	if err := h.expect("SubjectLocator", stateTopic); err != nil {
		return err
	}
	return h.addTopicIdentifier(iri, (*topicmap.Topic).AddSubjectLocator)
}

// ItemIdentifier adds iri to the innermost open construct. For buffered
// constructs it is applied when the construct is committed.
func (h *Handler) ItemIdentifier(iri literal.Literal) error {
	if err := h.expect("ItemIdentifier", stateTopicMap, stateTopic, stateAssociation,
		stateRole, stateOccurrence, stateName, stateVariant); err != nil {
		return err
	}
	f := h.top()
	switch f.state {
	case stateTopicMap:
		return h.tm.AddItemIdentifier(iri)
	case stateTopic:
		return h.addTopicIdentifier(iri, (*topicmap.Topic).AddItemIdentifier)
	}
	f.p.iids = append(f.p.iids, iri)
	return nil
}

// addTopicIdentifier adds iri to the open topic. A mergeable collision,
// reported when the topic map does not merge on its own, is resolved by
// merging the other topic into the open one.
func (h *Handler) addTopicIdentifier(iri literal.Literal, add func(*topicmap.Topic, literal.Literal) error) error {
	f := h.top()
	t := f.topic.Current()
	err := add(t, iri)
	var ice *topicmap.IdentityConstraintError
	if errors.As(err, &ice) && ice.Mergeable {
		other := ice.Existing.(*topicmap.Topic)
		h.logger.Debug("merging topics on identifier collision",
			zap.Stringer("locator", iri), zap.Stringer("into", t), zap.Stringer("from", other))
		if err = t.MergeIn(other); err == nil {
			h.summary.Merges++
			err = add(t.Current(), iri)
		}
	}
	if err != nil {
		return conflict(t, iri, err)
	}
	f.topic = t.Current()
	return nil
}

// StartAssociation opens an association.
func (h *Handler) StartAssociation() error {
	if err := h.expect("StartAssociation", stateTopicMap); err != nil {
		return err
	}
	h.push(frame{state: stateAssociation, p: &pending{kind: topicmap.KindAssociation}})
	return nil
}

// EndAssociation commits the association, then its roles, then the
// reifiers and item identifiers of those roles. If any of that fails the
// association is removed again.
func (h *Handler) EndAssociation() error {
	if err := h.expect("EndAssociation", stateAssociation); err != nil {
		return err
	}
	p := h.pop().p
	a, err := h.tm.CreateAssociation(current(p.typ), currentAll(p.themes)...)
	if err != nil {
		return err
	}
	return rollback(a, h.commitAssociation(a, p))
}

func (h *Handler) commitAssociation(a *topicmap.Association, p *pending) error {
	if err := h.finish(a, p); err != nil {
		return err
	}
	roles := make([]*topicmap.Role, 0, len(p.children))
	for _, rp := range p.children {
		r, err := a.CreateRole(current(rp.typ), current(rp.player))
		if err != nil {
			return err
		}
		roles = append(roles, r)
	}
	for i, rp := range p.children {
		if err := h.finish(roles[i], rp); err != nil {
			return err
		}
	}
	return nil
}

// StartRole opens a role of the current association.
func (h *Handler) StartRole() error {
	if err := h.expect("StartRole", stateAssociation); err != nil {
		return err
	}
	h.push(frame{state: stateRole, p: &pending{kind: topicmap.KindRole}})
	return nil
}

// EndRole closes the role. It is committed with its association.
func (h *Handler) EndRole() error {
	if err := h.expect("EndRole", stateRole); err != nil {
		return err
	}
	p := h.pop().p
	if p.typ == nil || p.player == nil {
		return fmt.Errorf("%w: role needs a type and a player", ErrIncomplete)
	}
	assoc := h.top().p
	assoc.children = append(assoc.children, p)
	return nil
}

// StartPlayer opens the player reference of the current role.
func (h *Handler) StartPlayer() error {
	if err := h.expect("StartPlayer", stateRole); err != nil {
		return err
	}
	h.push(frame{state: statePlayer})
	return nil
}

// EndPlayer closes the player reference.
func (h *Handler) EndPlayer() error { return h.endRef("EndPlayer", statePlayer) }

// StartOccurrence opens an occurrence of the current topic.
func (h *Handler) StartOccurrence() error {
	if err := h.expect("StartOccurrence", stateTopic); err != nil {
		return err
	}
	h.push(frame{state: stateOccurrence, p: &pending{kind: topicmap.KindOccurrence}})
	return nil
}

// EndOccurrence commits the occurrence.
func (h *Handler) EndOccurrence() error {
	if err := h.expect("EndOccurrence", stateOccurrence); err != nil {
		return err
	}
	p := h.pop().p
	if p.typ == nil || p.value.IsZero() {
		return fmt.Errorf("%w: occurrence needs a type and a value", ErrIncomplete)
	}
	t := h.top().topic.Current()
	o, err := t.CreateOccurrence(current(p.typ), p.value, currentAll(p.themes)...)
	if err != nil {
		return err
	}
	return rollback(o, h.finish(o, p))
}

// StartName opens a name of the current topic.
func (h *Handler) StartName() error {
	if err := h.expect("StartName", stateTopic); err != nil {
		return err
	}
	h.push(frame{state: stateName, p: &pending{kind: topicmap.KindName}})
	return nil
}

// EndName commits the name and then its variants. A name without a type
// gets the default name type.
func (h *Handler) EndName() error {
	if err := h.expect("EndName", stateName); err != nil {
		return err
	}
	p := h.pop().p
	if p.value.IsZero() {
		return fmt.Errorf("%w: name needs a value", ErrIncomplete)
	}
	t := h.top().topic.Current()
	n, err := t.CreateName(current(p.typ), p.value.Value(), currentAll(p.themes)...)
	if err != nil {
		return err
	}
	return rollback(n, h.commitName(n, p))
}

func (h *Handler) commitName(n *topicmap.Name, p *pending) error {
	if err := h.finish(n, p); err != nil {
		return err
	}
	for _, vp := range p.children {
		v, err := n.CreateVariant(vp.value, currentAll(vp.themes)...)
		if err != nil {
			return err
		}
		if err := h.finish(v, vp); err != nil {
			return err
		}
	}
	return nil
}

// StartVariant opens a variant of the current name.
func (h *Handler) StartVariant() error {
	if err := h.expect("StartVariant", stateName); err != nil {
		return err
	}
	h.push(frame{state: stateVariant, p: &pending{kind: topicmap.KindVariant}})
	return nil
}

// EndVariant closes the variant. It is committed with its name.
func (h *Handler) EndVariant() error {
	if err := h.expect("EndVariant", stateVariant); err != nil {
		return err
	}
	p := h.pop().p
	if p.value.IsZero() {
		return fmt.Errorf("%w: variant needs a value", ErrIncomplete)
	}
	name := h.top().p
	name.children = append(name.children, p)
	return nil
}

// Value sets the value of the open occurrence, name or variant. Name values
// use the lexical form of v.
func (h *Handler) Value(v literal.Literal) error {
	if err := h.expect("Value", stateOccurrence, stateName, stateVariant); err != nil {
		return err
	}
	if v.IsZero() {
		return fmt.Errorf("%w: zero literal value", ErrIncomplete)
	}
	h.top().p.value = v
	return nil
}

// StartType opens the type reference of the open association, role,
// occurrence or name.
func (h *Handler) StartType() error {
	if err := h.expect("StartType", stateAssociation, stateRole, stateOccurrence, stateName); err != nil {
		return err
	}
	h.push(frame{state: stateType})
	return nil
}

// EndType closes the type reference.
func (h *Handler) EndType() error { return h.endRef("EndType", stateType) }

// StartScope opens the scope of the open association, occurrence, name or
// variant. Themes are added with StartTheme or directly with TopicRef.
func (h *Handler) StartScope() error {
	if err := h.expect("StartScope", stateAssociation, stateOccurrence, stateName, stateVariant); err != nil {
		return err
	}
	h.push(frame{state: stateScope})
	return nil
}

// EndScope closes the scope.
func (h *Handler) EndScope() error {
	if err := h.expect("EndScope", stateScope); err != nil {
		return err
	}
	h.pop()
	return nil
}

// StartTheme opens a theme reference inside a scope.
func (h *Handler) StartTheme() error {
	if err := h.expect("StartTheme", stateScope); err != nil {
		return err
	}
	h.push(frame{state: stateTheme})
	return nil
}

// EndTheme closes the theme reference.
func (h *Handler) EndTheme() error { return h.endRef("EndTheme", stateTheme) }

// StartReifier opens the reifier reference of the innermost construct.
func (h *Handler) StartReifier() error {
	if err := h.expect("StartReifier", stateTopicMap, stateAssociation, stateRole,
		stateOccurrence, stateName, stateVariant); err != nil {
		return err
	}
	h.push(frame{state: stateReifier})
	return nil
}

// EndReifier closes the reifier reference.
func (h *Handler) EndReifier() error { return h.endRef("EndReifier", stateReifier) }

// StartIsa opens a type reference of the current topic.
func (h *Handler) StartIsa() error {
	if err := h.expect("StartIsa", stateTopic); err != nil {
		return err
	}
	h.push(frame{state: stateIsa})
	return nil
}

// EndIsa closes the topic type reference.
func (h *Handler) EndIsa() error { return h.endRef("EndIsa", stateIsa) }

func (h *Handler) endRef(event string, s state) error {
	if err := h.expect(event, s); err != nil {
		return err
	}
	h.pop()
	return nil
}

// TopicRef resolves ref and uses the topic as whatever the open reference
// frame stands for: a type, theme, player, reifier or topic type.
func (h *Handler) TopicRef(ref Ref) error {
	if err := h.expect("TopicRef", stateType, stateScope, stateTheme, statePlayer, stateReifier, stateIsa); err != nil {
		return err
	}
	t, err := h.resolve(ref)
	if err != nil {
		return err
	}
	switch h.top().state {
	case stateType:
		h.owner().typ = t
	case statePlayer:
		h.below().p.player = t
	case stateScope:
		p := h.below().p
		p.themes = append(p.themes, t)
	case stateTheme:
		p := h.stack[len(h.stack)-3].p
		p.themes = append(p.themes, t)
	case stateIsa:
		return h.below().topic.Current().AddType(t)
	case stateReifier:
		owner := h.below()
		if owner.state == stateTopicMap {
			return conflict(h.tm, literal.Literal{}, h.tm.SetReifier(t))
		}
		owner.p.reifier = t
	}
	return nil
}

// owner returns the buffered construct under the open reference frame.
func (h *Handler) owner() *pending { return h.below().p }

// resolve finds or creates the topic ref points at.
func (h *Handler) resolve(ref Ref) (*topicmap.Topic, error) {
	var (
		t   *topicmap.Topic
		err error
	)
	switch ref.Kind {
	case RefNone:
		t, err = h.tm.CreateTopic()
	case RefItemIdentifier:
		t, err = h.tm.CreateTopicByItemIdentifier(ref.IRI)
	case RefSubjectIdentifier:
		t, err = h.tm.CreateTopicBySubjectIdentifier(ref.IRI)
	case RefSubjectLocator:
		t, err = h.tm.CreateTopicBySubjectLocator(ref.IRI)
	default:
		return nil, fmt.Errorf("%w: unknown reference kind %d", ErrUnexpectedEvent, ref.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", ref, err)
	}
	return t, nil
}

// finish applies the item identifiers and reifier buffered for c.
func (h *Handler) finish(c topicmap.Reifiable, p *pending) error {
	for _, iid := range p.iids {
		if err := c.AddItemIdentifier(iid); err != nil {
			return err
		}
	}
	if p.reifier != nil {
		if err := c.SetReifier(p.reifier.Current()); err != nil {
			return conflict(c, literal.Literal{}, err)
		}
	}
	return nil
}

// rollback removes c when err is set, so a construct that could not be
// completed does not stay in the topic map. A failed removal is joined to err.
func rollback(c topicmap.Construct, err error) error {
	if err == nil {
		return nil
	}
	if rerr := c.Remove(); rerr != nil {
		return errors.Join(err, fmt.Errorf("rolling back %s: %w", c.Kind(), rerr))
	}
	return err
}

func current(t *topicmap.Topic) *topicmap.Topic {
	if t == nil {
		return nil
	}
	return t.Current()
}

func currentAll(ts []*topicmap.Topic) []*topicmap.Topic {
	out := make([]*topicmap.Topic, len(ts))
	for i, t := range ts {
		out[i] = t.Current()
	}
	return out
}
