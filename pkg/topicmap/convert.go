package topicmap

import (
	"go.uber.org/zap"
)

// ConvertAssociationsToTypes replaces every plain type-instance association
// by a topic type: an association typed PSITypeInstance with exactly one
// PSIType role and one PSIInstance role becomes instance.AddType(type) and is
// removed.
//
// Associations carrying anything the topic type cannot express (a scope, a
// reifier, item identifiers, or roles with a reifier or item identifiers) are
// left untouched. Returns the number of converted associations.
func ConvertAssociationsToTypes(tm *TopicMap) (int, error) {
	if err := tm.check(); err != nil {
		return 0, err
	}
	assocType := tm.TopicBySubjectIdentifier(PSITypeInstance)
	typeRole := tm.TopicBySubjectIdentifier(PSIType)
	instanceRole := tm.TopicBySubjectIdentifier(PSIInstance)
	if assocType == nil || typeRole == nil || instanceRole == nil {
		return 0, nil
	}

	converted := 0
	for _, a := range tm.typeIndex.Associations(assocType) {
		typ, inst, ok := typeInstancePlayers(a, typeRole, instanceRole)
		if !ok {
			continue
		}
		inst.addType(typ)
		tm.dropAssociation(a)
		converted++
	}
	if converted > 0 {
		tm.logger.Debug("converted type-instance associations", zap.Int("count", converted))
	}
	return converted, nil
}

func typeInstancePlayers(a *Association, typeRole, instanceRole *Topic) (typ, inst *Topic, ok bool) {
	if a.reifier != 0 || len(a.iids) > 0 || !a.scope.IsUnconstrained() || len(a.roles) != 2 {
		return nil, nil, false
	}
	for _, r := range a.Roles() {
		if r.reifier != 0 || len(r.iids) > 0 {
			return nil, nil, false
		}
		switch r.typ {
		case typeRole.id:
			typ = r.Player()
		case instanceRole.id:
			inst = r.Player()
		}
	}
	return typ, inst, typ != nil && inst != nil
}

// ConvertTypesToAssociations is the inverse of ConvertAssociationsToTypes:
// every topic type becomes a type-instance association and the topic's types
// are cleared. The PSI topics are created when missing. Returns the number of
// created associations.
func ConvertTypesToAssociations(tm *TopicMap) (int, error) {
	if err := tm.check(); err != nil {
		return 0, err
	}
	var typed []*Topic
	for _, t := range tm.Topics() {
		if len(t.types) > 0 {
			typed = append(typed, t)
		}
	}
	if len(typed) == 0 {
		return 0, nil
	}

	assocType, err := tm.CreateTopicBySubjectIdentifier(PSITypeInstance)
	if err != nil {
		return 0, err
	}
	typeRole, err := tm.CreateTopicBySubjectIdentifier(PSIType)
	if err != nil {
		return 0, err
	}
	instanceRole, err := tm.CreateTopicBySubjectIdentifier(PSIInstance)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, inst := range typed {
		for _, typ := range inst.Types() {
			a, err := tm.CreateAssociation(assocType)
			if err != nil {
				return created, err
			}
			if _, err := a.CreateRole(typeRole, typ); err != nil {
				return created, err
			}
			if _, err := a.CreateRole(instanceRole, inst); err != nil {
				return created, err
			}
			inst.removeType(typ)
			created++
		}
	}
	return created, nil
}
