package topicmap

import "github.com/orneryd/tmengine/pkg/literal"

// Published subject identifiers defined by ISO 13250-2.
var (
	PSITopicName    = literal.MustIRI("http://psi.topicmaps.org/iso13250/model/topic-name")
	PSITypeInstance = literal.MustIRI("http://psi.topicmaps.org/iso13250/model/type-instance")
	PSIType         = literal.MustIRI("http://psi.topicmaps.org/iso13250/model/type")
	PSIInstance     = literal.MustIRI("http://psi.topicmaps.org/iso13250/model/instance")
)
