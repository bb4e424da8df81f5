package entities

// RelationType is a system entity declaring what a relation of its kind may
// connect. Symmetric types canonicalize edge direction, so "marriedTo" is
// stored only once regardless of which endpoint was passed as source.
type RelationType struct {
	Metadata
	RegularName string `json:"regularName,omitempty"`
	InverseName string `json:"inverseName,omitempty"`
	Symmetric   bool   `json:"symmetric,omitempty"`
	Reflexive   bool   `json:"reflexive,omitempty"`
	SourceKind  Kind   `json:"sourceKind,omitempty"`
	TargetKind  Kind   `json:"targetKind,omitempty"`
}

func (*RelationType) Kind() Kind {
	return KindRelationType
}

// Relation is a typed, directed edge between two entities. It is itself a
// versioned entity with id, revision and PID.
type Relation struct {
	Metadata
	TypeID     string `json:"typeId"`
	SourceID   string `json:"sourceId"`
	SourceKind Kind   `json:"sourceKind,omitempty"`
	TargetID   string `json:"targetId"`
	TargetKind Kind   `json:"targetKind,omitempty"`
	Accepted   bool   `json:"accepted,omitempty"`
}

func (*Relation) Kind() Kind {
	return KindRelation
}

// Canonicalize orders the endpoints of a symmetric relation by lexicographic
// id comparison, so a relation and its mirror map to the same stored edge.
func (r *Relation) Canonicalize() {
	if r.TargetID < r.SourceID {
		r.SourceID, r.TargetID = r.TargetID, r.SourceID
		r.SourceKind, r.TargetKind = r.TargetKind, r.SourceKind
	}
}
