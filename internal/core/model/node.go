package model

// FusedNode is a UIDN: the canonical identity of one real-world entity after
// cross-modal matching. MemberEntityIDs and ModalityCoverage are sorted sets.
type FusedNode struct {
	UIDN             string     `json:"uidn_id"`
	Type             EntityType `json:"type"`
	CanonicalValue   string     `json:"canonical_value"`
	Aliases          []string   `json:"aliases,omitempty"`
	MemberEntityIDs  []string   `json:"member_entity_ids"`
	ModalityCoverage []Modality `json:"modality_coverage"`
	Confidence       float64    `json:"confidence"`
}

// Covers reports whether any member of the node came from modality m.
func (n FusedNode) Covers(m Modality) bool {
	for _, c := range n.ModalityCoverage {
		if c == m {
			return true
		}
	}
	return false
}
