package social

import "github.com/dateloop/backend/internal/models"

// Relationship is the undirected state between two users.
type Relationship string

const (
	RelationshipNone    Relationship = "none"
	RelationshipPending Relationship = "pending"
	RelationshipFriends Relationship = "friends"
)

// FriendPair collapses the directed edges between two users into one undirected
// view. A is always the lexically smaller id, so FriendPair values for (x, y)
// and (y, x) are identical.
type FriendPair struct {
	A     string              `json:"a"`
	B     string              `json:"b"`
	State Relationship        `json:"state"`
	Edges []models.FriendEdge `json:"-"`
}

// NewFriendPair builds the pair view from every edge linking the two users.
// Edges that do not connect them are ignored.
func NewFriendPair(userID, otherID string, edges []models.FriendEdge) FriendPair {
	a, b := userID, otherID
	if b < a {
		a, b = b, a
	}

	pair := FriendPair{A: a, B: b, State: RelationshipNone}
	for _, edge := range edges {
		if !pair.connects(edge) {
			continue
		}
		pair.Edges = append(pair.Edges, edge)
		switch edge.Status {
		case models.StatusAccepted:
			pair.State = RelationshipFriends
		case models.StatusPending:
			if pair.State == RelationshipNone {
				pair.State = RelationshipPending
			}
		}
	}
	return pair
}

// Other returns the member of the pair that is not userID.
func (p FriendPair) Other(userID string) string {
	if userID == p.A {
		return p.B
	}
	return p.A
}

// Active reports whether a pending or accepted edge links the pair.
func (p FriendPair) Active() bool {
	return p.State != RelationshipNone
}

// PendingEdges returns the pending edges in either direction.
func (p FriendPair) PendingEdges() []models.FriendEdge {
	var pending []models.FriendEdge
	for _, edge := range p.Edges {
		if edge.Status == models.StatusPending {
			pending = append(pending, edge)
		}
	}
	return pending
}

func (p FriendPair) connects(edge models.FriendEdge) bool {
	return (edge.UserID == p.A && edge.FriendID == p.B) || (edge.UserID == p.B && edge.FriendID == p.A)
}
