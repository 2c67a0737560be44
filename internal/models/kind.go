package models

// Kind identifies an entity type. The string values double as cache table
// tags and as URL path segments on the server API.
type Kind string

const (
	KindPlan     Kind = "plans"
	KindSchedule Kind = "schedules"
	KindMoment   Kind = "moments"
	KindMemo     Kind = "memos"
	KindComment  Kind = "comments"

	// KindMember is cache-only: membership writes are never queued offline,
	// so members appear in the cache but never in the operation log.
	KindMember Kind = "members"
)

// CreateOrder lists kinds parent-before-child. Create replay walks it
// forward, delete replay walks it backward.
var CreateOrder = []Kind{KindPlan, KindSchedule, KindMoment, KindMemo, KindComment}

// CreateRank returns the position of k in CreateOrder, or a rank past the
// end for kinds that never carry operations.
func CreateRank(k Kind) int {
	for i, c := range CreateOrder {
		if c == k {
			return i
		}
	}
	return len(CreateOrder)
}

// IsTemporary reports whether id is a client-assigned temporary identifier.
// Temp ids are always negative; server ids are always positive.
func IsTemporary(id int64) bool {
	return id < 0
}
