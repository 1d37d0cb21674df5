// Package access maps caller roles onto dormitory-level data scopes.
package access

import "dormtrack/internal/model"

// Scope narrows roster and attendance queries to a set of dormitories.
// All means unrestricted; otherwise only DormitoryIDs are visible.
type Scope struct {
	All          bool
	DormitoryIDs []int64
}

// ScopeFor computes the effective scope for a caller. Moderators are always
// confined to their owned dormitories regardless of the requested filter;
// admin and superAdmin see everything unless they ask for one dormitory.
func ScopeFor(p model.Principal, ownedDormIDs []int64, requestedDormID int64) Scope {
	if p.Role == model.RoleModerator {
		return Scope{DormitoryIDs: ownedDormIDs}
	}
	if requestedDormID > 0 {
		return Scope{DormitoryIDs: []int64{requestedDormID}}
	}
	return Scope{All: true}
}

// Contains reports whether a dormitory is visible under the scope.
// A nil dormitory (unassigned student) is only visible to unrestricted scopes.
func (s Scope) Contains(dormitoryID *int64) bool {
	if s.All {
		return true
	}
	if dormitoryID == nil {
		return false
	}
	for _, id := range s.DormitoryIDs {
		if id == *dormitoryID {
			return true
		}
	}
	return false
}

// Empty reports whether the scope can never match anything.
func (s Scope) Empty() bool {
	return !s.All && len(s.DormitoryIDs) == 0
}
