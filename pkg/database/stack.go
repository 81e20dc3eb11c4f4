package database

import "github.com/chemist/builddb/pkg/buildtypes"

// Stack is the immutable chain of ids currently being built along one
// logical call chain — the ancestor keys whose execute collaborator is
// (transitively) the one demanding the current key. Its zero value is
// the empty stack a top-level Build call starts with.
type Stack struct {
	ids   []buildtypes.Id
	keys  []buildtypes.Key
	idSet map[buildtypes.Id]struct{}
}

// push returns a new Stack with id/key appended as the innermost frame.
func (s Stack) push(id buildtypes.Id, key buildtypes.Key) Stack {
	ids := append(append([]buildtypes.Id(nil), s.ids...), id)
	keys := append(append([]buildtypes.Key(nil), s.keys...), key)
	idSet := make(map[buildtypes.Id]struct{}, len(s.idSet)+1)
	for k := range s.idSet {
		idSet[k] = struct{}{}
	}
	idSet[id] = struct{}{}
	return Stack{ids: ids, keys: keys, idSet: idSet}
}

// checkStack reports the first of ids that already appears on s, if any
// — the signature of a rule (transitively) demanding its own key.
func checkStack(ids []buildtypes.Id, s Stack) (buildtypes.Id, bool) {
	for _, id := range ids {
		if _, ok := s.idSet[id]; ok {
			return id, true
		}
	}
	return 0, false
}

// Display renders the stack's frames, outermost first, for diagnostics.
func (s Stack) Display() []string {
	out := make([]string, len(s.keys))
	for i, k := range s.keys {
		out[i] = k.String()
	}
	return out
}
