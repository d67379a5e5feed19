package core

// SessionState is the per-session UI state for every entity tab.
// It is the only mutable state in the system and is never shared between
// sessions; SessionStore hands out copies.
type SessionState struct {
	Entities map[Kind]EntityState `json:"entities"`
}

// NewSessionState returns a state with every tab on page 1 at the default page size.
func NewSessionState(pageSize int) *SessionState {
	if !ValidPageSize(pageSize) {
		pageSize = DefaultPageSize
	}
	st := &SessionState{Entities: make(map[Kind]EntityState, len(EntityKinds))}
	for _, k := range EntityKinds {
		st.Entities[k] = EntityState{Page: 1, PageSize: pageSize}
	}
	return st
}

// Entity returns a copy of the state for kind.
func (s *SessionState) Entity(kind Kind) EntityState {
	return s.Entities[kind].clone()
}

func (s *SessionState) update(kind Kind, fn func(*EntityState)) {
	if s.Entities == nil {
		s.Entities = make(map[Kind]EntityState)
	}
	es := s.Entities[kind].clone()
	fn(&es)
	s.Entities[kind] = es
}

// SetPage records the requested page. The paginator clamps it.
func (s *SessionState) SetPage(kind Kind, page int) {
	s.update(kind, func(es *EntityState) { es.Page = page })
}

// SetPageSize changes the page size and returns to page 1, since a page
// number computed under one size means nothing under another. Sizes outside
// PageSizes fall back to DefaultPageSize.
func (s *SessionState) SetPageSize(kind Kind, size int) {
	if !ValidPageSize(size) {
		size = DefaultPageSize
	}
	s.update(kind, func(es *EntityState) {
		if es.PageSize != size {
			es.Page = 1
		}
		es.PageSize = size
	})
}

// SetFilter sets or clears (values empty or "All") the filter on column.
// The page is kept; a stale page clamps on the next view.
func (s *SessionState) SetFilter(kind Kind, column string, values ...string) {
	s.update(kind, func(es *EntityState) {
		if es.Filters == nil {
			es.Filters = make(map[string][]string)
		}
		var keep []string
		for _, v := range values {
			if v != "" && v != AllValues {
				keep = append(keep, v)
			}
		}
		if len(keep) == 0 {
			delete(es.Filters, column)
			return
		}
		es.Filters[column] = keep
	})
}

// SetColumns records a customize selection. Nil restores the defaults.
func (s *SessionState) SetColumns(kind Kind, columns []string) {
	s.update(kind, func(es *EntityState) {
		if columns == nil {
			es.Columns = nil
			return
		}
		es.Columns = append([]string{}, columns...)
	})
}

// Reset clears filters, page and column selection for kind, keeping the page size.
func (s *SessionState) Reset(kind Kind) {
	s.update(kind, func(es *EntityState) {
		*es = EntityState{Page: 1, PageSize: es.PageSize}
	})
}

// Clone returns a deep copy.
func (s *SessionState) Clone() *SessionState {
	out := &SessionState{Entities: make(map[Kind]EntityState, len(s.Entities))}
	for k, es := range s.Entities {
		out.Entities[k] = es.clone()
	}
	return out
}

func (es EntityState) clone() EntityState {
	out := es
	if es.Filters != nil {
		out.Filters = make(map[string][]string, len(es.Filters))
		for k, v := range es.Filters {
			out.Filters[k] = append([]string(nil), v...)
		}
	}
	if es.Columns != nil {
		out.Columns = append([]string{}, es.Columns...)
	}
	return out
}
