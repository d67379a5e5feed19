package web

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/osfidash/internal/core"
	"github.com/JonMunkholm/osfidash/internal/logging"
	"github.com/JonMunkholm/osfidash/internal/web/templates"
)

// SessionCookie names the cookie holding the session ID.
const SessionCookie = "osfi_session"

// session returns the caller's session state, creating one (and setting the
// cookie) when the request carries none or an expired one.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *core.SessionState) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}

	newID, st := s.service.Sessions().GetOrCreate(id)
	if newID != id {
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    newID,
			Path:     "/",
			HttpOnly: true,
			Secure:   s.cfg.Session.CookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   int(s.cfg.Session.TTL.Seconds()),
		})
	}
	return newID, st
}

// entityState applies the query to the session's state for kind, saves it,
// and returns the resulting state.
func (s *Server) entityState(w http.ResponseWriter, r *http.Request, kind core.Kind) core.EntityState {
	id, st := s.session(w, r)
	if applyQuery(st, kind, r.URL.Query()) {
		if err := s.service.Sessions().Update(id, st); err != nil {
			logging.FromContext(r.Context()).Warn("session update failed", "error", err)
		}
	}
	return st.Entity(kind)
}

// applyQuery folds interaction parameters into st and reports whether any
// were present.
//
//	reset=1              clears filters, page and columns
//	page_size=N          changes the page size (back to page 1)
//	filter[col]=v        sets a filter; "All" or empty clears it
//	customize=1          the columns selection below is authoritative
//	columns=a&columns=b  or columns=a,b selects columns
//	page=N               moves to page N
func applyQuery(st *core.SessionState, kind core.Kind, q url.Values) bool {
	changed := false

	if _, ok := q[templates.ParamReset]; ok {
		st.Reset(kind)
		changed = true
	}
	if v := q.Get(templates.ParamPageSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			st.SetPageSize(kind, n)
			changed = true
		}
	}
	for key, values := range q {
		col, ok := filterColumn(key)
		if !ok {
			continue
		}
		st.SetFilter(kind, col, values...)
		changed = true
	}

	_, customize := q[templates.ParamCustomize]
	if cols, ok := q[templates.ParamColumns]; ok || customize {
		st.SetColumns(kind, splitColumns(cols))
		changed = true
	}

	if v := q.Get(templates.ParamPage); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			st.SetPage(kind, n)
			changed = true
		}
	}
	return changed
}

// filterColumn extracts col from a "filter[col]" parameter name.
func filterColumn(key string) (string, bool) {
	rest, ok := strings.CutPrefix(key, "filter[")
	if !ok || !strings.HasSuffix(rest, "]") {
		return "", false
	}
	col := strings.TrimSuffix(rest, "]")
	return col, col != ""
}

// splitColumns accepts repeated values and comma-joined lists.
func splitColumns(values []string) []string {
	var out []string
	for _, v := range values {
		for _, c := range strings.Split(v, ",") {
			if c = strings.TrimSpace(c); c != "" {
				out = append(out, c)
			}
		}
	}
	return out
}
