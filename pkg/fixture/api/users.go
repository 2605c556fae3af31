package api

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
	"github.com/jwtpizza/api_fixture/pkg/fixture/route"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

const defaultPageLimit = 10

type listUsersResponse struct {
	Users []model.User `json:"users"`
	More  bool         `json:"more"`
}

// handleListUsers serves the live user set (seeded plus registered, minus
// deleted) filtered by a wildcard name pattern and paginated by page/limit.
func (a *API) handleListUsers(w http.ResponseWriter, r *http.Request, _ route.Params) {
	q := r.URL.Query()
	page := positiveInt(q.Get("page"), 1)
	limit := positiveInt(q.Get("limit"), defaultPageLimit)
	filter := q.Get("name")
	if filter == "" {
		filter = "*"
	}

	filtered := filterUsers(a.store.Users(), filter)

	start := (page - 1) * limit
	if start > len(filtered) {
		start = len(filtered)
	}
	end := start + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	pageUsers := filtered[start:end]

	writeJSON(w, http.StatusOK, listUsersResponse{
		Users: pageUsers,
		More:  start+len(pageUsers) < len(filtered),
	})
}

type updateUserRequest struct {
	ID       *int64       `json:"id"`
	Name     *string      `json:"name"`
	Email    *string      `json:"email"`
	Password *string      `json:"password"`
	Roles    []model.Role `json:"roles"`
}

// handleUpdateUser merges submitted fields over the current session:
// submitted value wins, else the prior session value, else the named
// default (registration id, diner role). When the merged email has a
// registration record, the record's user and password follow the update.
func (a *API) handleUpdateUser(w http.ResponseWriter, r *http.Request, _ route.Params) {
	var req updateUserRequest
	a.decodeBody(r, &req)

	prior, hadSession := a.store.Session()

	merged := model.User{}
	switch {
	case req.ID != nil:
		merged.ID = *req.ID
	case hadSession:
		merged.ID = prior.ID
	default:
		merged.ID = store.RegisteredUserID
	}
	if req.Name != nil {
		merged.Name = *req.Name
	} else {
		merged.Name = prior.Name
	}
	if req.Email != nil {
		merged.Email = *req.Email
	} else {
		merged.Email = prior.Email
	}
	switch {
	case req.Roles != nil:
		merged.Roles = req.Roles
	case hadSession && prior.Roles != nil:
		merged.Roles = prior.Roles
	default:
		merged.Roles = []model.Role{{Role: model.RoleDiner}}
	}

	a.store.SetSession(merged)

	if reg, ok := a.store.RegisteredByEmail(merged.Email); ok {
		password := reg.Password
		if req.Password != nil {
			password = *req.Password
		}
		a.store.PutRegistered(merged.Email, store.Registration{Password: password, User: merged})
	}

	writeJSON(w, http.StatusOK, authResponse{User: merged, Token: a.tokens.SessionToken(merged)})
}

// handleDeleteUser marks the id deleted. The session is deliberately left
// alone even when it belongs to the deleted id.
func (a *API) handleDeleteUser(w http.ResponseWriter, _ *http.Request, p route.Params) {
	a.store.Delete(p.ID)
	writeMessage(w, http.StatusOK, msgOK)
}

// filterUsers applies the wildcard pattern against name or email,
// case-insensitively. "*" passes everything through.
func filterUsers(users []model.User, pattern string) []model.User {
	if pattern == "*" {
		return users
	}

	re := compileWildcard(pattern)
	filtered := make([]model.User, 0, len(users))
	for _, u := range users {
		if re.MatchString(strings.ToLower(u.Name)) || re.MatchString(strings.ToLower(u.Email)) {
			filtered = append(filtered, u)
		}
	}
	return filtered
}

// compileWildcard turns a filter where "*" matches any run of characters
// into an unanchored regexp. All other characters are literal, keeping the
// match total for arbitrary input.
func compileWildcard(pattern string) *regexp.Regexp {
	quoted := regexp.QuoteMeta(strings.ToLower(pattern))
	return regexp.MustCompile(strings.ReplaceAll(quoted, `\*`, ".*"))
}

func positiveInt(raw string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
