package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

func TestListUsersDefaults(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodGet, "/api/user?page=1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp listUsersResponse
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 3 {
		t.Fatalf("expected 3 seed users, got %d", len(resp.Users))
	}
	if resp.More {
		t.Fatalf("expected no further pages")
	}
	if resp.Users[0].Email != "d@jwt.com" || resp.Users[2].Email != "a@jwt.com" {
		t.Fatalf("unexpected ordering: %+v", resp.Users)
	}
}

func TestListUsersPagination(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	for i := 0; i < 9; i++ {
		email := fmt.Sprintf("extra%d@jwt.com", i)
		st.PutRegistered(email, store.Registration{
			User: model.User{ID: store.RegisteredUserID, Name: fmt.Sprintf("Extra %d", i), Email: email},
		})
	}

	// 12 users total, default limit 10.
	rec := dispatch(t, a, http.MethodGet, "/api/user?page=1", nil)
	var resp listUsersResponse
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 10 || !resp.More {
		t.Fatalf("page 1: got %d users more=%v", len(resp.Users), resp.More)
	}

	rec = dispatch(t, a, http.MethodGet, "/api/user?page=2", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 2 || resp.More {
		t.Fatalf("page 2: got %d users more=%v", len(resp.Users), resp.More)
	}

	rec = dispatch(t, a, http.MethodGet, "/api/user?page=1&limit=5", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 5 || !resp.More {
		t.Fatalf("limit 5: got %d users more=%v", len(resp.Users), resp.More)
	}

	// A page past the end is empty rather than an error.
	rec = dispatch(t, a, http.MethodGet, "/api/user?page=99", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 0 || resp.More {
		t.Fatalf("page past end: got %d users more=%v", len(resp.Users), resp.More)
	}

	// Garbage paging values fall back to defaults.
	rec = dispatch(t, a, http.MethodGet, "/api/user?page=zero&limit=-4", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 10 {
		t.Fatalf("fallback paging: got %d users", len(resp.Users))
	}
}

func TestListUsersFilter(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodGet, "/api/user?page=1&name=Kai*", nil)
	var resp listUsersResponse
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 1 || resp.Users[0].Name != "Kai Chen" {
		t.Fatalf("name filter: %+v", resp.Users)
	}

	// The filter is case-insensitive and matches email too.
	rec = dispatch(t, a, http.MethodGet, "/api/user?page=1&name=F@JWT.COM", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 1 || resp.Users[0].Email != "f@jwt.com" {
		t.Fatalf("email filter: %+v", resp.Users)
	}

	rec = dispatch(t, a, http.MethodGet, "/api/user?page=1&name=*jwt*", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 3 {
		t.Fatalf("wildcard filter should match all: %+v", resp.Users)
	}

	rec = dispatch(t, a, http.MethodGet, "/api/user?page=1&name=nomatch", nil)
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 0 || resp.More {
		t.Fatalf("expected empty result, got %+v", resp)
	}
}

func TestUpdateUserWithoutSession(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodPut, "/api/user/42", map[string]any{
		"name":  "Fresh Name",
		"email": "fresh@jwt.com",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp authResponse
	decodeJSON(t, rec, &resp)
	if resp.User.ID != store.RegisteredUserID {
		t.Fatalf("expected default id %d, got %d", store.RegisteredUserID, resp.User.ID)
	}
	if !resp.User.HasRole(model.RoleDiner) {
		t.Fatalf("expected default diner role, got %+v", resp.User.Roles)
	}
	if resp.User.Name != "Fresh Name" || resp.User.Email != "fresh@jwt.com" {
		t.Fatalf("unexpected merged user: %+v", resp.User)
	}

	if session, ok := st.Session(); !ok || session.Email != "fresh@jwt.com" {
		t.Fatalf("update should replace the session, got %+v ok=%v", session, ok)
	}
}

func TestUpdateUserMergesOverSession(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	diner, _, _ := st.SeededByEmail("d@jwt.com")
	st.SetSession(diner)

	rec := dispatch(t, a, http.MethodPut, "/api/user/3", map[string]any{
		"name": "Kai Updated",
	})
	var resp authResponse
	decodeJSON(t, rec, &resp)

	// Omitted fields keep the session's values.
	if resp.User.ID != 3 || resp.User.Email != "d@jwt.com" {
		t.Fatalf("expected session values preserved, got %+v", resp.User)
	}
	if resp.User.Name != "Kai Updated" {
		t.Fatalf("submitted name should win, got %q", resp.User.Name)
	}
	if !resp.User.HasRole(model.RoleDiner) {
		t.Fatalf("expected session roles preserved, got %+v", resp.User.Roles)
	}
	if resp.Token != "abcdef" {
		t.Fatalf("unexpected token: %q", resp.Token)
	}
}

func TestUpdateUserSyncsRegistration(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	dispatch(t, a, http.MethodPost, "/api/auth", map[string]string{
		"name":     "Pat Doe",
		"email":    "pat@jwt.com",
		"password": "secret",
	})

	rec := dispatch(t, a, http.MethodPut, "/api/user/42", map[string]any{
		"name":     "Pat Updated",
		"password": "newpass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	reg, ok := st.RegisteredByEmail("pat@jwt.com")
	if !ok {
		t.Fatalf("registration record missing")
	}
	if reg.User.Name != "Pat Updated" {
		t.Fatalf("registration record not updated: %+v", reg.User)
	}
	if reg.Password != "newpass" {
		t.Fatalf("password not updated: %q", reg.Password)
	}

	// The new password works on subsequent logins.
	dispatch(t, a, http.MethodDelete, "/api/auth", nil)
	rec = dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{
		"email":    "pat@jwt.com",
		"password": "newpass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("login with updated password failed: %d", rec.Code)
	}
}

func TestDeleteUser(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	admin, _, _ := st.SeededByEmail("a@jwt.com")
	st.SetSession(admin)

	rec := dispatch(t, a, http.MethodDelete, "/api/user/3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if !st.IsDeleted(3) {
		t.Fatalf("expected id 3 deleted")
	}

	// The session survives even when it belongs to the deleted id.
	dispatch(t, a, http.MethodDelete, "/api/user/1", nil)
	if session, ok := st.Session(); !ok || session.ID != 1 {
		t.Fatalf("session should survive deletion, got %+v ok=%v", session, ok)
	}

	rec = dispatch(t, a, http.MethodGet, "/api/user?page=1", nil)
	var resp listUsersResponse
	decodeJSON(t, rec, &resp)
	if len(resp.Users) != 1 || resp.Users[0].ID != 7 {
		t.Fatalf("expected only franchisee listed, got %+v", resp.Users)
	}
}
