package api

import (
	"net/http"
	"testing"

	"github.com/jwtpizza/api_fixture/pkg/fixture/model"
	"github.com/jwtpizza/api_fixture/pkg/fixture/store"
)

func TestLoginSeededDiner(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{
		"email":    "d@jwt.com",
		"password": "a",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp authResponse
	decodeJSON(t, rec, &resp)
	if resp.User.ID != 3 || resp.User.Name != "Kai Chen" || resp.User.Email != "d@jwt.com" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
	if resp.Token != "abcdef" {
		t.Fatalf("unexpected token: %q", resp.Token)
	}

	session, ok := st.Session()
	if !ok || session.ID != 3 {
		t.Fatalf("expected session for diner, got %+v ok=%v", session, ok)
	}
}

func TestLoginWrongPasswordLeavesSession(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{
		"email":    "d@jwt.com",
		"password": "wrong",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}

	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "Unauthorized" {
		t.Fatalf("unexpected body: %+v", body)
	}

	if _, ok := st.Session(); ok {
		t.Fatalf("failed login must not establish a session")
	}

	// A failed login must not clear an existing session either.
	admin, _, _ := st.SeededByEmail("a@jwt.com")
	st.SetSession(admin)
	dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{"email": "d@jwt.com", "password": "nope"})
	if session, ok := st.Session(); !ok || session.Email != "a@jwt.com" {
		t.Fatalf("failed login clobbered session: %+v ok=%v", session, ok)
	}
}

func TestLoginFranchiseeAndAdmin(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{
		"email":    "f@jwt.com",
		"password": "franchisee",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("franchisee login failed: %d", rec.Code)
	}
	var resp authResponse
	decodeJSON(t, rec, &resp)
	if resp.User.ID != 7 || !resp.User.HasRole(model.RoleFranchisee) {
		t.Fatalf("unexpected franchisee: %+v", resp.User)
	}
	if len(resp.User.Roles) != 1 || resp.User.Roles[0].ObjectID != "99" {
		t.Fatalf("expected franchise objectId 99, got %+v", resp.User.Roles)
	}

	rec = dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{
		"email":    "a@jwt.com",
		"password": "admin",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("admin login failed: %d", rec.Code)
	}
	decodeJSON(t, rec, &resp)
	if resp.User.ID != 1 || !resp.User.HasRole(model.RoleAdmin) {
		t.Fatalf("unexpected admin: %+v", resp.User)
	}
}

func TestRegister(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodPost, "/api/auth", map[string]string{
		"name":     "Pat Doe",
		"email":    "pat@jwt.com",
		"password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp authResponse
	decodeJSON(t, rec, &resp)
	if resp.User.ID != store.RegisteredUserID {
		t.Fatalf("expected registration id %d, got %d", store.RegisteredUserID, resp.User.ID)
	}
	if !resp.User.HasRole(model.RoleDiner) {
		t.Fatalf("expected diner role, got %+v", resp.User.Roles)
	}
	if resp.Token != "abcdef" {
		t.Fatalf("unexpected token: %q", resp.Token)
	}

	if session, ok := st.Session(); !ok || session.Email != "pat@jwt.com" {
		t.Fatalf("registration should establish a session, got %+v ok=%v", session, ok)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	dispatch(t, a, http.MethodPost, "/api/auth", map[string]string{
		"name":     "Pat Doe",
		"email":    "pat@jwt.com",
		"password": "secret",
	})
	dispatch(t, a, http.MethodDelete, "/api/auth", nil)
	if _, ok := st.Session(); ok {
		t.Fatalf("expected session cleared after logout")
	}

	rec := dispatch(t, a, http.MethodPut, "/api/auth", map[string]string{
		"email":    "pat@jwt.com",
		"password": "secret",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("registered user login failed: %d", rec.Code)
	}
	var resp authResponse
	decodeJSON(t, rec, &resp)
	if resp.User.Name != "Pat Doe" {
		t.Fatalf("unexpected user: %+v", resp.User)
	}
}

func TestLogoutWhileAnonymous(t *testing.T) {
	a, _ := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodDelete, "/api/auth", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body map[string]string
	decodeJSON(t, rec, &body)
	if body["message"] != "ok" {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestMe(t *testing.T) {
	a, st := newTestAPI(t, store.Seed{})

	rec := dispatch(t, a, http.MethodGet, "/api/user/me", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if got := rec.Body.String(); got != "null\n" {
		t.Fatalf("expected JSON null for anonymous session, got %q", got)
	}

	user, _, _ := st.SeededByEmail("d@jwt.com")
	st.SetSession(user)

	rec = dispatch(t, a, http.MethodGet, "/api/user/me", nil)
	var me model.User
	decodeJSON(t, rec, &me)
	if me.ID != 3 || me.Email != "d@jwt.com" {
		t.Fatalf("unexpected session user: %+v", me)
	}
}
