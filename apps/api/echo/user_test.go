package echoapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
)

// resetEmail extracts the reset link parameters from a recorded email.
func resetEmail(t *testing.T, msg *core.EmailMessage) (uid, token string) {
	t.Helper()
	raw, err := json.Marshal(msg.TemplateData)
	if err != nil {
		t.Fatalf("marshaling email data: %v", err)
	}
	var data struct{ Name, UID, Token string }
	if err = json.Unmarshal(raw, &data); err != nil {
		t.Fatalf("unmarshaling email data: %v", err)
	}
	return data.UID, data.Token
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "Old&F0rgotten", user.RoleAdminOwner)

	rec := app.do(t, http.MethodPost, "/api/users/password-reset", PasswordResetRequest{Email: admin.Email})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
	}
	if len(app.mailSvc.sent) != 1 || app.mailSvc.sent[0].TemplateName != "password_reset" {
		t.Fatalf("expected one password_reset email; got %d", len(app.mailSvc.sent))
	}
	uid, token := resetEmail(t, app.mailSvc.sent[0])

	t.Run("unknown emails get the same response", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users/password-reset", PasswordResetRequest{Email: "ghost@darasa.app"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		if len(app.mailSvc.sent) != 1 {
			t.Error("expected no email for an unknown address")
		}
	})

	confirm := user.ResetUserPassword{
		UID:             uid,
		Token:           token,
		Password:        "N3w&Shiny!pwd",
		PasswordConfirm: "N3w&Shiny!pwd",
	}
	rec = app.do(t, http.MethodPost, "/api/users/password-reset-confirm", confirm)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("new password logs in", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users/login", LoginRequest{Username: admin.Email, Password: "N3w&Shiny!pwd"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("the token is single-use", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users/password-reset-confirm", confirm)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400 on token reuse; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("garbage tokens fail", func(t *testing.T) {
		bad := confirm
		bad.Token = "NRXWY-sigsig-sig"
		rec := app.do(t, http.MethodPost, "/api/users/password-reset-confirm", bad)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400; got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestCreateUserHTTP(t *testing.T) {
	app := newTestApp(t)
	owner := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "V3ry$ecretPwd", user.RoleAdminOwner)
	principal := app.createUser(t, "Moussa Sow", "moussa@darasa.app", "V3ry$ecretPwd", user.RoleAdminPrincipal)

	t.Run("created", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users", user.NewUser{
			Name:            "New Mentor",
			Email:           "mentor@darasa.app",
			Password:        "V3ry$ecretPwd",
			PasswordConfirm: "V3ry$ecretPwd",
			Roles:           []string{user.RoleMentor},
		}, app.adminCookie(t, owner))
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201; got %d: %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if !got.IsMentor() || !got.IsActive {
			t.Errorf("expected an active mentor; got %+v", got)
		}
	})

	t.Run("weak passwords are rejected", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users", user.NewUser{
			Name:            "Weak Pwd",
			Email:           "weak@darasa.app",
			Password:        "short",
			PasswordConfirm: "short",
		}, app.adminCookie(t, owner))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("duplicate email is rejected", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users", user.NewUser{
			Name:            "Copy Cat",
			Email:           "mentor@darasa.app",
			Password:        "V3ry$ecretPwd",
			PasswordConfirm: "V3ry$ecretPwd",
		}, app.adminCookie(t, owner))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("cannot grant a role above your own", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/users", user.NewUser{
			Name:            "Sneaky Owner",
			Email:           "sneaky@darasa.app",
			Password:        "V3ry$ecretPwd",
			PasswordConfirm: "V3ry$ecretPwd",
			Roles:           []string{user.RoleAdminOwner},
		}, app.adminCookie(t, principal))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400; got %d: %s", rec.Code, rec.Body.String())
		}
		if !strings.Contains(rec.Body.String(), "roles") {
			t.Errorf("expected a roles field error; got %s", rec.Body.String())
		}
	})
}

func TestUserDetailEndpoints(t *testing.T) {
	app := newTestApp(t)
	owner := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "V3ry$ecretPwd", user.RoleAdminOwner)
	mentor := app.createUser(t, "Modou Fall", "modou@darasa.app", "V3ry$ecretPwd", user.RoleMentor)

	t.Run("retrieve", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/users/"+mentor.ID, nil, app.adminCookie(t, owner))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if got.ID != mentor.ID {
			t.Errorf("expected user %s; got %s", mentor.ID, got.ID)
		}
	})

	t.Run("unknown id is a 404", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/users/4efe7d1b-98ac-4916-93a4-8a2ccb4f9397", nil, app.adminCookie(t, owner))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("update", func(t *testing.T) {
		rec := app.do(t, http.MethodPut, "/api/users/"+mentor.ID, user.UpdateUser{Name: "Modou F. Fall"}, app.adminCookie(t, owner))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if got.Name != "Modou F. Fall" {
			t.Errorf("expected the updated name; got %q", got.Name)
		}
		if got.Email != mentor.Email {
			t.Errorf("partial update must keep the email; got %q", got.Email)
		}
	})

	t.Run("self-delete is forbidden", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/api/users/"+owner.ID, nil, app.adminCookie(t, owner))
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("delete", func(t *testing.T) {
		rec := app.do(t, http.MethodDelete, "/api/users/"+mentor.ID, nil, app.adminCookie(t, owner))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204; got %d: %s", rec.Code, rec.Body.String())
		}
		if _, err := app.usrSvc.GetByID(mentor.ID); err == nil {
			t.Error("expected the user to be gone")
		}
	})
}

func TestQueryRoles(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "V3ry$ecretPwd", user.RoleAdminOwner)

	rec := app.do(t, http.MethodGet, "/api/users/roles", nil, app.adminCookie(t, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
	}
	var roles []user.Role
	decodeBody(t, rec, &roles)
	if len(roles) != len(user.Roles) {
		t.Fatalf("expected %d roles; got %d", len(user.Roles), len(roles))
	}
	if roles[0].Value != user.RoleStudent || roles[len(roles)-1].Value != user.RoleAdminOwner {
		t.Errorf("expected roles sorted by priority; got %+v", roles)
	}
}
