package echoapi

import (
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/application"
	"github.com/darasahq/darasa/core/user"
)

func TestApplicationFlow(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "V3ry$ecretPwd", user.RoleAdminPrincipal)

	var submitted application.Application

	t.Run("public submission", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/applications", application.NewApplication{
			Name:       "Fatou Diop",
			Email:      "Fatou.Diop@example.com",
			Motivation: "I want to learn to build things.",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201; got %d: %s", rec.Code, rec.Body.String())
		}
		decodeBody(t, rec, &submitted)
		if submitted.Status != application.StatusPending {
			t.Errorf("expected a pending application; got %q", submitted.Status)
		}
		if submitted.Email != "fatou.diop@example.com" {
			t.Errorf("expected the email lowercased; got %q", submitted.Email)
		}
		if len(app.mailSvc.sent) != 1 || app.mailSvc.sent[0].TemplateName != "application_received" {
			t.Fatalf("expected one application_received email; got %d", len(app.mailSvc.sent))
		}
	})

	t.Run("submission requires a motivation", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/applications", application.NewApplication{
			Name:  "No Motivation",
			Email: "nope@example.com",
		})
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("review requires the admin session", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/applications", nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("approval enrolls the student", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/applications/"+submitted.ID+"/approve", nil, app.adminCookie(t, admin))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var got application.Application
		decodeBody(t, rec, &got)
		if got.Status != application.StatusApproved {
			t.Errorf("expected approved; got %q", got.Status)
		}

		usr, err := app.usrSvc.GetByEmail(submitted.Email)
		if err != nil {
			t.Fatalf("expected a student account for %s: %v", submitted.Email, err)
		}
		if !usr.IsStudent() || !usr.IsActive {
			t.Errorf("expected an active student; got %+v", usr)
		}
		// application_received + account_invite
		if len(app.mailSvc.sent) != 2 || app.mailSvc.sent[1].TemplateName != "account_invite" {
			t.Fatalf("expected the invite email; got %d messages", len(app.mailSvc.sent))
		}
	})

	t.Run("decisions are final", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/applications/"+submitted.ID+"/reject", nil, app.adminCookie(t, admin))
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("expected 400; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown application is a 404", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/applications/4efe7d1b-98ac-4916-93a4-8a2ccb4f9397/approve", nil, app.adminCookie(t, admin))
		if rec.Code != http.StatusNotFound {
			t.Fatalf("expected 404; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("filter by status", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/applications", application.NewApplication{
			Name:       "Still Pending",
			Email:      "pending@example.com",
			Motivation: "Curiosity.",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("expected 201; got %d: %s", rec.Code, rec.Body.String())
		}

		rec = app.do(t, http.MethodGet, "/api/applications?status=pending", nil, app.adminCookie(t, admin))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var apps []application.Application
		decodeBody(t, rec, &apps)
		if len(apps) != 1 || apps[0].Status != application.StatusPending {
			t.Errorf("expected exactly the pending application; got %+v", apps)
		}
	})
}

func TestRejectApplication(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "V3ry$ecretPwd", user.RoleAdminPrincipal)

	rec := app.do(t, http.MethodPost, "/api/applications", application.NewApplication{
		Name:       "Not This Time",
		Email:      "later@example.com",
		Motivation: "Maybe next cohort.",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201; got %d: %s", rec.Code, rec.Body.String())
	}
	var submitted application.Application
	decodeBody(t, rec, &submitted)

	rec = app.do(t, http.MethodPost, "/api/applications/"+submitted.ID+"/reject", nil, app.adminCookie(t, admin))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
	}
	var got application.Application
	decodeBody(t, rec, &got)
	if got.Status != application.StatusRejected {
		t.Errorf("expected rejected; got %q", got.Status)
	}
	// rejection is communicated off-platform
	if len(app.mailSvc.sent) != 1 {
		t.Errorf("expected no rejection email; got %d messages", len(app.mailSvc.sent))
	}
	if _, err := app.usrSvc.GetByEmail(submitted.Email); err == nil {
		t.Error("expected no account for a rejected applicant")
	}
}
