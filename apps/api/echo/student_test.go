package echoapi

import (
	"net/http"
	"testing"

	"github.com/darasahq/darasa/core/cohort"
	"github.com/darasahq/darasa/core/user"
)

func TestStudentPortal(t *testing.T) {
	app := newTestApp(t)
	admin := app.createUser(t, "Awa Ndiaye", "awa@darasa.app", "V3ry$ecretPwd", user.RoleAdminPrincipal)
	student := app.createUser(t, "Jay Kay", "jay@darasa.app", "V3ry$ecretPwd", user.RoleStudent)

	t.Run("student login issues the student cookie", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/student/login", LoginRequest{Username: student.Email, Password: "V3ry$ecretPwd"})
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		if c := findCookie(rec, app.conf.Session.StudentCookieName); c == nil || c.Value == "" {
			t.Fatal("expected the student session cookie to be set")
		}
		if c := findCookie(rec, app.conf.Session.AdminCookieName); c != nil {
			t.Error("student login must not touch the admin cookie")
		}
	})

	t.Run("admins are turned away from the student portal", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/student/login", LoginRequest{Username: admin.Email, Password: "V3ry$ecretPwd"})
		if rec.Code != http.StatusForbidden {
			t.Fatalf("expected 403; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("admin cookie never opens student endpoints", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/student/me", nil, app.adminCookie(t, admin))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401; got %d: %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("me", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/student/me", nil, app.studentCookie(t, student))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var got user.User
		decodeBody(t, rec, &got)
		if got.ID != student.ID {
			t.Errorf("expected user %s; got %s", student.ID, got.ID)
		}
	})

	t.Run("attendance starts out empty", func(t *testing.T) {
		rec := app.do(t, http.MethodGet, "/api/student/attendance", nil, app.studentCookie(t, student))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var report cohort.StudentReport
		decodeBody(t, rec, &report)
		if len(report.Records) != 0 || report.TotalSats != 0 {
			t.Errorf("expected an empty report; got %+v", report)
		}
	})

	t.Run("attendance reflects marked sessions", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/cohorts", cohort.NewCohort{
			Name:      "Cohort 1",
			StartDate: "2024-01-01",
			EndDate:   "2024-01-14",
		}, app.adminCookie(t, admin))
		if rec.Code != http.StatusCreated {
			t.Fatalf("creating cohort: %d: %s", rec.Code, rec.Body.String())
		}
		var c cohort.Cohort
		decodeBody(t, rec, &c)

		sessions, err := app.cohSvc.Sessions(c.ID)
		if err != nil {
			t.Fatalf("querying sessions: %v", err)
		}
		for i, s := range sessions[:3] {
			present := i < 2
			if _, err = app.cohSvc.Mark(s.ID, cohort.MarkAttendance{StudentID: student.ID, Present: present}); err != nil {
				t.Fatalf("marking attendance: %v", err)
			}
		}

		rec = app.do(t, http.MethodGet, "/api/student/attendance", nil, app.studentCookie(t, student))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200; got %d: %s", rec.Code, rec.Body.String())
		}
		var report cohort.StudentReport
		decodeBody(t, rec, &report)
		if len(report.Records) != 3 {
			t.Fatalf("expected 3 records; got %d", len(report.Records))
		}
		if want := 2 * app.conf.Rewards.SatsPerSession; report.TotalSats != want {
			t.Errorf("expected %d total sats; got %d", want, report.TotalSats)
		}
	})

	t.Run("logout clears the student cookie", func(t *testing.T) {
		rec := app.do(t, http.MethodPost, "/api/student/logout", nil)
		if rec.Code != http.StatusNoContent {
			t.Fatalf("expected 204; got %d: %s", rec.Code, rec.Body.String())
		}
		c := findCookie(rec, app.conf.Session.StudentCookieName)
		if c == nil || c.Value != "" || c.MaxAge >= 0 {
			t.Error("expected the emptied, expired student cookie")
		}
	})
}
