package user_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/darasahq/darasa/core"
	"github.com/darasahq/darasa/core/user"
	inmemdb "github.com/darasahq/darasa/storage/database/inmem"
)

type mailRecorder struct {
	sent []*core.EmailMessage
}

func (r *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	r.sent = append(r.sent, messages...)
}

func newTestService(t *testing.T) (*user.Service, *mailRecorder) {
	t.Helper()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("opening db: %v", err)
	}
	conf := &core.Config{
		AppName:                   "Darasa",
		SecretKey:                 []byte("secret"),
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
	}
	mailSvc := &mailRecorder{}
	return user.NewService(inmemdb.NewUserRepository(db), mailSvc, conf), mailSvc
}

func TestInvite(t *testing.T) {
	svc, mailSvc := newTestService(t)

	usr, err := svc.Invite("Jane Doe", "JANE@test.test ", []string{user.RoleStudent})
	if err != nil {
		t.Fatalf("Invite() unexpected error: %v", err)
	}
	if usr.Email != "jane@test.test" {
		t.Errorf("Invite() email = %q, want cleaned lowercase", usr.Email)
	}
	if !usr.IsActive || usr.PasswordHash != nil {
		t.Errorf("Invite() isActive = %t, passwordHash = %v; want active and passwordless", usr.IsActive, usr.PasswordHash)
	}
	if len(mailSvc.sent) != 1 || mailSvc.sent[0].TemplateName != "account_invite" {
		t.Fatalf("Invite() sent = %+v, want one account_invite email", mailSvc.sent)
	}

	// inviting the same email again fails
	if _, err = svc.Invite("Jane Again", "jane@test.test", []string{user.RoleStudent}); err == nil {
		t.Fatal("Invite() with duplicate email should fail")
	}
}

func TestResetPassword(t *testing.T) {
	svc, _ := newTestService(t)

	usr, err := svc.Invite("John Doe", "john@test.test", []string{user.RoleStudent})
	if err != nil {
		t.Fatalf("Invite() unexpected error: %v", err)
	}

	err = svc.ResetPassword(user.ResetUserPassword{
		UID:             user.EncodeUID(usr),
		Token:           user.MakeToken(usr),
		Password:        "N3w!secret",
		PasswordConfirm: "N3w!secret",
	})
	if err != nil {
		t.Fatalf("ResetPassword() unexpected error: %v", err)
	}

	usr, err = svc.GetByEmail("john@test.test")
	if err != nil {
		t.Fatalf("GetByEmail() unexpected error: %v", err)
	}
	if err = usr.CheckPassword("N3w!secret"); err != nil {
		t.Errorf("CheckPassword() after reset failed: %v", err)
	}
}

func TestResetPasswordRejectsBadTokens(t *testing.T) {
	svc, _ := newTestService(t)

	usr, err := svc.Invite("John Doe", "john@test.test", []string{user.RoleStudent})
	if err != nil {
		t.Fatalf("Invite() unexpected error: %v", err)
	}
	token := user.MakeToken(usr)

	tests := []struct {
		name  string
		uid   string
		token string
	}{
		{name: "garbage uid", uid: "%%%", token: token},
		{name: "unknown uid", uid: user.EncodeUID(user.User{ID: "5f0f5ed0-8c5a-4a3c-9be7-b2f6e1da0a11"}), token: token},
		{name: "garbage token", uid: user.EncodeUID(usr), token: "nope-nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := svc.ResetPassword(user.ResetUserPassword{
				UID:             tt.uid,
				Token:           tt.token,
				Password:        "N3w!secret",
				PasswordConfirm: "N3w!secret",
			})
			if _, ok := err.(*core.ValidationError); !ok {
				t.Errorf("ResetPassword() error = %T (%v), want *core.ValidationError", err, err)
			}
		})
	}

	// a used token no longer verifies: the password hash it was bound to changed
	if err = svc.ResetPassword(user.ResetUserPassword{
		UID: user.EncodeUID(usr), Token: token, Password: "N3w!secret", PasswordConfirm: "N3w!secret",
	}); err != nil {
		t.Fatalf("ResetPassword() unexpected error: %v", err)
	}
	err = svc.ResetPassword(user.ResetUserPassword{
		UID: user.EncodeUID(usr), Token: token, Password: "0th3r!secret", PasswordConfirm: "0th3r!secret",
	})
	if _, ok := err.(*core.ValidationError); !ok {
		t.Errorf("reusing a token: error = %T (%v), want *core.ValidationError", err, err)
	}
}

func TestFilter(t *testing.T) {
	svc, _ := newTestService(t)

	mustCreate := func(name, email string, roles ...string) user.User {
		usr, err := svc.Create(user.NewUser{Name: name, Email: email, Password: "S3cret!pwd", Roles: roles})
		if err != nil {
			t.Fatalf("Create(%s) unexpected error: %v", email, err)
		}
		return usr
	}
	admin := mustCreate("Head Teacher", "head@test.test", user.RoleAdminPrincipal)
	mentor := mustCreate("Mentor One", "mentor@test.test", user.RoleMentor)
	student := mustCreate("Student One", "student@test.test", user.RoleStudent)

	emails := func(users []user.User) []string {
		res := make([]string, 0, len(users))
		for _, u := range users {
			res = append(res, u.Email)
		}
		return res
	}

	t.Run("by role prefix", func(t *testing.T) {
		users, err := svc.Filter(user.QueryFilter{Roles: []string{user.RoleAdmin}})
		if err != nil {
			t.Fatalf("Filter() unexpected error: %v", err)
		}
		assert.ElementsMatch(t, []string{admin.Email}, emails(users))
	})

	t.Run("by search", func(t *testing.T) {
		users, err := svc.Filter(user.QueryFilter{Search: "one"})
		if err != nil {
			t.Fatalf("Filter() unexpected error: %v", err)
		}
		assert.ElementsMatch(t, []string{mentor.Email, student.Email}, emails(users))
	})

	t.Run("by active flag", func(t *testing.T) {
		inactive := false
		if _, err := svc.Update(student.ID, user.UpdateUser{IsActive: &inactive}); err != nil {
			t.Fatalf("Update() unexpected error: %v", err)
		}
		users, err := svc.Filter(user.QueryFilter{IsActive: &inactive})
		if err != nil {
			t.Fatalf("Filter() unexpected error: %v", err)
		}
		assert.ElementsMatch(t, []string{student.Email}, emails(users))
	})
}

func TestRequestPasswordReset(t *testing.T) {
	svc, mailSvc := newTestService(t)

	usr, err := svc.Invite("Jane Doe", "jane@test.test", []string{user.RoleStudent})
	if err != nil {
		t.Fatalf("Invite() unexpected error: %v", err)
	}
	mailSvc.sent = nil

	if err = svc.RequestPasswordReset("jane@test.test"); err != nil {
		t.Fatalf("RequestPasswordReset() unexpected error: %v", err)
	}
	if len(mailSvc.sent) != 1 || mailSvc.sent[0].TemplateName != "password_reset" {
		t.Fatalf("RequestPasswordReset() sent = %+v, want one password_reset email", mailSvc.sent)
	}

	// unknown accounts
	if err = svc.RequestPasswordReset("nobody@test.test"); err != user.ErrNotFound {
		t.Errorf("RequestPasswordReset(unknown) error = %v, want %v", err, user.ErrNotFound)
	}

	// deactivated accounts
	inactive := false
	if _, err = svc.Update(usr.ID, user.UpdateUser{Name: usr.Name, Email: usr.Email, IsActive: &inactive}); err != nil {
		t.Fatalf("Update() unexpected error: %v", err)
	}
	if err = svc.RequestPasswordReset("jane@test.test"); err != user.ErrNotFound {
		t.Errorf("RequestPasswordReset(inactive) error = %v, want %v", err, user.ErrNotFound)
	}
}
