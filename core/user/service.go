package user

import (
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrUsernameExists = errors.New("a user with this username already exists")
)

type (
	Repository interface {
		CheckUsernameUniqueness(username, email string, excludedUsers ...User) error
		CreateUser(usr User) (User, error)
		QueryAllUsers() ([]User, error)
		GetUserByID(id string) (User, error)
		GetUserByUsername(username string) (User, error)
		GetUserByEmail(email string) (User, error)
		GetUserByUsernameOrEmail(username string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Username or User.Email.
		FilterUsers(filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		UpdateUser(usr User, isActive *bool) (User, error)
		UpdateOrCreateUser(usr User) (User, error)
		SetLastLogin(id string, ts time.Time) error
		DeleteUsersByID(ids ...string) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	initTokenGen(conf)
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

func (svc *Service) CheckUniqueness(uname, email string, exclUsers ...User) error {
	if err := svc.repo.CheckUsernameUniqueness(uname, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

func (svc *Service) Create(nu NewUser) (User, error) {
	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		IsActive:  true,
		Roles:     nu.Roles,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, err
	}
	return svc.repo.CreateUser(usr)
}

// Invite creates an active account without a password and emails the new
// user a password-reset link. Login is impossible until the password is
// set through that link.
func (svc *Service) Invite(name, email string, roles []string) (User, error) {
	name = core.CleanString(name)
	email = core.CleanString(email, true /* lower */)
	if err := svc.CheckUniqueness("", email); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr, err := svc.repo.CreateUser(User{
		Name:      name,
		Email:     email,
		IsActive:  true,
		Roles:     roles,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		return User{}, errors.Wrap(err, "creating invited user")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Welcome! Set your password",
		TemplateName: "account_invite",
		TemplateData: resetEmailData{Name: usr.Name, UID: EncodeUID(usr), Token: MakeToken(usr)},
	})
	return usr, nil
}

func (svc *Service) QueryAll() ([]User, error) {
	return svc.repo.QueryAllUsers()
}

func (svc *Service) GetByID(id string) (User, error) {
	return svc.repo.GetUserByID(id)
}

func (svc *Service) GetByUsername(uname string) (User, error) {
	return svc.repo.GetUserByUsername(core.CleanString(uname, true /* lower */))
}

func (svc *Service) GetByEmail(email string) (User, error) {
	return svc.repo.GetUserByEmail(core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByUsernameOrEmail(uname string) (User, error) {
	return svc.repo.GetUserByUsernameOrEmail(core.CleanString(uname, true /* lower */))
}

func (svc *Service) Filter(filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(filter, ordering...)
}

func (svc *Service) Update(id string, uu UpdateUser) (User, error) {
	orig, err := svc.repo.GetUserByID(id)
	if err != nil {
		return User{}, err
	}

	usr := User{
		ID:        id,
		Name:      uu.Name,
		Username:  uu.Username,
		Email:     uu.Email,
		Roles:     uu.Roles,
		UpdatedAt: time.Now().UTC(),
	}
	// unset text fields keep their stored values
	if usr.Name == "" {
		usr.Name = orig.Name
	}
	if usr.Username == "" {
		usr.Username = orig.Username
	}
	if usr.Email == "" {
		usr.Email = orig.Email
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, err
		}
	}
	return svc.repo.UpdateUser(usr, uu.IsActive)
}

func (svc *Service) SetLastLogin(usr User) (User, error) {
	now := time.Now().UTC()
	if err := svc.repo.SetLastLogin(usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = now
	return usr, nil
}

func (svc *Service) Delete(ids ...string) error {
	return svc.repo.DeleteUsersByID(ids...)
}

type resetEmailData struct {
	Name  string
	UID   string
	Token string
}

// RequestPasswordReset emails a reset link to the account matching the
// given email. Inactive or unknown accounts get ErrNotFound; callers must
// not reveal that to the requester.
func (svc *Service) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password reset",
		TemplateName: "password_reset",
		TemplateData: resetEmailData{Name: usr.Name, UID: EncodeUID(usr), Token: MakeToken(usr)},
	})
	return nil
}

// ResetPassword sets a new password if the supplied UID and token check
// out. Token errors are surfaced as uniform validation errors.
func (svc *Service) ResetPassword(data ResetUserPassword) error {
	id, err := decodeUID(data.UID)
	if err != nil {
		return core.NewValidationError(errInvalidToken)
	}
	usr, err := svc.GetByID(id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return core.NewValidationError(errInvalidToken)
		}
		return err
	}
	if err = verifyToken(usr, data.Token); err != nil {
		return core.NewValidationError(err)
	}

	if err = usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = time.Now().UTC()
	if _, err = svc.repo.UpdateUser(usr, nil); err != nil {
		return errors.Wrap(err, "updating user")
	}

	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password changed",
		BodyStr: "Your password has been changed. If you did not do this, contact support immediately.",
	})
	return nil
}
