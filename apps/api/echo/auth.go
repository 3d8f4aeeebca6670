package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core/session"
	"github.com/darasahq/darasa/core/user"
)

var (
	contextPayloadKey = "sessionPayload"
	contextUserKey    = "user"
)

// sessionMiddleware authenticates the keeper's cookie, stashes the payload
// in context and re-issues the refreshed cookie so activity keeps the idle
// window open. All verification failures map to the same 401.
func sessionMiddleware(keeper *session.Keeper) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			p, err := keeper.Authenticate(ctx.Request())
			if err != nil {
				return errUnauthorized
			}
			ctx.Set(contextPayloadKey, p)

			token, err := keeper.Sign(p)
			if err != nil {
				return errors.Wrap(err, "signing refreshed session")
			}
			ctx.SetCookie(keeper.Cookie(token))
			return next(ctx)
		}
	}
}

func getContextPayload(ctx echo.Context) (session.Payload, error) {
	if p, ok := ctx.Get(contextPayloadKey).(session.Payload); ok {
		return p, nil
	}
	return session.Payload{}, errUnauthorized
}

func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	p, err := getContextPayload(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(p.SubjectID)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errUnauthorized
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// authenticate checks credentials and the active flag, then records the
// login. Unknown accounts and wrong passwords are indistinguishable.
func authenticate(uname, pwd string, svc *user.Service) (user.User, error) {
	usr, err := svc.GetByUsernameOrEmail(uname)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			return user.User{}, errAuthenticationFailed
		}
		return user.User{}, errors.Wrap(err, "finding user by username or email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return user.User{}, errAuthenticationFailed
	}
	if !usr.IsActive {
		return user.User{}, errAccountDeactivated
	}
	usr, err = svc.SetLastLogin(usr)
	if err != nil {
		return user.User{}, errors.Wrap(err, "setting lastLogin")
	}
	return usr, nil
}

// issueSession signs a fresh payload for the user and sets the keeper's
// cookie on the response.
func issueSession(ctx echo.Context, keeper *session.Keeper, usr user.User) error {
	token, err := keeper.Sign(keeper.New(usr.ID, usr.Email, usr.PrimaryRole()))
	if err != nil {
		return errors.Wrap(err, "signing session")
	}
	ctx.SetCookie(keeper.Cookie(token))
	return nil
}
