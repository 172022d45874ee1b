package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/adwski/chatapp/backend/model"
)

type (
	CreateUserInput struct {
		Name       string  `json:"name" validate:"required"`
		Email      string  `json:"email" validate:"required,email"`
		Password   string  `json:"password" validate:"required"`
		ProfilePic *string `json:"profilePic"`
	}

	UpdateUserInput struct {
		Name       *string `json:"name" validate:"omitempty,min=1"`
		Email      *string `json:"email" validate:"omitempty,email"`
		Password   *string `json:"password" validate:"omitempty,min=1"`
		ProfilePic *string `json:"profilePic"`
	}

	LoginInput struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	AuthPayload struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}

	TokenClaims struct {
		UserID int64 `json:"userId"`
		jwt.RegisteredClaims
	}
)

func (svc *Service) ListUsers(ctx context.Context) ([]model.User, error) {
	return svc.store.ListUsers(ctx)
}

func (svc *Service) GetUser(ctx context.Context, id int64) (model.User, error) {
	return svc.store.GetUser(ctx, id)
}

func (svc *Service) SearchUsers(ctx context.Context, name string) ([]model.User, error) {
	return svc.store.SearchUsers(ctx, name)
}

func (svc *Service) CreateUser(ctx context.Context, in CreateUserInput) (model.User, error) {
	if err := svc.check(in); err != nil {
		return model.User{}, err
	}
	hash, err := hashPassword(in.Password)
	if err != nil {
		return model.User{}, err
	}
	u, err := svc.store.CreateUser(ctx, model.User{
		Name:         in.Name,
		Email:        in.Email,
		PasswordHash: hash,
		ProfilePic:   in.ProfilePic,
	})
	if err != nil {
		return model.User{}, err
	}
	svc.logger.Debug().Int64("userID", u.ID).Msg("user created")
	return u, nil
}

// LoginUser checks credentials and issues a signed token.
// Unknown email and wrong password are indistinguishable to the caller.
func (svc *Service) LoginUser(ctx context.Context, in LoginInput) (AuthPayload, error) {
	if err := svc.check(in); err != nil {
		return AuthPayload{}, err
	}
	u, err := svc.store.GetUserByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return AuthPayload{}, ErrInvalidCredentials
		}
		return AuthPayload{}, err
	}
	if err = bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)); err != nil {
		return AuthPayload{}, ErrInvalidCredentials
	}

	claims := TokenClaims{
		UserID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(svc.now().Add(svc.tokenTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(svc.secret)
	if err != nil {
		return AuthPayload{}, errors.Join(ErrToken, err)
	}
	svc.logger.Debug().Int64("userID", u.ID).Msg("user logged in")
	return AuthPayload{Token: token, User: u}, nil
}

// parseToken verifies a token issued by LoginUser and returns its user id.
func (svc *Service) parseToken(token string) (int64, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return svc.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		return 0, errors.Join(ErrInvalidCredentials, err)
	}
	return claims.UserID, nil
}

func (svc *Service) UpdateUser(ctx context.Context, id int64, in UpdateUserInput) (model.User, error) {
	if err := svc.check(in); err != nil {
		return model.User{}, err
	}
	patch := model.UserPatch{
		Name:       in.Name,
		Email:      in.Email,
		ProfilePic: in.ProfilePic,
	}
	if in.Password != nil {
		hash, err := hashPassword(*in.Password)
		if err != nil {
			return model.User{}, err
		}
		patch.PasswordHash = &hash
	}
	u, err := svc.store.UpdateUser(ctx, id, patch)
	if err != nil {
		return model.User{}, err
	}
	svc.logger.Debug().Int64("userID", id).Msg("user updated")
	return u, nil
}

func (svc *Service) DeleteUser(ctx context.Context, id int64) (model.User, error) {
	u, err := svc.store.DeleteUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	svc.logger.Debug().Int64("userID", id).Msg("user deleted")
	return u, nil
}

func hashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		// bcrypt rejects passwords over 72 bytes
		return "", errors.Join(ErrInvalidInput, fmt.Errorf("hash password: %w", err))
	}
	return string(hash), nil
}
