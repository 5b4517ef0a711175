package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/OpraEria/gather/internal/model"
	"github.com/OpraEria/gather/internal/repository"
	"github.com/OpraEria/gather/pkg/auth"
	apperrors "github.com/OpraEria/gather/pkg/errors"
	"github.com/OpraEria/gather/pkg/security"
)

var ErrInvalidCredentials = errors.New("invalid credentials")

type Service interface {
	Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error)
	Login(ctx context.Context, username, password string) (*model.TokenResponse, error)
	List(ctx context.Context) ([]*model.User, error)
}

type service struct {
	repo   repository.UserRepository
	hasher security.PasswordHasher
	jwtSvc auth.JWTService
}

func NewService(repo repository.UserRepository, hasher security.PasswordHasher, jwtSvc auth.JWTService) Service {
	return &service{repo: repo, hasher: hasher, jwtSvc: jwtSvc}
}

func (s *service) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	groupID, err := uuid.Parse(req.GroupID)
	if err != nil {
		return nil, apperrors.BadRequest("invalid group ID", err)
	}

	if _, err := s.repo.GetGroup(ctx, groupID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.BadRequest("unknown group", err)
		}
		return nil, fmt.Errorf("failed to resolve group: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &model.User{
		GroupID:      groupID,
		Username:     req.Username,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperrors.Conflict("username already taken", err)
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

func (s *service) Login(ctx context.Context, username, password string) (*model.TokenResponse, error) {
	user, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtSvc.GenerateAccessToken(user.ID, user.GroupID)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{AccessToken: token, User: user}, nil
}

func (s *service) List(ctx context.Context) ([]*model.User, error) {
	return s.repo.List(ctx)
}
