package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mbeoliero/kit/log"
	"github.com/opencove/cove/internal/config"
	"github.com/opencove/cove/internal/entity"
	"github.com/opencove/cove/internal/repository"
	"github.com/opencove/cove/pkg/errcode"
	"github.com/opencove/cove/pkg/jwt"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// SessionKicker closes live feed connections whose credentials were revoked.
// Kicks are local to the instance; a revoked token cannot reconnect anywhere
// because the handshake revalidates it against the token store.
type SessionKicker interface {
	KickUser(userId string)
	KickToken(userId, token string)
}

// AuthService handles authentication logic
type AuthService struct {
	userRepo   *repository.UserRepo
	cfg        *config.Config
	tokenStore *jwt.TokenStore
	kicker     SessionKicker
}

// NewAuthService creates a new AuthService
func NewAuthService(userRepo *repository.UserRepo, cfg *config.Config, rdb *redis.Client) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		cfg:        cfg,
		tokenStore: jwt.NewTokenStore(rdb, cfg.Redis.KeyPrefix, cfg.JWT.ExpireHours),
	}
}

// SetKicker sets the session kicker
func (s *AuthService) SetKicker(kicker SessionKicker) {
	s.kicker = kicker
}

// RegisterRequest represents user registration request
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Nickname string `json:"nickname"`
	Avatar   string `json:"avatar,omitempty"`
}

// LoginRequest represents user login request
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse represents user login response
type LoginResponse struct {
	Token    string           `json:"token"`
	UserInfo *entity.UserInfo `json:"user_info"`
}

// Register registers a new user
func (s *AuthService) Register(ctx context.Context, req *RegisterRequest) (*entity.UserInfo, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" || req.Nickname == "" {
		return nil, errcode.ErrInvalidParam
	}

	exists, err := s.userRepo.EmailExists(ctx, email)
	if err != nil {
		log.CtxError(ctx, "check email exists failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if exists {
		return nil, errcode.ErrEmailTaken
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.CtxError(ctx, "hash password failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	user := &entity.User{
		Id:       uuid.New().String(),
		Email:    email,
		Nickname: req.Nickname,
		Password: string(hashedPassword),
		Avatar:   req.Avatar,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		log.CtxError(ctx, "create user failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user registered: user_id=%s", user.Id)
	return user.ToUserInfo(), nil
}

// Login authenticates a user and returns a token
func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		log.CtxError(ctx, "get user by email failed: %v", err)
		return nil, errcode.ErrInternalServer
	}
	if user == nil {
		return nil, errcode.ErrUserNotFound
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, errcode.ErrPasswordWrong
	}

	token, err := jwt.GenerateToken(user.Id, s.cfg.JWT.Secret, s.cfg.JWT.ExpireHours)
	if err != nil {
		log.CtxError(ctx, "generate token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	if err := s.tokenStore.StoreToken(ctx, user.Id, token); err != nil {
		log.CtxError(ctx, "store token failed: %v", err)
		return nil, errcode.ErrInternalServer
	}

	log.CtxInfo(ctx, "user logged in: user_id=%s", user.Id)
	return &LoginResponse{
		Token:    token,
		UserInfo: user.ToUserInfo(),
	}, nil
}

// ValidateToken validates a token and returns claims
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*jwt.Claims, error) {
	claims, err := jwt.ParseToken(token, s.cfg.JWT.Secret)
	if err != nil {
		return nil, err
	}

	valid, err := s.tokenStore.IsTokenValid(ctx, claims.UserId, token)
	if err != nil {
		log.CtxWarn(ctx, "check token status failed: %v", err)
		// Fall back to JWT validation only if Redis check fails
		return claims, nil
	}
	if !valid {
		return nil, errcode.ErrTokenInvalid
	}

	return claims, nil
}

// Logout invalidates a user's token and closes the feed connections that
// session holds
func (s *AuthService) Logout(ctx context.Context, userId, token string) error {
	if err := s.tokenStore.InvalidateToken(ctx, userId, token); err != nil {
		log.CtxError(ctx, "invalidate token failed: %v", err)
		return errcode.ErrInternalServer
	}
	if s.kicker != nil {
		s.kicker.KickToken(userId, token)
	}
	log.CtxInfo(ctx, "user logged out: user_id=%s", userId)
	return nil
}

// ForceLogout revokes every session of a user and kicks all of their feed
// connections
func (s *AuthService) ForceLogout(ctx context.Context, userId string) error {
	if err := s.tokenStore.ForceLogoutUser(ctx, userId); err != nil {
		log.CtxError(ctx, "force logout failed: %v", err)
		return errcode.ErrInternalServer
	}
	if s.kicker != nil {
		s.kicker.KickUser(userId)
	}
	log.CtxInfo(ctx, "user force logged out: user_id=%s", userId)
	return nil
}
