package service

import (
	"context"
	"errors"

	"group_chat/internal/config"
	"group_chat/internal/domain"
	"group_chat/internal/repository"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/jwt"
	"group_chat/pkg/logger"

	"github.com/google/uuid"
)

// AuthService - проверка токена сессии и прав на действие в группе.
// Проверки не имеют побочных эффектов и никогда не закрывают соединение.
type AuthService interface {
	Authenticate(credential string) (*domain.Identity, error)
	AuthorizeGroupAction(ctx context.Context, identity *domain.Identity, groupID uuid.UUID, action domain.GroupAction, message *domain.ChatMessage) error
}

type authService struct {
	membershipRepo repository.MembershipRepository
	jwtCfg         config.JWTConfig
	log            logger.Logger
}

func NewAuthService(membershipRepo repository.MembershipRepository, jwtCfg config.JWTConfig, log logger.Logger) AuthService {
	return &authService{
		membershipRepo: membershipRepo,
		jwtCfg:         jwtCfg,
		log:            log,
	}
}

func (s *authService) Authenticate(credential string) (*domain.Identity, error) {
	claims, err := jwt.ValidateToken(credential, s.jwtCfg.Secret, s.jwtCfg.Issuer)
	if err != nil {
		s.log.Debug("Credential rejected", "error", err)
		return nil, apperrors.Auth(apperrors.ReasonInvalidSession, err)
	}

	// TODO: флаг супер-админа берется из токена как есть; нужна сверка с БД при долгоживущих токенах
	return &domain.Identity{
		UserID:       claims.UserID,
		IsSuperAdmin: claims.IsSuperAdmin,
	}, nil
}

func (s *authService) AuthorizeGroupAction(ctx context.Context, identity *domain.Identity, groupID uuid.UUID, action domain.GroupAction, message *domain.ChatMessage) error {
	if identity == nil {
		return apperrors.Auth(apperrors.ReasonInvalidSession, apperrors.ErrUnauthorized)
	}

	switch action {
	case domain.ActionJoin, domain.ActionSend, domain.ActionReact:
		return s.requireMember(ctx, identity, groupID)

	case domain.ActionEdit:
		// редактирует только автор, супер-админ тоже не может
		if message == nil || message.SenderID != identity.UserID {
			return apperrors.Forbidden(apperrors.ReasonUnauthorized)
		}
		return nil

	case domain.ActionDelete:
		if message == nil {
			return apperrors.NotFound(apperrors.ReasonNotFound, apperrors.ErrMessageNotFound)
		}
		if message.SenderID == identity.UserID || identity.IsSuperAdmin {
			return nil
		}

		adminID, err := s.membershipRepo.GetGroupAdmin(ctx, groupID)
		if err != nil {
			if errors.Is(err, apperrors.ErrGroupNotFound) {
				return apperrors.NotFound(apperrors.ReasonNotFound, err)
			}
			return apperrors.Persistence(err)
		}
		if adminID == identity.UserID {
			return nil
		}
		return s.requireAdminRole(ctx, identity, groupID)

	default:
		s.log.Warn("Unknown group action", "action", action)
		return apperrors.Forbidden(apperrors.ReasonUnauthorized)
	}
}

// requireAdminRole пускает участника, которому в группе выдана роль admin
func (s *authService) requireAdminRole(ctx context.Context, identity *domain.Identity, groupID uuid.UUID) error {
	membership, err := s.membershipRepo.GetMembership(ctx, identity.UserID, groupID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return apperrors.Forbidden(apperrors.ReasonUnauthorized)
		}
		return apperrors.Persistence(err)
	}
	if membership.Role != domain.MemberRoleAdmin {
		return apperrors.Forbidden(apperrors.ReasonUnauthorized)
	}
	return nil
}

func (s *authService) requireMember(ctx context.Context, identity *domain.Identity, groupID uuid.UUID) error {
	if identity.IsSuperAdmin {
		return nil
	}

	isMember, err := s.membershipRepo.Exists(ctx, identity.UserID, groupID)
	if err != nil {
		return apperrors.Persistence(err)
	}
	if !isMember {
		return apperrors.Forbidden(apperrors.ReasonUnauthorized)
	}
	return nil
}
