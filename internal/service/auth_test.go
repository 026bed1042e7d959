package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"group_chat/internal/domain"
	"group_chat/internal/repository/repotest"
	apperrors "group_chat/pkg/errors"
	"group_chat/pkg/jwt"
)

func TestAuthenticate(t *testing.T) {
	f := newFixture(t)

	identity, err := f.auth.Authenticate(token(t, f.member, false))
	require.NoError(t, err)
	assert.Equal(t, f.member, identity.UserID)
	assert.False(t, identity.IsSuperAdmin)

	expired, err := jwt.GenerateAccessToken(f.member, false, testSecret, "", -time.Minute)
	require.NoError(t, err)

	for name, credential := range map[string]string{
		"empty":        "",
		"garbage":      "abc.def.ghi",
		"expired":      expired,
		"wrong secret": mustToken(t, f.member, "other-secret"),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := f.auth.Authenticate(credential)
			require.Error(t, err)
			assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
			assert.Equal(t, apperrors.ReasonInvalidSession, apperrors.Reason(err))
		})
	}
}

func mustToken(t *testing.T, userID uuid.UUID, secret string) string {
	t.Helper()
	tok, err := jwt.GenerateAccessToken(userID, false, secret, "", time.Hour)
	require.NoError(t, err)
	return tok
}

func TestAuthorizeGroupAction_Membership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, action := range []domain.GroupAction{domain.ActionJoin, domain.ActionSend, domain.ActionReact} {
		t.Run(string(action), func(t *testing.T) {
			assert.NoError(t, f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: f.member}, f.group, action, nil))

			err := f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: f.other}, f.group, action, nil)
			assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
			assert.Equal(t, apperrors.ReasonUnauthorized, apperrors.Reason(err))

			// супер-админ проходит без членства
			assert.NoError(t, f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: f.other, IsSuperAdmin: true}, f.group, action, nil))
		})
	}
}

func TestAuthorizeGroupAction_MembershipLookupFails(t *testing.T) {
	f := newFixture(t)
	f.store.FailNext(repotest.OpExists, errors.New("db down"))

	err := f.auth.AuthorizeGroupAction(context.Background(), &domain.Identity{UserID: f.member}, f.group, domain.ActionJoin, nil)
	assert.Equal(t, apperrors.KindPersistence, apperrors.KindOf(err))
	assert.Equal(t, apperrors.ReasonInternal, apperrors.Reason(err))
}

func TestAuthorizeGroupAction_Edit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	message := &domain.ChatMessage{ID: uuid.New(), GroupID: f.group, SenderID: f.member}

	assert.NoError(t, f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: f.member}, f.group, domain.ActionEdit, message))

	cases := map[string]*domain.Identity{
		"group admin": {UserID: f.admin},
		"super admin": {UserID: f.other, IsSuperAdmin: true},
		"stranger":    {UserID: f.other},
	}
	for name, identity := range cases {
		t.Run(name, func(t *testing.T) {
			err := f.auth.AuthorizeGroupAction(ctx, identity, f.group, domain.ActionEdit, message)
			assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
		})
	}
}

func TestAuthorizeGroupAction_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	message := &domain.ChatMessage{ID: uuid.New(), GroupID: f.group, SenderID: f.member}

	allowed := map[string]*domain.Identity{
		"sender":      {UserID: f.member},
		"group admin": {UserID: f.admin},
		"super admin": {UserID: f.other, IsSuperAdmin: true},
	}
	for name, identity := range allowed {
		t.Run(name, func(t *testing.T) {
			assert.NoError(t, f.auth.AuthorizeGroupAction(ctx, identity, f.group, domain.ActionDelete, message))
		})
	}

	err := f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: f.other}, f.group, domain.ActionDelete, message)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	// другой участник группы, но не админ
	peer := uuid.New()
	f.store.AddMember(f.group, peer)
	err = f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: peer}, f.group, domain.ActionDelete, message)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))
}

func TestAuthorizeGroupAction_DeleteByAdminRole(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	message := &domain.ChatMessage{ID: uuid.New(), GroupID: f.group, SenderID: f.member}

	// второй админ группы: роль в group_members, но не владелец groups.admin_id
	coAdmin := uuid.New()
	f.store.AddMemberWithRole(f.group, coAdmin, domain.MemberRoleAdmin)
	assert.NoError(t, f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: coAdmin}, f.group, domain.ActionDelete, message))

	// роль admin в другой группе ничего не дает
	otherGroup := uuid.New()
	f.store.AddGroup(otherGroup, uuid.New())
	f.store.AddMemberWithRole(otherGroup, f.other, domain.MemberRoleAdmin)
	err := f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: f.other}, f.group, domain.ActionDelete, message)
	assert.Equal(t, apperrors.KindAuthorization, apperrors.KindOf(err))

	err = f.auth.AuthorizeGroupAction(ctx, &domain.Identity{UserID: coAdmin}, uuid.New(), domain.ActionDelete, message)
	assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
}

func TestAuthorizeGroupAction_NilIdentity(t *testing.T) {
	f := newFixture(t)
	err := f.auth.AuthorizeGroupAction(context.Background(), nil, f.group, domain.ActionJoin, nil)
	assert.Equal(t, apperrors.KindAuth, apperrors.KindOf(err))
}
