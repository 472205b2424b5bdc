package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sumire/taskboard/internal/domain"
)

type memberKey struct {
	boardID int64
	userID  int64
}

type fakeMembershipStore struct {
	members map[memberKey]domain.BoardMember
}

func newFakeMembershipStore() *fakeMembershipStore {
	return &fakeMembershipStore{members: map[memberKey]domain.BoardMember{}}
}

func (s *fakeMembershipStore) put(boardID, userID int64, role domain.Role) {
	s.members[memberKey{boardID, userID}] = domain.BoardMember{BoardID: boardID, UserID: userID, Role: role}
}

func (s *fakeMembershipStore) Find(_ context.Context, boardID, userID int64) (*domain.BoardMember, error) {
	m, ok := s.members[memberKey{boardID, userID}]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (s *fakeMembershipStore) FindCreator(_ context.Context, boardID int64) (*domain.BoardMember, error) {
	for _, m := range s.members {
		if m.BoardID == boardID && m.Role == domain.RoleCreator {
			return &m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeMembershipStore) List(_ context.Context, boardID int64) ([]domain.BoardMember, error) {
	var list []domain.BoardMember
	for _, m := range s.members {
		if m.BoardID == boardID {
			list = append(list, m)
		}
	}
	return list, nil
}

func (s *fakeMembershipStore) Create(_ context.Context, m domain.BoardMember) error {
	key := memberKey{m.BoardID, m.UserID}
	if _, ok := s.members[key]; ok {
		return domain.ErrConflict
	}
	s.members[key] = m
	return nil
}

func (s *fakeMembershipStore) SetRole(_ context.Context, boardID, userID int64, role domain.Role) error {
	key := memberKey{boardID, userID}
	m, ok := s.members[key]
	if !ok {
		return domain.ErrNotFound
	}
	m.Role = role
	s.members[key] = m
	return nil
}

func (s *fakeMembershipStore) Delete(_ context.Context, boardID, userID int64) error {
	delete(s.members, memberKey{boardID, userID})
	return nil
}

type fakeInvitationStore struct {
	nextID      int64
	invitations map[int64]domain.Invitation
}

func newFakeInvitationStore() *fakeInvitationStore {
	return &fakeInvitationStore{nextID: 1, invitations: map[int64]domain.Invitation{}}
}

func (s *fakeInvitationStore) FindByID(_ context.Context, id int64) (*domain.Invitation, error) {
	inv, ok := s.invitations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &inv, nil
}

func (s *fakeInvitationStore) FindByToken(_ context.Context, token string) (*domain.Invitation, error) {
	for _, inv := range s.invitations {
		if inv.Token == token {
			return &inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeInvitationStore) FindPending(_ context.Context, boardID, recipientID int64) (*domain.Invitation, error) {
	for _, inv := range s.invitations {
		if inv.BoardID == boardID && !inv.Public && inv.RecipientID != nil &&
			*inv.RecipientID == recipientID && inv.Status == domain.InvitationPending {
			return &inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeInvitationStore) FindPublicByBoard(_ context.Context, boardID int64) (*domain.Invitation, error) {
	for _, inv := range s.invitations {
		if inv.BoardID == boardID && inv.Public && inv.Status == domain.InvitationPending {
			return &inv, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *fakeInvitationStore) Create(_ context.Context, inv domain.Invitation) (*domain.Invitation, error) {
	inv.ID = s.nextID
	s.invitations[inv.ID] = inv
	s.nextID++
	return &inv, nil
}

func (s *fakeInvitationStore) SetStatus(_ context.Context, id int64, status domain.InvitationStatus) error {
	inv, ok := s.invitations[id]
	if !ok || inv.Status != domain.InvitationPending {
		return domain.ErrConflict
	}
	inv.Status = status
	s.invitations[id] = inv
	return nil
}

func (s *fakeInvitationStore) DeleteByToken(_ context.Context, token string) error {
	for id, inv := range s.invitations {
		if inv.Token == token {
			delete(s.invitations, id)
		}
	}
	return nil
}

type fakeCardAssignments struct {
	removed map[memberKey][]int64
}

func (f *fakeCardAssignments) RemoveMemberFromBoardCards(_ context.Context, boardID, userID int64) ([]int64, error) {
	if f.removed == nil {
		return nil, nil
	}
	return f.removed[memberKey{boardID, userID}], nil
}

type membershipFixture struct {
	members     *fakeMembershipStore
	invitations *fakeInvitationStore
	cards       *fakeCardAssignments
	notify      *notifyFixture
	svc         *MembershipService
}

func newMembershipFixture(t *testing.T) *membershipFixture {
	t.Helper()

	members := newFakeMembershipStore()
	invitations := newFakeInvitationStore()
	cards := &fakeCardAssignments{}
	notify := newNotifyFixture(t, time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC))

	// Board 10 exists in the notify fixture with alice (1) and bob (2).
	members.put(10, 1, domain.RoleCreator)

	return &membershipFixture{
		members:     members,
		invitations: invitations,
		cards:       cards,
		notify:      notify,
		svc:         NewMembershipService(members, invitations, cards, notify.svc),
	}
}

func TestInviteCreatesInvitationAndNotifies(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, 1, 10, 2)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if inv.Status != domain.InvitationPending || inv.Token == "" {
		t.Errorf("invitation = %+v, want pending with token", inv)
	}

	if len(f.notify.pusher.pushes) != 1 {
		t.Fatalf("pushes = %d, want 1", len(f.notify.pusher.pushes))
	}
	p := f.notify.pusher.pushes[0]
	if p.userID != 2 {
		t.Errorf("push target = %d, want recipient 2", p.userID)
	}
	n := p.payload.(*domain.Notification)
	if n.Kind != domain.KindInvite || n.ResponseStatus == nil || *n.ResponseStatus != domain.ResponsePending {
		t.Errorf("notification = %+v, want pending INVITE", n)
	}
}

func TestInviteRequiresManagerRole(t *testing.T) {
	f := newMembershipFixture(t)
	f.members.put(10, 2, domain.RoleMember)

	_, err := f.svc.Invite(context.Background(), 2, 10, 3)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("Invite error = %v, want ErrForbidden", err)
	}
}

func TestInviteExistingMemberConflicts(t *testing.T) {
	f := newMembershipFixture(t)
	f.members.put(10, 2, domain.RoleMember)

	_, err := f.svc.Invite(context.Background(), 1, 10, 2)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("Invite error = %v, want ErrConflict", err)
	}
}

func TestInviteDuplicatePendingConflicts(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Invite(ctx, 1, 10, 2); err != nil {
		t.Fatalf("first Invite: %v", err)
	}
	_, err := f.svc.Invite(ctx, 1, 10, 2)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second Invite error = %v, want ErrConflict", err)
	}
}

func TestAcceptInvitationCreatesMemberRole(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, 1, 10, 2)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if err := f.svc.AcceptInvitation(ctx, 2, inv.ID); err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}

	m, err := f.members.Find(ctx, 10, 2)
	if err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if m.Role != domain.RoleMember {
		t.Errorf("role = %s, want member", m.Role)
	}

	stored, _ := f.invitations.FindByID(ctx, inv.ID)
	if stored.Status != domain.InvitationAccepted {
		t.Errorf("invitation status = %s, want accepted", stored.Status)
	}

	// The original INVITE record's response moved to ACCEPTED.
	found := false
	for _, n := range f.notify.store.records {
		if n.Kind == domain.KindInvite {
			found = true
			if n.ResponseStatus == nil || *n.ResponseStatus != domain.ResponseAccepted {
				t.Errorf("INVITE response = %v, want ACCEPTED", n.ResponseStatus)
			}
		}
	}
	if !found {
		t.Error("INVITE record missing")
	}
}

func TestDeclineInvitationLeavesNoMembership(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, 1, 10, 2)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if err := f.svc.DeclineInvitation(ctx, 2, inv.ID); err != nil {
		t.Fatalf("DeclineInvitation: %v", err)
	}

	if _, err := f.members.Find(ctx, 10, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("membership lookup = %v, want ErrNotFound", err)
	}
}

func TestAnswerDecidedInvitationConflicts(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, 1, 10, 2)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	if err := f.svc.AcceptInvitation(ctx, 2, inv.ID); err != nil {
		t.Fatalf("AcceptInvitation: %v", err)
	}

	err = f.svc.DeclineInvitation(ctx, 2, inv.ID)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("second answer error = %v, want ErrConflict", err)
	}
}

func TestAnswerForeignInvitationForbidden(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	inv, err := f.svc.Invite(ctx, 1, 10, 2)
	if err != nil {
		t.Fatalf("Invite: %v", err)
	}
	err = f.svc.AcceptInvitation(ctx, 3, inv.ID)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("AcceptInvitation error = %v, want ErrForbidden", err)
	}
}

func TestRemoveMemberCascades(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	f.members.put(10, 2, domain.RoleMember)
	f.cards.removed = map[memberKey][]int64{{10, 2}: {100}}

	// Seed a pending deadline record for bob on card 100.
	if _, err := f.notify.svc.Record(ctx, deadlineEvent("2026-08-28 12:00")); err != nil {
		t.Fatalf("seed deadline: %v", err)
	}

	if err := f.svc.RemoveMember(ctx, 1, 10, 2); err != nil {
		t.Fatalf("RemoveMember: %v", err)
	}

	if _, err := f.members.Find(ctx, 10, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("membership still present: %v", err)
	}
	for _, n := range f.notify.store.records {
		if n.Kind == domain.KindDeadline {
			t.Errorf("deadline record survived removal: %+v", n)
		}
	}
}

func TestRemoveCreatorConflicts(t *testing.T) {
	f := newMembershipFixture(t)
	f.members.put(10, 2, domain.RoleOwner)

	err := f.svc.RemoveMember(context.Background(), 2, 10, 1)
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("RemoveMember error = %v, want ErrConflict", err)
	}
}

func TestChangeRole(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	f.members.put(10, 2, domain.RoleMember)

	if err := f.svc.ChangeRole(ctx, 1, 10, 2, domain.RoleOwner); err != nil {
		t.Fatalf("ChangeRole: %v", err)
	}
	m, _ := f.members.Find(ctx, 10, 2)
	if m.Role != domain.RoleOwner {
		t.Errorf("role = %s, want owner", m.Role)
	}
}

func TestChangeRoleGuards(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()
	f.members.put(10, 2, domain.RoleOwner)
	f.members.put(10, 3, domain.RoleMember)

	if err := f.svc.ChangeRole(ctx, 1, 10, 2, domain.RoleCreator); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("grant creator error = %v, want ErrConflict", err)
	}
	if err := f.svc.ChangeRole(ctx, 1, 10, 1, domain.RoleMember); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("demote creator error = %v, want ErrConflict", err)
	}
	if err := f.svc.ChangeRole(ctx, 3, 10, 3, domain.RoleOwner); !errors.Is(err, domain.ErrForbidden) {
		t.Errorf("self escalation error = %v, want ErrForbidden", err)
	}
}

func TestAcceptViaLink(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	inv, err := f.svc.GenerateLink(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GenerateLink: %v", err)
	}

	if err := f.svc.AcceptViaLink(ctx, 2, inv.Token); err != nil {
		t.Fatalf("AcceptViaLink: %v", err)
	}
	m, err := f.members.Find(ctx, 10, 2)
	if err != nil {
		t.Fatalf("membership not created: %v", err)
	}
	if m.Role != domain.RoleMember {
		t.Errorf("role = %s, want member", m.Role)
	}

	// The link survives and a second join by the same user conflicts.
	if err := f.svc.AcceptViaLink(ctx, 2, inv.Token); !errors.Is(err, domain.ErrConflict) {
		t.Errorf("second join error = %v, want ErrConflict", err)
	}
	if _, err := f.invitations.FindByToken(ctx, inv.Token); err != nil {
		t.Errorf("link should survive joins: %v", err)
	}
}

func TestGenerateLinkIsIdempotent(t *testing.T) {
	f := newMembershipFixture(t)
	ctx := context.Background()

	first, err := f.svc.GenerateLink(ctx, 1, 10)
	if err != nil {
		t.Fatalf("GenerateLink: %v", err)
	}
	second, err := f.svc.GenerateLink(ctx, 1, 10)
	if err != nil {
		t.Fatalf("second GenerateLink: %v", err)
	}
	if first.Token != second.Token {
		t.Errorf("tokens differ: %q vs %q", first.Token, second.Token)
	}
}
