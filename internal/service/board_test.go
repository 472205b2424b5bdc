package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sumire/taskboard/internal/domain"
)

type fakeBoardStore struct {
	boards  map[int64]domain.Board
	columns map[int64]domain.Column

	deletedBoards  []int64
	deletedColumns []int64
	setOrders      map[int64][]int64
	orderRemovals  []int64
}

func newFakeBoardStore() *fakeBoardStore {
	return &fakeBoardStore{
		boards:    map[int64]domain.Board{},
		columns:   map[int64]domain.Column{},
		setOrders: map[int64][]int64{},
	}
}

func (s *fakeBoardStore) FindByID(_ context.Context, id int64) (*domain.Board, error) {
	b, ok := s.boards[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

func (s *fakeBoardStore) ListForUser(_ context.Context, _ int64) ([]domain.Board, error) {
	return nil, nil
}

func (s *fakeBoardStore) ListForUserByRole(_ context.Context, _ int64, _ domain.Role) ([]domain.Board, error) {
	return nil, nil
}

func (s *fakeBoardStore) Create(_ context.Context, board domain.Board) (*domain.Board, error) {
	board.ID = int64(len(s.boards) + 1)
	s.boards[board.ID] = board
	return &board, nil
}

func (s *fakeBoardStore) Update(_ context.Context, board domain.Board) error {
	if _, ok := s.boards[board.ID]; !ok {
		return domain.ErrNotFound
	}
	s.boards[board.ID] = board
	return nil
}

func (s *fakeBoardStore) Delete(_ context.Context, id int64) error {
	delete(s.boards, id)
	s.deletedBoards = append(s.deletedBoards, id)
	return nil
}

func (s *fakeBoardStore) FindColumnByID(_ context.Context, id int64) (*domain.Column, error) {
	col, ok := s.columns[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &col, nil
}

func (s *fakeBoardStore) ListColumns(_ context.Context, boardID int64) ([]domain.Column, error) {
	var cols []domain.Column
	for _, col := range s.columns {
		if col.BoardID == boardID {
			cols = append(cols, col)
		}
	}
	return cols, nil
}

func (s *fakeBoardStore) CreateColumn(_ context.Context, col domain.Column) (*domain.Column, error) {
	col.ID = int64(len(s.columns) + 1)
	s.columns[col.ID] = col
	return &col, nil
}

func (s *fakeBoardStore) SetCardOrder(_ context.Context, columnID int64, order []int64) error {
	s.setOrders[columnID] = order
	col, ok := s.columns[columnID]
	if ok {
		col.CardOrder = order
		s.columns[columnID] = col
	}
	return nil
}

func (s *fakeBoardStore) RemoveCardFromOrder(_ context.Context, columnID, cardID int64) error {
	s.orderRemovals = append(s.orderRemovals, cardID)
	return nil
}

func (s *fakeBoardStore) DeleteColumns(_ context.Context, boardID int64) error {
	s.deletedColumns = append(s.deletedColumns, boardID)
	return nil
}

type boardFixture struct {
	boards  *fakeBoardStore
	cards   *fakeCardStore
	members *fakeMembershipStore
	notify  *notifyFixture
	svc     *BoardService
}

func newBoardFixture(t *testing.T) *boardFixture {
	t.Helper()

	notify := newNotifyFixture(t, time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC))

	boards := newFakeBoardStore()
	boards.boards[10] = domain.Board{ID: 10, Title: "platform work"}
	boards.columns[5] = domain.Column{ID: 5, BoardID: 10, Title: "doing", CardOrder: []int64{100}}
	boards.columns[6] = domain.Column{ID: 6, BoardID: 10, Title: "done"}

	cards := &fakeCardStore{cards: map[int64]domain.Card{
		100: {ID: 100, BoardID: 10, ColumnID: 5, Title: "ship release", Members: []int64{2}},
	}}

	members := newFakeMembershipStore()
	members.put(10, 1, domain.RoleCreator)
	members.put(10, 2, domain.RoleMember)

	roles := NewMembershipService(members, newFakeInvitationStore(), &fakeCardAssignments{}, notify.svc)

	notify.svc.boards = &liveBoardReader{store: boards}
	notify.svc.cards = &liveCardReader{store: cards}

	return &boardFixture{
		boards:  boards,
		cards:   cards,
		members: members,
		notify:  notify,
		svc: NewBoardService(boards, cards, &fakeCommentPurger{},
			&fakeInvitationPurger{}, members, roles, notify.svc),
	}
}

type liveBoardReader struct {
	store *fakeBoardStore
}

func (r *liveBoardReader) FindByID(ctx context.Context, id int64) (*domain.Board, error) {
	return r.store.FindByID(ctx, id)
}

type fakeInvitationPurger struct {
	purged []int64
}

func (s *fakeInvitationPurger) DeleteByBoard(_ context.Context, boardID int64) error {
	s.purged = append(s.purged, boardID)
	return nil
}

func (s *fakeMembershipStore) DeleteByBoard(_ context.Context, boardID int64) error {
	for key := range s.members {
		if key.boardID == boardID {
			delete(s.members, key)
		}
	}
	return nil
}

func TestCreateBoardGrantsCreatorRole(t *testing.T) {
	f := newBoardFixture(t)
	ctx := context.Background()

	board, err := f.svc.Create(ctx, 2, "side project", nil, domain.BoardPrivate)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if board.Slug == "" {
		t.Error("slug should be generated")
	}

	m, err := f.members.Find(ctx, board.ID, 2)
	if err != nil {
		t.Fatalf("creator membership missing: %v", err)
	}
	if m.Role != domain.RoleCreator {
		t.Errorf("role = %s, want creator", m.Role)
	}
}

func TestDeleteBoardOnlyCreator(t *testing.T) {
	f := newBoardFixture(t)

	err := f.svc.Delete(context.Background(), 2, 10)
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("Delete error = %v, want ErrForbidden", err)
	}
}

func TestDeleteBoardCascades(t *testing.T) {
	f := newBoardFixture(t)
	ctx := context.Background()

	// Pending deadline record for bob on the board's card.
	if _, err := f.notify.svc.Record(ctx, deadlineEvent("2026-08-28 12:00")); err != nil {
		t.Fatalf("seed deadline: %v", err)
	}

	if err := f.svc.Delete(ctx, 1, 10); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	if len(f.boards.deletedBoards) != 1 || f.boards.deletedBoards[0] != 10 {
		t.Errorf("deleted boards = %v, want [10]", f.boards.deletedBoards)
	}
	if len(f.boards.deletedColumns) != 1 {
		t.Errorf("column purges = %v, want one", f.boards.deletedColumns)
	}
	if _, err := f.members.Find(ctx, 10, 2); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("membership survived board delete: %v", err)
	}

	var creatorMsg, memberMsg string
	for _, n := range f.notify.store.records {
		if n.Kind == domain.KindDeadline {
			t.Errorf("deadline record survived board delete: %+v", n)
		}
		if n.Kind == domain.KindDelete {
			switch n.ImpactedUserID {
			case 1:
				creatorMsg = n.Message
			case 2:
				memberMsg = n.Message
			}
		}
	}
	if creatorMsg == "" || memberMsg == "" {
		t.Fatal("both creator and member should get delete notifications")
	}
	if creatorMsg == memberMsg {
		t.Error("creator and member phrasing should differ")
	}
}

func TestMoveCardAcrossColumns(t *testing.T) {
	f := newBoardFixture(t)
	ctx := context.Background()

	if err := f.svc.MoveCard(ctx, 2, 100, 6, 0); err != nil {
		t.Fatalf("MoveCard: %v", err)
	}

	if len(f.boards.orderRemovals) != 1 || f.boards.orderRemovals[0] != 100 {
		t.Errorf("order removals = %v, want [100]", f.boards.orderRemovals)
	}
	order, ok := f.boards.setOrders[6]
	if !ok || len(order) != 1 || order[0] != 100 {
		t.Errorf("target order = %v, want [100]", order)
	}
	if f.cards.cards[100].ColumnID != 6 {
		t.Errorf("card column = %d, want 6", f.cards.cards[100].ColumnID)
	}
}

func TestMoveCardWrongBoardRejected(t *testing.T) {
	f := newBoardFixture(t)
	f.boards.boards[11] = domain.Board{ID: 11, Title: "other"}
	f.boards.columns[7] = domain.Column{ID: 7, BoardID: 11}
	f.members.put(11, 2, domain.RoleMember)

	err := f.svc.MoveCard(context.Background(), 2, 100, 7, 0)
	if !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("MoveCard error = %v, want ErrInvalidInput", err)
	}
}
