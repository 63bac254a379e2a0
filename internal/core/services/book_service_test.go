package services

import (
	"context"
	"testing"

	"shelfshare/internal/adapters/persistence/repositories"
	"shelfshare/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBookService(f *fixture) *BookService {
	return NewBookService(repositories.NewBookRepository(f.db))
}

func TestUpdateBook(t *testing.T) {
	f := newFixture(t)
	svc := newBookService(f)

	book, err := svc.Update(context.Background(), f.lender.ID, f.book.ID, &UpdateBookInput{
		Title:  "Renamed",
		Author: "Someone Else",
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", book.Title)

	stored, err := svc.GetByID(context.Background(), f.book.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, "Someone Else", stored.Author)
}

func TestUpdateBookWrongOwner(t *testing.T) {
	f := newFixture(t)
	svc := newBookService(f)

	_, err := svc.Update(context.Background(), f.borrower.ID, f.book.ID, &UpdateBookInput{Title: "Renamed"})
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestUpdateBookBlockedWhileOnLoan(t *testing.T) {
	f := newFixture(t)
	svc := newBookService(f)

	uid := f.request(t)

	// A pending request already blocks edits
	_, err := svc.Update(context.Background(), f.lender.ID, f.book.ID, &UpdateBookInput{Title: "Renamed"})
	assert.ErrorIs(t, err, domain.ErrBookOnLoan)

	_, err = f.svc.RejectLoan(context.Background(), uid, f.lender.ID)
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), f.lender.ID, f.book.ID, &UpdateBookInput{Title: "Renamed"})
	assert.NoError(t, err)
}

func TestRemoveBookBlockedWhileOnLoan(t *testing.T) {
	f := newFixture(t)
	svc := newBookService(f)

	uid := f.request(t)
	f.approve(t, uid, nil)

	err := svc.Remove(context.Background(), f.lender.ID, f.book.ID)
	assert.ErrorIs(t, err, domain.ErrBookOnLoan)

	_, err = f.svc.ReturnBook(context.Background(), f.book.ID)
	require.NoError(t, err)

	assert.NoError(t, svc.Remove(context.Background(), f.lender.ID, f.book.ID))
}

func TestRemoveBookWrongOwner(t *testing.T) {
	f := newFixture(t)
	svc := newBookService(f)

	err := svc.Remove(context.Background(), f.borrower.ID, f.book.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestBrowseExcludesOwnBooks(t *testing.T) {
	f := newFixture(t)
	svc := newBookService(f)

	// The only seeded book belongs to the lender
	out, err := svc.Browse(context.Background(), f.lender.ID, 1, 20)
	require.NoError(t, err)
	assert.Empty(t, out.Books)

	out, err = svc.Browse(context.Background(), f.borrower.ID, 1, 20)
	require.NoError(t, err)
	require.Len(t, out.Books, 1)
	assert.Equal(t, f.book.ID, out.Books[0].ID)
}
