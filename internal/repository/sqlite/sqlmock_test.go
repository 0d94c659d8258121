package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sakif/blog/internal/apperror"
	"github.com/sakif/blog/internal/model"
	"github.com/sakif/blog/internal/repository"
)

// Driver failures are hard to provoke against a real SQLite file, so these
// tests drive the repository through go-sqlmock instead.

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return newWithConn(conn), mock
}

func TestList_QueryErrorIsWrapped(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("disk I/O error")

	mock.ExpectQuery("SELECT .* FROM posts p JOIN users u").WillReturnError(boom)

	_, err := db.List(context.Background(), repository.ListOptions{Limit: 10})
	if !errors.Is(err, boom) {
		t.Fatalf("List() error = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestUpdate_ZeroRowsIsNotFound(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec("UPDATE posts").WillReturnResult(sqlmock.NewResult(0, 0))

	err := db.Update(context.Background(), &model.Post{ID: "gone", Title: "t"})
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Fatalf("Update() error = %v, want ErrNotFound", err)
	}
}

func TestUpdateAccount_RollsBackOnProfileFailure(t *testing.T) {
	db, mock := newMockDB(t)
	boom := errors.New("profile write failed")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE profiles").WillReturnError(boom)
	mock.ExpectRollback()

	user := &model.User{ID: "u1", Username: "alice"}
	profile := &model.Profile{UserID: "u1", Image: "x.png"}

	err := db.UpdateAccount(context.Background(), user, profile)
	if !errors.Is(err, boom) {
		t.Fatalf("UpdateAccount() error = %v, want wrapped %v", err, boom)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("transaction was not rolled back: %v", err)
	}
}

func TestCount_ScanError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectQuery("SELECT COUNT").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow("not-a-number"))

	if _, err := db.Count(context.Background(), ""); err == nil {
		t.Fatal("Count() should fail when the driver returns a non-integer")
	}
}
