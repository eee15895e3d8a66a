package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AntoineDubuc/theodore/internal/model"
)

func newMockPostgres(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresWithPool(mock), mock
}

func TestPostgresPut(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgres(t)

	record := &model.CompanyRecord{ID: "id-1", Name: "Acme Robotics"}
	recordJSON, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO companies").
		WithArgs("id-1", "Acme Robotics", string(recordJSON), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.Put(context.Background(), record))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGet(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgres(t)

	record := &model.CompanyRecord{ID: "id-1", Name: "Acme Robotics", Industry: "Robotics"}
	recordJSON, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT record FROM companies WHERE id").
		WithArgs("id-1").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(recordJSON))

	got, err := s.Get(context.Background(), "id-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Robotics", got.Name)
	assert.Equal(t, "Robotics", got.Industry)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresGetMissing(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgres(t)

	mock.ExpectQuery("SELECT record FROM companies WHERE id").
		WithArgs("nope").
		WillReturnError(pgx.ErrNoRows)

	got, err := s.Get(context.Background(), "nope")
	require.NoError(t, err, "missing record is not an error")
	assert.Nil(t, got)
}

func TestPostgresGetByName(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgres(t)

	record := &model.CompanyRecord{ID: "id-1", Name: "Acme Robotics"}
	recordJSON, err := json.Marshal(record)
	require.NoError(t, err)

	mock.ExpectQuery("SELECT record FROM companies WHERE name_lower = lower").
		WithArgs("ACME ROBOTICS").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(recordJSON))

	got, err := s.GetByName(context.Background(), "ACME ROBOTICS")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "id-1", got.ID)
}

func TestPostgresSearchByName(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgres(t)

	a, _ := json.Marshal(&model.CompanyRecord{ID: "id-1", Name: "Acme Robotics"})
	b, _ := json.Marshal(&model.CompanyRecord{ID: "id-3", Name: "Gamma Robotics"})

	mock.ExpectQuery("SELECT record FROM companies WHERE name_lower LIKE").
		WithArgs("robot").
		WillReturnRows(pgxmock.NewRows([]string{"record"}).AddRow(a).AddRow(b))

	got, err := s.SearchByName(context.Background(), "robot")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Acme Robotics", got[0].Name)
}

func TestPostgresDelete(t *testing.T) {
	t.Parallel()
	s, mock := newMockPostgres(t)

	mock.ExpectExec("DELETE FROM companies").
		WithArgs("id-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, s.Delete(context.Background(), "id-1"), "zero rows affected is fine")
	assert.NoError(t, mock.ExpectationsWereMet())
}
