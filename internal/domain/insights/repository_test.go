package insights

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/pennywise/internal/domain/categorization"
)

func TestRepository_Fresh(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := uuid.New()
	food := "food"
	rows := pgxmock.NewRows([]string{"id", "owner_id", "kind", "title", "description", "priority", "category", "window_days", "created_at", "expires_at"}).
		AddRow(uuid.New(), owner, KindAnomaly, "Unusual food expense", "Big dinner", PriorityHigh, &food, 30, now, now.Add(time.Hour)).
		AddRow(uuid.New(), owner, KindSavingsRate, "Healthy savings", "Saved 40%", PriorityLow, (*string)(nil), 30, now, now.Add(time.Hour))

	mock.ExpectQuery(`SELECT .+ FROM insights\s+WHERE owner_id = \$1 AND window_days = \$2 AND expires_at > \$3`).
		WithArgs(owner, 30, now).
		WillReturnRows(rows)

	found, err := NewRepository(mock).Fresh(context.Background(), owner, 30, now)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, categorization.Food, found[0].Category)
	assert.Equal(t, PriorityHigh, found[0].Priority)
	assert.Empty(t, found[1].Category)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_Replace(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := uuid.New()
	in := Insight{
		ID:          uuid.New(),
		Kind:        KindTopCategory,
		Title:       "Most spent on food",
		Description: "Food took 60% of your spending.",
		Priority:    PriorityMedium,
		Category:    categorization.Food,
		CreatedAt:   now,
		ExpiresAt:   now.Add(24 * time.Hour),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM insights WHERE owner_id = \$1 AND window_days = \$2`).
		WithArgs(owner, 30).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectExec(`INSERT INTO insights`).
		WithArgs(in.ID, owner, "top_category", in.Title, in.Description, "medium", pgxmock.AnyArg(), 30, in.CreatedAt, in.ExpiresAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	require.NoError(t, NewRepository(mock).Replace(context.Background(), owner, 30, []Insight{in}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_ReplaceRollsBack(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM insights`).
		WithArgs(owner, 30).
		WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()

	err = NewRepository(mock).Replace(context.Background(), owner, 30, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to clear insights")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_PurgeExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(`DELETE FROM insights WHERE expires_at <= \$1`).
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	removed, err := NewRepository(mock).PurgeExpired(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, int64(7), removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_RecentTurns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := uuid.New()
	rows := pgxmock.NewRows([]string{"owner_id", "role", "content", "created_at"}).
		AddRow(owner, RoleUser, "how much on food?", now.Add(-time.Minute)).
		AddRow(owner, RoleAssistant, "2,750 rupees", now)

	mock.ExpectQuery(`FROM chat_messages\s+WHERE owner_id = \$1`).
		WithArgs(owner, 10).
		WillReturnRows(rows)

	turns, err := NewRepository(mock).RecentTurns(context.Background(), owner, 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "2,750 rupees", turns[1].Content)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_AppendTurns(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	owner := uuid.New()
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs(owner, "user", "hi", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs(owner, "assistant", "hello", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewRepository(mock).AppendTurns(context.Background(),
		ChatTurn{OwnerID: owner, Role: RoleUser, Content: "hi", CreatedAt: now},
		ChatTurn{OwnerID: owner, Role: RoleAssistant, Content: "hello", CreatedAt: now},
	)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
