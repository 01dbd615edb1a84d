package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaclass/eva-api/internal/models"
	"github.com/evaclass/eva-api/internal/policy"
)

func TestCreateMessage(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	mock.ExpectExec("INSERT INTO chat_messages").WillReturnResult(sqlmock.NewResult(1, 1))

	message := &models.ChatMessage{
		ClassID:  "c1",
		AuthorID: "u1",
		Text:     "Can you explain recursion?",
		Category: policy.CategoryConceptClarification,
	}
	err := repo.Create(context.Background(), message)
	require.NoError(t, err)
	assert.NotEmpty(t, message.ID)
	assert.False(t, message.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListMessagesByCategory(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMessageRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "class_id", "author_id", "text", "category", "created_at"}).
		AddRow("m1", "c1", "u1", "Show me an example", string(policy.CategoryExampleRequest), now)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, class_id, author_id, text, category, created_at FROM chat_messages WHERE class_id = $1 AND category = $2 ORDER BY created_at DESC LIMIT 50 OFFSET 0")).
		WithArgs("c1", policy.CategoryExampleRequest).
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(1)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM chat_messages WHERE class_id = $1 AND category = $2")).
		WithArgs("c1", policy.CategoryExampleRequest).
		WillReturnRows(countRows)

	category := policy.CategoryExampleRequest
	messages, total, err := repo.List(context.Background(), models.MessageFilter{ClassID: "c1", Category: &category})
	require.NoError(t, err)
	assert.Len(t, messages, 1)
	assert.Equal(t, 1, total)
	assert.Equal(t, policy.CategoryExampleRequest, messages[0].Category)
	assert.NoError(t, mock.ExpectationsWereMet())
}
