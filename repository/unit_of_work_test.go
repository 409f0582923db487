package repository

import (
	"context"
	"testing"
	"time"

	"casinometrics/events"
	"casinometrics/repository/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnitOfWork(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := testutil.SetupTestDatabase(t)
	bus := events.NewBus()
	factory := NewUnitOfWorkFactory(testDB.DB, bus)
	ctx := context.Background()

	delivered := make(chan events.Event, 4)
	bus.Subscribe(events.EventTypeUserCreated, func(ctx context.Context, e events.Event) {
		delivered <- e
	})

	t.Run("commit persists and flushes events", func(t *testing.T) {
		testDB.Truncate(t)

		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))
		defer uow.Rollback()

		user := testutil.CreateTestUser("committed")
		require.NoError(t, uow.UserRepository().Create(ctx, user))
		uow.EventBus().Publish(events.UserCreatedEvent{UserID: user.ID, Username: user.Username})
		require.NoError(t, uow.Commit())

		got, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.NotNil(t, got)

		select {
		case e := <-delivered:
			assert.Equal(t, user.ID, e.(events.UserCreatedEvent).UserID)
		case <-time.After(2 * time.Second):
			t.Fatal("event not flushed after commit")
		}
	})

	t.Run("rollback discards writes and events", func(t *testing.T) {
		testDB.Truncate(t)

		uow := factory.Create()
		require.NoError(t, uow.Begin(ctx))

		user := testutil.CreateTestUser("rolledback")
		require.NoError(t, uow.UserRepository().Create(ctx, user))
		uow.EventBus().Publish(events.UserCreatedEvent{UserID: user.ID})
		require.NoError(t, uow.Rollback())

		got, err := NewUserRepository(testDB.DB).GetByID(ctx, user.ID)
		require.NoError(t, err)
		assert.Nil(t, got)

		select {
		case <-delivered:
			t.Fatal("event delivered after rollback")
		case <-time.After(100 * time.Millisecond):
		}
	})

	t.Run("double begin and commit without begin fail", func(t *testing.T) {
		uow := factory.Create()
		assert.Error(t, uow.Commit())

		require.NoError(t, uow.Begin(ctx))
		assert.Error(t, uow.Begin(ctx))
		assert.NoError(t, uow.Rollback())
		assert.NoError(t, uow.Rollback())
	})

	t.Run("repositories panic before begin", func(t *testing.T) {
		uow := factory.Create()
		assert.Panics(t, func() { uow.UserRepository() })
	})
}
