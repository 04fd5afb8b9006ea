package publish

import (
	"context"
	"testing"

	"github.com/OdyseeTeam/mintstudio/internal/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelete(t *testing.T) {
	tok := "token-1"
	t.Run("draft", func(t *testing.T) {
		j := &journal{}
		store := newStore(j)
		store.AddPublish(mintable("p1"))
		require.NoError(t, Delete(context.Background(), store, newFakeMinter(j), testActor(), "p1"))
		assert.Equal(t, 0, j.count("Burn"))
		assert.Empty(t, store.Publish("p1").ID)
	})
	t.Run("minted burns first", func(t *testing.T) {
		j := &journal{}
		store := newStore(j)
		p := mintable("p1")
		p.TokenID = &tok
		store.AddPublish(p)
		require.NoError(t, Delete(context.Background(), store, newFakeMinter(j), testActor(), "p1"))
		assert.Less(t, j.index("Burn"), j.index("DeletePublish"))
	})
	t.Run("refused while minting", func(t *testing.T) {
		j := &journal{}
		store := newStore(j)
		p := mintable("p1")
		p.IsMinting = true
		store.AddPublish(p)
		err := Delete(context.Background(), store, newFakeMinter(j), testActor(), "p1")
		assert.True(t, errors.IsKind(err, errors.KindConflict))
		assert.Equal(t, 0, j.count("DeletePublish"))
	})
	t.Run("missing", func(t *testing.T) {
		err := Delete(context.Background(), newStore(nil), newFakeMinter(&journal{}), testActor(), "nope")
		assert.True(t, errors.IsKind(err, errors.KindNotFound))
	})
}
