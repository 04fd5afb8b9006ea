package publish

import (
	"context"

	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/internal/errors"
)

// Remover deletes publish records.
type Remover interface {
	GetPublish(ctx context.Context, token, id string) (*content.Publish, error)
	DeletePublish(ctx context.Context, token, id string) error
}

// Delete removes a publish, burning its token first when it has one.
// Publishes with a mint in flight cannot be deleted.
func Delete(ctx context.Context, store Remover, burner Burner, a Actor, id string) error {
	p, err := store.GetPublish(ctx, a.Token, id)
	if err != nil {
		return err
	}
	if p.IsMinting {
		return errors.Conflict("publish %s is being minted", id)
	}
	if p.Minted() {
		if err := burner.Burn(ctx, a, *p); err != nil {
			return err
		}
	}
	return store.DeletePublish(ctx, a.Token, id)
}
