package content

import (
	"context"
	"testing"

	"github.com/Pallinder/go-randomdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoaderCachesAndInvalidates(t *testing.T) {
	svc := NewMemoryService()
	handle := randomdata.SillyName()
	svc.Accounts["tok"] = &Account{ID: "a1", Type: Custodial}
	svc.Profiles[handle] = &Profile{ID: "p1", Handle: handle}

	l, err := NewLoader(svc)
	require.NoError(t, err)
	defer l.Close()

	for i := 0; i < 3; i++ {
		a, err := l.Account(context.Background(), "tok", "uid-1")
		require.NoError(t, err)
		assert.Equal(t, "a1", a.ID)
	}
	assert.Equal(t, 1, svc.CallCount("Viewer"))

	l.InvalidateAccount("uid-1")
	_, err = l.Account(context.Background(), "tok", "uid-1")
	require.NoError(t, err)
	assert.Equal(t, 2, svc.CallCount("Viewer"))

	p, err := l.Profile(context.Background(), "tok", handle)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	_, err = l.Profile(context.Background(), "tok", handle)
	require.NoError(t, err)
	assert.Equal(t, 1, svc.CallCount("GetProfile"))
	l.InvalidateProfile(handle)
	_, err = l.Profile(context.Background(), "tok", handle)
	require.NoError(t, err)
	assert.Equal(t, 2, svc.CallCount("GetProfile"))
}

func TestLoaderDoesNotCacheErrors(t *testing.T) {
	svc := NewMemoryService()
	l, err := NewLoader(svc)
	require.NoError(t, err)
	defer l.Close()

	_, err = l.Profile(context.Background(), "tok", "ghost")
	require.Error(t, err)
	_, err = l.Profile(context.Background(), "tok", "ghost")
	require.Error(t, err)
	assert.Equal(t, 2, svc.CallCount("GetProfile"))
}
