package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type tracedPublish struct{ id string }

func (p tracedPublish) GetTraceData() map[string]string {
	return map[string]string{"publish_id": p.id}
}

func TestMask(t *testing.T) {
	kv := []interface{}{"token", "secret", "publish_id", "abc", "id_token", "", "cookie"}
	masked := Mask(kv)
	assert.Equal(t, []interface{}{"token", "****", "publish_id", "abc", "id_token", "", "cookie"}, masked)
	assert.Equal(t, "secret", kv[1])
}

func TestContext(t *testing.T) {
	assert.IsType(t, NoopKVLogger{}, GetFromContext(context.Background()))

	l := TracedLogger(NoopKVLogger{}, tracedPublish{"abc"})
	ctx := AddToContext(context.Background(), l)
	assert.Equal(t, l, GetFromContext(ctx))
}
