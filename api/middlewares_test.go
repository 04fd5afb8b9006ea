package api

import (
	"net/http"
	"testing"

	"github.com/OdyseeTeam/mintstudio/app/publish"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/internal/test"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMethodTimerUsesRoutePattern(t *testing.T) {
	f := newFixture(t, publish.DefaultLimits())
	f.svc.AddPublish(mintable("pub-timed"))

	f.doJSON(t, http.MethodGet, "/api/v1/publishes/pub-timed/", "", http.StatusOK)
	(&test.HTTPTest{Method: http.MethodGet, URL: "/api/v1/handles/sunsets", Code: http.StatusOK}).Run(f.router, t)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(metrics.APICallDurations))
	mfs, err := reg.Gather()
	require.NoError(t, err)

	routes := map[string]bool{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetName() == "route" {
					routes[l.GetValue()] = true
				}
			}
		}
	}
	assert.True(t, routes["/api/v1/publishes/{id}"], routes)
	assert.True(t, routes["/api/v1/handles/{handle}"], routes)
	for r := range routes {
		assert.NotContains(t, r, "pub-timed")
	}
}
