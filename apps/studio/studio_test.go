package studio

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/OdyseeTeam/mintstudio/internal/test"
	"github.com/OdyseeTeam/mintstudio/pkg/configng"
	"github.com/OdyseeTeam/mintstudio/pkg/keybox"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
)

type launcherSuite struct {
	suite.Suite

	launcher *Launcher
	keyfob   *keybox.Keyfob
	router   chi.Router
	stopped  bool
}

func (s *launcherSuite) SetupTest() {
	kf, err := keybox.GenerateKeyfob()
	s.Require().NoError(err)
	s.keyfob = kf
	s.stopped = false

	api := chi.NewRouter()
	api.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("pong"))
	})
	api.Get("/panic", func(w http.ResponseWriter, r *http.Request) {
		panic("handler blew up")
	})

	s.launcher = NewLauncher(
		WithAPI(api),
		WithPublicKey(kf.PublicKey()),
		WithHTTPAddress("127.0.0.1:0"),
		WithCORSDomains([]string{"https://studio.example"}),
		WithShutdownHook(func() { s.stopped = true }),
	)
	s.router, err = s.launcher.Build()
	s.Require().NoError(err)
}

func (s *launcherSuite) TestInternalEndpoints() {
	for _, path := range []string{"/healthz", "/livez"} {
		(&test.HTTPTest{Method: http.MethodGet, URL: path, ResBody: "OK", Code: http.StatusOK}).Run(s.router, s.T())
	}
	(&test.HTTPTest{
		Method:      http.MethodGet,
		URL:         "/internal/metrics",
		Code:        http.StatusOK,
		ResContains: "studio_",
	}).Run(s.router, s.T())
	(&test.HTTPTest{
		Method:      http.MethodGet,
		URL:         "/.well-known/jwks.json",
		Code:        http.StatusOK,
		ResHeader:   map[string]string{"Content-Type": "application/jwk-set+json"},
		ResContains: `"kid":"session"`,
	}).Run(s.router, s.T())
}

func (s *launcherSuite) TestAPIMounted() {
	(&test.HTTPTest{Method: http.MethodGet, URL: "/api/v1/ping", ResBody: "pong", Code: http.StatusOK}).Run(s.router, s.T())
	(&test.HTTPTest{Method: http.MethodGet, URL: "/api/v1/panic", Code: http.StatusInternalServerError}).Run(s.router, s.T())
}

func (s *launcherSuite) TestCORS() {
	(&test.HTTPTest{
		Method: http.MethodOptions,
		URL:    "/api/v1/ping",
		ReqHeader: map[string]string{
			"Origin":                        "https://studio.example",
			"Access-Control-Request-Method": http.MethodGet,
		},
		Code: http.StatusOK,
		ResHeader: map[string]string{
			"Access-Control-Allow-Origin":      "https://studio.example",
			"Access-Control-Allow-Credentials": "true",
		},
	}).Run(s.router, s.T())
}

func (s *launcherSuite) TestShutdown() {
	ts := httptest.NewServer(s.router)
	defer ts.Close()

	s.launcher.StartShutdown()
	(&test.HTTPTest{Method: http.MethodGet, URL: ts.URL + "/livez", Code: http.StatusServiceUnavailable}).RunHTTP(s.T())
	(&test.HTTPTest{Method: http.MethodGet, URL: ts.URL + "/healthz", Code: http.StatusOK}).RunHTTP(s.T())

	s.launcher.CompleteShutdown()
	s.True(s.stopped)
}

func TestLauncherSuite(t *testing.T) {
	suite.Run(t, new(launcherSuite))
}

func TestNewWorker(t *testing.T) {
	m, _ := test.Redis(t)
	cfg := configng.New()
	cfg.Override("Redis", "redis://"+m.Addr()+"/0")
	cfg.Override("RedisBus", "redis://"+m.Addr()+"/1")
	cfg.Override("ContentAPI.URL", "http://content.test/graphql")

	b, closeFn, err := NewWorker(cfg, logging.NoopKVLogger{})
	if err != nil {
		t.Fatal(err)
	}
	closeFn()
	b.Shutdown()
}

func TestNotifierWiring(t *testing.T) {
	m, _ := test.Redis(t)
	cfg := configng.New()
	cfg.Override("Redis", "redis://"+m.Addr()+"/0")
	n, rdb, err := Notifier(cfg, logging.NoopKVLogger{})
	if err != nil {
		t.Fatal(err)
	}
	defer rdb.Close()
	if err := n.Notify(context.Background(), "pub-1"); err != nil {
		t.Fatal(err)
	}
}
