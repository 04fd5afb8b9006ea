package publish

import (
	"context"
	"io"
	"sync"

	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
	"github.com/OdyseeTeam/mintstudio/internal/tasks"

	"github.com/shopspring/decimal"
)

// journal records calls across fakes in invocation order.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(op string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, op)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string{}, j.entries...)
}

func (j *journal) index(op string) int {
	for i, e := range j.list() {
		if e == op {
			return i
		}
	}
	return -1
}

func (j *journal) count(op string) int {
	n := 0
	for _, e := range j.list() {
		if e == op {
			n++
		}
	}
	return n
}

func newStore(j *journal) *content.MemoryService {
	s := content.NewMemoryService()
	if j != nil {
		s.OnCall = j.add
	}
	return s
}

type fakeMinter struct {
	j        *journal
	estimate chain.Estimate
	estErr   error
	mintErr  error

	mu      sync.Mutex
	minted  []content.Publish
	burned  []content.Publish
	settled func(error)
}

func newFakeMinter(j *journal) *fakeMinter {
	return &fakeMinter{
		j: j,
		estimate: chain.Estimate{
			Gas:      decimal.NewFromInt(21000),
			GasPrice: decimal.RequireFromString("0.000000002"),
			Currency: "MATIC",
		},
	}
}

func (m *fakeMinter) EstimateMint(ctx context.Context, token string, p content.Publish) (chain.Estimate, error) {
	m.j.add("EstimateMint")
	return m.estimate, m.estErr
}

func (m *fakeMinter) Mint(ctx context.Context, a Actor, p content.Publish, onSettled func(error)) error {
	m.j.add("Mint")
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mintErr != nil {
		return m.mintErr
	}
	m.minted = append(m.minted, p)
	m.settled = onSettled
	return nil
}

func (m *fakeMinter) Burn(ctx context.Context, a Actor, p content.Publish) error {
	m.j.add("Burn")
	m.mu.Lock()
	defer m.mu.Unlock()
	m.burned = append(m.burned, p)
	return nil
}

func (m *fakeMinter) settle(err error) {
	m.mu.Lock()
	fn := m.settled
	m.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

type fakeScheduler struct {
	j        *journal
	mu       sync.Mutex
	payloads []tasks.ReconcileMintPayload
	err      error
}

func (s *fakeScheduler) ScheduleReconcile(ctx context.Context, p tasks.ReconcileMintPayload) error {
	s.j.add("ScheduleReconcile")
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, p)
	return s.err
}

type fakeIngest struct {
	mu        sync.Mutex
	videos    []ingest.File
	thumbs    []ingest.File
	bodies    []string
	videoErr  error
	thumbDone chan struct{}
}

func newFakeIngest() *fakeIngest {
	return &fakeIngest{thumbDone: make(chan struct{}, 10)}
}

func (u *fakeIngest) UploadVideo(ctx context.Context, token string, f ingest.File) (ingest.Result, error) {
	b, _ := io.ReadAll(f.Body)
	u.mu.Lock()
	defer u.mu.Unlock()
	u.videos = append(u.videos, f)
	u.bodies = append(u.bodies, string(b))
	if u.videoErr != nil {
		return ingest.Result{}, u.videoErr
	}
	return ingest.Result{URI: "https://cdn.example/" + f.DraftID}, nil
}

func (u *fakeIngest) UploadThumbnail(ctx context.Context, token string, f ingest.File) (ingest.Result, error) {
	u.mu.Lock()
	u.thumbs = append(u.thumbs, f)
	u.mu.Unlock()
	u.thumbDone <- struct{}{}
	return ingest.Result{URI: "https://cdn.example/thumbs/" + f.DraftID}, nil
}

func (u *fakeIngest) thumbnails() []ingest.File {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]ingest.File{}, u.thumbs...)
}

// mintable returns a processed, private publish that has never been minted.
func mintable(id string) content.Publish {
	return content.Publish{
		ID:              id,
		Title:           "Sunset timelapse",
		Filename:        "sunset.mp4",
		PrimaryCategory: "travel",
		ThumbnailSource: content.ThumbnailGenerated,
		ThumbnailURI:    "https://cdn.example/" + id + ".jpg",
		Playback:        &content.Playback{Duration: 12, HLS: "https://cdn.example/" + id + ".m3u8"},
		MetadataURI:     "ipfs://meta/" + id,
		CreatorID:       "profile-1",
	}
}

func testActor() Actor {
	return Actor{
		Token:   "id-token",
		Subject: "user-1",
		Account: content.Account{
			ID:            "acc-1",
			Type:          content.Custodial,
			WalletAddress: "0xabc",
			Profiles:      []content.Profile{{ID: "profile-1", Handle: "sunsets", IsDefault: true}},
		},
	}
}
