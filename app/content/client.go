package content

import (
	"context"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/gql"
)

const publishFields = `id title description filename thumbnailSource thumbnailUri primaryCategory secondaryCategory
	playback { duration preview thumbnail hls dash }
	visible tokenId isMinting uploadError transcodeError metadataUri mintRequestedAt creatorId createdAt updatedAt`

const accountFields = `id walletAddress type
	profiles { id handle imageUri isDefault followers following publishes accountId tokenId }`

const (
	queryPublish = `query GetPublish($id: ID!) { publish(id: $id) { ` + publishFields + ` } }`

	queryPublishes = `query ListPublishes($profileId: ID!) { publishes(profileId: $profileId) { ` + publishFields + ` } }`

	queryViewer = `query Viewer { viewer { ` + accountFields + ` } }`

	queryProfile = `query GetProfile($handle: String!) {
	profile(handle: $handle) { id handle imageUri isDefault followers following publishes accountId tokenId } }`

	mutationCreateDraft = `mutation CreateDraftPublish($filename: String!) { createDraftPublish(filename: $filename) { id } }`

	mutationUpdatePublish = `mutation UpdatePublish($id: ID!, $input: PublishUpdateInput!) { updatePublish(id: $id, input: $input) { id } }`

	mutationSetMinting = `mutation SetPublishMinting($id: ID!, $isMinting: Boolean!) {
	setPublishMinting(id: $id, isMinting: $isMinting) { id isMinting } }`

	mutationDeletePublish = `mutation DeletePublish($id: ID!) { deletePublish(id: $id) { id } }`
)

// Service is the content and account store as seen by the publish workflow.
type Service interface {
	CreateDraft(ctx context.Context, token, filename string) (string, error)
	GetPublish(ctx context.Context, token, id string) (*Publish, error)
	ListPublishes(ctx context.Context, token, profileID string) ([]Publish, error)
	UpdatePublish(ctx context.Context, token, id string, u PublishUpdate) error
	SetMinting(ctx context.Context, token, id string, minting bool) error
	DeletePublish(ctx context.Context, token, id string) error
	Viewer(ctx context.Context, token string) (*Account, error)
	GetProfile(ctx context.Context, token, handle string) (*Profile, error)
}

// Client talks to the GraphQL content service.
type Client struct {
	gql *gql.Client
}

func NewClient(c *gql.Client) *Client {
	return &Client{gql: c}
}

func (c *Client) CreateDraft(ctx context.Context, token, filename string) (string, error) {
	var out struct {
		CreateDraftPublish struct{ ID string }
	}
	err := c.gql.Mutate(ctx, token, "CreateDraftPublish", mutationCreateDraft, map[string]any{"filename": filename}, &out)
	if err != nil {
		return "", err
	}
	if out.CreateDraftPublish.ID == "" {
		return "", errors.Transient(errors.Base("content service returned no draft id"))
	}
	return out.CreateDraftPublish.ID, nil
}

// GetPublish returns a not-found error when the publish does not exist.
func (c *Client) GetPublish(ctx context.Context, token, id string) (*Publish, error) {
	var out struct {
		Publish *Publish
	}
	if err := c.gql.Query(ctx, token, "GetPublish", queryPublish, map[string]any{"id": id}, &out); err != nil {
		return nil, err
	}
	if out.Publish == nil {
		return nil, errors.NotFound("publish %s not found", id)
	}
	return out.Publish, nil
}

func (c *Client) ListPublishes(ctx context.Context, token, profileID string) ([]Publish, error) {
	var out struct {
		Publishes []Publish
	}
	if err := c.gql.Query(ctx, token, "ListPublishes", queryPublishes, map[string]any{"profileId": profileID}, &out); err != nil {
		return nil, err
	}
	return out.Publishes, nil
}

// UpdatePublish sends only the supplied fields of u. An empty update is not sent.
func (c *Client) UpdatePublish(ctx context.Context, token, id string, u PublishUpdate) error {
	if u.IsEmpty() {
		return nil
	}
	return c.gql.Mutate(ctx, token, "UpdatePublish", mutationUpdatePublish, map[string]any{"id": id, "input": u}, nil)
}

func (c *Client) SetMinting(ctx context.Context, token, id string, minting bool) error {
	return c.gql.Mutate(ctx, token, "SetPublishMinting", mutationSetMinting, map[string]any{"id": id, "isMinting": minting}, nil)
}

func (c *Client) DeletePublish(ctx context.Context, token, id string) error {
	return c.gql.Mutate(ctx, token, "DeletePublish", mutationDeletePublish, map[string]any{"id": id}, nil)
}

// Viewer returns the account the identity token belongs to.
func (c *Client) Viewer(ctx context.Context, token string) (*Account, error) {
	var out struct {
		Viewer *Account
	}
	if err := c.gql.Query(ctx, token, "Viewer", queryViewer, nil, &out); err != nil {
		return nil, err
	}
	if out.Viewer == nil {
		return nil, errors.NotFound("account not found")
	}
	return out.Viewer, nil
}

func (c *Client) GetProfile(ctx context.Context, token, handle string) (*Profile, error) {
	var out struct {
		Profile *Profile
	}
	if err := c.gql.Query(ctx, token, "GetProfile", queryProfile, map[string]any{"handle": handle}, &out); err != nil {
		return nil, err
	}
	if out.Profile == nil {
		return nil, errors.NotFound("profile %s not found", handle)
	}
	return out.Profile, nil
}
