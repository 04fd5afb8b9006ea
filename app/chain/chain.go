// Package chain is the client of the GraphQL chain-action service: custodial execution of
// token actions and read-only estimates.
package chain

import (
	"context"
	"fmt"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/pkg/gql"

	"github.com/shopspring/decimal"
)

type ActionKind string

const (
	ActionMintPublish        ActionKind = "MINT_PUBLISH"
	ActionBurnPublish        ActionKind = "BURN_PUBLISH"
	ActionCreateProfile      ActionKind = "CREATE_PROFILE"
	ActionUpdateProfileImage ActionKind = "UPDATE_PROFILE_IMAGE"
	ActionFollow             ActionKind = "FOLLOW"
)

// Action is a single on-chain operation. Only the fields relevant to Kind are set.
type Action struct {
	Kind            ActionKind `json:"kind"`
	PublishID       string     `json:"publishId,omitempty"`
	ProfileID       string     `json:"profileId,omitempty"`
	TargetProfileID string     `json:"targetProfileId,omitempty"`
	Handle          string     `json:"handle,omitempty"`
	TokenID         string     `json:"tokenId,omitempty"`
	MetadataURI     string     `json:"metadataUri,omitempty"`
	ImageURI        string     `json:"imageUri,omitempty"`
}

func (a Action) Validate() error {
	switch a.Kind {
	case ActionMintPublish:
		if a.PublishID == "" || a.MetadataURI == "" {
			return errors.Validation("mint requires publish id and metadata uri")
		}
	case ActionBurnPublish:
		if a.TokenID == "" {
			return errors.Validation("burn requires token id")
		}
	case ActionCreateProfile:
		if a.Handle == "" {
			return errors.Validation("profile creation requires a handle")
		}
	case ActionUpdateProfileImage:
		if a.ProfileID == "" || a.ImageURI == "" {
			return errors.Validation("image update requires profile id and image uri")
		}
	case ActionFollow:
		if a.ProfileID == "" || a.TargetProfileID == "" {
			return errors.Validation("follow requires both profiles")
		}
	default:
		return errors.Validation("unknown action %q", a.Kind)
	}
	return nil
}

type TxState string

const (
	TxSubmitted TxState = "SUBMITTED"
	TxConfirmed TxState = "CONFIRMED"
	TxFailed    TxState = "FAILED"
)

type Status struct {
	TxHash string  `json:"txHash"`
	State  TxState `json:"state"`
	Error  string  `json:"error"`
}

// Estimate is a gas fee estimate for an action, priced in the chain's native currency.
type Estimate struct {
	Gas      decimal.Decimal `json:"gas"`
	GasPrice decimal.Decimal `json:"gasPrice"`
	Currency string          `json:"currency"`
}

// Fee is gas times gas price.
func (e Estimate) Fee() decimal.Decimal {
	return e.Gas.Mul(e.GasPrice)
}

// String renders the fee rounded to 6 decimal places.
func (e Estimate) String() string {
	return fmt.Sprintf("%s %s", e.Fee().StringFixed(6), e.Currency)
}

const (
	mutationExecute = `mutation ExecuteAction($action: ChainActionInput!) {
	executeAction(action: $action) { txHash state error } }`

	queryEstimate = `query EstimateGas($action: ChainActionInput!) {
	estimateGas(action: $action) { gas gasPrice currency } }`

	queryBalance = `query Balance($address: String!) { balance(address: $address) }`

	queryDefaultProfile = `query DefaultProfile($address: String!) { defaultProfile(address: $address) { id } }`
)

type Client struct {
	gql *gql.Client
}

func NewClient(c *gql.Client) *Client {
	return &Client{gql: c}
}

// Execute submits a custodial action. The returned status reflects submission; confirmation
// is observed through the content service.
func (c *Client) Execute(ctx context.Context, token string, a Action) (Status, error) {
	if err := a.Validate(); err != nil {
		return Status{}, err
	}
	var out struct {
		ExecuteAction Status
	}
	if err := c.gql.Mutate(ctx, token, "ExecuteAction", mutationExecute, map[string]any{"action": a}, &out); err != nil {
		return Status{}, err
	}
	if out.ExecuteAction.State == TxFailed {
		return out.ExecuteAction, errors.Transient(fmt.Errorf("chain action %s failed: %s", a.Kind, out.ExecuteAction.Error))
	}
	return out.ExecuteAction, nil
}

func (c *Client) EstimateGas(ctx context.Context, token string, a Action) (Estimate, error) {
	var out struct {
		EstimateGas Estimate
	}
	if err := c.gql.Query(ctx, token, "EstimateGas", queryEstimate, map[string]any{"action": a}, &out); err != nil {
		return Estimate{}, err
	}
	return out.EstimateGas, nil
}

func (c *Client) Balance(ctx context.Context, token, address string) (decimal.Decimal, error) {
	var out struct {
		Balance decimal.Decimal
	}
	if err := c.gql.Query(ctx, token, "Balance", queryBalance, map[string]any{"address": address}, &out); err != nil {
		return decimal.Zero, err
	}
	return out.Balance, nil
}

// DefaultProfile returns the id of the default profile registered on chain for address.
func (c *Client) DefaultProfile(ctx context.Context, token, address string) (string, error) {
	var out struct {
		DefaultProfile *struct{ ID string }
	}
	if err := c.gql.Query(ctx, token, "DefaultProfile", queryDefaultProfile, map[string]any{"address": address}, &out); err != nil {
		return "", err
	}
	if out.DefaultProfile == nil {
		return "", errors.NotFound("no default profile for %s", address)
	}
	return out.DefaultProfile.ID, nil
}
