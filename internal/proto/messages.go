package proto

import "github.com/dmitrijs2005/whattodo/internal/models"

type Empty struct{}

type RegisterRequest struct {
	Username string `json:"username"`
	Salt     []byte `json:"salt"`
	Verifier []byte `json:"verifier"`
}

type RegisterResponse struct {
	UserID string `json:"user_id"`
}

type GetSaltRequest struct {
	Username string `json:"username"`
}

type GetSaltResponse struct {
	Salt []byte `json:"salt"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Verifier []byte `json:"verifier"`
}

type TokenResponse struct {
	UserID       string `json:"user_id"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type PingResponse struct {
	Status string `json:"status"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type ListMessage struct {
	List models.List `json:"list"`
}

type UpdateListRequest struct {
	ID    string           `json:"id"`
	Patch models.ListPatch `json:"patch"`
}

type ListsResponse struct {
	Lists []models.List `json:"lists"`
}

type ItemMessage struct {
	Item models.Item `json:"item"`
}

type UpdateItemRequest struct {
	ID    string           `json:"id"`
	Patch models.ItemPatch `json:"patch"`
}

type ItemsResponse struct {
	Items []models.Item `json:"items"`
}

type PresignCoverRequest struct {
	ListID      string `json:"list_id"`
	ContentType string `json:"content_type"`
}

type PresignCoverResponse struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

// ListItemsRequest selects one list's items; an empty ListID selects every
// item the caller owns.
type ListItemsRequest struct {
	ListID string `json:"list_id,omitempty"`
}
