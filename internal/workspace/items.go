package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// ItemTypeSemanticModel is the registry type deployed models live under.
const ItemTypeSemanticModel = "SemanticModel"

// Item is one entry in the workspace's item registry.
type Item struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Type        string `json:"type"`
	WorkspaceID string `json:"workspaceId,omitempty"`
	Description string `json:"description,omitempty"`
}

// itemPage is one page of a listing response. The service paginates via
// either a bare token or a fully-formed continuation URI.
type itemPage struct {
	Value             []Item `json:"value"`
	ContinuationToken string `json:"continuationToken"`
	ContinuationURI   string `json:"continuationUri"`
}

// PayloadTypeInlineBase64 is the only payload encoding the service accepts.
const PayloadTypeInlineBase64 = "InlineBase64"

// DefinitionPart is one source file of an item definition.
type DefinitionPart struct {
	Path        string `json:"path"`
	Payload     string `json:"payload"`
	PayloadType string `json:"payloadType"`
}

// Definition is the serialized bundle of source files sent on create and
// update.
type Definition struct {
	Parts []DefinitionPart `json:"parts"`
}

// CreateItemRequest is the create-item payload. Definition is optional;
// the service accepts a bare named item.
type CreateItemRequest struct {
	DisplayName string      `json:"displayName"`
	Type        string      `json:"type"`
	Definition  *Definition `json:"definition,omitempty"`
}

// ListItems fetches every item of the given type in the workspace,
// following continuation pages until exhausted.
func (c *Client) ListItems(ctx context.Context, itemType string) ([]Item, error) {
	firstPage := c.workspaceURL + "/items?type=" + url.QueryEscape(itemType)
	next := firstPage

	var items []Item

	for next != "" {
		resp, err := c.Do(ctx, http.MethodGet, next, nil)
		if err != nil {
			return nil, err
		}

		var page itemPage
		decodeErr := json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()

		if decodeErr != nil {
			return nil, fmt.Errorf("workspace: decoding item listing: %w", decodeErr)
		}

		items = append(items, page.Value...)

		switch {
		case page.ContinuationURI != "":
			next = page.ContinuationURI
		case page.ContinuationToken != "":
			next = firstPage + "&continuationToken=" + url.QueryEscape(page.ContinuationToken)
		default:
			next = ""
		}
	}

	c.logger.Debug("listed workspace items",
		slog.String("type", itemType),
		slog.Int("count", len(items)),
	)

	return items, nil
}

// CreateItem creates a new item with its definition in one call. The
// service may answer synchronously (the created item) or accept the work
// asynchronously; in the async case the operation is awaited and the
// returned item is nil; callers re-list to learn the assigned id.
func (c *Client) CreateItem(ctx context.Context, req CreateItemRequest) (*Item, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("workspace: encoding create request: %w", err)
	}

	c.logger.Info("creating item",
		slog.String("display_name", req.DisplayName),
		slog.String("type", req.Type),
	)

	resp, err := c.Do(ctx, http.MethodPost, c.workspaceURL+"/items", body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusAccepted {
		resp.Body.Close()

		if err := c.AwaitOperation(ctx, resp); err != nil {
			return nil, err
		}

		return nil, nil //nolint:nilnil // sentinel for "created asynchronously, id unknown"
	}

	var item Item
	decodeErr := json.NewDecoder(resp.Body).Decode(&item)
	resp.Body.Close()

	if decodeErr != nil {
		return nil, fmt.Errorf("workspace: decoding created item: %w", decodeErr)
	}

	return &item, nil
}

// RenameItem changes an item's display name.
func (c *Client) RenameItem(ctx context.Context, itemID, newName string) error {
	body, err := json.Marshal(map[string]string{"displayName": newName})
	if err != nil {
		return fmt.Errorf("workspace: encoding rename request: %w", err)
	}

	c.logger.Info("renaming item",
		slog.String("item_id", itemID),
		slog.String("new_name", newName),
	)

	resp, err := c.Do(ctx, http.MethodPatch, c.workspaceURL+"/items/"+itemID, body)
	if err != nil {
		return err
	}

	resp.Body.Close()

	return nil
}

// UpdateDefinition replaces an item's definition. A synchronous 200 is
// complete immediately; a 202 is awaited to its terminal state.
func (c *Client) UpdateDefinition(ctx context.Context, itemID string, def Definition) error {
	body, err := json.Marshal(struct {
		Definition Definition `json:"definition"`
	}{Definition: def})
	if err != nil {
		return fmt.Errorf("workspace: encoding definition update: %w", err)
	}

	c.logger.Info("updating item definition",
		slog.String("item_id", itemID),
		slog.Int("parts", len(def.Parts)),
	)

	reqURL := c.workspaceURL + "/items/" + itemID + "/updateDefinition?updateMetadata=True"

	resp, err := c.Do(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return err
	}

	accepted := resp.StatusCode == http.StatusAccepted
	resp.Body.Close()

	if accepted {
		return c.AwaitOperation(ctx, resp)
	}

	return nil
}
