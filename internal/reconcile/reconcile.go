// Package reconcile decides what a deploy does to the remote workspace:
// create a new item, update an existing one in place, or rename it first
// and then update. An existing item is recognized by its durable logical
// id when possible, falling back to display-name matching.
package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/modelpush/modelpush/internal/workspace"
)

// Registry is the remote item surface the reconciler drives.
type Registry interface {
	ListItems(ctx context.Context, itemType string) ([]workspace.Item, error)
	CreateItem(ctx context.Context, req workspace.CreateItemRequest) (*workspace.Item, error)
	RenameItem(ctx context.Context, itemID, newName string) error
	UpdateDefinition(ctx context.Context, itemID string, def workspace.Definition) error
}

// Mapper resolves a logical id against the live listing and records
// confirmed mappings for the next run.
type Mapper interface {
	Resolve(workspaceID, logicalID string, items []workspace.Item) (string, bool)
	Seed(workspaceID, logicalID, itemID string)
}

// Prompter asks the user for a model name when nothing else supplies one.
type Prompter interface {
	Input(title, placeholder string) (string, error)
}

// Action is what the reconciler did with the remote item.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// Input carries everything the reconciler needs to know about one deploy.
type Input struct {
	// WorkspaceID keys the identity mapping cache.
	WorkspaceID string

	// LogicalID is the model's durable identifier, empty if unknown.
	LogicalID string

	// ResolvedName is the explicitly configured model name (flag, config,
	// or cached state), empty if none was given.
	ResolvedName string

	// PreviousName is the name the model was resolved to on an earlier
	// run, recorded before an explicit override replaced it.
	PreviousName string

	// PlatformName is the display name embedded in the model's platform
	// metadata.
	PlatformName string

	// DeclaredName is the name the model's own source declares.
	DeclaredName string

	// Definition is the full payload uploaded on create or update.
	Definition workspace.Definition
}

// Result reports the reconciled outcome of a deploy.
type Result struct {
	Action      Action `json:"action"`
	ItemID      string `json:"itemId,omitempty"`
	Name        string `json:"name"`
	Renamed     bool   `json:"renamed,omitempty"`
	RenamedFrom string `json:"renamedFrom,omitempty"`
	Message     string `json:"message"`
}

// Reconciler runs the deploy state machine against a workspace.
type Reconciler struct {
	Registry Registry
	Mapper   Mapper

	// Prompter supplies a model name interactively. Only consulted when
	// CanPrompt is set; a nil Prompter with CanPrompt false is valid.
	Prompter  Prompter
	CanPrompt bool

	Logger *slog.Logger
}

// Deploy reconciles the local model against the workspace and applies the
// resulting action. The returned Result is nil exactly when err is non-nil.
func (r *Reconciler) Deploy(ctx context.Context, in Input) (*Result, error) {
	desired, err := r.resolveDesiredName(in)
	if err != nil {
		return nil, err
	}

	items, err := r.Registry.ListItems(ctx, workspace.ItemTypeSemanticModel)
	if err != nil {
		return nil, err
	}

	item := r.findExisting(in, desired, items)
	if item == nil {
		r.logger().Info("no existing item matched, creating",
			slog.String("name", desired),
			slog.String("logical_id", in.LogicalID),
		)

		return r.create(ctx, in, desired)
	}

	return r.update(ctx, in, desired, item)
}

// resolveDesiredName picks the name the deployed item should carry:
// explicit configuration first, then the platform metadata name, then the
// model's declared name, and as a last resort an interactive prompt.
func (r *Reconciler) resolveDesiredName(in Input) (string, error) {
	for _, name := range []string{in.ResolvedName, in.PlatformName, in.DeclaredName} {
		if name != "" {
			return name, nil
		}
	}

	if !r.CanPrompt || r.Prompter == nil {
		return "", &ReconcileError{Msg: "no model name available: pass --name, or add platform metadata or a declared model name"}
	}

	name, err := r.Prompter.Input("Model name", "Display name for the deployed model")
	if err != nil {
		return "", &ReconcileError{Msg: "reading model name", Err: err}
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", &ReconcileError{Msg: "no model name available"}
	}

	return name, nil
}

// findExisting locates the remote item this model corresponds to, or nil.
// Identity wins over naming: the mapper is consulted first, then the
// desired name, then the names the model was previously known by.
func (r *Reconciler) findExisting(in Input, desired string, items []workspace.Item) *workspace.Item {
	if itemID, ok := r.Mapper.Resolve(in.WorkspaceID, in.LogicalID, items); ok {
		for i := range items {
			if strings.EqualFold(items[i].ID, itemID) {
				r.logger().Debug("matched existing item by logical id",
					slog.String("item_id", items[i].ID),
					slog.String("current_name", items[i].DisplayName),
				)

				return &items[i]
			}
		}
	}

	if item := matchByName(items, desired); item != nil {
		r.logger().Debug("matched existing item by desired name",
			slog.String("item_id", item.ID),
			slog.String("name", item.DisplayName),
		)

		return item
	}

	for _, candidate := range []string{in.PreviousName, in.PlatformName, in.DeclaredName} {
		if candidate == "" || strings.EqualFold(candidate, desired) {
			continue
		}

		if item := matchByName(items, candidate); item != nil {
			r.logger().Debug("matched existing item by earlier name",
				slog.String("item_id", item.ID),
				slog.String("name", item.DisplayName),
			)

			return item
		}
	}

	return nil
}

// update brings an existing item in line with the local model: a rename
// first when the remote name differs, then the definition upload. A failed
// rename stops the deploy: falling through to create would duplicate the
// item.
func (r *Reconciler) update(ctx context.Context, in Input, desired string, item *workspace.Item) (*Result, error) {
	res := &Result{Action: ActionUpdated, ItemID: item.ID, Name: desired}

	if !strings.EqualFold(item.DisplayName, desired) {
		if err := r.Registry.RenameItem(ctx, item.ID, desired); err != nil {
			return nil, &ReconcileError{
				Msg: fmt.Sprintf("renaming %q to %q", item.DisplayName, desired),
				Err: err,
			}
		}

		res.Renamed = true
		res.RenamedFrom = item.DisplayName
	}

	if err := r.Registry.UpdateDefinition(ctx, item.ID, in.Definition); err != nil {
		return nil, err
	}

	if in.LogicalID != "" {
		r.Mapper.Seed(in.WorkspaceID, in.LogicalID, item.ID)
	}

	if res.Renamed {
		res.Message = fmt.Sprintf("renamed %q to %q and updated its definition", res.RenamedFrom, desired)
	} else {
		res.Message = fmt.Sprintf("updated definition of %q", desired)
	}

	r.logger().Info("updated existing item",
		slog.String("item_id", item.ID),
		slog.String("name", desired),
		slog.Bool("renamed", res.Renamed),
	)

	return res, nil
}

// create makes a new item carrying the full definition, then seeds the
// identity mapping with the assigned id. An asynchronous create does not
// report the id, so a fresh listing supplies it.
func (r *Reconciler) create(ctx context.Context, in Input, desired string) (*Result, error) {
	item, err := r.Registry.CreateItem(ctx, workspace.CreateItemRequest{
		DisplayName: desired,
		Type:        workspace.ItemTypeSemanticModel,
		Definition:  &in.Definition,
	})
	if err != nil {
		return nil, err
	}

	if item == nil {
		item = r.findCreated(ctx, desired)
	}

	res := &Result{
		Action:  ActionCreated,
		Name:    desired,
		Message: fmt.Sprintf("created %q", desired),
	}

	if item != nil {
		res.ItemID = item.ID

		if in.LogicalID != "" {
			r.Mapper.Seed(in.WorkspaceID, in.LogicalID, item.ID)
		}
	}

	r.logger().Info("created item",
		slog.String("item_id", res.ItemID),
		slog.String("name", desired),
	)

	return res, nil
}

// findCreated looks up a just-created item by name. Failure is tolerated:
// the deploy already succeeded, only the mapping seed is lost.
func (r *Reconciler) findCreated(ctx context.Context, desired string) *workspace.Item {
	items, err := r.Registry.ListItems(ctx, workspace.ItemTypeSemanticModel)
	if err != nil {
		r.logger().Warn("listing items after create failed",
			slog.String("name", desired),
			slog.String("error", err.Error()),
		)

		return nil
	}

	return matchByName(items, desired)
}

func matchByName(items []workspace.Item, name string) *workspace.Item {
	for i := range items {
		if strings.EqualFold(items[i].DisplayName, name) {
			return &items[i]
		}
	}

	return nil
}

func (r *Reconciler) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}

	return slog.Default()
}
