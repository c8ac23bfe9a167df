package identity

import (
	"log/slog"
	"strings"

	"github.com/modelpush/modelpush/internal/workspace"
)

// MappingStore persists logical-id-to-item-id mappings between runs.
type MappingStore interface {
	GetMapping(workspaceID, logicalID string) (string, bool)
	SetMapping(workspaceID, logicalID, itemID string) error
}

// Mapper resolves logical ids against a workspace's live item listing.
type Mapper struct {
	Store  MappingStore
	Logger *slog.Logger
}

// Resolve returns the remote item id for the logical id, or false when no
// confirmed mapping exists. items is the live listing for the workspace: a
// cached or derived id that does not appear in it is treated as a miss, so
// a mapping left over from a deleted item never resolves. Every hit is
// written back to the store for the next run.
func (m *Mapper) Resolve(workspaceID, logicalID string, items []workspace.Item) (string, bool) {
	if logicalID == "" {
		return "", false
	}

	live := make(map[string]string, len(items))
	for _, item := range items {
		live[strings.ToLower(item.ID)] = item.ID
	}

	if cached, ok := m.Store.GetMapping(workspaceID, logicalID); ok {
		if itemID, present := live[strings.ToLower(cached)]; present {
			m.Seed(workspaceID, logicalID, itemID)
			m.logger().Debug("resolved item id from mapping cache",
				slog.String("logical_id", logicalID),
				slog.String("item_id", itemID),
			)

			return itemID, true
		}

		m.logger().Debug("cached item id absent from live listing, ignoring",
			slog.String("logical_id", logicalID),
			slog.String("cached_item_id", cached),
		)
	}

	derived, err := DeriveItemID(logicalID)
	if err != nil {
		m.logger().Debug("logical id has no derivable item id",
			slog.String("logical_id", logicalID),
			slog.String("error", err.Error()),
		)

		return "", false
	}

	if itemID, present := live[strings.ToLower(derived)]; present {
		m.Seed(workspaceID, logicalID, itemID)
		m.logger().Debug("resolved item id by derivation",
			slog.String("logical_id", logicalID),
			slog.String("item_id", itemID),
		)

		return itemID, true
	}

	return "", false
}

// Seed records a confirmed mapping, e.g. after creating a new item.
// Persistence failures are logged and swallowed: the mapping is a cache,
// and the next run re-derives or re-matches without it.
func (m *Mapper) Seed(workspaceID, logicalID, itemID string) {
	if logicalID == "" || itemID == "" {
		return
	}

	if err := m.Store.SetMapping(workspaceID, logicalID, itemID); err != nil {
		m.logger().Warn("persisting identity mapping failed",
			slog.String("logical_id", logicalID),
			slog.String("item_id", itemID),
			slog.String("error", err.Error()),
		)
	}
}

func (m *Mapper) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}

	return slog.Default()
}
