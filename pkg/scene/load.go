package scene

import (
	"fmt"
	"os"
	"strconv"

	"github.com/goliatone/go-visibility/internal/hydrate"
)

// Format names a scene document encoding.
type Format = hydrate.Format

const (
	FormatJSON = hydrate.FormatJSON
	FormatYAML = hydrate.FormatYAML
)

var snapshotDecoder = hydrate.NewDecoder(
	hydrate.WithPreHook[Snapshot](normalizeVisibility),
	hydrate.WithDisallowUnknownFields[Snapshot](),
	hydrate.WithPostHook[Snapshot](defaultSnapshotName),
	hydrate.WithPostHook[Snapshot](validateSnapshot),
)

var patchDecoder = hydrate.NewDecoder(
	hydrate.WithPreHook[Patch](normalizeVisibility),
	hydrate.WithDisallowUnknownFields[Patch](),
)

// Decode parses a scene document.
func Decode(data []byte, format Format) (Snapshot, error) {
	return snapshotDecoder.DecodeBytes(hydrate.Context{Format: format}, data)
}

// LoadFile reads a scene document, picking the format from the extension.
func LoadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("scene: read %s: %w", path, err)
	}
	return snapshotDecoder.DecodeBytes(hydrate.Context{
		Source: path,
		Format: hydrate.FormatFromPath(path),
	}, data)
}

// DecodePatch parses a patch document.
func DecodePatch(data []byte, format Format) (Patch, error) {
	return patchDecoder.DecodeBytes(hydrate.Context{Format: format}, data)
}

// LoadPatchFile reads a patch document, picking the format from the extension.
func LoadPatchFile(path string) (Patch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Patch{}, fmt.Errorf("scene: read %s: %w", path, err)
	}
	return patchDecoder.DecodeBytes(hydrate.Context{
		Source: path,
		Format: hydrate.FormatFromPath(path),
	}, data)
}

// normalizeVisibility turns numeric visibility codes into strings so they go
// through visibility.Code's text decoding.
func normalizeVisibility(_ hydrate.Context, payload map[string]any) (map[string]any, error) {
	for _, listKey := range []string{"nodes", "ops"} {
		items, _ := payload[listKey].([]any)
		for _, raw := range items {
			item, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			stringifyCode(item)
			if inserted, ok := item["node"].(map[string]any); ok {
				stringifyCode(inserted)
			}
		}
	}
	return payload, nil
}

func stringifyCode(item map[string]any) {
	if number, ok := item["visibility"].(float64); ok {
		item["visibility"] = strconv.Itoa(int(number))
	}
}

func defaultSnapshotName(ctx hydrate.Context, snapshot *Snapshot) error {
	if snapshot.Name == "" {
		snapshot.Name = ctx.Source
	}
	return nil
}

func validateSnapshot(_ hydrate.Context, snapshot *Snapshot) error {
	return snapshot.Validate()
}
