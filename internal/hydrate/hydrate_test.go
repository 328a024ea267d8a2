package hydrate

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestDecoderFromFixtures(t *testing.T) {
	fx := loadFixture(t, "hydrate_documents.json")

	for _, tc := range fx.Cases {
		tc := tc
		t.Run(tc.Name, func(t *testing.T) {
			decoder := NewDecoder[document](buildOptions(tc)...)

			ctx := Context{
				Source: tc.Source,
				Format: Format(tc.Format),
			}

			result, err := decoder.DecodeBytes(ctx, []byte(tc.Input))

			if tc.ExpectErr != "" {
				if err == nil {
					t.Fatalf("expected error %q, got nil", tc.ExpectErr)
				}
				if !strings.Contains(err.Error(), tc.ExpectErr) {
					t.Fatalf("expected error containing %q, got %v", tc.ExpectErr, err)
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected decode error: %v", err)
			}

			if !reflect.DeepEqual(*tc.Expect, result) {
				t.Fatalf("decoded document mismatch:\nwant: %#v\n got: %#v", *tc.Expect, result)
			}
		})
	}
}

func TestDecodeRejectsNilPayload(t *testing.T) {
	_, err := NewDecoder[document]().Decode(Context{Source: "nil"}, nil)
	if err == nil || !strings.Contains(err.Error(), `payload is nil for "nil"`) {
		t.Fatalf("expected nil payload error, got %v", err)
	}
}

func TestDecodeLeavesCallerPayloadUntouched(t *testing.T) {
	payload := map[string]any{
		"root": "root",
		"nodes": []any{
			map[string]any{"key": "a", "parent": "root", "visibility": "VISIBLE"},
		},
	}
	decoder := NewDecoder(WithPreHook[document](lowerVisibilityPreHook))

	got, err := decoder.Decode(Context{Source: "inline"}, payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Nodes[0].Visibility != "visible" {
		t.Fatalf("expected pre hook to run, got %#v", got.Nodes)
	}
	node := payload["nodes"].([]any)[0].(map[string]any)
	if node["visibility"] != "VISIBLE" {
		t.Fatalf("caller payload mutated: %#v", node)
	}
}

func TestCustomDecoderReplacesJSONPath(t *testing.T) {
	decoder := NewDecoder(WithCustomDecoder[document](func(ctx Context, payload map[string]any) (document, error) {
		root, _ := payload["root"].(string)
		if root == "" {
			return document{}, errors.New("root missing")
		}
		return document{Name: "custom", Root: strings.ToUpper(root)}, nil
	}))

	got, err := decoder.Decode(Context{Source: "custom"}, map[string]any{"root": "r"})
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Name != "custom" || got.Root != "R" {
		t.Fatalf("unexpected document %#v", got)
	}

	_, err = decoder.Decode(Context{Source: "custom"}, map[string]any{})
	if err == nil || !strings.Contains(err.Error(), "custom decoder") {
		t.Fatalf("expected custom decoder error, got %v", err)
	}
}

func TestFormatFromPath(t *testing.T) {
	cases := map[string]Format{
		"scene.json":      FormatJSON,
		"scene.JSON":      FormatJSON,
		"scene.yaml":      FormatYAML,
		"scene.yml":       FormatYAML,
		"scene":           FormatYAML,
		"dir/scene.jsonc": FormatYAML,
	}
	for path, want := range cases {
		if got := FormatFromPath(path); got != want {
			t.Fatalf("%s: want %s got %s", path, want, got)
		}
	}
}

func buildOptions(tc fixtureCase) []DecoderOption[document] {
	options := []DecoderOption[document]{}

	for _, optName := range tc.Options {
		switch optName {
		case "use_number":
			options = append(options, WithUseNumber[document]())
		case "disallow_unknown":
			options = append(options, WithDisallowUnknownFields[document]())
		}
	}

	for _, hookName := range tc.PreHooks {
		switch hookName {
		case "lower_visibility":
			options = append(options, WithPreHook[document](lowerVisibilityPreHook))
		}
	}

	for _, hookName := range tc.PostHooks {
		switch hookName {
		case "default_name":
			options = append(options, WithPostHook[document](defaultNamePostHook))
		}
	}

	return options
}

func lowerVisibilityPreHook(_ Context, payload map[string]any) (map[string]any, error) {
	nodes, _ := payload["nodes"].([]any)
	for _, raw := range nodes {
		node, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if value, ok := node["visibility"].(string); ok {
			node["visibility"] = strings.ToLower(value)
		}
	}
	return payload, nil
}

func defaultNamePostHook(ctx Context, doc *document) error {
	if doc == nil {
		return errors.New("document is nil")
	}
	if doc.Name == "" {
		doc.Name = ctx.Source
	}
	return nil
}

type fixture struct {
	Description string        `json:"description"`
	Cases       []fixtureCase `json:"cases"`
}

type fixtureCase struct {
	Name      string    `json:"name"`
	Source    string    `json:"source"`
	Format    string    `json:"format"`
	Input     string    `json:"input"`
	Expect    *document `json:"expect"`
	ExpectErr string    `json:"expectErr"`
	PreHooks  []string  `json:"preHooks"`
	PostHooks []string  `json:"postHooks"`
	Options   []string  `json:"options"`
}

type document struct {
	Name  string         `json:"name"`
	Root  string         `json:"root"`
	Nodes []documentNode `json:"nodes"`
}

type documentNode struct {
	Key        string `json:"key"`
	Parent     string `json:"parent"`
	Visibility string `json:"visibility"`
}

func loadFixture(t *testing.T, name string) fixture {
	t.Helper()
	path := filepath.Join("..", "..", "testdata", name)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read hydrate fixture %q: %v", name, err)
	}
	var fx fixture
	if err := json.Unmarshal(raw, &fx); err != nil {
		t.Fatalf("failed to unmarshal hydrate fixture %q: %v", name, err)
	}
	return fx
}
