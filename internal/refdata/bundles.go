package refdata

import (
	"encoding/json"
	"fmt"
	"os"
)

// Bundle is a named clinical procedure bundle. A billed set satisfies the
// bundle when every core code is present; satisfaction consumes all core
// and optional codes that appear in the billed set.
type Bundle struct {
	Name          string
	CoreCodes     []string
	OptionalCodes []string
}

// HasCore reports whether every core code appears in the given set.
func (b Bundle) HasCore(billed map[string]struct{}) bool {
	for _, code := range b.CoreCodes {
		if _, ok := billed[code]; !ok {
			return false
		}
	}
	return len(b.CoreCodes) > 0
}

// AllCodes returns core ∪ optional.
func (b Bundle) AllCodes() []string {
	all := make([]string, 0, len(b.CoreCodes)+len(b.OptionalCodes))
	all = append(all, b.CoreCodes...)
	all = append(all, b.OptionalCodes...)
	return all
}

// bundleDef is the on-disk shape of one bundle definition.
type bundleDef struct {
	CoreCodes     []string `json:"core_codes"`
	OptionalCodes []string `json:"optional_codes"`
}

// LoadBundles reads bundle definitions from a JSON object keyed by bundle
// name. Definition order in the file is preserved: the bundle matcher
// applies the first satisfied bundle only, so order is semantically
// meaningful. Decoding goes token by token because encoding/json map
// decoding would lose it.
func LoadBundles(path string) ([]Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read bundle definitions: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to parse bundle definitions: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("bundle definitions must be a JSON object, got %v", tok)
	}

	var bundles []Bundle
	for dec.More() {
		nameTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to parse bundle definitions: %w", err)
		}
		name, ok := nameTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected bundle key %v", nameTok)
		}

		var def bundleDef
		if err := dec.Decode(&def); err != nil {
			return nil, fmt.Errorf("failed to parse bundle %q: %w", name, err)
		}

		bundles = append(bundles, Bundle{
			Name:          name,
			CoreCodes:     def.CoreCodes,
			OptionalCodes: def.OptionalCodes,
		})
	}

	return bundles, nil
}
