package dbmlgen

import (
	"context"
	"fmt"
	"sort"

	"github.com/tordrt/dbmlgen/internal/schema"
)

// FindingKind classifies a validation finding
type FindingKind string

const (
	// FindingDuplicateKey is a key present in both references and custom_references
	FindingDuplicateKey FindingKind = "duplicate_key"
	// FindingMultipleTargets is a key with more than one referenced key
	FindingMultipleTargets FindingKind = "multiple_targets"
)

// Names of the reference maps as they appear in the project file
const (
	MapReferences       = "references"
	MapCustomReferences = "custom_references"
)

// Finding is one validation result. Map names the reference map a
// FindingMultipleTargets finding was raised on.
type Finding struct {
	Kind FindingKind
	Key  string
	Map  string
}

func (f Finding) String() string {
	if f.Kind == FindingDuplicateKey {
		return fmt.Sprintf("Key '%s' exists in both '%s' and '%s'", f.Key, MapReferences, MapCustomReferences)
	}
	return fmt.Sprintf("Key '%s' in '%s' has more than one referenced key", f.Key, f.Map)
}

// Validate checks the reference maps of a project. Duplicate keys come first,
// then keys with several targets in references, then in custom_references,
// each group sorted by key.
func Validate(p *schema.Project) []Finding {
	var findings []Finding

	for _, key := range sortedKeys(p.References) {
		if p.CustomReferences.Has(key) {
			findings = append(findings, Finding{Kind: FindingDuplicateKey, Key: key})
		}
	}

	for _, m := range []struct {
		name string
		refs schema.References
	}{
		{MapReferences, p.References},
		{MapCustomReferences, p.CustomReferences},
	} {
		for _, key := range sortedKeys(m.refs) {
			if len(m.refs.Get(key)) > 1 {
				findings = append(findings, Finding{Kind: FindingMultipleTargets, Key: key, Map: m.name})
			}
		}
	}

	return findings
}

// Validate loads a project and prints its findings. Findings are not errors.
func (w *Workspace) Validate(_ context.Context, project string) ([]Finding, error) {
	w.printf("Validating the config file of the '%s' project\n", project)

	p, err := w.Store.Load(project)
	if err != nil {
		return nil, err
	}

	findings := Validate(p)
	for _, f := range findings {
		w.printf("%s\n", f)
	}
	w.logger().Info("validation finished", "project", project, "findings", len(findings))
	return findings, nil
}

func sortedKeys(refs schema.References) []string {
	keys := refs.Keys()
	sort.Strings(keys)
	return keys
}
