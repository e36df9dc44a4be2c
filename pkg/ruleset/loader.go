package ruleset

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"mercator-hq/sentinel/pkg/compliance"
	"mercator-hq/sentinel/pkg/retention"
)

// Extensions are the file extensions read from directories.
var Extensions = []string{".yaml", ".yml"}

// File is the on-disk layout of a rule file.
type File struct {
	Rules             []*compliance.Rule   `yaml:"rules"`
	RetentionPolicies []*retention.Policy  `yaml:"retention_policies"`
	Schemas           []*compliance.Schema `yaml:"schemas"`
}

// Set is the merged content of every loaded file.
type Set struct {
	Rules             []*compliance.Rule
	RetentionPolicies []*retention.Policy
	Schemas           []*compliance.Schema

	// Sources lists the files that were read, in load order.
	Sources []string

	// Warnings are non-fatal findings, such as rules that can never fire.
	Warnings []string
}

// LoadError reports every problem found in one file.
type LoadError struct {
	Path     string
	Problems []string
	Err      error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Path, strings.Join(e.Problems, "; "))
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Load reads every path. Directories contribute their YAML files in
// lexical order, without recursing. Ids must be unique across all files;
// rules and policies must validate. All file errors are joined.
func Load(paths ...string) (*Set, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}

	set := &Set{}
	ruleSrc := make(map[string]string)
	policySrc := make(map[string]string)
	var errs []error

	for _, path := range files {
		f, err := parseFile(path)
		if err != nil {
			errs = append(errs, &LoadError{Path: path, Err: err})
			continue
		}

		var problems []string
		for i, r := range f.Rules {
			if r == nil {
				problems = append(problems, fmt.Sprintf("rules[%d] is empty", i))
				continue
			}
			if prev, dup := ruleSrc[r.ID]; dup && r.ID != "" {
				problems = append(problems, fmt.Sprintf("rule %q already defined in %s", r.ID, prev))
				continue
			}
			if p := compliance.RuleProblems(r); len(p) > 0 {
				problems = append(problems, fmt.Sprintf("rule %q: %s", r.ID, strings.Join(p, ", ")))
				continue
			}
			for _, w := range compliance.RuleWarnings(r) {
				set.Warnings = append(set.Warnings, fmt.Sprintf("%s: rule %q: %s", path, r.ID, w))
			}
			ruleSrc[r.ID] = path
			set.Rules = append(set.Rules, r)
		}

		for i, p := range f.RetentionPolicies {
			if p == nil {
				problems = append(problems, fmt.Sprintf("retention_policies[%d] is empty", i))
				continue
			}
			if prev, dup := policySrc[p.ID]; dup && p.ID != "" {
				problems = append(problems, fmt.Sprintf("retention policy %q already defined in %s", p.ID, prev))
				continue
			}
			if pp := retention.PolicyProblems(p); len(pp) > 0 {
				problems = append(problems, fmt.Sprintf("retention policy %q: %s", p.ID, strings.Join(pp, ", ")))
				continue
			}
			policySrc[p.ID] = path
			set.RetentionPolicies = append(set.RetentionPolicies, p)
		}

		for i, s := range f.Schemas {
			if s == nil || s.ActionType == "" {
				problems = append(problems, fmt.Sprintf("schemas[%d] has no action_type", i))
				continue
			}
			set.Schemas = append(set.Schemas, s)
		}

		if len(problems) > 0 {
			errs = append(errs, &LoadError{Path: path, Problems: problems})
		}
		set.Sources = append(set.Sources, path)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return set, nil
}

func parseFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(bytes.NewReader(data))
}

// Parse decodes one rule file. Unknown keys are rejected so typos in field
// names fail loudly.
func Parse(r io.Reader) (*File, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var f File
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return &f, nil
		}
		return nil, fmt.Errorf("parse: %w", err)
	}
	return &f, nil
}

func expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	add := func(p string) {
		if _, ok := seen[p]; ok {
			return
		}
		seen[p] = struct{}{}
		files = append(files, p)
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("rule path: %w", err)
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("read rule directory %q: %w", p, err)
		}
		var names []string
		for _, e := range entries {
			if e.IsDir() || !isRuleFile(e.Name()) {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for _, n := range names {
			add(filepath.Join(p, n))
		}
	}
	return files, nil
}

func isRuleFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}
