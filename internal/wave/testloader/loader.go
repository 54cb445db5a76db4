// Package testloader selects the tests of a new session from a manifest of available tests.
package testloader

import (
	"context"
	"os"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
	"sigs.k8s.io/yaml"

	"github.com/cta-wave/wave/internal/wave/session"
)

// Filter describes which tests a session wants.
type Filter struct {
	// Path prefixes of tests to select. Empty selects every test.
	Include []string
	// Path prefixes of tests to leave out, applied after Include.
	Exclude []string
	// If set, only tests that passed in every one of these sessions are selected. Needs a
	// PassedTestsReader; see WithPassedTests.
	ReferenceTokens []string
	// Test types to select. Empty selects every type.
	Types []session.TestType
}

// PassedTestsReader returns the ids of the tests that passed in a finished session.
type PassedTestsReader interface {
	PassedTests(ctx context.Context, token string) ([]string, error)
}

// Loader is safe for concurrent use; GetTests never modifies the manifest.
type Loader struct {
	tests  session.TestList
	passed PassedTestsReader
}

func NewLoader(tests session.TestList) *Loader {
	return &Loader{tests: tests.Clone()}
}

// LoadManifest reads a YAML or JSON file mapping api name to test ids.
func LoadManifest(path string) (*Loader, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "error reading test manifest %s", path)
	}
	var tests session.TestList
	if err := yaml.Unmarshal(raw, &tests); err != nil {
		return nil, errors.Wrapf(err, "error parsing test manifest %s", path)
	}
	log.Infof("loaded %d tests in %d apis from %s", tests.Len(), len(tests), path)
	return NewLoader(tests), nil
}

// WithPassedTests enables filtering by reference sessions. A loader without a reader, such
// as the one the session engine builds since it keeps no results, ignores
// Filter.ReferenceTokens and selects as if none were given.
func (l *Loader) WithPassedTests(reader PassedTestsReader) *Loader {
	l.passed = reader
	return l
}

// TypeOf returns the type of a test; manual tests have "-manual" in their file name.
func TypeOf(test string) session.TestType {
	if strings.Contains(test, "-manual") {
		return session.TestTypeManual
	}
	return session.TestTypeAutomatic
}

// GetTests returns a new list holding the tests selected by filter. Apis with no
// selected test are left out.
func (l *Loader) GetTests(ctx context.Context, filter Filter) (session.TestList, error) {
	allowed, err := l.referenceTests(ctx, filter.ReferenceTokens)
	if err != nil {
		return nil, err
	}
	selected := session.TestList{}
	for api, tests := range l.tests {
		for _, test := range tests {
			if !hasAnyPrefix(test, filter.Include, true) || hasAnyPrefix(test, filter.Exclude, false) {
				continue
			}
			if len(filter.Types) > 0 && !slices.Contains(filter.Types, TypeOf(test)) {
				continue
			}
			if allowed != nil {
				if _, ok := allowed[test]; !ok {
					continue
				}
			}
			selected.Add(api, test)
		}
	}
	return selected, nil
}

// referenceTests returns the tests passed in every reference session, or nil if there is
// nothing to filter by.
func (l *Loader) referenceTests(ctx context.Context, tokens []string) (map[string]struct{}, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	if l.passed == nil {
		log.Debugf("ignoring %d reference sessions; no results are available", len(tokens))
		return nil, nil
	}
	var allowed map[string]struct{}
	for _, token := range tokens {
		passed, err := l.passed.PassedTests(ctx, token)
		if err != nil {
			return nil, errors.WithMessagef(err, "error reading passed tests of reference session %s", token)
		}
		current := make(map[string]struct{}, len(passed))
		for _, test := range passed {
			if allowed == nil {
				current[test] = struct{}{}
			} else if _, ok := allowed[test]; ok {
				current[test] = struct{}{}
			}
		}
		allowed = current
	}
	return allowed, nil
}

func hasAnyPrefix(test string, prefixes []string, emptyMatches bool) bool {
	if len(prefixes) == 0 {
		return emptyMatches
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(test, prefix) {
			return true
		}
	}
	return false
}
