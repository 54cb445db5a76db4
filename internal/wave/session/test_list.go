package session

import (
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// TestList maps an API name to its test ids in insertion order.
// An API with no tests has no key.
type TestList map[string][]string

// Add appends test to api's list. Adding a test that is already present does nothing.
func (l TestList) Add(api, test string) bool {
	if slices.Contains(l[api], test) {
		return false
	}
	l[api] = append(l[api], test)
	return true
}

// Remove deletes test from api's list, dropping the api once its list is empty.
// Removing a test that is not present does nothing.
func (l TestList) Remove(api, test string) bool {
	tests, ok := l[api]
	if !ok {
		return false
	}
	i := slices.Index(tests, test)
	if i < 0 {
		return false
	}
	tests = slices.Delete(tests, i, i+1)
	if len(tests) == 0 {
		delete(l, api)
	} else {
		l[api] = tests
	}
	return true
}

// Find returns the api under which test is listed.
func (l TestList) Find(test string) (string, bool) {
	for api, tests := range l {
		if slices.Contains(tests, test) {
			return api, true
		}
	}
	return "", false
}

func (l TestList) Contains(test string) bool {
	_, ok := l.Find(test)
	return ok
}

// Len is the number of tests across all apis.
func (l TestList) Len() int {
	n := 0
	for _, tests := range l {
		n += len(tests)
	}
	return n
}

func (l TestList) IsEmpty() bool {
	return l.Len() == 0
}

// APIs returns the apis with at least one test, ordered case-insensitively.
func (l TestList) APIs() []string {
	apis := make([]string, 0, len(l))
	for api, tests := range l {
		if len(tests) > 0 {
			apis = append(apis, api)
		}
	}
	slices.SortFunc(apis, func(a, b string) bool {
		la, lb := strings.ToLower(a), strings.ToLower(b)
		if la == lb {
			return a < b
		}
		return la < lb
	})
	return apis
}

func (l TestList) Clone() TestList {
	if l == nil {
		return TestList{}
	}
	clone := make(TestList, len(l))
	for _, api := range maps.Keys(l) {
		clone[api] = slices.Clone(l[api])
	}
	return clone
}

// APIOf returns the first non-empty path segment of a test id, e.g. "dom" for "/dom/nodes/a.html".
func APIOf(test string) string {
	for _, segment := range strings.Split(test, "/") {
		if segment != "" {
			return segment
		}
	}
	return ""
}
