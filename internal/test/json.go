package test

import (
	"strings"
	"testing"

	"github.com/nsf/jsondiff"
)

var diffOptions = jsondiff.Options{
	Added:   jsondiff.Tag{Begin: "+[", End: "]"},
	Removed: jsondiff.Tag{Begin: "-[", End: "]"},
	Changed: jsondiff.Tag{Begin: "~[", End: "]"},
	Indent:  "  ",
}

// AssertEqualJSON compares two JSON documents ignoring key order and whitespace,
// reporting a structural diff on mismatch.
func AssertEqualJSON(t testing.TB, expected, actual []byte) bool {
	t.Helper()
	match, diff := jsondiff.Compare(expected, actual, &diffOptions)
	switch match {
	case jsondiff.FullMatch:
		return true
	case jsondiff.FirstArgIsInvalidJson:
		t.Errorf("expected value is not valid JSON: %s", expected)
	case jsondiff.SecondArgIsInvalidJson, jsondiff.BothArgsAreInvalidJson:
		t.Errorf("response is not valid JSON: %s", actual)
	default:
		t.Errorf("JSON documents differ:\n\t%s", strings.ReplaceAll(diff, "\n", "\n\t"))
	}
	return false
}
