package cookbook

import "testing"

func TestSlugify(t *testing.T) {
	cases := []struct {
		title string
		want  string
	}{
		{"Bind to a global value", "bind-to-a-global-value"},
		{"arr.sort(compareFunction)", "arrsortcomparefunction"},
		{"foo.bar === undefined", "foobar--undefined"},
		{"foo.bar == null", "foobar--null"},
		{"new Date()", "new-date"},
		{"function with rest arguments", "function-with-rest-arguments"},
		{"`JSON.parse`", "jsonparse"},
		{`<a name="old"></a>Bind to a global value`, "bind-to-a-global-value"},
	}
	for _, c := range cases {
		if got := Slugify(c.title); got != c.want {
			t.Errorf("Slugify(%q) = %q, want %q", c.title, got, c.want)
		}
	}
}

func TestSlugifyStable(t *testing.T) {
	// External links depend on the rule bit-for-bit; a second pass over an
	// already-slugged string must be the identity.
	for _, s := range []string{"arrsortcomparefunction", "foobar--undefined", "new-date"} {
		if got := Slugify(s); got != s {
			t.Errorf("Slugify(%q) = %q, want identity", s, got)
		}
	}
}

func TestCategoryByHeading(t *testing.T) {
	cases := []struct {
		heading string
		want    Category
		ok      bool
	}{
		{"Globals", Globals, true},
		{"globals", Globals, true},
		{"Classes and OOP", ClassesAndOOP, true},
		{"Null and Undefined", NullAndUndefined, true},
		{"Null / Undefined", NullAndUndefined, true},
		{"Dragons", CategoryUnknown, false},
	}
	for _, c := range cases {
		got, ok := CategoryByHeading(c.heading)
		if got != c.want || ok != c.ok {
			t.Errorf("CategoryByHeading(%q) = %v, %v; want %v, %v", c.heading, got, ok, c.want, c.ok)
		}
	}
}

func TestCanonicalCategoryOrder(t *testing.T) {
	want := []string{"Globals", "Modules", "Functions", "Objects", "Classes and OOP", "Null and Undefined"}
	if len(CanonicalCategories) != len(want) {
		t.Fatalf("expected %d categories, got %d", len(want), len(CanonicalCategories))
	}
	for i, c := range CanonicalCategories {
		if c.String() != want[i] {
			t.Errorf("category %d = %q, want %q", i, c.String(), want[i])
		}
	}
}
