package metakey

import "testing"

func TestMake(t *testing.T) {
	if got := Make("cats", "img/a.png"); got != "dataset/cats/img/a.png" {
		t.Errorf("Make = %q", got)
	}
	if got := Make("cats", `img\a.png`); got != "dataset/cats/img/a.png" {
		t.Errorf("Make with backslashes = %q", got)
	}
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		dataset string
		raw     string
		want    string
		ok      bool
	}{
		{"cats", "dataset/cats/img/a.png", "dataset/cats/img/a.png", true},
		{"cats", "cats/img/a.png", "dataset/cats/img/a.png", true},
		{"cats", "img/a.png", "dataset/cats/img/a.png", true},
		{"cats", `img\a.png`, "dataset/cats/img/a.png", true},
		{"cats", "./img/a.png", "dataset/cats/img/a.png", true},
		{"cats", "/img/a.png", "dataset/cats/img/a.png", true},
		{"cats", "  img/a.png  ", "dataset/cats/img/a.png", true},
		{"cats", "img//a.png", "dataset/cats/img/a.png", true},
		{"cats", "DATASET/CATS/img/a.png", "dataset/cats/img/a.png", true},

		// A foreign dataset's key survives verbatim instead of being
		// rewritten into this dataset's namespace.
		{"cats", "dataset/dogs/x.png", "dataset/dogs/x.png", true},

		// A bare prefix with nothing after it is kept verbatim too.
		{"cats", "dataset", "dataset", true},
		{"cats", "dataset/cats", "dataset/cats", true},
		{"cats", "cats", "cats", true},

		// Empty after sanitizing: dropped.
		{"cats", "", "", false},
		{"cats", "   ", "", false},
		{"cats", "///", "", false},
		{"cats", "./", "", false},
	}

	for _, c := range cases {
		got, ok := Normalize(c.dataset, c.raw)
		if ok != c.ok || got != c.want {
			t.Errorf("Normalize(%q, %q) = (%q, %v), want (%q, %v)",
				c.dataset, c.raw, got, ok, c.want, c.ok)
		}
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raws := []string{
		"dataset/cats/img/a.png",
		"cats/img/a.png",
		"img/a.png",
		`sub\dir\b.jpg`,
		"dataset/dogs/x.png",
		"./nested/deep/c.webp",
	}

	for _, raw := range raws {
		first, ok := Normalize("cats", raw)
		if !ok {
			t.Fatalf("Normalize(%q) dropped unexpectedly", raw)
		}
		second, ok := Normalize("cats", first)
		if !ok || second != first {
			t.Errorf("Normalize not idempotent for %q: %q -> %q", raw, first, second)
		}
	}
}
