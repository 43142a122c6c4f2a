package catalogue

import "testing"

func TestParseColorCaseInsensitiveAndGreyAlias(t *testing.T) {
	cases := []struct {
		in   string
		want Color
	}{
		{"red", Red},
		{"RED", Red},
		{" Gray ", Gray},
		{"grey", Gray},
		{"GREY", Gray},
	}
	for _, c := range cases {
		got, ok := ParseColor(c.in)
		if !ok {
			t.Fatalf("ParseColor(%q): not ok", c.in)
		}
		if got != c.want {
			t.Errorf("ParseColor(%q) = %v, want %v", c.in, got, c.want)
		}
	}

	if _, ok := ParseColor("Chartreuse"); ok {
		t.Fatal("expected Chartreuse to fail to parse")
	}
}
