package fingerprint

import "testing"

func TestOf(t *testing.T) {
	cases := []struct {
		name     string
		contentA string
		contentB string
		expected bool
	}{
		{
			name:     "fingerprinting the same content twice returns the same value",
			contentA: "ssh-ed25519 AAAAC3Nz",
			contentB: "ssh-ed25519 AAAAC3Nz",
			expected: true,
		},
		{
			name:     "fingerprinting different content returns different values",
			contentA: "foo",
			contentB: "bar",
			expected: false,
		},
		{
			name:     "whitespace is significant",
			contentA: "foo",
			contentB: "foo ",
			expected: false,
		},
	}

	for _, c := range cases {
		a := Of(c.contentA)
		b := Of(c.contentB)

		if (a == b) != c.expected {
			t.Errorf("%v\n\tExpected %v but got %v instead", c.name, c.expected, a == b)
		}
	}
}

func TestHex(t *testing.T) {
	if got := len(Of("foo").Hex()); got != 64 {
		t.Errorf("Expected 64 hex characters but got %v instead", got)
	}

	if got := len(Of("foo").Short()); got != 12 {
		t.Errorf("Expected 12 hex characters but got %v instead", got)
	}
}
