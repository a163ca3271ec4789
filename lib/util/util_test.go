package util

import (
	"math/big"
	"testing"
)

// TestIn checks the slice lookup helper.
func TestIn(t *testing.T) {
	ss := []string{"investment", "redemption"}
	if !In(ss, "redemption") {
		t.Errorf("expected redemption to be found in %v", ss)
	}
	if In(ss, "transfer") {
		t.Errorf("did not expect transfer to be found in %v", ss)
	}
	if In(nil, "investment") {
		t.Errorf("did not expect a match in a nil slice")
	}
}

// TestWei checks the 18-decimal wire conversions both ways.
func TestWei(t *testing.T) {
	cases := []struct {
		amount uint64
		wei    string
	}{
		{0, "0"},
		{1, "1000000000000000000"},
		{100, "100000000000000000000"},
		{987654, "987654000000000000000000"},
	}
	for _, c := range cases {
		if w := ToWei(c.amount); w.String() != c.wei {
			t.Errorf("ToWei(%d)=%s expected:%s", c.amount, w.String(), c.wei)
		}
		w, _ := new(big.Int).SetString(c.wei, 10)
		if u := FromWei(w); u != c.amount {
			t.Errorf("FromWei(%s)=%d expected:%d", c.wei, u, c.amount)
		}
	}

	// fractional wire amounts truncate to whole units
	w, _ := new(big.Int).SetString("1500000000000000000", 10)
	if u := FromWei(w); u != 1 {
		t.Errorf("FromWei(1.5 units)=%d expected:1", u)
	}
	if u := FromWei(nil); u != 0 {
		t.Errorf("FromWei(nil)=%d expected:0", u)
	}
}

// TestFormatWei checks the decimal string rendering used by the balance API.
func TestFormatWei(t *testing.T) {
	cases := []struct {
		wei string
		exp string
	}{
		{"0", "0"},
		{"1000000000000000000", "1"},
		{"1500000000000000000", "1.5"},
		{"1615796230433485760", "1.61579623043348576"},
		{"100000000000000", "0.0001"},
	}
	for _, c := range cases {
		w, _ := new(big.Int).SetString(c.wei, 10)
		if s := FormatWei(w); s != c.exp {
			t.Errorf("FormatWei(%s)=%s expected:%s", c.wei, s, c.exp)
		}
	}
	if s := FormatWei(nil); s != "0" {
		t.Errorf("FormatWei(nil)=%s expected:0", s)
	}
}
