package timing

import (
	"fmt"
	"strconv"
	"strings"
)

// Frac is an exact rational duration measured in whole notes (1/4 is a quarter
// note). Values are always kept reduced with a positive denominator so that ==
// compares values.
type Frac struct {
	Num int64
	Den int64
}

var (
	Zero    = Frac{0, 1}
	Whole   = Frac{1, 1}
	Half    = Frac{1, 2}
	Quarter = Frac{1, 4}
	Eighth  = Frac{1, 8}
)

// NewFrac returns num/den reduced. A zero denominator yields Zero.
func NewFrac(num, den int64) Frac {
	if den == 0 {
		return Zero
	}
	if den < 0 {
		num, den = -num, -den
	}
	g := GCD(abs64(num), den)
	if g == 0 {
		return Zero
	}
	return Frac{num / g, den / g}
}

func (f Frac) norm() Frac {
	if f.Den == 0 {
		return Zero
	}
	return NewFrac(f.Num, f.Den)
}

func (f Frac) Add(o Frac) Frac {
	f, o = f.norm(), o.norm()
	l := LCM(f.Den, o.Den)
	return NewFrac(f.Num*(l/f.Den)+o.Num*(l/o.Den), l)
}

func (f Frac) Sub(o Frac) Frac {
	return f.Add(Frac{-o.Num, o.Den})
}

func (f Frac) Mul(o Frac) Frac {
	f, o = f.norm(), o.norm()
	// Cross-reduce first to keep intermediates small.
	g1 := GCD(abs64(f.Num), o.Den)
	g2 := GCD(abs64(o.Num), f.Den)
	if g1 == 0 {
		g1 = 1
	}
	if g2 == 0 {
		g2 = 1
	}
	return NewFrac((f.Num/g1)*(o.Num/g2), (f.Den/g2)*(o.Den/g1))
}

func (f Frac) MulInt(n int64) Frac {
	return f.Mul(Frac{n, 1})
}

// Div returns f/o. Division by zero yields Zero.
func (f Frac) Div(o Frac) Frac {
	o = o.norm()
	if o.Num == 0 {
		return Zero
	}
	return f.Mul(NewFrac(o.Den, o.Num))
}

// Cmp returns -1, 0 or +1.
func (f Frac) Cmp(o Frac) int {
	f, o = f.norm(), o.norm()
	l, r := f.Num*o.Den, o.Num*f.Den
	switch {
	case l < r:
		return -1
	case l > r:
		return 1
	}
	return 0
}

func (f Frac) Less(o Frac) bool { return f.Cmp(o) < 0 }
func (f Frac) IsZero() bool     { return f.Num == 0 }
func (f Frac) Positive() bool   { return f.norm().Num > 0 }

// Floor returns the largest integer not greater than f.
func (f Frac) Floor() int64 {
	f = f.norm()
	q := f.Num / f.Den
	if f.Num%f.Den != 0 && f.Num < 0 {
		q--
	}
	return q
}

// Mod returns f modulo m (m > 0), always in [0, m).
func (f Frac) Mod(m Frac) Frac {
	if !m.Positive() {
		return Zero
	}
	q := f.Div(m).Floor()
	return f.Sub(m.MulInt(q))
}

func (f Frac) Float64() float64 {
	f = f.norm()
	return float64(f.Num) / float64(f.Den)
}

func (f Frac) String() string {
	f = f.norm()
	if f.Den == 1 {
		return strconv.FormatInt(f.Num, 10)
	}
	return fmt.Sprintf("%d/%d", f.Num, f.Den)
}

// ParseFrac accepts "3/16" or an integer.
func ParseFrac(s string) (Frac, error) {
	s = strings.TrimSpace(s)
	num, den, ok := strings.Cut(s, "/")
	n, err := strconv.ParseInt(strings.TrimSpace(num), 10, 64)
	if err != nil {
		return Zero, fmt.Errorf("invalid fraction %q", s)
	}
	if !ok {
		return NewFrac(n, 1), nil
	}
	d, err := strconv.ParseInt(strings.TrimSpace(den), 10, 64)
	if err != nil || d == 0 {
		return Zero, fmt.Errorf("invalid fraction %q", s)
	}
	return NewFrac(n, d), nil
}

func (f Frac) MarshalText() ([]byte, error) { return []byte(f.String()), nil }

func (f *Frac) UnmarshalText(b []byte) error {
	v, err := ParseFrac(string(b))
	if err != nil {
		return err
	}
	*f = v
	return nil
}

// Sum adds all values exactly.
func Sum(values ...Frac) Frac {
	total := Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func GCD(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func LCM(a, b int64) int64 {
	if a == 0 || b == 0 {
		return 0
	}
	return a / GCD(a, b) * b
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
