package engine

// rational is an exact non-negative fraction in [0,1), used to carry the
// wrap projection point across nested gateway entries without rounding
// drift.
type rational struct {
	num, den int64
}

var half = rational{num: 1, den: 2}

func gcd64(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	if a == 0 {
		return 1
	}
	return a
}

// mulSplit multiplies by n and splits the product into its integer floor
// and fractional remainder.
func (r rational) mulSplit(n int) (int, rational) {
	num := r.num * int64(n)
	whole := num / r.den
	rem := rational{num: num - whole*r.den, den: r.den}
	g := gcd64(rem.num, rem.den)
	rem.num /= g
	rem.den /= g
	return int(whole), rem
}
