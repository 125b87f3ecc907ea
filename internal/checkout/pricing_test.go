package checkout

import "testing"

func TestUnitPrice(t *testing.T) {
	cases := []struct {
		name     string
		price    int64
		discount int
		coupon   int
		want     int64
	}{
		{"coupon only", 100000, 0, 10, 90000},
		{"no discounts", 100000, 0, 0, 100000},
		{"stacked discounts", 250000, 20, 10, 180000},
		{"rounds up to thousand", 99999, 0, 0, 100000},
		{"fractional rounds up", 123456, 15, 0, 105000},
		{"full coupon", 100000, 0, 100, 0},
		{"over discounted floors at zero", 100000, 150, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := UnitPrice(tc.price, tc.discount, tc.coupon); got != tc.want {
				t.Fatalf("UnitPrice(%d, %d, %d) = %d, want %d", tc.price, tc.discount, tc.coupon, got, tc.want)
			}
		})
	}
}

func TestReturnedUnitPrice(t *testing.T) {
	if got := ReturnedUnitPrice(100000, 0, 10); got != 72000 {
		t.Fatalf("returned unit price = %d, want 72000", got)
	}
	if got := ReturnedUnitPrice(99000, 0, 0); got != 80000 {
		t.Fatalf("returned unit price = %d, want 80000", got)
	}
}
