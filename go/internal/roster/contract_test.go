package roster

import "testing"

func TestSalary(t *testing.T) {
	rules := DefaultContractRules()
	tests := []struct {
		price int
		want  int
	}{
		{1, 1},
		{5, 1},
		{10, 1},
		{14, 1},
		{15, 2},
		{100, 10},
		{234, 23},
	}
	for _, tt := range tests {
		if got := rules.Salary(tt.price); got != tt.want {
			t.Errorf("Salary(%d) = %d, want %d", tt.price, got, tt.want)
		}
	}
}

func TestRescission(t *testing.T) {
	rules := DefaultContractRules()
	tests := []struct {
		salary, duration, want int
	}{
		{1, 3, 9},
		{10, 1, 30},
		{10, 4, 110},
		{2, 6, 22},
		{5, 0, 5},
	}
	for _, tt := range tests {
		if got := rules.Rescission(tt.salary, tt.duration); got != tt.want {
			t.Errorf("Rescission(%d, %d) = %d, want %d", tt.salary, tt.duration, got, tt.want)
		}
	}
}

func TestMinimumOutlay(t *testing.T) {
	rules := DefaultContractRules()
	if got := rules.MinimumOutlay(1); got != 2 {
		t.Fatalf("MinimumOutlay(1) = %d, want 2", got)
	}
	if got := rules.MinimumOutlay(50); got != 55 {
		t.Fatalf("MinimumOutlay(50) = %d, want 55", got)
	}
}
