package roster

import (
	"math"
)

// ContractRules derives a contract from an auction price.
type ContractRules struct {
	SalaryRate      float64     `yaml:"salary_rate"`
	DefaultDuration int         `yaml:"default_duration"`
	Multipliers     map[int]int `yaml:"rescission_multipliers"`
}

func DefaultContractRules() ContractRules {
	return ContractRules{
		SalaryRate:      0.10,
		DefaultDuration: 3,
		Multipliers:     map[int]int{1: 3, 2: 7, 3: 9, 4: 11},
	}
}

// Salary returns max(1, round(price × rate)).
func (r ContractRules) Salary(price int) int {
	s := int(math.Round(float64(price) * r.SalaryRate))
	if s < 1 {
		return 1
	}
	return s
}

// Rescission returns salary × multiplier(duration). Unknown durations use the
// largest configured multiplier below them, or 1.
func (r ContractRules) Rescission(salary, duration int) int {
	if m, ok := r.Multipliers[duration]; ok {
		return salary * m
	}
	best, mult := 0, 1
	for d, m := range r.Multipliers {
		if d < duration && d > best {
			best, mult = d, m
		}
	}
	return salary * mult
}

// MinimumOutlay is what winning at price costs a member's bilancio at minimum:
// the price plus the first salary it commits.
func (r ContractRules) MinimumOutlay(price int) int {
	return price + r.Salary(price)
}
