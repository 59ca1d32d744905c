package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

func TestComputeITR(t *testing.T) {
	tests := []struct {
		name string
		form model.ITRFormData
		want ITRComputation
	}{
		{
			name: "zero income",
			form: model.ITRFormData{},
			want: ITRComputation{},
		},
		{
			name: "below basic exemption",
			form: model.ITRFormData{SalaryIncome: 2_40_000},
			want: ITRComputation{
				GrossIncome:     2_40_000,
				TotalDeductions: 50_000,
				TaxableIncome:   1_90_000,
			},
		},
		{
			name: "rebate wipes out small liability",
			form: model.ITRFormData{SalaryIncome: 5_00_000},
			want: ITRComputation{
				GrossIncome:     5_00_000,
				TotalDeductions: 50_000,
				TaxableIncome:   4_50_000,
				SlabTax:         10_000,
				Rebate:          10_000,
			},
		},
		{
			name: "salaried with 80C",
			form: model.ITRFormData{SalaryIncome: 12_00_000, Section80C: 1_50_000},
			want: ITRComputation{
				GrossIncome:     12_00_000,
				TotalDeductions: 2_00_000,
				TaxableIncome:   10_00_000,
				SlabTax:         1_12_500,
				Cess:            4_500,
				TotalTax:        1_17_000,
				NetPayable:      1_17_000,
			},
		},
		{
			name: "deduction caps applied",
			form: model.ITRFormData{
				SalaryIncome:     20_00_000,
				Section80C:       3_00_000,
				Section80D:       1_00_000,
				HomeLoanInterest: 5_00_000,
			},
			want: ITRComputation{
				GrossIncome:     20_00_000,
				TotalDeductions: 50_000 + 1_50_000 + 75_000 + 2_00_000,
				TaxableIncome:   15_25_000,
				SlabTax:         1_12_500 + 1_57_500,
				Cess:            10_800,
				TotalTax:        2_80_800,
				NetPayable:      2_80_800,
			},
		},
		{
			name: "tds exceeds liability yields refund",
			form: model.ITRFormData{SalaryIncome: 12_00_000, Section80C: 1_50_000, TDSPaid: 1_50_000},
			want: ITRComputation{
				GrossIncome:     12_00_000,
				TotalDeductions: 2_00_000,
				TaxableIncome:   10_00_000,
				SlabTax:         1_12_500,
				Cess:            4_500,
				TotalTax:        1_17_000,
				TaxPaid:         1_50_000,
				Refund:          33_000,
			},
		},
		{
			name: "no standard deduction without salary",
			form: model.ITRFormData{BusinessIncome: 6_00_000},
			want: ITRComputation{
				GrossIncome:   6_00_000,
				TaxableIncome: 6_00_000,
				SlabTax:       12_500 + 20_000,
				Cess:          1_300,
				TotalTax:      33_800,
				NetPayable:    33_800,
			},
		},
		{
			name: "negative deduction input ignored",
			form: model.ITRFormData{BusinessIncome: 3_00_000, Section80C: -5_000},
			want: ITRComputation{
				GrossIncome:   3_00_000,
				TaxableIncome: 3_00_000,
				SlabTax:       2_500,
				Rebate:        2_500,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeITR(tt.form))
		})
	}
}

func TestComputeITRDeterministic(t *testing.T) {
	form := model.ITRFormData{SalaryIncome: 9_99_999, Section80C: 1_23_456, TDSPaid: 7_890}
	first := ComputeITR(form)
	for i := 0; i < 100; i++ {
		assert.Equal(t, first, ComputeITR(form))
	}
}

func TestApplySlabsBoundaries(t *testing.T) {
	assert.EqualValues(t, 0, applySlabs(2_50_000))
	assert.EqualValues(t, 0, applySlabs(0))
	assert.EqualValues(t, 12_500, applySlabs(5_00_000))
	assert.EqualValues(t, 1_12_500, applySlabs(10_00_000))
	assert.EqualValues(t, 1_12_530, applySlabs(10_00_100))
}
