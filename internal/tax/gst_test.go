package tax

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/adarsh745/etaxmentor-sub000/internal/model"
)

func TestComputeGST(t *testing.T) {
	tests := []struct {
		name string
		form model.GSTFormData
		want GSTComputation
	}{
		{
			name: "nil return",
			form: model.GSTFormData{},
			want: GSTComputation{},
		},
		{
			name: "itc fully offsets output",
			form: model.GSTFormData{
				OutwardTaxableValue: 10_00_000,
				CGSTAmount:          90_000,
				SGSTAmount:          90_000,
				ITCClaimed:          1_80_000,
			},
			want: GSTComputation{
				OutwardTaxableValue: 10_00_000,
				OutputTax:           1_80_000,
				ITCClaimed:          1_80_000,
			},
		},
		{
			name: "net payable after partial itc",
			form: model.GSTFormData{
				OutwardTaxableValue: 10_00_000,
				CGSTAmount:          90_000,
				SGSTAmount:          90_000,
				IGSTAmount:          36_000,
				CessAmount:          4_000,
				ITCClaimed:          1_00_000,
			},
			want: GSTComputation{
				OutwardTaxableValue: 10_00_000,
				OutputTax:           2_20_000,
				ITCClaimed:          1_00_000,
				NetPayable:          1_20_000,
			},
		},
		{
			name: "excess itc carries forward",
			form: model.GSTFormData{
				CGSTAmount: 10_000,
				SGSTAmount: 10_000,
				ITCClaimed: 50_000,
			},
			want: GSTComputation{
				OutputTax:  20_000,
				ITCClaimed: 50_000,
				ExcessITC:  30_000,
			},
		},
		{
			name: "negative itc treated as zero",
			form: model.GSTFormData{CGSTAmount: 5_000, ITCClaimed: -1},
			want: GSTComputation{
				OutputTax:  5_000,
				NetPayable: 5_000,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeGST(tt.form))
		})
	}
}
