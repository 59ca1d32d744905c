package tax

import "github.com/adarsh745/etaxmentor-sub000/internal/model"

type GSTComputation struct {
	OutwardTaxableValue int64 `json:"outwardTaxableValue"`
	OutputTax           int64 `json:"outputTax"`
	ITCClaimed          int64 `json:"itcClaimed"`
	NetPayable          int64 `json:"netPayable"`
	ExcessITC           int64 `json:"excessItc"`
}

// ComputeGST nets the output tax of a return against claimed input tax
// credit. Credit beyond the output liability carries forward, it is never
// refunded here.
func ComputeGST(form model.GSTFormData) GSTComputation {
	output := form.CGSTAmount + form.SGSTAmount + form.IGSTAmount + form.CessAmount

	itc := form.ITCClaimed
	if itc < 0 {
		itc = 0
	}

	net := output - itc
	var excess int64
	if net < 0 {
		excess = -net
		net = 0
	}

	return GSTComputation{
		OutwardTaxableValue: form.OutwardTaxableValue,
		OutputTax:           output,
		ITCClaimed:          itc,
		NetPayable:          net,
		ExcessITC:           excess,
	}
}
