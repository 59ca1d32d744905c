// Package tax computes income-tax and GST liabilities from filing form data.
// All amounts are int64 whole rupees, the unit tax forms are denominated in.
// Every function is pure: identical input always
// yields identical output.
package tax

import "github.com/adarsh745/etaxmentor-sub000/internal/model"

const (
	standardDeduction = 50_000
	section80CCap     = 1_50_000
	section80DCap     = 75_000
	homeLoanCap       = 2_00_000

	rebateThreshold = 5_00_000
	rebateCap       = 12_500

	cessPercent = 4
)

type itrSlab struct {
	upTo    int64 // upper bound of the slab in rupees, 0 = unbounded
	percent int64
}

// FY slab table for the deduction-bearing regime.
var itrSlabs = []itrSlab{
	{upTo: 2_50_000, percent: 0},
	{upTo: 5_00_000, percent: 5},
	{upTo: 10_00_000, percent: 20},
	{upTo: 0, percent: 30},
}

type ITRComputation struct {
	GrossIncome     int64 `json:"grossIncome"`
	TotalDeductions int64 `json:"totalDeductions"`
	TaxableIncome   int64 `json:"taxableIncome"`
	SlabTax         int64 `json:"slabTax"`
	Rebate          int64 `json:"rebate"`
	Cess            int64 `json:"cess"`
	TotalTax        int64 `json:"totalTax"`
	TaxPaid         int64 `json:"taxPaid"`
	NetPayable      int64 `json:"netPayable"`
	Refund          int64 `json:"refund"`
}

func ComputeITR(form model.ITRFormData) ITRComputation {
	gross := form.SalaryIncome + form.BusinessIncome + form.CapitalGains + form.OtherIncome

	deductions := capAt(form.Section80C, section80CCap) +
		capAt(form.Section80D, section80DCap) +
		capAt(form.HomeLoanInterest, homeLoanCap)
	if form.SalaryIncome > 0 {
		deductions += standardDeduction
	}

	taxable := gross - deductions
	if taxable < 0 {
		taxable = 0
	}

	slabTax := applySlabs(taxable)

	var rebate int64
	if taxable <= rebateThreshold {
		rebate = capAt(slabTax, rebateCap)
	}

	afterRebate := slabTax - rebate
	cess := afterRebate * cessPercent / 100
	total := afterRebate + cess

	paid := form.TDSPaid + form.AdvanceTaxPaid
	net := total - paid
	var refund int64
	if net < 0 {
		refund = -net
		net = 0
	}

	return ITRComputation{
		GrossIncome:     gross,
		TotalDeductions: deductions,
		TaxableIncome:   taxable,
		SlabTax:         slabTax,
		Rebate:          rebate,
		Cess:            cess,
		TotalTax:        total,
		TaxPaid:         paid,
		NetPayable:      net,
		Refund:          refund,
	}
}

func applySlabs(taxable int64) int64 {
	var tax int64
	var lower int64
	for _, slab := range itrSlabs {
		if taxable <= lower {
			break
		}
		upper := slab.upTo
		if upper == 0 || upper > taxable {
			upper = taxable
		}
		tax += (upper - lower) * slab.percent / 100
		lower = slab.upTo
	}
	return tax
}

func capAt(value, limit int64) int64 {
	if value < 0 {
		return 0
	}
	if value > limit {
		return limit
	}
	return value
}
