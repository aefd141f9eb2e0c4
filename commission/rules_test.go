package commission_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/commission-engine/commission"
	"github.com/warp/commission-engine/generic"
)

func TestMultiplier_TierBoundaries(t *testing.T) {
	tests := []struct {
		total string
		want  string
	}{
		{"0", "1.2"},
		{"1999.99", "1.2"},
		{"2000", "1.2"},
		{"2000.01", "1.4"},
		{"3000", "1.4"},
		{"4000", "1.4"},
		{"4000.01", "1.6"},
		{"100000", "1.6"},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			got := commission.Multiplier(decimal.RequireFromString(tt.total))
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s", got)
		})
	}
}

func TestCommissionValue(t *testing.T) {
	tests := []struct {
		total string
		want  string
	}{
		{"0", "0.00"},
		{"2000", "400.00"},
		{"2000.01", "800.00"},
		{"3000", "1200.00"},
		{"4000.01", "2400.01"},
		// 200.005 and 200.015: half to even
		{"1000.025", "200.00"},
		{"1000.075", "200.02"},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			got := commission.CommissionValue(decimal.RequireFromString(tt.total))
			assert.Equal(t, tt.want, generic.FormatMoney(got))
		})
	}
}

func TestReceiptDate(t *testing.T) {
	tests := []struct {
		paid string
		want string
	}{
		{"2024-03-01", "2024-03-20"},
		{"2024-03-05", "2024-03-20"},
		{"2024-03-06", "2024-04-05"},
		{"2024-03-31", "2024-04-05"},
		{"2024-01-31", "2024-02-05"},
		{"2024-12-15", "2025-01-05"},
		{"2024-12-05", "2024-12-20"},
	}
	for _, tt := range tests {
		t.Run(tt.paid, func(t *testing.T) {
			got := commission.ReceiptDate(generic.MustParseDate(tt.paid))
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSinglePayment_CoversSaleAmount(t *testing.T) {
	sale := commission.Sale{
		ID:               3,
		Amount:           decimal.RequireFromString("1234.56"),
		FirstPaymentDate: generic.MustParseDate("2024-05-10"),
	}

	got := commission.SinglePayment{}.Split(sale)

	if assert.Len(t, got, 1) {
		assert.Equal(t, 1, got[0].Index)
		assert.Equal(t, "2024-05-10", got[0].ClientDueDate.String())
		assert.True(t, got[0].Amount.Equal(sale.Amount))
		assert.False(t, got[0].ClientPaid)
	}
}

func TestInstallment_MarkClientPaid_Overwrites(t *testing.T) {
	var i commission.Installment

	i.MarkClientPaid(generic.MustParseDate("2024-03-03"))
	i.MarkClientPaid(generic.MustParseDate("2024-03-10"))

	assert.True(t, i.ClientPaid)
	assert.Equal(t, "2024-03-10", i.ClientPaidDate.String())
	assert.Equal(t, "2024-04-05", i.CollaboratorReceiptDate.String())
}

func TestSumInstallmentsAndPayouts(t *testing.T) {
	insts := []commission.Installment{
		{Amount: decimal.RequireFromString("0.10")},
		{Amount: decimal.RequireFromString("0.20")},
		{Amount: decimal.RequireFromString("1000.505")},
	}
	assert.Equal(t, "1000.80", generic.FormatMoney(commission.SumInstallments(insts)))
	assert.True(t, commission.SumInstallments(nil).IsZero())

	payouts := []commission.Payout{{Installment: insts[0]}, {Installment: insts[1]}}
	assert.Equal(t, "0.30", generic.FormatMoney(commission.SumPayouts(payouts)))
}
