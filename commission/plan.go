package commission

// InstallmentPlan decides how a newly registered sale is split into the
// installments the client owes. The installments it returns must add up to
// the sale amount; IDs are assigned by the store.
type InstallmentPlan interface {
	Split(sale Sale) []Installment
}

// SinglePayment is the only plan in use: the whole amount is due on the
// first payment date.
type SinglePayment struct{}

func (SinglePayment) Split(sale Sale) []Installment {
	return []Installment{{
		SaleID:        sale.ID,
		Index:         1,
		ClientDueDate: sale.FirstPaymentDate,
		Amount:        sale.Amount,
	}}
}
