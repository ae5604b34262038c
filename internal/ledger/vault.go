package ledger

import "math/bits"

// Vault guarda a custódia de todo o valor apostado num evento.
// Balance nunca fica negativo; Released acumula o que já foi pago.
type Vault struct {
	EventID  string
	Balance  uint64
	Released uint64
}

// NewVault cria um cofre vazio, ligado 1:1 ao evento.
func NewVault(eventID string) *Vault { return &Vault{EventID: eventID} }

// Deposit soma amount ao saldo, recusando overflow.
func (v *Vault) Deposit(amount uint64) error {
	sum, carry := bits.Add64(v.Balance, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	v.Balance = sum
	return nil
}

// Withdraw retira amount do saldo; nunca abaixo de zero.
func (v *Vault) Withdraw(amount uint64) error {
	if v.Balance < amount {
		return ErrInsufficientVaultFunds
	}
	released, carry := bits.Add64(v.Released, amount, 0)
	if carry != 0 {
		return ErrOverflow
	}
	v.Balance -= amount
	v.Released = released
	return nil
}
