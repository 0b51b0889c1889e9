package sim

// Balance is the account state in the margin asset. Total moves only when
// a position closes; Available moves on every fill.
type Balance struct {
	Asset     string
	Total     float64
	Available float64
}

func NewBalance(asset string, total float64) Balance {
	return Balance{Asset: asset, Total: total, Available: total}
}

// Reserved is the margin currently held by the open position.
func (b Balance) Reserved() float64 { return b.Total - b.Available }

func (b *Balance) reserve(amount float64) { b.Available -= amount }
func (b *Balance) release(amount float64) { b.Available += amount }

// settle books a closed position's net profit and frees all margin.
func (b *Balance) settle(net float64) {
	b.Total += net
	b.Available = b.Total
}
