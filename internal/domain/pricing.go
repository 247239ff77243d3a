package domain

// MinorUnitsPerMajor converts KES shillings to cents as expected by the gateway.
const MinorUnitsPerMajor = 100

const DefaultCurrency = "KES"

var voteTiers = map[int]int64{
	10:  50,
	20:  100,
	30:  150,
	100: 500,
	200: 1000,
	400: 2000,
}

// VotePrice returns the minor-unit price of a vote bundle. Only the fixed tiers
// are sold.
func VotePrice(votes int) (int64, error) {
	price, ok := voteTiers[votes]
	if !ok {
		return 0, ErrInvalidQuantity
	}
	return price * MinorUnitsPerMajor, nil
}

// VoteTiers lists the purchasable bundle sizes in ascending order.
func VoteTiers() []int {
	return []int{10, 20, 30, 100, 200, 400}
}
