package settlement

import (
	"bizops-backend/models"
	"bizops-backend/utils"
)

// FundingSource is one pool of spendable money for a single settlement run.
// Ephemeral: derived from Payment rows at plan/commit time, never persisted.
type FundingSource struct {
	PaymentID uint    `json:"payment_id"`
	Balance   float64 `json:"balance"`
	Cash      bool    `json:"cash"` // the new receipt entered this session
}

// CreditPolicy controls how much stored credit a settlement may spend.
// Use=false spends none. Limit caps the credit drawn (oldest first); zero
// means no cap, i.e. the classic all-or-nothing behaviour.
type CreditPolicy struct {
	Use   bool    `json:"use"`
	Limit float64 `json:"limit"`
}

// ResolveFunding turns a customer's unspent credit payments plus the newly
// entered cash into the ordered funding-source list for one settlement:
// credit oldest payment_date first, then the cash source last. Older stored
// credit is always drained before new cash is touched.
//
// credits must already be ordered oldest first with UnallocatedAmount > 0.
// The cash source carries PaymentID 0 until the committer creates its Payment.
func ResolveFunding(credits []models.Payment, cash float64, policy CreditPolicy) ([]FundingSource, float64) {
	var sources []FundingSource
	creditUsed := 0.0

	if policy.Use {
		remaining := policy.Limit
		for _, p := range credits {
			take := utils.Round2(p.UnallocatedAmount)
			if take <= 0 {
				continue
			}
			if policy.Limit > 0 {
				if remaining <= 0 {
					break
				}
				if take > remaining {
					take = utils.Round2(remaining)
				}
				remaining = utils.Round2(remaining - take)
			}
			sources = append(sources, FundingSource{PaymentID: p.ID, Balance: take})
			creditUsed = utils.Round2(creditUsed + take)
		}
	}

	cash = utils.Round2(cash)
	if cash > 0 {
		sources = append(sources, FundingSource{Balance: cash, Cash: true})
	}

	return sources, utils.Round2(cash + creditUsed)
}
