package coop

import "math/big"

// CalculateTerms prices a loan request against the pooled liquidity. The
// quoted rate interpolates linearly between the policy bounds on the
// utilization ratio (requested amount over treasury balance, in basis
// points), clamped to the maximum. An empty treasury always quotes the
// maximum rate.
func CalculateTerms(amount, treasuryBalance *big.Int, policy Policy) (*Terms, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	rate := policy.MaxInterestRateBps
	if treasuryBalance != nil && treasuryBalance.Sign() > 0 {
		ratio := new(big.Int).Mul(amount, basisPoints)
		ratio.Quo(ratio, treasuryBalance)

		spread := new(big.Int).SetUint64(policy.MaxInterestRateBps - policy.MinInterestRateBps)
		premium := new(big.Int).Mul(ratio, spread)
		premium.Quo(premium, basisPoints)

		quoted := new(big.Int).Add(new(big.Int).SetUint64(policy.MinInterestRateBps), premium)
		if quoted.IsUint64() && quoted.Uint64() < policy.MaxInterestRateBps {
			rate = quoted.Uint64()
		}
	}

	interest := new(big.Int).Mul(amount, new(big.Int).SetUint64(rate))
	interest.Quo(interest, basisPoints)

	return &Terms{
		Amount:          new(big.Int).Set(amount),
		InterestRateBps: rate,
		DurationSeconds: policy.MaxLoanDurationSeconds,
		TotalRepayment:  new(big.Int).Add(amount, interest),
	}, nil
}
