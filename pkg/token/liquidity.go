package token

// DefaultLiquidityThreshold is the USD liquidity below which a token is
// classified low-liquidity.
const DefaultLiquidityThreshold = 10000.0

// ClassifyLowLiquidity reports whether a token should be flagged
// low-liquidity. Unknown liquidity counts as low; the threshold itself does
// not (boundary is inclusive on the healthy side).
func ClassifyLowLiquidity(liquidityUSD *float64, threshold float64) bool {
	if liquidityUSD == nil {
		return true
	}
	return *liquidityUSD < threshold
}
