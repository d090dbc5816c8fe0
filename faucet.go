package main

// GainSource names where a coin gain came from.
type GainSource string

const (
	FaucetClick GainSource = "click"
	FaucetAuto  GainSource = "auto"
	FaucetGift  GainSource = "gift"
	FaucetClaim GainSource = "claim"
)

const (
	clickReward = 1.0
	giftReward  = 120.0
	claimReward = 75.0

	// auto income is cps per second, paid out in ticksPerSecond slices.
	ticksPerSecond = 10
)
