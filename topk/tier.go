package topk

import "fmt"

// MaxK is the largest selection size any tier supports.
const MaxK = 2048

// tier is one compiled specialization of the selection primitive. Smaller
// tiers use deeper lane parallelism and shallower buffers; the largest tier
// trades lanes for merge width, mirroring the register-pressure tradeoff the
// tier table encodes on real hardware.
type tier struct {
	maxK   int // Largest k this tier serves
	fanOut int // Lane insertion buffer depth
	lanes  int // Lanes per block
}

// tiers is the bounded specialization table, smallest first. A request
// resolves to the first tier covering its k.
var tiers = []tier{
	{maxK: 32, fanOut: 2, lanes: 4},
	{maxK: 64, fanOut: 3, lanes: 4},
	{maxK: 128, fanOut: 3, lanes: 4},
	{maxK: 256, fanOut: 4, lanes: 4},
	{maxK: 512, fanOut: 8, lanes: 4},
	{maxK: 1024, fanOut: 8, lanes: 4},
	{maxK: 2048, fanOut: 8, lanes: 2},
}

func tierFor(k int) (tier, error) {
	for _, t := range tiers {
		if k <= t.maxK {
			return t, nil
		}
	}
	return tier{}, fmt.Errorf("%w: k %d > %d", ErrKTooLarge, k, MaxK)
}
