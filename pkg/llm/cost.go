package llm

import "strings"

// Token pricing per 1M tokens (USD).
var pricing = map[string]modelPrice{
	"gpt-4o":        {Input: 2.50, Output: 10.00},
	"gpt-4o-mini":   {Input: 0.15, Output: 0.60},
	"gpt-4.1":       {Input: 2.00, Output: 8.00},
	"gpt-4.1-mini":  {Input: 0.40, Output: 1.60},
	"gpt-3.5-turbo": {Input: 0.50, Output: 1.50},

	"MiniMax-M2.5":           {Input: 1.10, Output: 4.40},
	"MiniMax-M2.5-highspeed": {Input: 0.55, Output: 2.20},
	"MiniMax-M2":             {Input: 0.50, Output: 2.00},
}

type modelPrice struct {
	Input  float64 // per 1M input tokens
	Output float64 // per 1M output tokens
}

// EstimateCost returns the estimated cost in USD for the given model and token
// counts. Dated snapshots such as "gpt-4o-mini-2024-07-18" are priced as their
// base model; unknown models cost 0.
func EstimateCost(model string, tokensIn, tokensOut int) float64 {
	p, ok := lookupPrice(model)
	if !ok {
		return 0
	}
	return (float64(tokensIn) * p.Input / 1_000_000) + (float64(tokensOut) * p.Output / 1_000_000)
}

func lookupPrice(model string) (modelPrice, bool) {
	if p, ok := pricing[model]; ok {
		return p, true
	}
	best := ""
	for name := range pricing {
		if strings.HasPrefix(model, name+"-") && len(name) > len(best) {
			best = name
		}
	}
	if best == "" {
		return modelPrice{}, false
	}
	return pricing[best], true
}
