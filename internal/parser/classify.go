package parser

import (
	"strings"

	"github.com/maltedev/politician-trades/internal/models"
)

var (
	purchaseKeywords = []string{"purchase", "buy", "bought"}
	saleKeywords     = []string{"sale", "sell", "sold"}
	exchangeKeywords = []string{"exchange"}
)

// ClassifyTradeType maps free text onto the trade type enum. Anything that
// does not contain a known keyword is TradeTypeOther.
func ClassifyTradeType(text string) models.TradeType {
	t := strings.ToLower(text)
	if t == "" {
		return models.TradeTypeOther
	}
	if containsAny(t, purchaseKeywords) {
		return models.TradeTypePurchase
	}
	if containsAny(t, saleKeywords) {
		return models.TradeTypeSale
	}
	if containsAny(t, exchangeKeywords) {
		return models.TradeTypeExchange
	}
	return models.TradeTypeOther
}

// ClassifyAssetType maps free text onto the asset type enum.
func ClassifyAssetType(text string) models.AssetType {
	t := strings.ToLower(text)
	switch {
	case t == "":
		return models.AssetTypeOther
	case models.AssetType(t).Valid():
		return models.AssetType(t)
	case strings.Contains(t, "stock") || strings.Contains(t, "equity") || strings.Contains(t, "share"):
		return models.AssetTypeStock
	case strings.Contains(t, "bond"):
		return models.AssetTypeBond
	case strings.Contains(t, "option"):
		return models.AssetTypeOption
	case strings.Contains(t, "mutual") || strings.Contains(t, "fund"):
		return models.AssetTypeMutualFund
	case strings.Contains(t, "crypto"):
		return models.AssetTypeCryptocurrency
	}
	return models.AssetTypeOther
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}
