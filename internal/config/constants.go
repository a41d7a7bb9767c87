package config

import (
	"maps"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/microtasks/backend/internal/models"
)

// Coin economy.
const (
	MinWithdrawalCoins     int64 = 200
	CoinsPerUSD            int64 = 20
	MinCustomPurchaseCoins int64 = 50
	MaxCustomPurchaseCoins int64 = 1_000_000

	MaxPayableAmount   int64 = 1_000_000
	MaxRequiredWorkers int64 = 10_000
)

// CustomCoinPrice is the USD price of one coin bought outside a package.
var CustomCoinPrice = decimal.RequireFromString("0.05")

var signupBonus = map[models.Role]int64{
	models.RoleWorker: 10,
	models.RoleBuyer:  50,
	models.RoleAdmin:  100,
}

// SignupBonus returns the coins granted on registration for the role.
func SignupBonus(role models.Role) int64 {
	return signupBonus[role]
}

type CoinPackage struct {
	ID       string          `json:"id"`
	Coins    int64           `json:"coins"`
	PriceUSD decimal.Decimal `json:"price_usd"`
}

var CoinPackages = []CoinPackage{
	{ID: "starter", Coins: 100, PriceUSD: decimal.NewFromInt(5)},
	{ID: "basic", Coins: 250, PriceUSD: decimal.NewFromInt(10)},
	{ID: "popular", Coins: 500, PriceUSD: decimal.NewFromInt(18)},
	{ID: "pro", Coins: 1000, PriceUSD: decimal.NewFromInt(30)},
}

func PackageByID(id string) (CoinPackage, bool) {
	for _, p := range CoinPackages {
		if p.ID == id {
			return p, true
		}
	}
	return CoinPackage{}, false
}

// PaymentChannels are the payout systems accepted for withdrawals.
var PaymentChannels = map[string]string{
	"bkash":  "bKash",
	"nagad":  "Nagad",
	"rocket": "Rocket",
	"paypal": "PayPal",
	"bank":   "Bank Transfer",
}

func IsPaymentChannel(ch string) bool {
	_, ok := PaymentChannels[ch]
	return ok
}

// PaymentChannelNames lists the channel keys in a stable order.
func PaymentChannelNames() []string {
	return slices.Sorted(maps.Keys(PaymentChannels))
}

// CoinsToUSD converts a coin amount at the fixed withdrawal rate, rounded to cents.
func CoinsToUSD(coins int64) decimal.Decimal {
	return decimal.NewFromInt(coins).Div(decimal.NewFromInt(CoinsPerUSD)).Round(2)
}

// CustomPurchasePrice is the USD charge for buying coins outside a package.
func CustomPurchasePrice(coins int64) decimal.Decimal {
	return CustomCoinPrice.Mul(decimal.NewFromInt(coins)).Round(2)
}
