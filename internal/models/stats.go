package models

import "github.com/shopspring/decimal"

type WorkerStats struct {
	TotalSubmissions   int64 `json:"total_submissions"`
	PendingSubmissions int64 `json:"pending_submissions"`
	TotalEarnings      int64 `json:"total_earnings"`
}

type BuyerStats struct {
	TotalTasks         int64           `json:"total_tasks"`
	PendingWorkers     int64           `json:"pending_workers"`
	PendingSubmissions int64           `json:"pending_submissions"`
	TotalPaidUSD       decimal.Decimal `json:"total_paid_usd"`
}

type AdminStats struct {
	TotalWorkers       int64           `json:"total_workers"`
	TotalBuyers        int64           `json:"total_buyers"`
	TotalCoins         int64           `json:"total_coins"`
	TotalPaymentsUSD   decimal.Decimal `json:"total_payments_usd"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
}
