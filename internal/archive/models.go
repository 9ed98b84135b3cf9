package archive

import (
	"time"

	"github.com/DoyleJ11/crash-backend/internal/engine"
	"github.com/shopspring/decimal"
)

// Round is one finished round.
type Round struct {
	RoundID      string          `gorm:"primaryKey;type:varchar(64)" json:"round_id"`
	TableCode    string          `gorm:"index;type:varchar(16);not null" json:"table_code"`
	CrashPoint   decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"crash_point"`
	TotalBets    int             `gorm:"default:0" json:"total_bets"`
	Wagered      decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"wagered"`
	PlayerProfit decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"player_profit"`
	CrashedAt    time.Time       `gorm:"index;not null" json:"crashed_at"`
	Bets         []RoundBet      `gorm:"foreignKey:RoundID;references:RoundID" json:"bets"`
}

func (Round) TableName() string { return "rounds" }

type RoundBet struct {
	BetID       string           `gorm:"primaryKey;type:varchar(64)" json:"bet_id"`
	RoundID     string           `gorm:"index;type:varchar(64);not null" json:"round_id"`
	PlayerID    string           `gorm:"index;type:varchar(64);not null" json:"player_id"`
	Amount      decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"amount"`
	AutoCashout *decimal.Decimal `gorm:"type:decimal(10,2)" json:"auto_cashout"`
	Status      string           `gorm:"type:varchar(16);not null" json:"status"`
	CashoutAt   *decimal.Decimal `gorm:"type:decimal(10,2)" json:"cashout_at"`
	Profit      decimal.Decimal  `gorm:"type:decimal(18,2);not null" json:"profit"`
	PlacedAt    time.Time        `gorm:"not null" json:"placed_at"`
}

func (RoundBet) TableName() string { return "round_bets" }

// FromResult flattens an engine result into archive rows.
func FromResult(tableCode string, r engine.RoundResult) Round {
	totals := engine.SumBets(r.Bets)
	round := Round{
		RoundID:      r.RoundID,
		TableCode:    tableCode,
		CrashPoint:   r.CrashPoint.Decimal(),
		TotalBets:    len(r.Bets),
		Wagered:      totals.Wagered,
		PlayerProfit: totals.Profit,
		CrashedAt:    r.CrashedAt,
		Bets:         make([]RoundBet, 0, len(r.Bets)),
	}
	for _, b := range r.Bets {
		rb := RoundBet{
			BetID:    b.ID,
			RoundID:  r.RoundID,
			PlayerID: b.PlayerID,
			Amount:   b.Amount,
			Status:   string(b.Status),
			Profit:   b.Profit,
			PlacedAt: b.PlacedAt,
		}
		if b.AutoCashout != 0 {
			d := b.AutoCashout.Decimal()
			rb.AutoCashout = &d
		}
		if b.Status == engine.BetCashedOut {
			d := b.CashoutAt.Decimal()
			rb.CashoutAt = &d
		}
		round.Bets = append(round.Bets, rb)
	}
	return round
}
