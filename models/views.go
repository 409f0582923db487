package models

import "github.com/shopspring/decimal"

// UserRow is a user list entry
type UserRow struct {
	User
	DisplayBalance decimal.Decimal `json:"displayBalance"`
	NetProfit      decimal.Decimal `json:"netProfit"`
}

// UserDetail is the single-user view
type UserDetail struct {
	User
	DisplayBalance     decimal.Decimal `json:"displayBalance"`
	Stats              UserStats       `json:"stats"`
	ClassifiedRisk     RiskLevel       `json:"classifiedRisk"`
	RecentTransactions []*Transaction  `json:"recentTransactions"`
}

// GameView is a game merged with its statistics
type GameView struct {
	Game
	GameStats
	RTP        float64 `json:"rtp"`
	HouseEdge  float64 `json:"houseEdge"`
	RTPWarning bool    `json:"rtpWarning"`
}

// AffiliateView is an affiliate merged with its statistics
type AffiliateView struct {
	Affiliate
	AffiliateStats
	Commission decimal.Decimal `json:"commission"`
}

// AffiliateDetail adds the referred players to an affiliate view
type AffiliateDetail struct {
	AffiliateView
	Referred []*User `json:"referred"`
}

// RankedUser is a leaderboard entry
type RankedUser struct {
	Rank      int             `json:"rank"`
	User      *User           `json:"user"`
	NetProfit decimal.Decimal `json:"netProfit"`
}

// Standings holds both ends of a ranking
type Standings struct {
	TopWinners []*RankedUser `json:"topWinners"`
	TopLosers  []*RankedUser `json:"topLosers"`
}

// SeriesPoint is one bucket of the time based analytics
type SeriesPoint struct {
	Start        string          `json:"start"` // YYYY-MM-DD of the bucket start
	Bets         decimal.Decimal `json:"bets"`
	Wins         decimal.Decimal `json:"wins"`
	Deposits     decimal.Decimal `json:"deposits"`
	GGR          decimal.Decimal `json:"ggr"`
	Transactions int             `json:"transactions"`
}

// GameTypeSlice is the share of one game category
type GameTypeSlice struct {
	Type  GameType        `json:"type"`
	NGR   decimal.Decimal `json:"ngr"` // magnitude of NGR across the category
	Plays int             `json:"plays"`
}

// RiskSlice is the number of users in one risk tier
type RiskSlice struct {
	RiskLevel RiskLevel `json:"riskLevel"`
	Users     int       `json:"users"`
}

// Analytics is the time based statistics report
type Analytics struct {
	Daily            []*SeriesPoint   `json:"daily"`
	Weekly           []*SeriesPoint   `json:"weekly"`
	GameTypes        []*GameTypeSlice `json:"gameTypes"`
	RiskDistribution []*RiskSlice     `json:"riskDistribution"`
}
