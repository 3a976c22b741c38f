// Package types contains the JSON request and response shapes of the rewards API.
package types

import "time"

// TrackActionRequest is the body of POST /api/rewards.
type TrackActionRequest struct {
	UserID        string     `json:"user_id"`
	Action        string     `json:"action"`
	ActionValue   *float64   `json:"action_value,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
	Location      string     `json:"location,omitempty"`
	WalletAddress string     `json:"wallet_address,omitempty"`
	ActionID      string     `json:"action_id,omitempty"`
}

// LeaderboardPosition reports a user's ranks after an action or on query.
// RegionalRank is nil when the user has no region.
type LeaderboardPosition struct {
	GlobalRank   int  `json:"global_rank"`
	RegionalRank *int `json:"regional_rank"`
	TotalUsers   int  `json:"total_users"`
}

// WalletTx lists transaction ids of mints that succeeded.
type WalletTx struct {
	EcoPointsNFT string   `json:"ecoPointsNFT,omitempty"`
	BadgeNFTs    []string `json:"badgeNFTs,omitempty"`
}

// UserStats is the stats block shared by action and query responses.
type UserStats struct {
	TotalActions     int     `json:"totalActions"`
	TotalCO2Offset   float64 `json:"totalCO2Offset"`
	TotalEnergySaved float64 `json:"totalEnergySaved"`
	Badges           int     `json:"badges"`
}

// AnimationData drives client-side celebration effects.
type AnimationData struct {
	PointsEarned int64 `json:"pointsEarned"`
	LevelUp      bool  `json:"levelUp"`
	RankChange   int   `json:"rankChange"`
}

// TrackActionResponse is returned for an applied action.
type TrackActionResponse struct {
	Status           string              `json:"status"`
	UserID           string              `json:"user_id"`
	EcoPoints        int64               `json:"ecoPoints"`
	PointsEarned     int64               `json:"pointsEarned"`
	NewBadges        []string            `json:"new_badges"`
	Leaderboard      LeaderboardPosition `json:"leaderboard"`
	WalletTx         *WalletTx           `json:"wallet_tx,omitempty"`
	MilestoneMessage string              `json:"milestone_message"`
	Stats            UserStats           `json:"stats"`
	AnimationData    AnimationData       `json:"animation_data"`
}

// DuplicateResponse is returned when an action_id was already applied.
type DuplicateResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
	UserID    string `json:"user_id"`
	ActionID  string `json:"action_id"`
}

// Badge is the public view of a badge definition.
type Badge struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
	Rarity      string `json:"rarity"`
}

// ActionEntry is one item of a user's recent history.
type ActionEntry struct {
	Action        string    `json:"action"`
	Value         float64   `json:"value"`
	PointsAwarded int64     `json:"pointsAwarded"`
	Timestamp     time.Time `json:"timestamp"`
}

// UserRewardsResponse is returned by the query-by-user operation.
type UserRewardsResponse struct {
	UserID        string              `json:"user_id"`
	EcoPoints     int64               `json:"ecoPoints"`
	Location      string              `json:"location,omitempty"`
	Badges        []Badge             `json:"badges"`
	Leaderboard   LeaderboardPosition `json:"leaderboard"`
	Stats         UserStats           `json:"stats"`
	RecentActions []ActionEntry       `json:"recent_actions"`
	LastUpdated   time.Time           `json:"lastUpdated"`
}

// LeaderboardEntry is one row of a leaderboard.
type LeaderboardEntry struct {
	Rank           int     `json:"rank"`
	UserID         string  `json:"user_id"`
	EcoPoints      int64   `json:"ecoPoints"`
	Badges         int     `json:"badges"`
	TotalCO2Offset float64 `json:"totalCO2Offset"`
}

// LeaderboardResponse is returned by the leaderboard query.
type LeaderboardResponse struct {
	Type        string             `json:"type"`
	Location    string             `json:"location,omitempty"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	TotalUsers  int                `json:"total_users"`
}

// BadgesResponse lists the badge catalogue.
type BadgesResponse struct {
	Badges []Badge `json:"badges"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
