package transfer

import "github.com/socialflowhq/socialflow/internal/models"

type PostCreation struct {
	Caption          string `json:"caption"`
	Title            string `json:"title"`
	ScheduledTime    string `json:"scheduling_time"`
	SelectedAccounts string `json:"selected_accounts"`
}

// PostDetail is a post together with its per-platform targets, as shown in
// the dashboard.
type PostDetail struct {
	Post    *models.Post         `json:"post"`
	Targets []*models.PostTarget `json:"targets"`
}
