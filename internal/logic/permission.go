package logic

// Role 调用方角色，由外部认证层签发
type Role string

const (
	RoleDonor           Role = "donor"
	RoleCampaignCreator Role = "campaign_creator"
	RoleAdmin           Role = "admin"
	RoleChainWatcher    Role = "chain_watcher"
)

// Actor 调用方身份
type Actor struct {
	ID   string
	Role Role
}

// Action 受控操作
type Action string

const (
	ActionCreateDonation     Action = "donation:create"
	ActionViewDonation       Action = "donation:view"
	ActionGenerateReceipt    Action = "donation:receipt"
	ActionReportFinalization Action = "chain:finalize"
	ActionCreateCampaign     Action = "campaign:create"
	ActionUpdateCampaign     Action = "campaign:status"
	ActionEditMilestones     Action = "campaign:milestones"
	ActionSubmitMilestone    Action = "milestone:submit"
	ActionReviewMilestone    Action = "milestone:review"
	ActionRunSweep           Action = "reconcile:sweep"
)

// Resource 被操作对象的归属，OwnerID 为空表示不归属于具体用户
type Resource struct {
	OwnerID string
}

// CanPerform 接口层的权限判定，与对账逻辑无关
func CanPerform(actor Actor, action Action, resource Resource) bool {
	if actor.ID == "" {
		return false
	}

	switch actor.Role {
	case RoleAdmin:
		return true
	case RoleChainWatcher:
		return action == ActionReportFinalization
	case RoleCampaignCreator:
		switch action {
		case ActionCreateCampaign:
			return true
		case ActionEditMilestones, ActionSubmitMilestone,
			ActionCreateDonation, ActionViewDonation, ActionGenerateReceipt:
			return resource.OwnerID == actor.ID
		}
	case RoleDonor:
		switch action {
		case ActionCreateDonation, ActionViewDonation, ActionGenerateReceipt:
			return resource.OwnerID == actor.ID
		}
	}
	return false
}
