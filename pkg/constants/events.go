package constants

// 事件主题, 组件之间只通过事件总线通信
const (
	SubjectReleaseCreate      = "release.create"
	SubjectReleaseCreated     = "release.created"
	SubjectReleasePromote     = "release.promote"
	SubjectReleasePause       = "release.pause"
	SubjectReleaseResume      = "release.resume"
	SubjectReleaseHealthCheck = "release.health_check"
	SubjectReleaseRollback    = "release.rollback"
	SubjectRollbackExecute    = "rollback.execute"
	SubjectRollbackCompleted  = "rollback.completed"
	SubjectPostmortemCreate   = "postmortem.create"
	SubjectAgentError         = "error.agent"
)
