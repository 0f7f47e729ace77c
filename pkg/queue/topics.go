package queue

// 主题命名：vs.<域>.<动作>，发布后保持稳定.
const (
	TopicReportCreated       = "vs.report.created"        // 首次自动保存创建报告
	TopicReportSubmitted     = "vs.report.submitted"      // 提交审批
	TopicReportApproved      = "vs.report.approved"       // 审批通过，状态已提交
	TopicReportRejected      = "vs.report.rejected"       // 审批驳回
	TopicReportEditedPending = "vs.report.edited_pending" // 待审批期间被编辑
	TopicReportDeleted       = "vs.report.deleted"        // 报告删除
	TopicReportDispatched    = "vs.report.dispatched"     // 审批邮件派发完成
)

// ReportTopics 全部报告生命周期主题.
var ReportTopics = []string{
	TopicReportCreated,
	TopicReportSubmitted,
	TopicReportApproved,
	TopicReportRejected,
	TopicReportEditedPending,
	TopicReportDeleted,
	TopicReportDispatched,
}
