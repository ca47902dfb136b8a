package handler

import (
	"fmt"
	"strings"

	"shift-planner/internal/engine"
	"shift-planner/internal/events"
	"shift-planner/internal/progress"
	"shift-planner/internal/service"
	"shift-planner/pkg/calendar"
)

// formatView - сводка версии: период, автор и смены каждого сотрудника
func formatView(view *service.ScheduleView, labels *engine.Labels) string {
	var b strings.Builder
	if view.VersionID == nil {
		fmt.Fprintf(&b, "📅 %s 在 %s ~ %s 暂无排班", view.Team, view.ViewStart, view.ViewEnd)
		return b.String()
	}

	fmt.Fprintf(&b, "📅 %s 排班 %s ~ %s\n", view.Team, view.ViewStart, view.ViewEnd)
	fmt.Fprintf(&b, "版本 #%d", *view.VersionID)
	if view.CreatedByName != "" {
		fmt.Fprintf(&b, "，%s", view.CreatedByName)
	}
	if view.CreatedAt != nil {
		fmt.Fprintf(&b, "，%s", view.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	b.WriteString("\n")
	if view.Note != "" {
		fmt.Fprintf(&b, "备注：%s\n", view.Note)
	}

	span, err := calendar.ParseSpan(view.ViewStart, view.ViewEnd)
	grid, gerr := labels.Decode(view.Data)
	if err != nil || gerr != nil {
		return b.String()
	}
	b.WriteString("\n")
	for _, e := range view.Employees {
		b.WriteString(formatTally(labels, e, grid.Tally(e, span)))
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatTally(labels *engine.Labels, employee string, t engine.Tally) string {
	return fmt.Sprintf("%s：%s%d %s%d %s%d %s%d %s%d",
		employee,
		labels.Label(engine.Day), t.Day,
		labels.Label(engine.Mid1), t.Mid1,
		labels.Label(engine.Mid2), t.Mid2,
		labels.Label(engine.Night), t.Night,
		labels.Label(engine.Rest), t.Rest,
	)
}

func formatVersions(team string, versions []service.VersionSummary) string {
	if len(versions) == 0 {
		return fmt.Sprintf("📂 %s 暂无历史版本", team)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📂 %s 历史版本（共 %d 个）：\n", team, len(versions))
	for _, v := range versions[:min(len(versions), 20)] {
		fmt.Fprintf(&b, "\n#%d  %s ~ %s  %s", v.ID, v.ViewStart, v.ViewEnd, v.CreatedByName)
		if v.Note != "" {
			fmt.Fprintf(&b, "（%s）", v.Note)
		}
	}
	return b.String()
}

func formatProgress(entries []progress.Entry) string {
	if len(entries) == 0 {
		return "📝 暂无日志"
	}
	var b strings.Builder
	b.WriteString("📝 最近日志：\n")
	for _, e := range entries {
		fmt.Fprintf(&b, "\n%s ", e.Timestamp.Local().Format("01-02 15:04:05"))
		if e.Progress != nil {
			fmt.Fprintf(&b, "[%d%%] ", *e.Progress)
		}
		b.WriteString(e.Message)
	}
	return b.String()
}

func formatGenerated(res *service.GenerateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🧮 %s 排班已生成 %s ~ %s\n", res.Team, res.ViewStart, res.ViewEnd)
	fmt.Fprintf(&b, "成员 %d 人", len(res.Employees))
	if res.History != nil && res.History.PeriodCount > 0 {
		fmt.Fprintf(&b, "，参考历史 %d 期", res.History.PeriodCount)
	}
	if n := len(res.Violations); n > 0 {
		fmt.Fprintf(&b, "\n⚠️ 规则冲突 %d 处", n)
	}
	b.WriteString("\n\n是否保存为新版本？")
	return b.String()
}

func formatSaved(ev events.VersionSaved) string {
	text := fmt.Sprintf("💾 %s 保存了 %s 排班 %s ~ %s（版本 #%d，%d 人）",
		ev.Operator, ev.Team, ev.ViewStart, ev.ViewEnd, ev.VersionID, ev.Employees)
	if ev.Note != "" {
		text += "\n备注：" + ev.Note
	}
	return text
}
