package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"shift-planner/internal/export"
	"shift-planner/internal/service"
)

// commandTimeout - сколько ждём сервис при обработке одной команды
const commandTimeout = 2 * time.Minute

const helpText = `📋 可用命令：

/latest 团队 [开始 结束] - 查看最新排班
/versions 团队 - 历史版本列表
/progress 团队 - 最近的排班日志
/export 团队 开始 结束 - 导出 Excel
/generate 团队 开始 结束 - 生成排班（需确认后保存）
/deleteversion 版本ID - 删除版本

日期格式：YYYY-MM-DD，例如 /export ops 2024-04-01 2024-04-30`

func (h *Handler) handleCommand(message *tgbotapi.Message) {
	command := message.Command()
	args := strings.Fields(message.CommandArguments())

	switch command {
	case "start", "help":
		h.reply(message.Chat.ID, helpText)
	case "latest":
		h.showLatest(message, args)
	case "versions":
		h.showVersions(message, args)
	case "progress":
		h.showProgress(message, args)
	case "export":
		h.exportSchedule(message, args)
	case "generate":
		h.generateSchedule(message, args)
	case "deleteversion":
		h.deleteVersion(message, args)
	default:
		h.reply(message.Chat.ID, "❌ 未知命令，/help 查看可用命令。")
	}
}

func commandContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), commandTimeout)
}

// teamArg - первый аргумент или команда по умолчанию
func teamArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return service.DefaultTeam
}

// userError - текст ошибки сервиса для пользователя
func (h *Handler) userError(chatID int64, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrVersionNotFound):
		h.reply(chatID, "❌ "+err.Error())
	default:
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Telegram command failed")
		h.reply(chatID, "❌ 服务器内部错误")
	}
}

func (h *Handler) showLatest(message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID
	var start, end string
	if len(args) >= 3 {
		start, end = args[1], args[2]
	}

	ctx, cancel := commandContext()
	defer cancel()
	view, err := h.schedules.Fetch(ctx, teamArg(args), start, end, "")
	if err != nil {
		h.userError(chatID, err)
		return
	}
	h.reply(chatID, formatView(view, h.schedules.Labels()))
}

func (h *Handler) showVersions(message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID
	ctx, cancel := commandContext()
	defer cancel()

	versions, err := h.schedules.ListVersions(ctx, teamArg(args), "", "")
	if err != nil {
		h.userError(chatID, err)
		return
	}

	msg := tgbotapi.NewMessage(chatID, formatVersions(teamArg(args), versions))
	if len(versions) > 0 {
		var rows [][]tgbotapi.InlineKeyboardButton
		for _, v := range versions[:min(len(versions), 5)] {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("查看 #%d", v.ID), fmt.Sprintf("show_version_%d", v.ID)),
			))
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}
	h.send(msg)
}

func (h *Handler) showVersion(chatID int64, raw string) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		h.reply(chatID, "❌ 无效的版本 ID")
		return
	}
	ctx, cancel := commandContext()
	defer cancel()
	view, err := h.schedules.GetVersion(ctx, uint(id), "")
	if err != nil {
		h.userError(chatID, err)
		return
	}
	h.reply(chatID, formatView(view, h.schedules.Labels()))
}

func (h *Handler) showProgress(message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID
	entries, err := h.progress.Recent(10, teamArg(args))
	if err != nil {
		h.userError(chatID, err)
		return
	}
	h.reply(chatID, formatProgress(entries))
}

func (h *Handler) exportSchedule(message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID
	if len(args) < 3 {
		h.reply(chatID, "格式：/export 团队 开始 结束\n例如：/export ops 2024-04-01 2024-04-30")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	table, span, err := h.schedules.ExportTable(ctx, args[0], args[1], args[2])
	if err != nil {
		h.userError(chatID, err)
		return
	}

	var buf bytes.Buffer
	format, err := export.Write(&buf, table, h.logger)
	if err != nil {
		h.userError(chatID, err)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  export.Filename(span) + "." + format.Ext,
		Bytes: buf.Bytes(),
	})
	doc.Caption = fmt.Sprintf("📎 %s 排班 %s ~ %s", args[0], span.Start, span.End)
	h.send(doc)
}

func (h *Handler) generateSchedule(message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID
	if !h.isAdmin(chatID) {
		h.logger.WithField("chat_id", chatID).Warn("Unauthorized access to generate command")
		h.reply(chatID, "❌ 无权限")
		return
	}
	if len(args) < 3 {
		h.reply(chatID, "格式：/generate 团队 开始 结束\n例如：/generate ops 2024-05-01 2024-05-31")
		return
	}

	h.reply(chatID, "⏳ 正在生成排班…")
	ctx, cancel := commandContext()
	defer cancel()
	res, err := h.schedules.Generate(ctx, &service.GenerateRequest{
		Team:       args[0],
		ViewStart:  args[1],
		ViewEnd:    args[2],
		UseHistory: true,
	}, nil)
	if err != nil {
		h.userError(chatID, err)
		return
	}

	h.mu.Lock()
	h.pending[chatID] = res
	h.mu.Unlock()

	msg := tgbotapi.NewMessage(chatID, formatGenerated(res))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ 保存", "save_generated"),
			tgbotapi.NewInlineKeyboardButtonData("❌ 取消", "cancel_generated"),
		),
	)
	h.send(msg)
}

func (h *Handler) handleGeneratedCallback(chatID int64, data string) {
	h.mu.Lock()
	res := h.pending[chatID]
	delete(h.pending, chatID)
	h.mu.Unlock()

	if data == "cancel_generated" || res == nil {
		h.reply(chatID, "已取消。")
		return
	}
	if !h.isAdmin(chatID) {
		h.reply(chatID, "❌ 无权限")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	saved, err := h.schedules.Save(ctx, &service.SaveRequest{
		Team:      res.Team,
		ViewStart: res.ViewStart,
		ViewEnd:   res.ViewEnd,
		Employees: res.Employees,
		Data:      res.Data,
		Note:      "Telegram 生成",
		Operator:  "Telegram",
	})
	if err != nil {
		h.userError(chatID, err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ 已保存为版本 #%d", saved.VersionID))
}

func (h *Handler) deleteVersion(message *tgbotapi.Message, args []string) {
	chatID := message.Chat.ID
	if !h.isAdmin(chatID) {
		h.logger.WithField("chat_id", chatID).Warn("Unauthorized access to deleteversion command")
		h.reply(chatID, "❌ 无权限")
		return
	}
	if len(args) == 0 {
		h.reply(chatID, "格式：/deleteversion 版本ID\n先用 /versions 查看版本 ID")
		return
	}
	id, err := strconv.ParseUint(args[0], 10, 64)
	if err != nil {
		h.reply(chatID, "❌ 版本 ID 必须是数字")
		return
	}

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ 删除", fmt.Sprintf("confirm_delete_version_%d", id)),
			tgbotapi.NewInlineKeyboardButtonData("❌ 取消", "cancel_delete_version"),
		),
	)
	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("⚠️ 确定删除版本 #%d？此操作不可撤销。", id))
	msg.ReplyMarkup = keyboard
	h.send(msg)
}

func (h *Handler) handleDeleteCallback(chatID int64, data string) {
	if data == "cancel_delete_version" {
		h.reply(chatID, "已取消删除。")
		return
	}
	if !h.isAdmin(chatID) {
		h.reply(chatID, "❌ 无权限")
		return
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(data, "confirm_delete_version_"), 10, 64)
	if err != nil {
		h.reply(chatID, "❌ 无效的版本 ID")
		return
	}

	ctx, cancel := commandContext()
	defer cancel()
	view, err := h.schedules.GetVersion(ctx, uint(id), "")
	if err == nil {
		err = h.schedules.DeleteVersion(ctx, uint(id), view.Team)
	}
	if err != nil {
		h.userError(chatID, err)
		return
	}
	h.reply(chatID, fmt.Sprintf("✅ 版本 #%d 已删除", id))
}
