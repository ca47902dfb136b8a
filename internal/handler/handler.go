package handler

import (
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"

	"shift-planner/internal/progress"
	"shift-planner/internal/service"
)

// Sender - часть BotAPI, которая нужна обработчику
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// ProgressReader - чтение журнала прогресса
type ProgressReader interface {
	Recent(limit int, team string) ([]progress.Entry, error)
}

type Handler struct {
	bot       Sender
	schedules *service.ScheduleService
	progress  ProgressReader
	// adminChatID - чат, которому разрешены изменения; 0 - всем
	adminChatID int64
	// pending - сгенерированные, но ещё не сохранённые графики по чатам
	pending map[int64]*service.GenerateResult
	mu      sync.Mutex
	logger  *logrus.Logger
}

func NewHandler(
	bot Sender,
	schedules *service.ScheduleService,
	progress ProgressReader,
	adminChatID int64,
) *Handler {
	return &Handler{
		bot:         bot,
		schedules:   schedules,
		progress:    progress,
		adminChatID: adminChatID,
		pending:     make(map[int64]*service.GenerateResult),
		logger:      logrus.New(),
	}
}

func (h *Handler) SetLogger(l *logrus.Logger) {
	h.logger = l
}

func (h *Handler) HandleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		// Обработка callback query (для inline кнопок)
		if update.CallbackQuery != nil {
			h.handleCallbackQuery(update.CallbackQuery)
			continue
		}

		if update.Message == nil {
			continue
		}

		h.handleMessage(update.Message)
	}
}

// handleCallbackQuery обрабатывает inline кнопки
func (h *Handler) handleCallbackQuery(callback *tgbotapi.CallbackQuery) {
	chatID := callback.Message.Chat.ID
	data := callback.Data

	// Удаляем клавиатуру
	h.request(tgbotapi.NewEditMessageReplyMarkup(chatID, callback.Message.MessageID, tgbotapi.NewInlineKeyboardMarkup()))

	switch {
	case strings.HasPrefix(data, "show_version_"):
		h.showVersion(chatID, strings.TrimPrefix(data, "show_version_"))
	case strings.HasPrefix(data, "confirm_delete_version_") || data == "cancel_delete_version":
		h.handleDeleteCallback(chatID, data)
	case data == "save_generated" || data == "cancel_generated":
		h.handleGeneratedCallback(chatID, data)
	}

	// Отвечаем на callback (убираем "часики" у кнопки)
	h.request(tgbotapi.NewCallback(callback.ID, ""))
}

func (h *Handler) handleMessage(message *tgbotapi.Message) {
	fields := logrus.Fields{"chat_id": message.Chat.ID}
	if message.From != nil {
		fields["user"] = message.From.UserName
	}
	h.logger.WithFields(fields).Debug(message.Text)

	if message.IsCommand() {
		h.handleCommand(message)
		return
	}

	h.reply(message.Chat.ID, "请发送命令，/help 查看可用命令。")
}

// isAdmin - можно ли из этого чата менять данные
func (h *Handler) isAdmin(chatID int64) bool {
	return h.adminChatID == 0 || h.adminChatID == chatID
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		h.logger.WithError(err).Error("Failed to send telegram message")
	}
}

func (h *Handler) request(c tgbotapi.Chattable) {
	if _, err := h.bot.Request(c); err != nil {
		h.logger.WithError(err).Debug("Telegram request failed")
	}
}
