package handler

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"shift-planner/internal/engine"
	"shift-planner/internal/events"
	"shift-planner/internal/logger"
	"shift-planner/internal/progress"
	"shift-planner/internal/repository"
	"shift-planner/internal/service"
)

const adminChat = int64(100)

type fakeBot struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests int
}

func (f *fakeBot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, nil
}

func (f *fakeBot) Request(tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
	return &tgbotapi.APIResponse{Ok: true}, nil
}

// last - последнее отправленное сообщение
func (f *fakeBot) last(t *testing.T) tgbotapi.Chattable {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

func (f *fakeBot) lastText(t *testing.T) string {
	t.Helper()
	msg, ok := f.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok, "expected text message")
	return msg.Text
}

func command(chatID int64, text string) *tgbotapi.Message {
	name, _, _ := strings.Cut(text, " ")
	return &tgbotapi.Message{
		Chat:     &tgbotapi.Chat{ID: chatID},
		Text:     text,
		Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(name)}},
	}
}

func callback(chatID int64, data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:      "cb",
		Message: &tgbotapi.Message{MessageID: 1, Chat: &tgbotapi.Chat{ID: chatID}},
		Data:    data,
	}
}

func newTestHandler(t *testing.T) (*Handler, *fakeBot, *service.ScheduleService) {
	t.Helper()
	dir := t.TempDir()
	db, err := gorm.Open(sqlite.Open(filepath.Join(dir, "bot.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	versions, err := repository.NewGormScheduleVersionRepository(db)
	require.NoError(t, err)
	versions.SetLogger(logger.Discard())

	plog, err := progress.Open(dir)
	require.NoError(t, err)
	t.Cleanup(func() { plog.Close() })

	history := service.NewHistoryService(versions, engine.DefaultLabels(), nil)
	history.SetLogger(logger.Discard())
	schedules := service.NewScheduleService(versions, history, nil, plog, engine.NewPipeline(engine.WithPause(0)))
	schedules.SetLogger(logger.Discard())

	bot := &fakeBot{}
	h := NewHandler(bot, schedules, plog, adminChat)
	h.SetLogger(logger.Discard())
	return h, bot, schedules
}

func saveApril(t *testing.T, s *service.ScheduleService) uint {
	t.Helper()
	res, err := s.Save(context.Background(), &service.SaveRequest{
		Team:      "ops",
		ViewStart: "2024-04-01",
		ViewEnd:   "2024-04-03",
		Employees: []string{"甲", "乙"},
		Data: map[string]map[string]string{
			"2024-04-01": {"甲": "白", "乙": "中1"},
			"2024-04-02": {"甲": "夜", "乙": "休"},
		},
		Operator: "小王",
	})
	require.NoError(t, err)
	return res.VersionID
}

func TestHelpAndUnknown(t *testing.T) {
	h, bot, _ := newTestHandler(t)

	h.handleMessage(command(1, "/help"))
	assert.Contains(t, bot.lastText(t), "/latest")

	h.handleMessage(command(1, "/nope"))
	assert.Contains(t, bot.lastText(t), "未知命令")

	h.handleMessage(&tgbotapi.Message{Chat: &tgbotapi.Chat{ID: 1}, Text: "hi"})
	assert.Contains(t, bot.lastText(t), "/help")
}

func TestLatestAndVersions(t *testing.T) {
	h, bot, s := newTestHandler(t)
	id := saveApril(t, s)

	h.handleMessage(command(1, "/latest ops 2024-04-01 2024-04-03"))
	text := bot.lastText(t)
	assert.Contains(t, text, "版本 #1")
	assert.Contains(t, text, "小王")
	assert.Contains(t, text, "甲：白1 中11 中20 夜1 休0")
	assert.Contains(t, text, "乙：白0 中11 中20 夜0 休1")

	h.handleMessage(command(1, "/versions ops"))
	msg, ok := bot.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "#1")
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, markup.InlineKeyboard, 1)
	require.NotNil(t, markup.InlineKeyboard[0][0].CallbackData)
	assert.Equal(t, "show_version_1", *markup.InlineKeyboard[0][0].CallbackData)

	h.handleCallbackQuery(callback(1, "show_version_1"))
	assert.Contains(t, bot.lastText(t), "2024-04-01 ~ 2024-04-03")
	assert.Equal(t, 2, bot.requests)

	h.handleMessage(command(1, "/latest ops 2024-04-03 2024-04-01"))
	assert.Contains(t, bot.lastText(t), "❌")
	assert.Equal(t, uint(1), id)
}

func TestExportSendsDocument(t *testing.T) {
	h, bot, s := newTestHandler(t)
	saveApril(t, s)

	h.handleMessage(command(1, "/export ops 2024-04-01 2024-04-03"))
	doc, ok := bot.last(t).(tgbotapi.DocumentConfig)
	require.True(t, ok)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "排班_2024-04-01_2024-04-03.xlsx", file.Name)
	assert.NotEmpty(t, file.Bytes)

	h.handleMessage(command(1, "/export ops"))
	assert.Contains(t, bot.lastText(t), "格式")
}

func TestGenerateRequiresAdminAndConfirmation(t *testing.T) {
	h, bot, s := newTestHandler(t)

	h.handleMessage(command(2, "/generate ops 2024-04-01 2024-04-07"))
	assert.Contains(t, bot.lastText(t), "无权限")

	saveApril(t, s)
	h.handleMessage(command(adminChat, "/generate ops 2024-04-01 2024-04-07"))
	msg, ok := bot.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "成员 2 人")
	assert.NotNil(t, msg.ReplyMarkup)

	h.handleCallbackQuery(callback(adminChat, "save_generated"))
	assert.Contains(t, bot.lastText(t), "已保存为版本 #2")

	h.handleCallbackQuery(callback(adminChat, "save_generated"))
	assert.Contains(t, bot.lastText(t), "已取消")
	s.Wait()
}

func TestDeleteVersionFlow(t *testing.T) {
	h, bot, s := newTestHandler(t)
	saveApril(t, s)

	h.handleMessage(command(adminChat, "/deleteversion 1"))
	msg, ok := bot.last(t).(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Contains(t, msg.Text, "#1")

	h.handleCallbackQuery(callback(adminChat, "confirm_delete_version_1"))
	assert.Contains(t, bot.lastText(t), "已删除")

	h.handleCallbackQuery(callback(adminChat, "confirm_delete_version_1"))
	assert.Contains(t, bot.lastText(t), service.ErrVersionNotFound.Error())
}

func TestProgressCommand(t *testing.T) {
	h, bot, s := newTestHandler(t)

	h.handleMessage(command(1, "/progress ops"))
	assert.Contains(t, bot.lastText(t), "暂无日志")

	saveApril(t, s)
	h.handleMessage(command(1, "/progress ops"))
	assert.Contains(t, bot.lastText(t), "[100%] 保存排班版本")
}

func TestNotifier(t *testing.T) {
	bot := &fakeBot{}
	n := NewNotifier(bot, 42)

	err := n.VersionSaved(context.Background(), events.VersionSaved{
		VersionID:  7,
		Team:       "ops",
		ViewStart:  "2024-04-01",
		ViewEnd:    "2024-04-30",
		Operator:   "小王",
		Employees:  5,
		Note:       "五一调整",
		OccurredAt: time.Now(),
	})
	require.NoError(t, err)
	msg := bot.last(t).(tgbotapi.MessageConfig)
	assert.Equal(t, int64(42), msg.ChatID)
	assert.Equal(t, "💾 小王 保存了 ops 排班 2024-04-01 ~ 2024-04-30（版本 #7，5 人）\n备注：五一调整", msg.Text)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, n.VersionSaved(ctx, events.VersionSaved{}), context.Canceled)
}
