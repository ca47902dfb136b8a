// Package progress ведёт журнал хода генерации и сохранений в формате JSONL.
package progress

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	DefaultLimit = 100
	MaxLimit     = 300
	// DefaultTeam - команда для записей без команды
	DefaultTeam = "default"
)

var ErrEmptyMessage = errors.New("缺少日志内容")

// Entry - одна строка журнала
type Entry struct {
	Timestamp time.Time      `json:"timestamp"`
	Team      string         `json:"team"`
	Stage     string         `json:"stage,omitempty"`
	Message   string         `json:"message"`
	Progress  *int           `json:"progress,omitempty"`
	Context   map[string]any `json:"context,omitempty"`
}

// Percent - удобный конструктор для Entry.Progress с обрезкой 0..100
func Percent(v int) *int {
	v = max(0, min(100, v))
	return &v
}

// Log пишет записи через logrus с JSONFormatter: одна запись - одна строка
type Log struct {
	path string
	file *os.File
	out  *logrus.Logger
	now  func() time.Time
}

// Open открывает (или создаёт) dir/logs/progress.jsonl
func Open(dir string) (*Log, error) {
	path := filepath.Join(dir, "logs", "progress.jsonl")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}

	out := logrus.New()
	out.SetOutput(f)
	out.SetLevel(logrus.InfoLevel)
	out.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat:   time.RFC3339,
		DisableHTMLEscape: true,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime: "timestamp",
			logrus.FieldKeyMsg:  "message",
		},
	})

	return &Log{path: path, file: f, out: out, now: time.Now}, nil
}

func (l *Log) Path() string {
	return l.path
}

func (l *Log) Close() error {
	return l.file.Close()
}

// Append дописывает запись. Пустое сообщение - ошибка.
func (l *Log) Append(e Entry) error {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		return ErrEmptyMessage
	}
	team := strings.TrimSpace(e.Team)
	if team == "" {
		team = DefaultTeam
	}
	ts := e.Timestamp
	if ts.IsZero() {
		ts = l.now()
	}

	fields := logrus.Fields{"team": team}
	if e.Stage != "" {
		fields["stage"] = e.Stage
	}
	if e.Progress != nil {
		fields["progress"] = *Percent(*e.Progress)
	}
	if len(e.Context) > 0 {
		fields["context"] = e.Context
	}
	l.out.WithTime(ts).WithFields(fields).Info(msg)
	return nil
}

// ClampLimit: неположительное значение - DefaultLimit, затем 1..MaxLimit
func ClampLimit(limit int) int {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return max(1, min(MaxLimit, limit))
}

// Recent - последние limit записей (в хронологическом порядке),
// при непустом team только этой команды. Нечитаемые строки пропускаются.
func (l *Log) Recent(limit int, team string) ([]Entry, error) {
	limit = ClampLimit(limit)

	f, err := os.Open(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	items := make([]Entry, 0, min(limit, len(lines)))
	for i := len(lines) - 1; i >= 0 && len(items) < limit; i-- {
		var e Entry
		if err := json.Unmarshal([]byte(lines[i]), &e); err != nil {
			continue
		}
		if team != "" && e.Team != team {
			continue
		}
		items = append(items, e)
	}
	slices.Reverse(items)
	return items, nil
}
