package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"shift-planner/internal/engine"
	"shift-planner/internal/export"
	"shift-planner/internal/service"
	"shift-planner/pkg/calendar"
)

func newGenerateCmd(c *cli) *cobra.Command {
	var (
		scenario string
		save     bool
		out      string
		operator string
	)

	cmd := &cobra.Command{
		Use:   "generate -f scenario.yaml",
		Short: "按场景文件生成排班",
		Long: `按 YAML 场景文件生成排班。场景字段与 POST /api/schedule/generate 的请求体相同：

  team: ops
  viewStart: 2024-05-01
  viewEnd: 2024-05-31
  employees: [甲, 乙, 丙]
  useHistory: true
  restPrefs: {甲: "67"}
  nightWindows:
    - {start: 2024-05-10, end: 2024-05-12}

--out 以 .csv 结尾时导出 CSV，否则导出 XLSX；不指定时向标准输出打印 JSON。`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(scenario)
			if err != nil {
				return err
			}
			req, err := decodeScenario(raw)
			if err != nil {
				return fmt.Errorf("%s: %w", scenario, err)
			}
			if save {
				req.Save = true
			}
			if operator != "" {
				req.Operator = operator
			}

			a, err := newApp(c.cfg, c.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			stderr := cmd.ErrOrStderr()
			res, err := a.schedules.Generate(cmd.Context(), req, func(ev engine.Event) {
				if ev.Kind == engine.EventStage {
					fmt.Fprintf(stderr, "[%3d%%] %s\n", ev.Stage.Progress, ev.Message)
				}
			})
			if err != nil {
				return err
			}
			if res.Saved != nil {
				fmt.Fprintf(stderr, "已保存为版本 #%d\n", res.Saved.VersionID)
			}

			if out == "" {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				enc.SetEscapeHTML(false)
				return enc.Encode(res)
			}
			span, err := calendar.ParseSpan(res.ViewStart, res.ViewEnd)
			if err != nil {
				return err
			}
			return writeTable(out, export.BuildTable(res.Employees, span, res.Data), c)
		},
	}

	cmd.Flags().StringVarP(&scenario, "file", "f", "", "YAML 场景文件")
	cmd.Flags().BoolVar(&save, "save", false, "保存为新版本")
	cmd.Flags().StringVarP(&out, "out", "o", "", "导出文件路径")
	cmd.Flags().StringVar(&operator, "operator", "", "保存时记录的操作人")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// decodeScenario читает YAML-сценарий в запрос генерации. YAML сначала
// приводится к JSON, чтобы действовали те же правила разбора, что и в API.
func decodeScenario(raw []byte) (*service.GenerateRequest, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, errors.New("场景文件为空")
	}

	body, err := json.Marshal(plainYAML(doc))
	if err != nil {
		return nil, err
	}
	var req service.GenerateRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	if err := dec.Decode(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

// plainYAML переводит значения YAML в то, что понимает encoding/json.
// Даты без кавычек yaml.v3 отдаёт как time.Time.
func plainYAML(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = plainYAML(item)
		}
		return x
	case map[any]any:
		m := make(map[string]any, len(x))
		for k, item := range x {
			m[fmt.Sprint(k)] = plainYAML(item)
		}
		return m
	case []any:
		for i, item := range x {
			x[i] = plainYAML(item)
		}
		return x
	case time.Time:
		return calendar.FromTime(x).String()
	default:
		return v
	}
}

// writeTable пишет таблицу в файл: CSV по расширению, иначе XLSX с откатом на CSV
func writeTable(path string, t export.Table, c *cli) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}

	var format export.Format
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		format, err = export.CSV, export.WriteCSV(f, t)
	} else {
		format, err = export.Write(f, t, c.logger)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	c.logger.WithFields(logrus.Fields{"path": path, "format": format.Ext}).Info("Schedule exported")
	return nil
}
